package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"projects-factory/internal/store"
	"projects-factory/internal/tui"
)

func newTUICmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive dashboard (the default with no subcommand)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, app)
		},
	}
}

func runTUI(cmd *cobra.Command, app *App) error {
	ctx := cmd.Context()
	c, err := app.controller(ctx)
	if err != nil {
		return writeErr(cmd, err)
	}
	if app.cfg.Metrics.Listen != "" {
		stop := serveMetrics(app)
		defer stop()
	}
	return tui.Run(ctx, tui.Options{
		Controller:   c,
		State:        &store.Store{Dir: app.cfg.State.Dir},
		TemplatesDir: app.cfg.UI.TemplatesDir,
		ThemeFile:    app.cfg.UI.ThemeFile,
		Dev:          app.cfg.Dev.Enabled,
		DevMaxAge:    app.cfg.Dev.SnapshotMaxAge,
		Logger:       app.log,
	})
}

// serveMetrics exposes the mutation metrics on /metrics while the dashboard
// runs. The returned function shuts the listener down.
func serveMetrics(app *App) func() {
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              app.cfg.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.log.Warn("metrics listener stopped", "addr", srv.Addr, "error", err)
		}
	}()
	app.log.Info("serving metrics", "addr", srv.Addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
