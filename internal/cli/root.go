package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"projects-factory/internal/config"
	"projects-factory/internal/dashboard"
	"projects-factory/internal/format"
	"projects-factory/internal/logging"
	"projects-factory/internal/mutate"
	"projects-factory/internal/remote"
	"projects-factory/internal/store"
	"projects-factory/internal/workspace"
)

type App struct {
	ConfigFile string
	Format     string
	PrettyJSON bool

	v   *viper.Viper
	cfg *config.Config
	log *logging.Logger

	registry *prometheus.Registry
	metrics  *mutate.Metrics

	// newBackend is swapped in tests.
	newBackend func(cfg *config.Config, log *logging.Logger) (remote.Backend, error)
}

// skipConfig marks commands that must work without a valid config.
const skipConfig = "skip-config"

func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{newBackend: defaultBackend})
}

func newRootCmd(app *App) *cobra.Command {
	app.v = config.New()

	cmd := &cobra.Command{
		Use:          "projects-factory",
		Short:        "Dashboard for your GitHub repositories and local projects",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive dashboard
  projects-factory

  # Scriptable commands
  projects-factory list --format table
  projects-factory install my-repo
  projects-factory publish draft --public

  # Shortcut for: projects-factory install <url>
  projects-factory https://github.com/me/my-repo
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive dashboard.
			if len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipConfig] == "true" {
			return nil
		}
		return app.load()
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if app.log != nil {
			return app.log.Close()
		}
		return nil
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&app.ConfigFile, "config", envOr("PROJECTS_FACTORY_CONFIG", ""), "Config file (default: $XDG_CONFIG_HOME/projects-factory/config.yaml)")
	pf.StringVar(&app.Format, "format", envOr("PROJECTS_FACTORY_FORMAT", "table"), "Output format (table|json|yaml)")
	pf.BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	pf.String("backend", "", "Collaborator backend (workspace|http)")
	pf.String("root", "", "Workspace root holding MY_REPOS and NEW_PROJECTS")
	pf.String("server", "", "Backend service URL for --backend http")
	pf.String("log-level", "", "Log level (debug|info|warn|error)")
	pf.Bool("dev", false, "Dev mode: restore the last session and hot-reload templates")
	for key, flag := range map[string]string{
		"backend":        "backend",
		"workspace.root": "root",
		"server.url":     "server",
		"logging.level":  "log-level",
		"dev.enabled":    "dev",
	} {
		_ = app.v.BindPFlag(key, pf.Lookup(flag))
	}

	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newDetailsCmd(app))
	cmd.AddCommand(newInstallCmd(app))
	cmd.AddCommand(newDeleteCmd(app))
	cmd.AddCommand(newDeleteRepoCmd(app))
	cmd.AddCommand(newRenameCmd(app))
	cmd.AddCommand(newDescribeCmd(app))
	cmd.AddCommand(newPublishCmd(app))
	cmd.AddCommand(newPushCmd(app))
	cmd.AddCommand(newOpenCmd(app))
	cmd.AddCommand(newRefreshCmd(app))
	cmd.AddCommand(newCreateCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newTUICmd(app))

	return cmd
}

// load reads the config file, environment and flags, then opens the log.
func (app *App) load() error {
	if err := config.ReadFile(app.v, app.ConfigFile); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	cfg, err := config.Load(app.v)
	if err != nil {
		return err
	}
	app.cfg = cfg
	log, err := logging.NewLogger(cfg.State.Dir, cfg.Logging.Level)
	if err != nil {
		return err
	}
	app.log = log
	app.registry = prometheus.NewRegistry()
	app.metrics = mutate.NewMetrics(app.registry)
	return nil
}

func defaultBackend(cfg *config.Config, log *logging.Logger) (remote.Backend, error) {
	switch cfg.Backend {
	case config.BackendHTTP:
		return remote.NewHTTPClient(cfg.Server.URL, cfg.RemoteTimeouts()), nil
	default:
		var gh workspace.GitHub
		if cfg.GitHub.GHPath != "" {
			gh = workspace.GHCLI{Bin: cfg.GitHub.GHPath}
		}
		return workspace.New(workspace.Config{
			Root:               cfg.Workspace.Root,
			CachePath:          cfg.Workspace.CachePath,
			Username:           cfg.GitHub.Username,
			DefaultPushMessage: cfg.UI.DefaultPushMessage,
			GitStateTTL:        cfg.GitStateTTL(),
			Editor:             cfg.EditorCommand(),
			Timeouts:           cfg.RemoteTimeouts(),
			Concurrency:        cfg.Workspace.Concurrency,
			GitHub:             gh,
			Logger:             log,
		})
	}
}

// controller builds a dashboard controller without loading it.
func (app *App) controller(ctx context.Context) (*dashboard.Controller, error) {
	b, err := app.newBackend(app.cfg, app.log)
	if err != nil {
		return nil, err
	}
	st := &store.Store{Dir: app.cfg.State.Dir}
	c := dashboard.New(dashboard.Options{
		Backend: b,
		State:   st,
		Metrics: app.metrics,
		Logger:  app.log,
	})
	c.RestoreUIState(ctx)
	return c, nil
}

// loadedController is controller followed by a full load.
func (app *App) loadedController(ctx context.Context) (*dashboard.Controller, error) {
	c, err := app.controller(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Load(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
