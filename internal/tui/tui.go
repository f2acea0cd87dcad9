package tui

import (
	"context"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the full-screen dashboard and blocks until the operator quits.
func Run(ctx context.Context, opts Options) error {
	applyColorProfilePreference()
	applyThemePreference()

	themePath := opts.ThemeFile
	if themePath == "" && opts.TemplatesDir != "" {
		if p := filepath.Join(opts.TemplatesDir, themeFileName); fileExists(p) {
			themePath = p
		}
	}
	if themePath != "" {
		p, err := loadTheme(themePath)
		if err != nil {
			return err
		}
		palette = p
	}

	m, err := newAppModel(ctx, opts)
	if err != nil {
		return err
	}
	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if fm, ok := final.(appModel); ok && err != nil {
		// Quit already saved the session; this covers interrupts.
		fm.shutdown("interrupt")
	}
	return err
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
