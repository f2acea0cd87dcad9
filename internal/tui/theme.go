package tui

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"gopkg.in/yaml.v3"
)

// Theme/palette helpers.
//
// The dashboard must remain readable on both light and dark terminal backgrounds.
// Colors are lipgloss.AdaptiveColor and "faint" styling is only applied on dark
// backgrounds.

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

func faintIfDark(st lipgloss.Style) lipgloss.Style {
	if lipgloss.HasDarkBackground() {
		return st.Faint(true)
	}
	return st
}

// Palette is the set of semantic colors. A theme file overrides any subset.
type Palette struct {
	Muted      lipgloss.TerminalColor
	Accent     lipgloss.TerminalColor
	AccentFg   lipgloss.TerminalColor
	Success    lipgloss.TerminalColor
	Warning    lipgloss.TerminalColor
	Failure    lipgloss.TerminalColor
	SelectedBg lipgloss.TerminalColor
	SelectedFg lipgloss.TerminalColor
	SurfaceFg  lipgloss.TerminalColor
	ControlBg  lipgloss.TerminalColor
	InputBg    lipgloss.TerminalColor
	PanelEdge  lipgloss.TerminalColor
}

func defaultPalette() Palette {
	return Palette{
		Muted:      ac("240", "243"),
		Accent:     ac("27", "62"),
		AccentFg:   ac("255", "235"),
		Success:    ac("28", "71"),
		Warning:    ac("130", "214"),
		Failure:    ac("160", "203"),
		SelectedBg: ac("#e9e9e9", "#262626"),
		SelectedFg: ac("235", "255"),
		SurfaceFg:  ac("235", "252"),
		ControlBg:  ac("252", "235"),
		InputBg:    ac("254", "234"),
		PanelEdge:  ac("250", "240"),
	}
}

var palette = defaultPalette()

func styleMuted() lipgloss.Style {
	return faintIfDark(lipgloss.NewStyle().Foreground(palette.Muted))
}

func styleAccent() lipgloss.Style  { return lipgloss.NewStyle().Foreground(palette.Accent).Bold(true) }
func styleSuccess() lipgloss.Style { return lipgloss.NewStyle().Foreground(palette.Success) }
func styleWarning() lipgloss.Style { return lipgloss.NewStyle().Foreground(palette.Warning) }
func styleFailure() lipgloss.Style { return lipgloss.NewStyle().Foreground(palette.Failure) }

func styleSelected() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(palette.SelectedFg).Background(palette.SelectedBg)
}

// themeFile is the YAML layout of a theme. Each color is "light,dark" or a
// single value used for both.
type themeFile struct {
	Muted      string `yaml:"muted"`
	Accent     string `yaml:"accent"`
	AccentFg   string `yaml:"accent_fg"`
	Success    string `yaml:"success"`
	Warning    string `yaml:"warning"`
	Failure    string `yaml:"failure"`
	SelectedBg string `yaml:"selected_bg"`
	SelectedFg string `yaml:"selected_fg"`
	SurfaceFg  string `yaml:"surface_fg"`
	ControlBg  string `yaml:"control_bg"`
	InputBg    string `yaml:"input_bg"`
	PanelEdge  string `yaml:"panel_edge"`
}

func parseColor(s string) (lipgloss.TerminalColor, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	if light, dark, ok := strings.Cut(s, ","); ok {
		return ac(strings.TrimSpace(light), strings.TrimSpace(dark)), true
	}
	return lipgloss.Color(s), true
}

// loadTheme overlays the colors from path onto the default palette.
func loadTheme(path string) (Palette, error) {
	p := defaultPalette()
	if strings.TrimSpace(path) == "" {
		return p, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	var f themeFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return p, fmt.Errorf("parse theme %s: %w", path, err)
	}
	set := func(dst *lipgloss.TerminalColor, v string) {
		if c, ok := parseColor(v); ok {
			*dst = c
		}
	}
	set(&p.Muted, f.Muted)
	set(&p.Accent, f.Accent)
	set(&p.AccentFg, f.AccentFg)
	set(&p.Success, f.Success)
	set(&p.Warning, f.Warning)
	set(&p.Failure, f.Failure)
	set(&p.SelectedBg, f.SelectedBg)
	set(&p.SelectedFg, f.SelectedFg)
	set(&p.SurfaceFg, f.SurfaceFg)
	set(&p.ControlBg, f.ControlBg)
	set(&p.InputBg, f.InputBg)
	set(&p.PanelEdge, f.PanelEdge)
	return p, nil
}

// applyColorProfilePreference sets Lip Gloss's color profile for the dashboard.
//
// termenv.EnvColorProfile respects CLICOLOR/CLICOLOR_FORCE, which can disable
// colors in a full-screen program; only NO_COLOR is honored here.
func applyColorProfilePreference() {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}

	profile := termenv.ColorProfile()

	// Trust TERM/COLORTERM when they claim more than the detector reports.
	term := strings.ToLower(strings.TrimSpace(os.Getenv("TERM")))
	colorterm := strings.ToLower(strings.TrimSpace(os.Getenv("COLORTERM")))
	if strings.Contains(colorterm, "truecolor") || strings.Contains(colorterm, "24bit") {
		if profile != termenv.Ascii {
			profile = termenv.TrueColor
		}
	} else if strings.Contains(term, "256color") {
		if profile == termenv.Ascii || profile == termenv.ANSI {
			profile = termenv.ANSI256
		}
	}

	lipgloss.SetColorProfile(profile)
}

// applyThemePreference configures background detection.
//
// Priority:
// 1) PROJECTS_FACTORY_TUI_THEME=light|dark|auto
// 2) COLORFGBG heuristic ("fg;bg")
// 3) macOS appearance
func applyThemePreference() {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("PROJECTS_FACTORY_TUI_THEME"))) {
	case "light":
		lipgloss.SetHasDarkBackground(false)
		return
	case "dark":
		lipgloss.SetHasDarkBackground(true)
		return
	}

	if v := strings.TrimSpace(os.Getenv("COLORFGBG")); v != "" {
		parts := strings.Split(v, ";")
		if bg, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1])); err == nil {
			lipgloss.SetHasDarkBackground(bg < 7)
			return
		}
	}

	if runtime.GOOS == "darwin" {
		if dark, ok := macOSHasDarkAppearance(); ok {
			lipgloss.SetHasDarkBackground(dark)
		}
	}
}

func macOSHasDarkAppearance() (dark bool, ok bool) {
	// Prints "Dark" in dark mode; exits 1 in light mode (key missing).
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	out, err := exec.CommandContext(ctx, "defaults", "read", "-g", "AppleInterfaceStyle").CombinedOutput()
	if ctx.Err() != nil {
		return false, false
	}
	if err == nil {
		return strings.Contains(strings.ToLower(string(out)), "dark"), true
	}
	if ee, ok := err.(*exec.ExitError); ok && ee.ExitCode() == 1 {
		return false, true
	}
	return false, false
}

// ASCII glyphs for fonts that render the Unicode ones poorly.
var asciiGlyphs = strings.EqualFold(strings.TrimSpace(os.Getenv("PROJECTS_FACTORY_TUI_GLYPHS")), "ascii")

func glyphTwisty(expanded bool) string {
	switch {
	case asciiGlyphs && expanded:
		return "v"
	case asciiGlyphs:
		return ">"
	case expanded:
		return "▾"
	default:
		return "▸"
	}
}

func glyphEllipsis() string {
	if asciiGlyphs {
		return "..."
	}
	return "…"
}
