package tui

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	xansi "github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"projects-factory/internal/model"
	"projects-factory/internal/reconcile"
	"projects-factory/internal/view"
)

//go:embed templates/*.tmpl
var defaultTemplates embed.FS

const (
	rowTemplateName    = "row.tmpl"
	detailTemplateName = "detail.tmpl"
	themeFileName      = "theme.yaml"
)

// rowData is what row and detail templates see.
type rowData struct {
	P         model.Project
	Installed bool
	Busy      bool
	Aux       *reconcile.Aux
}

// templateRenderer paints rows with text/template. It implements
// reconcile.Renderer.
type templateRenderer struct {
	row    *template.Template
	detail *template.Template
	width  int
	now    func() time.Time
}

var _ reconcile.Renderer = (*templateRenderer)(nil)

// newRenderer parses the templates in dir, falling back to the built-in ones
// for any file dir does not provide. width bounds the README preview.
func newRenderer(dir string, width int) (*templateRenderer, error) {
	r := &templateRenderer{width: width, now: time.Now}
	funcs := r.funcs()
	var err error
	if r.row, err = parseTemplate(dir, rowTemplateName, funcs); err != nil {
		return nil, err
	}
	if r.detail, err = parseTemplate(dir, detailTemplateName, funcs); err != nil {
		return nil, err
	}
	return r, nil
}

func parseTemplate(dir, name string, funcs template.FuncMap) (*template.Template, error) {
	var src []byte
	if dir != "" {
		b, err := os.ReadFile(filepath.Join(dir, name))
		switch {
		case err == nil:
			src = b
		case !os.IsNotExist(err):
			return nil, err
		}
	}
	if src == nil {
		b, err := defaultTemplates.ReadFile("templates/" + name)
		if err != nil {
			return nil, err
		}
		src = b
	}
	t, err := template.New(name).Funcs(funcs).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", name, err)
	}
	return t, nil
}

func (r *templateRenderer) funcs() template.FuncMap {
	return template.FuncMap{
		"pad":   pad,
		"trunc": func(s string, n int) string { return xansi.Truncate(s, n, glyphEllipsis()) },
		"kind":  kindLabel,
		"date":  view.FormatDate,
		"ago": func(p model.Project) string {
			t, ok := p.CreatedTime()
			if !ok {
				return "at an unknown date"
			}
			return humanize.RelTime(t, r.now(), "ago", "from now")
		},
		"state":    stateLabel,
		"actions":  actionHints,
		"join":     strings.Join,
		"markdown": func(md string) string { return renderMarkdown(md, r.width) },
		"muted":    func(s string) string { return styleMuted().Render(s) },
		"accent":   func(s string) string { return styleAccent().Render(s) },
		"ok":       func(s string) string { return styleSuccess().Render(s) },
		"warn":     func(s string) string { return styleWarning().Render(s) },
		"bad":      func(s string) string { return styleFailure().Render(s) },
	}
}

func (r *templateRenderer) RenderRow(e reconcile.Entry) string {
	return r.exec(r.row, rowData{P: e.Project, Installed: e.Installed, Busy: e.Busy})
}

func (r *templateRenderer) RenderDetail(e reconcile.Entry, aux *reconcile.Aux) string {
	return r.exec(r.detail, rowData{P: e.Project, Installed: e.Installed, Busy: e.Busy, Aux: aux})
}

// exec never fails the frame: a broken template shows its error in the row.
func (r *templateRenderer) exec(t *template.Template, data rowData) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return styleFailure().Render("template error: " + err.Error())
	}
	return strings.TrimRight(buf.String(), "\n")
}

func pad(s string, n int) string {
	if w := xansi.StringWidth(s); w < n {
		return s + strings.Repeat(" ", n-w)
	}
	return s
}

func kindLabel(p model.Project) string {
	if l := p.PrivacyLabel(); l != "" {
		return p.KindLabel() + " (" + l + ")"
	}
	return p.KindLabel()
}

func stateLabel(d rowData) string {
	var parts []string
	switch {
	case d.Installed:
		parts = append(parts, styleSuccess().Render("installed"))
	case d.P.IsLocalOnly:
		parts = append(parts, styleMuted().Render("local"))
	default:
		parts = append(parts, styleMuted().Render("remote"))
	}
	if d.P.CanPublish {
		parts = append(parts, styleWarning().Render("changes"))
	}
	if d.P.PublishUnconfirmed {
		parts = append(parts, styleFailure().Render("publish unconfirmed"))
	}
	if d.Busy {
		parts = append(parts, styleAccent().Render(glyphEllipsis()))
	}
	return strings.Join(parts, " ")
}

// actionHints lists the keys that apply to the record.
func actionHints(d rowData) string {
	var hints []string
	add := func(k, label string) { hints = append(hints, k+" "+label) }
	p := d.P
	switch {
	case p.IsLocalOnly:
		add("o", "open")
		add("p", "publish")
		add("r", "rename")
		if p.CanPublish {
			add("u", "push")
		}
		add("d", "delete")
	case d.Installed:
		add("o", "open")
		if p.CanPublish {
			add("u", "push")
		}
		add("e", "describe")
		add("r", "rename")
		add("d", "remove local copy")
		add("D", "delete repo")
	default:
		add("i", "install")
		add("e", "describe")
		add("r", "rename")
		add("D", "delete repo")
	}
	add("y", "copy url")
	return strings.Join(hints, " · ")
}
