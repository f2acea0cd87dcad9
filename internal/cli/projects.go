package cli

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"projects-factory/internal/model"
	"projects-factory/internal/store"
	"projects-factory/internal/view"
)

type projectRow struct {
	Row         int    `json:"row"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"kind"`
	Private     bool   `json:"private"`
	LocalOnly   bool   `json:"localOnly"`
	Installed   bool   `json:"installed"`
	CanPublish  bool   `json:"canPublish"`
	CreatedAt   string `json:"createdAt"`
}

func toProjectRow(db *store.DB, p model.Project) projectRow {
	return projectRow{
		Row:         p.RowNumber,
		Name:        p.Name,
		URL:         p.URL,
		Description: p.Description,
		Kind:        p.KindLabel(),
		Private:     p.IsPrivate,
		LocalOnly:   p.IsLocalOnly,
		Installed:   db.IsInstalled(p),
		CanPublish:  p.CanPublish,
		CreatedAt:   p.CreatedAt,
	}
}

type projectList []projectRow

func (l projectList) TableHeader() []string {
	return []string{"#", "NAME", "KIND", "STATE", "CREATED", "URL", "DESCRIPTION"}
}

func (l projectList) TableRows() [][]string {
	out := make([][]string, 0, len(l))
	for _, r := range l {
		out = append(out, []string{
			strconv.Itoa(r.Row), r.Name, r.Kind, r.state(), dateOnly(r.CreatedAt), r.URL, r.Description,
		})
	}
	return out
}

func (r projectRow) state() string {
	var parts []string
	switch {
	case r.Installed:
		parts = append(parts, "installed")
	case r.LocalOnly:
		parts = append(parts, "local")
	default:
		parts = append(parts, "remote")
	}
	if r.CanPublish {
		parts = append(parts, "changes")
	}
	return strings.Join(parts, ",")
}

func dateOnly(s string) string {
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}

func newListCmd(app *App) *cobra.Command {
	var (
		filter    string
		sortBy    string
		desc      bool
		installed bool
		local     bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List repositories and local projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.loadedController(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			v := c.View()
			if cmd.Flags().Changed("sort") {
				k, err := model.ParseSortKey(sortBy)
				if err != nil {
					return writeErr(cmd, err)
				}
				v.SortKey, v.SortDir = k, model.Ascending
			}
			if desc {
				v.SortDir = model.Descending
			}
			if cmd.Flags().Changed("filter") {
				v.Filter = filter
			}
			db := c.DB()
			out := projectList{}
			for _, p := range view.Apply(db.Projects, v.SortKey, v.SortDir, v.Filter) {
				if installed && !db.IsInstalled(p) {
					continue
				}
				if local && !p.IsLocalOnly {
					continue
				}
				out = append(out, toProjectRow(db, p))
			}
			return writeOut(cmd, app, out)
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "Only show projects matching every word (name, description, url)")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Sort column (name|description|url|createdAt|kind); default is the dashboard's")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")
	cmd.Flags().BoolVar(&installed, "installed", false, "Only installed repositories")
	cmd.Flags().BoolVar(&local, "local", false, "Only unpublished local projects")
	return cmd
}

type detailsOut struct {
	Name        string   `json:"name"`
	URL         string   `json:"url"`
	Readme      string   `json:"readme,omitempty"`
	Screenshots []string `json:"screenshots,omitempty"`
}

func (d detailsOut) TableHeader() []string { return []string{"FIELD", "VALUE"} }

func (d detailsOut) TableRows() [][]string {
	readme := strings.TrimSpace(d.Readme)
	if i := strings.IndexByte(readme, '\n'); i >= 0 {
		readme = readme[:i] + " …"
	}
	return [][]string{
		{"name", d.Name},
		{"url", d.URL},
		{"readme", readme},
		{"screenshots", strings.Join(d.Screenshots, ", ")},
	}
}

func newDetailsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:               "details <project>",
		Short:             "Show a project's README and screenshots",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeProjects(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.loadedController(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			p, err := resolveProject(c.DB(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			d, err := c.Backend().Details(cmd.Context(), p.URL)
			if err != nil {
				return writeErr(cmd, err)
			}
			out := detailsOut{Name: p.Name, URL: p.URL, Readme: d.Readme}
			for _, s := range d.Screenshots {
				out.Screenshots = append(out.Screenshots, s.Name)
			}
			return writeOut(cmd, app, out)
		},
	}
}

// resolveProject finds a record by URL, path or name. Names may be shared by a
// repository and a local project, in which case the caller must be explicit.
func resolveProject(db *store.DB, ref string) (model.Project, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Project{}, errNotFound("project", ref)
	}
	if n := model.NormalizeURL(ref); n != "" {
		for _, p := range db.Projects {
			if model.NormalizeURL(p.URL) == n {
				return p, nil
			}
		}
	}
	if abs, err := filepath.Abs(ref); err == nil && strings.ContainsRune(ref, filepath.Separator) {
		for _, p := range db.Projects {
			if p.IsLocalOnly && filepath.Clean(p.URL) == abs {
				return p, nil
			}
		}
	}
	var matches []model.Project
	for _, p := range db.Projects {
		if p.Name == ref {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return model.Project{}, errNotFound("project", ref)
	case 1:
		return matches[0], nil
	}
	urls := make([]string, len(matches))
	for i, p := range matches {
		urls[i] = p.URL
	}
	sort.Strings(urls)
	return model.Project{}, ambiguousError{ref: ref, urls: urls}
}

// completeProjects offers project names for shell completion.
func completeProjects(app *App) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		if app.cfg == nil {
			if err := app.load(); err != nil {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
		}
		c, err := app.loadedController(cmd.Context())
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		seen := map[string]bool{}
		var out []string
		for _, p := range c.DB().Projects {
			if !seen[p.Name] && strings.HasPrefix(p.Name, toComplete) {
				seen[p.Name] = true
				out = append(out, fmt.Sprintf("%s\t%s", p.Name, p.KindLabel()))
			}
		}
		sort.Strings(out)
		return out, cobra.ShellCompDirectiveNoFileComp
	}
}
