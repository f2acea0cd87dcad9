package cli

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"projects-factory/internal/dashboard"
	"projects-factory/internal/model"
	"projects-factory/internal/mutate"
	"projects-factory/internal/remote"
)

type actionOut struct {
	Action  string `json:"action"`
	Project string `json:"project,omitempty"`
	URL     string `json:"url,omitempty"`
	OK      bool   `json:"ok"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

type actionList []actionOut

func (l actionList) TableHeader() []string { return []string{"ACTION", "PROJECT", "RESULT", "MESSAGE"} }

func (l actionList) TableRows() [][]string {
	out := make([][]string, 0, len(l))
	for _, a := range l {
		res := "ok"
		if !a.OK {
			res = "failed"
		}
		out = append(out, []string{a.Action, a.Project, res, a.Message})
	}
	return out
}

// do runs one action on a loaded controller. ref may be empty for actions
// that do not target a record.
func do(ctx context.Context, c *dashboard.Controller, kind mutate.Kind, ref string, p mutate.Params) actionOut {
	var key model.Key
	if ref != "" {
		proj, err := resolveProject(c.DB(), ref)
		if err != nil {
			return actionOut{Action: string(kind), Project: ref, Level: mutate.LevelFailure.String(), Message: err.Error()}
		}
		key = proj.Key()
	}
	res, err := c.Do(ctx, kind, key, p)
	out := actionOut{
		Action:  string(kind),
		Project: res.Key.Name,
		URL:     res.Key.URL,
		OK:      err == nil && res.OK,
		Level:   res.Notice.Level.String(),
		Message: res.Notice.Text,
	}
	if err != nil && out.Message == "" {
		out.Message = remote.Detail(err)
	}
	return out
}

// report prints the results and turns any failure into a non-zero exit.
func report(cmd *cobra.Command, app *App, outs ...actionOut) error {
	if err := writeOut(cmd, app, actionList(outs)); err != nil {
		return err
	}
	var failed []string
	for _, o := range outs {
		if !o.OK {
			failed = append(failed, o.Message)
		}
	}
	if len(failed) > 0 {
		return actionFailedError{notice: strings.Join(failed, "; ")}
	}
	return nil
}

func runAction(cmd *cobra.Command, app *App, kind mutate.Kind, ref string, p mutate.Params) error {
	c, err := app.loadedController(cmd.Context())
	if err != nil {
		return writeErr(cmd, err)
	}
	return report(cmd, app, do(cmd.Context(), c, kind, ref, p))
}

func newInstallCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:               "install <project|url>...",
		Short:             "Clone repositories into MY_REPOS",
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: completeProjects(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := app.loadedController(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			outs := make([]actionOut, 0, len(args))
			for _, ref := range args {
				_, rerr := resolveProject(c.DB(), ref)
				var nf notFoundError
				if errors.As(rerr, &nf) && looksLikeRepoURL(ref) {
					outs = append(outs, installURL(ctx, c, ref))
					continue
				}
				outs = append(outs, do(ctx, c, mutate.KindInstall, ref, mutate.Params{}))
			}
			return report(cmd, app, outs...)
		},
	}
}

func looksLikeRepoURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "git@")
}

// installURL clones a repository that is not in the listing (yet).
func installURL(ctx context.Context, c *dashboard.Controller, url string) actionOut {
	out := actionOut{Action: string(mutate.KindInstall), Project: model.RepoNameFromURL(url), URL: url}
	res, err := c.Backend().Install(ctx, url)
	if err != nil {
		out.Level, out.Message = mutate.LevelFailure.String(), "Install failed: "+remote.Detail(err)
		return out
	}
	out.OK, out.Level, out.Message = true, mutate.LevelSuccess.String(), res.Message
	if out.Message == "" {
		out.Message = "Installed " + out.Project
	}
	return out
}

func newDeleteCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:               "delete <project>",
		Short:             "Delete a local project folder or the local copy of a repository",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeProjects(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, app, mutate.KindDelete, args[0], mutate.Params{Confirmed: yes})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")
	return cmd
}

func newDeleteRepoCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:               "delete-repo <project>",
		Short:             "Delete a repository on GitHub",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeProjects(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, app, mutate.KindDeleteRemote, args[0], mutate.Params{Confirmed: yes})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")
	return cmd
}

func newRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:               "rename <project> <new-name>",
		Short:             "Rename a repository (and its clone) or a local project folder",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeProjects(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, app, mutate.KindRename, args[0], mutate.Params{NewName: args[1]})
		},
	}
}

func newDescribeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:               "describe <project> <description...>",
		Short:             "Set a repository's description",
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: completeProjects(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, app, mutate.KindDescribe, args[0], mutate.Params{Description: strings.Join(args[1:], " ")})
		},
	}
}

func newPublishCmd(app *App) *cobra.Command {
	var (
		public      bool
		description string
	)
	cmd := &cobra.Command{
		Use:               "publish <project>",
		Short:             "Create a GitHub repository from a local project",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeProjects(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			vis := remote.Private
			if public {
				vis = remote.Public
			}
			return runAction(cmd, app, mutate.KindPublish, args[0], mutate.Params{Visibility: vis, Description: description})
		},
	}
	cmd.Flags().BoolVar(&public, "public", false, "Create a public repository (default private)")
	cmd.Flags().StringVar(&description, "description", "", "Repository description")
	return cmd
}

func newPushCmd(app *App) *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:               "push <project>",
		Short:             "Commit all changes and push, with the message taken from VERSION.md",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeProjects(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := remote.ParseVersionMode(version)
			if err != nil {
				return writeErr(cmd, err)
			}
			return runAction(cmd, app, mutate.KindPush, args[0], mutate.Params{VersionMode: mode})
		},
	}
	cmd.Flags().StringVar(&version, "version", string(remote.VersionGenerate), "generate (add a new VERSION.md line) or use_existing (reuse the last one)")
	return cmd
}

func newOpenCmd(app *App) *cobra.Command {
	var next bool
	cmd := &cobra.Command{
		Use:               "open [project]",
		Short:             "Open a project in the editor",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeProjects(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.loadedController(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			var ref string
			switch {
			case len(args) == 1:
				ref = args[0]
			case next:
				p, ok := c.NextLaunchable()
				if !ok {
					return writeErr(cmd, errNotFound("project", "next"))
				}
				ref = p.URL
			default:
				return writeErr(cmd, errors.New("pass a project or --next"))
			}
			return report(cmd, app, do(cmd.Context(), c, mutate.KindOpen, ref, mutate.Params{}))
		},
	}
	cmd.Flags().BoolVar(&next, "next", false, "Open the project after the last one opened")
	return cmd
}

func newRefreshCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Re-read the repository list from GitHub",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, app, mutate.KindRefresh, "", mutate.Params{})
		},
	}
}

func newCreateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a new project folder in NEW_PROJECTS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, app, mutate.KindCreate, "", mutate.Params{})
		},
	}
}
