package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CreateRepo describes a repository to create from a local folder.
type CreateRepo struct {
	Slug        string
	Description string
	Private     bool
	SourceDir   string
}

// GitHub is the subset of GitHub operations the workspace backend needs.
type GitHub interface {
	ListRepos(ctx context.Context, owner string) ([]CachedRepo, error)
	AvatarURL(ctx context.Context, owner string) (string, error)
	CreateRepo(ctx context.Context, req CreateRepo) error
	RenameRepo(ctx context.Context, slug, newName string) error
	EditDescription(ctx context.Context, slug, description string) error
	DeleteRepo(ctx context.Context, slug string) error
}

// GHCLI implements GitHub with the gh command line tool, which owns authentication.
type GHCLI struct {
	Bin   string
	Limit int
}

func (g GHCLI) bin() string {
	if strings.TrimSpace(g.Bin) == "" {
		return "gh"
	}
	return g.Bin
}

func (g GHCLI) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, g.bin(), args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var ee *exec.Error
		if errors.As(err, &ee) {
			return "", fmt.Errorf("%s not found: install the GitHub CLI and run 'gh auth login'", g.bin())
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("gh %s: %s", args[0]+" "+args[1], msg)
	}
	return stdout.String(), nil
}

type ghRepo struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	IsPrivate   bool   `json:"isPrivate"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
}

func (g GHCLI) ListRepos(ctx context.Context, owner string) ([]CachedRepo, error) {
	limit := g.Limit
	if limit <= 0 {
		limit = 1000
	}
	args := []string{"repo", "list"}
	if owner != "" {
		args = append(args, owner)
	}
	args = append(args, "--limit", fmt.Sprint(limit), "--json", "name,url,isPrivate,description,createdAt")
	out, err := g.run(ctx, "", args...)
	if err != nil {
		return nil, err
	}
	return parseRepoList([]byte(out))
}

func parseRepoList(b []byte) ([]CachedRepo, error) {
	var raw []ghRepo
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse gh repo list: %w", err)
	}
	out := make([]CachedRepo, 0, len(raw))
	for _, r := range raw {
		out = append(out, CachedRepo{
			Name:        r.Name,
			URL:         r.URL,
			Private:     r.IsPrivate,
			Description: r.Description,
			CreatedAt:   r.CreatedAt,
		})
	}
	return out, nil
}

func (g GHCLI) AvatarURL(ctx context.Context, owner string) (string, error) {
	if owner == "" {
		return "", nil
	}
	out, err := g.run(ctx, "", "api", "users/"+owner, "--jq", ".avatar_url")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (g GHCLI) CreateRepo(ctx context.Context, req CreateRepo) error {
	vis := "--public"
	if req.Private {
		vis = "--private"
	}
	_, err := g.run(ctx, req.SourceDir, "repo", "create", req.Slug, vis,
		"--description", req.Description,
		"--source", ".", "--remote", "origin", "--push")
	return err
}

func (g GHCLI) RenameRepo(ctx context.Context, slug, newName string) error {
	_, err := g.run(ctx, "", "repo", "rename", newName, "--repo", slug, "--yes")
	return err
}

func (g GHCLI) EditDescription(ctx context.Context, slug, description string) error {
	_, err := g.run(ctx, "", "repo", "edit", slug, "--description", description)
	return err
}

func (g GHCLI) DeleteRepo(ctx context.Context, slug string) error {
	_, err := g.run(ctx, "", "repo", "delete", slug, "--yes")
	return err
}
