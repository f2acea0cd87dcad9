package gitrepo

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

type Status struct {
	IsRepo bool `json:"isRepo"`

	Branch string `json:"branch,omitempty"`
	Head   string `json:"head,omitempty"`

	// OriginURL is the fetch URL of "origin", empty when there is none.
	OriginURL string `json:"originUrl,omitempty"`

	Dirty    bool `json:"dirty"`
	Unmerged bool `json:"unmerged"`

	InProgress     bool   `json:"inProgress"`
	InProgressKind string `json:"inProgressKind,omitempty"` // merge|rebase|cherry-pick|revert

	Ahead  int `json:"ahead,omitempty"`
	Behind int `json:"behind,omitempty"`
}

// HasOrigin reports whether an origin remote is configured.
func (s Status) HasOrigin() bool { return strings.TrimSpace(s.OriginURL) != "" }

// IsGitHubOrigin reports whether origin points at github.com.
func (s Status) IsGitHubOrigin() bool {
	return s.HasOrigin() && strings.Contains(strings.ToLower(s.OriginURL), "github.com")
}

// CanPush is true when there is something to commit and somewhere to push it.
func (s Status) CanPush() bool { return s.IsRepo && s.Dirty && s.HasOrigin() }

// HasGitDir reports whether dir itself is a repository root (".git" directory
// or worktree file). Parent directories are not consulted.
func HasGitDir(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// GetStatus inspects the repository rooted at dir. A folder without its own
// .git is reported as a non-repo rather than an error.
func GetStatus(ctx context.Context, dir string) (Status, error) {
	if !HasGitDir(dir) {
		return Status{IsRepo: false}, nil
	}
	if _, err := git(ctx, dir, "rev-parse", "--git-dir"); err != nil {
		return Status{}, err
	}

	branch, _ := git(ctx, dir, "branch", "--show-current")
	head, _ := git(ctx, dir, "rev-parse", "--short", "HEAD")
	origin, _ := RemoteURL(ctx, dir, "origin")

	porcelain, _ := git(ctx, dir, "status", "--porcelain=v1")
	dirty, unmerged := parsePorcelain(porcelain)
	inProgress, kind := detectInProgress(ctx, dir)

	ahead, behind := 0, 0
	if counts, err := git(ctx, dir, "rev-list", "--left-right", "--count", "HEAD...@{u}"); err == nil {
		if a, b, ok := parseAheadBehind(counts); ok {
			ahead, behind = a, b
		}
	}

	return Status{
		IsRepo:         true,
		Branch:         strings.TrimSpace(branch),
		Head:           strings.TrimSpace(head),
		OriginURL:      origin,
		Dirty:          dirty,
		Unmerged:       unmerged,
		InProgress:     inProgress,
		InProgressKind: kind,
		Ahead:          ahead,
		Behind:         behind,
	}, nil
}

func git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return stdout.String(), nil
}

func parsePorcelain(out string) (dirty bool, unmerged bool) {
	for _, ln := range strings.Split(out, "\n") {
		ln = strings.TrimRight(ln, "\r")
		if len(ln) < 2 {
			continue
		}
		xy := ln[:2]
		if strings.TrimSpace(xy) == "" {
			continue
		}
		dirty = true
		if isUnmergedXY(xy) {
			unmerged = true
		}
	}
	return dirty, unmerged
}

func detectInProgress(ctx context.Context, dir string) (bool, string) {
	for _, m := range []struct{ ref, kind string }{
		{"MERGE_HEAD", "merge"},
		{"REBASE_HEAD", "rebase"},
		{"CHERRY_PICK_HEAD", "cherry-pick"},
		{"REVERT_HEAD", "revert"},
	} {
		cmd := exec.CommandContext(ctx, "git", "rev-parse", "--verify", "-q", m.ref)
		cmd.Dir = dir
		if cmd.Run() == nil {
			return true, m.kind
		}
	}
	return false, ""
}

func isUnmergedXY(xy string) bool {
	if len(xy) != 2 {
		return false
	}
	switch xy {
	case "DD", "AU", "UD", "UA", "DU", "AA", "UU":
		return true
	}
	return xy[0] == 'U' || xy[1] == 'U'
}

// parseAheadBehind reads "git rev-list --left-right --count HEAD...@{u}" output.
func parseAheadBehind(out string) (ahead int, behind int, ok bool) {
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) != 2 {
		return 0, 0, false
	}
	a, err1 := strconv.Atoi(fields[0])
	b, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return a, b, true
}
