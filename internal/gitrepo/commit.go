package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return string(out), nil
}

// Init creates a repository in dir unless one already exists there.
func Init(ctx context.Context, dir string) error {
	if HasGitDir(dir) {
		return nil
	}
	_, err := runGit(ctx, dir, "init")
	return err
}

// CommitAll stages every change in dir and commits it. committed=false means
// there was nothing to commit, which is not an error.
func CommitAll(ctx context.Context, dir, message string, allowEmpty bool) (committed bool, err error) {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return false, errors.New("commit: empty message")
	}
	st, err := GetStatus(ctx, dir)
	if err != nil {
		return false, err
	}
	if !st.IsRepo {
		return false, errors.New("not a git repository")
	}
	if st.Unmerged || st.InProgress {
		return false, errors.New("git repo has an in-progress merge/rebase; resolve first")
	}
	if _, err := runGit(ctx, dir, "add", "."); err != nil {
		return false, err
	}

	args := []string{"commit", "-m", msg}
	if allowEmpty {
		args = append(args, "--allow-empty")
	}
	if _, err := runGit(ctx, dir, args...); err != nil {
		if isNothingToCommit(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func isNothingToCommit(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "nothing to commit") || strings.Contains(msg, "no changes added to commit")
}

// CurrentBranch returns the checked-out branch, or fallback on a detached HEAD.
func CurrentBranch(ctx context.Context, dir, fallback string) string {
	out, err := git(ctx, dir, "branch", "--show-current")
	if b := strings.TrimSpace(out); err == nil && b != "" {
		return b
	}
	return fallback
}
