package gitrepo

import (
	"context"
	"strings"
)

func PullRebase(ctx context.Context, dir, remote, branch string) error {
	_, err := runGit(ctx, dir, "pull", "--rebase", remote, branch)
	return err
}

func Push(ctx context.Context, dir, remote, branch string) error {
	_, err := runGit(ctx, dir, "push", remote, branch)
	return err
}

// PushRebasing pushes branch to origin. When the remote has moved ahead it
// rebases onto it once and pushes again.
func PushRebasing(ctx context.Context, dir, branch string) (rebased bool, err error) {
	err = Push(ctx, dir, "origin", branch)
	if err == nil || !IsNonFastForwardPushErr(err) {
		return false, err
	}
	if err := PullRebase(ctx, dir, "origin", branch); err != nil {
		return true, err
	}
	return true, Push(ctx, dir, "origin", branch)
}

func IsNonFastForwardPushErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{
		"non-fast-forward",
		"[rejected]",
		"fetch first",
		"tip of your current branch is behind",
		"failed to push some refs",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
