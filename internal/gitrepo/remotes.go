package gitrepo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// RemoteURL returns the configured fetch URL for a remote (origin by default).
func RemoteURL(ctx context.Context, dir, remoteName string) (string, error) {
	remoteName = strings.TrimSpace(remoteName)
	if remoteName == "" {
		remoteName = "origin"
	}
	out, err := git(ctx, dir, "remote", "get-url", remoteName)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func SetRemoteURL(ctx context.Context, dir, remoteName, url string) error {
	if strings.TrimSpace(remoteName) == "" {
		remoteName = "origin"
	}
	_, err := runGit(ctx, dir, "remote", "set-url", remoteName, url)
	return err
}

// Clone clones url into target. An existing target is left alone and
// reported with skipped=true.
func Clone(ctx context.Context, url, target string) (skipped bool, err error) {
	if strings.TrimSpace(url) == "" {
		return false, errors.New("clone: empty url")
	}
	if _, err := os.Stat(target); err == nil {
		return true, nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return false, err
	}
	_, err = runGit(ctx, filepath.Dir(target), "clone", url, target)
	return false, err
}
