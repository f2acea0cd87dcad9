package gitrepo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func initRepo(t *testing.T, dir string) {
	t.Helper()
	run(t, dir, "git", "init")
	run(t, dir, "git", "config", "user.email", "test@example.com")
	run(t, dir, "git", "config", "user.name", "Test")
	run(t, dir, "git", "config", "commit.gpgsign", "false")
}

func TestGetStatus_NonRepo(t *testing.T) {
	st, err := GetStatus(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if st.IsRepo || st.CanPush() {
		t.Fatalf("expected non-repo status")
	}
}

func TestGetStatus_NestedFolderIsNotItsParentsRepo(t *testing.T) {
	requireGit(t)
	repo := t.TempDir()
	initRepo(t, repo)
	child := filepath.Join(repo, "NEW_PROJECTS", "demo")
	if err := os.MkdirAll(child, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	st, err := GetStatus(context.Background(), child)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if st.IsRepo {
		t.Fatalf("expected a plain folder inside a repo to be reported as non-repo")
	}
}

func TestGetStatus_DirtyUnmergedAndCanPush(t *testing.T) {
	requireGit(t)

	ctx := context.Background()
	repo := t.TempDir()
	initRepo(t, repo)

	writeFile(t, filepath.Join(repo, "a.txt"), "base\n")
	run(t, repo, "git", "add", ".")
	run(t, repo, "git", "commit", "-m", "base")
	defaultBranch := strings.TrimSpace(runOut(t, repo, "git", "rev-parse", "--abbrev-ref", "HEAD"))

	st, err := GetStatus(ctx, repo)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if !st.IsRepo || st.Dirty || st.Unmerged || st.Branch != defaultBranch {
		t.Fatalf("unexpected clean status: %+v", st)
	}

	writeFile(t, filepath.Join(repo, "dirty.txt"), "x\n")
	st, _ = GetStatus(ctx, repo)
	if !st.Dirty || st.CanPush() {
		t.Fatalf("expected dirty without origin to be unpushable: %+v", st)
	}

	run(t, repo, "git", "remote", "add", "origin", "https://github.com/me/demo.git")
	st, _ = GetStatus(ctx, repo)
	if !st.CanPush() || !st.IsGitHubOrigin() {
		t.Fatalf("expected dirty repo with github origin to be pushable: %+v", st)
	}

	run(t, repo, "git", "add", ".")
	run(t, repo, "git", "commit", "-m", "dirty")
	run(t, repo, "git", "checkout", "-b", "feature")
	writeFile(t, filepath.Join(repo, "a.txt"), "feature\n")
	run(t, repo, "git", "commit", "-am", "feature")
	run(t, repo, "git", "checkout", defaultBranch)
	writeFile(t, filepath.Join(repo, "a.txt"), "main\n")
	run(t, repo, "git", "commit", "-am", "main")

	// Leaves the repo conflicted.
	_ = exec.Command("git", "-C", repo, "merge", "feature").Run()

	st, _ = GetStatus(ctx, repo)
	if !st.Unmerged || !st.InProgress || st.InProgressKind != "merge" {
		t.Fatalf("expected unmerged merge in progress: %+v", st)
	}
	if _, err := CommitAll(ctx, repo, "v0.0.2 - x", false); err == nil {
		t.Fatalf("expected commit to refuse a conflicted repo")
	}
}

func TestCommitAll_NothingToCommitIsNotAnError(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	repo := t.TempDir()
	initRepo(t, repo)
	writeFile(t, filepath.Join(repo, "a.txt"), "a\n")

	committed, err := CommitAll(ctx, repo, "v0.0.1 - start", false)
	if err != nil || !committed {
		t.Fatalf("expected first commit; committed=%v err=%v", committed, err)
	}
	committed, err = CommitAll(ctx, repo, "v0.0.2 - again", false)
	if err != nil || committed {
		t.Fatalf("expected clean tree to commit nothing; committed=%v err=%v", committed, err)
	}
	if b := CurrentBranch(ctx, repo, "master"); b == "" {
		t.Fatalf("expected a branch name")
	}
}

func TestPushRebasing_RetriesAfterRemoteMovedAhead(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	root := t.TempDir()
	remote := filepath.Join(root, "remote.git")
	run(t, root, "git", "init", "--bare", remote)

	a := filepath.Join(root, "a")
	if _, err := Clone(ctx, remote, a); err != nil {
		t.Fatalf("Clone: %v", err)
	}
	initRepo(t, a)
	writeFile(t, filepath.Join(a, "one.txt"), "1\n")
	if _, err := CommitAll(ctx, a, "one", false); err != nil {
		t.Fatalf("commit: %v", err)
	}
	branch := CurrentBranch(ctx, a, "master")
	if _, err := PushRebasing(ctx, a, branch); err != nil {
		t.Fatalf("initial push: %v", err)
	}

	b := filepath.Join(root, "b")
	if _, err := Clone(ctx, remote, b); err != nil {
		t.Fatalf("Clone b: %v", err)
	}
	initRepo(t, b)
	writeFile(t, filepath.Join(b, "two.txt"), "2\n")
	if _, err := CommitAll(ctx, b, "two", false); err != nil {
		t.Fatalf("commit b: %v", err)
	}
	if _, err := PushRebasing(ctx, b, branch); err != nil {
		t.Fatalf("push b: %v", err)
	}

	writeFile(t, filepath.Join(a, "three.txt"), "3\n")
	if _, err := CommitAll(ctx, a, "three", false); err != nil {
		t.Fatalf("commit a: %v", err)
	}
	rebased, err := PushRebasing(ctx, a, branch)
	if err != nil || !rebased {
		t.Fatalf("expected push after rebase; rebased=%v err=%v", rebased, err)
	}

	skipped, err := Clone(ctx, remote, a)
	if err != nil || !skipped {
		t.Fatalf("expected clone into existing folder to be skipped")
	}
}

func TestIsNonFastForwardPushErr(t *testing.T) {
	cases := map[string]bool{
		"git push origin main: ! [rejected] main -> main (fetch first)":        true,
		"Updates were rejected because the tip of your current branch is behind": true,
		"error: failed to push some refs to 'origin'":                           true,
		"fatal: could not read Username":                                        false,
	}
	for msg, want := range cases {
		if got := IsNonFastForwardPushErr(errString(msg)); got != want {
			t.Errorf("IsNonFastForwardPushErr(%q)=%v want %v", msg, got, want)
		}
	}
	if IsNonFastForwardPushErr(nil) {
		t.Fatalf("nil error is not a push rejection")
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func run(t *testing.T, dir string, bin string, args ...string) {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("%s %v: %v\n%s", bin, args, err, string(out))
	}
}

func runOut(t *testing.T, dir string, bin string, args ...string) string {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("%s %v: %v\n%s", bin, args, err, string(out))
	}
	return string(out)
}

func writeFile(t *testing.T, path string, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
