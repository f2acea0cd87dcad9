package gitrepo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNextVersion(t *testing.T) {
	tests := map[string]string{
		"":                                       "v0.0.1",
		"notes only\n":                           "v0.0.1",
		"v0.0.1 - start\nv0.0.9 - more\n":        "v0.0.10",
		"v1.2.3 - a\n  v1.4.0 - b\ntrailing\n":   "v1.4.1",
	}
	for in, want := range tests {
		if got := NextVersion(in); got != want {
			t.Errorf("NextVersion(%q)=%q want %q", in, got, want)
		}
	}
}

func TestLastVersionLine(t *testing.T) {
	dir := t.TempDir()
	if got := LastVersionLine(dir); got != "" {
		t.Fatalf("expected empty line without VERSION.md; got %q", got)
	}
	writeFile(t, filepath.Join(dir, VersionFile), "v0.0.1 - start\r\nv0.0.2 - fix\r\n\r\n")
	if got := LastVersionLine(dir); got != "v0.0.2 - fix" {
		t.Fatalf("unexpected last line: %q", got)
	}
}

func TestGenerateVersionLine_AppendsWithMessage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, VersionFile), "v0.1.0 - first")
	line, err := GenerateVersionLine(context.Background(), dir, "tidy up")
	if err != nil {
		t.Fatalf("GenerateVersionLine: %v", err)
	}
	if line != "v0.1.1 - tidy up" {
		t.Fatalf("unexpected line: %q", line)
	}
	b, _ := os.ReadFile(filepath.Join(dir, VersionFile))
	if string(b) != "v0.1.0 - first\nv0.1.1 - tidy up\n" {
		t.Fatalf("unexpected VERSION.md: %q", string(b))
	}
}

func TestChangeSummary_DescribesWorkingTree(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	repo := t.TempDir()
	initRepo(t, repo)
	writeFile(t, filepath.Join(repo, "README.md"), "# demo\n")
	if _, err := CommitAll(ctx, repo, "v0.0.1 - start", false); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := ChangeSummary(ctx, repo)
	if err != nil || got != "working tree clean" {
		t.Fatalf("expected clean summary; got %q err=%v", got, err)
	}

	if err := os.MkdirAll(filepath.Join(repo, "BACKEND"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, filepath.Join(repo, "BACKEND", "handler.go"), "package backend\n\nfunc handleRequest() {}\n")
	run(t, repo, "git", "add", ".")
	got, err = ChangeSummary(ctx, repo)
	if err != nil {
		t.Fatalf("ChangeSummary: %v", err)
	}
	if !strings.HasPrefix(got, "added ") || !strings.Contains(got, "API request handling") {
		t.Fatalf("unexpected summary: %q", got)
	}
}

func TestScopeHuman_TopTwo(t *testing.T) {
	files := []changedFile{
		{status: "M", path: "BACKEND/a.py"},
		{status: "M", path: "docs.md"},
		{status: "M", path: "BACKEND/b.py"},
		{status: "M", path: "FRONTEND/x.js"},
	}
	if got := scopeHuman(files); got != "backend and documentation" {
		t.Fatalf("unexpected scope: %q", got)
	}
}
