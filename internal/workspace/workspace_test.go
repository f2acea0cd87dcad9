package workspace

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"projects-factory/internal/model"
	"projects-factory/internal/remote"
)

type fakeGitHub struct {
	mu       sync.Mutex
	calls    []string
	repos    []CachedRepo
	failNext error
}

func (f *fakeGitHub) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if err := f.failNext; err != nil {
		f.failNext = nil
		return err
	}
	return nil
}

func (f *fakeGitHub) ListRepos(ctx context.Context, owner string) ([]CachedRepo, error) {
	if err := f.record("list " + owner); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CachedRepo(nil), f.repos...), nil
}

func (f *fakeGitHub) AvatarURL(ctx context.Context, owner string) (string, error) {
	return "", f.record("avatar " + owner)
}

func (f *fakeGitHub) CreateRepo(ctx context.Context, req CreateRepo) error {
	if err := f.record("create " + req.Slug + " " + req.Description); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos = append(f.repos, CachedRepo{Name: filepath.Base(req.Slug), URL: "https://github.com/" + req.Slug, Private: req.Private})
	return nil
}

func (f *fakeGitHub) RenameRepo(ctx context.Context, slug, newName string) error {
	return f.record("rename " + slug + " " + newName)
}

func (f *fakeGitHub) EditDescription(ctx context.Context, slug, description string) error {
	return f.record("edit " + slug + " " + description)
}

func (f *fakeGitHub) DeleteRepo(ctx context.Context, slug string) error {
	return f.record("delete " + slug)
}

func (f *fakeGitHub) lastCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

var fixedNow = time.Date(2026, 3, 7, 9, 30, 0, 0, time.UTC)

func newBackend(t *testing.T) (*Backend, *fakeGitHub) {
	t.Helper()
	root := t.TempDir()
	for _, d := range []string{MyReposDir, NewProjectsDir} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	gh := &fakeGitHub{}
	b, err := New(Config{
		Root:               root,
		Username:           "me",
		DefaultPushMessage: "update",
		GitHub:             gh,
		Now:                func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b, gh
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	t.Setenv("GIT_AUTHOR_NAME", "Test")
	t.Setenv("GIT_AUTHOR_EMAIL", "test@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "Test")
	t.Setenv("GIT_COMMITTER_EMAIL", "test@example.com")
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
}

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
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func mkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}

func rejectDetail(t *testing.T, err error) string {
	t.Helper()
	var re *remote.Error
	if !errors.As(err, &re) || re.Class != remote.Rejected {
		t.Fatalf("expected rejected remote error, got %v", err)
	}
	return re.Error()
}

func TestRepoCache_EditsPersist(t *testing.T) {
	c := RepoCache{Path: filepath.Join(t.TempDir(), "sub", CacheFileName)}
	if repos, err := c.Load(); err != nil || len(repos) != 0 {
		t.Fatalf("expected missing cache to load empty; repos=%v err=%v", repos, err)
	}
	if err := c.Save([]CachedRepo{
		{Name: "alpha", URL: "https://github.com/me/alpha", Description: "a"},
		{Name: "beta", URL: "https://github.com/me/beta", Private: true},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := c.Rename("alpha", "gamma"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if err := c.SetDescription("beta", "second"); err != nil {
		t.Fatalf("SetDescription: %v", err)
	}
	if err := c.Upsert(CachedRepo{Name: "delta", URL: "https://github.com/me/delta"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := c.Remove("delta"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	repos, err := c.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(repos) != 2 {
		t.Fatalf("expected 2 repos, got %+v", repos)
	}
	if repos[0].Name != "gamma" || repos[0].URL != "https://github.com/me/gamma" || repos[0].Description != "a" {
		t.Fatalf("unexpected renamed entry: %+v", repos[0])
	}
	if repos[1].Description != "second" || !repos[1].Private {
		t.Fatalf("unexpected described entry: %+v", repos[1])
	}

	raw, err := os.ReadFile(c.Path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), "created_at:") || !strings.HasPrefix(string(raw), "repositories:") {
		t.Fatalf("unexpected yaml layout:\n%s", raw)
	}
}

func TestParseRepoList(t *testing.T) {
	repos, err := parseRepoList([]byte(`[{"name":"alpha","url":"https://github.com/me/alpha","isPrivate":true,"description":"x","createdAt":"2024-01-02T03:04:05Z"}]`))
	if err != nil {
		t.Fatalf("parseRepoList: %v", err)
	}
	want := CachedRepo{Name: "alpha", URL: "https://github.com/me/alpha", Private: true, Description: "x", CreatedAt: "2024-01-02T03:04:05Z"}
	if len(repos) != 1 || repos[0] != want {
		t.Fatalf("unexpected repos: %+v", repos)
	}
	if _, err := parseRepoList([]byte("not json")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadSnapshot_MergesCacheAndFolders(t *testing.T) {
	requireGit(t)
	b, _ := newBackend(t)
	if err := b.cache.Save([]CachedRepo{
		{Name: "alpha", URL: "https://github.com/me/alpha", CreatedAt: "2024-01-01T00:00:00Z"},
		{Name: "beta", URL: "https://github.com/me/beta", Private: true},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	alpha := filepath.Join(b.myRepos(), "alpha")
	mkdir(t, alpha)
	run(t, alpha, "git", "init")
	run(t, alpha, "git", "remote", "add", "origin", "https://github.com/me/Alpha.git")
	writeFile(t, filepath.Join(alpha, "main.go"), "package main\n")

	mkdir(t, filepath.Join(b.newProjects(), "draft"))
	published := filepath.Join(b.newProjects(), "published")
	mkdir(t, published)
	run(t, published, "git", "init")
	run(t, published, "git", "remote", "add", "origin", "https://github.com/me/published.git")

	snap, err := b.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if snap.Account.Username != "me" || snap.Account.InstalledCount != 1 || snap.Account.DefaultMessage != "update" {
		t.Fatalf("unexpected account: %+v", snap.Account)
	}

	byName := map[string]model.Project{}
	for _, p := range snap.Projects {
		byName[p.Name] = p
	}
	if len(snap.Projects) != 3 {
		t.Fatalf("expected alpha, beta, draft; got %+v", snap.Projects)
	}
	if !byName["alpha"].CanPublish {
		t.Fatalf("expected dirty clone with origin to be pushable")
	}
	if byName["beta"].CanPublish || !byName["beta"].IsPrivate {
		t.Fatalf("unexpected beta: %+v", byName["beta"])
	}
	draft := byName["draft"]
	if !draft.IsLocalOnly || draft.CanPublish || !strings.HasSuffix(draft.URL, "/NEW_PROJECTS/draft") || draft.CreatedAt == "" {
		t.Fatalf("unexpected draft: %+v", draft)
	}
	if _, ok := byName["published"]; ok {
		t.Fatalf("expected folder with a GitHub origin to be skipped")
	}
	if len(snap.InstalledURLs) != 1 || model.NormalizeURL(snap.InstalledURLs[0]) != "https://github.com/me/alpha" {
		t.Fatalf("unexpected installed urls: %v", snap.InstalledURLs)
	}
}

func TestLoadSnapshot_CorruptCacheStillListsLocalProjects(t *testing.T) {
	b, _ := newBackend(t)
	writeFile(t, b.cache.Path, "repositories: [unterminated\n")
	mkdir(t, filepath.Join(b.newProjects(), "draft"))

	snap, err := b.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(snap.Projects) != 1 || snap.Projects[0].Name != "draft" {
		t.Fatalf("unexpected projects: %+v", snap.Projects)
	}
}

func TestGitStateCache_HonorsTTL(t *testing.T) {
	b, _ := newBackend(t)
	now := fixedNow
	b.states.now = func() time.Time { return now }
	roots := []string{b.myRepos(), b.newProjects()}

	first := b.states.get(context.Background(), roots, false)
	mkdir(t, filepath.Join(b.newProjects(), "late"))
	if again := b.states.get(context.Background(), roots, false); again != first {
		t.Fatalf("expected cached states within ttl")
	}
	now = now.Add(DefaultGitStateTTL + time.Second)
	fresh := b.states.get(context.Background(), roots, false)
	if _, ok := fresh.byPath[filepath.Join(b.newProjects(), "late")]; !ok {
		t.Fatalf("expected expired cache to re-probe")
	}
}

func TestRenameLocal(t *testing.T) {
	b, _ := newBackend(t)
	ctx := context.Background()
	mkdir(t, filepath.Join(b.newProjects(), "foo"))
	mkdir(t, filepath.Join(b.newProjects(), "taken"))

	if got := rejectDetail(t, b.RenameLocal(ctx, "missing", "x")); got != "Folder 'missing' not found" {
		t.Fatalf("unexpected detail: %q", got)
	}
	if got := rejectDetail(t, b.RenameLocal(ctx, "foo", "taken")); got != "Folder 'taken' already exists" {
		t.Fatalf("unexpected detail: %q", got)
	}
	rejectDetail(t, b.RenameLocal(ctx, "foo", "../escape"))

	if err := b.RenameLocal(ctx, "foo", "bar"); err != nil {
		t.Fatalf("RenameLocal: %v", err)
	}
	if _, err := os.Stat(filepath.Join(b.newProjects(), "bar")); err != nil {
		t.Fatalf("expected renamed folder: %v", err)
	}
}

func TestDeleteLocal_SearchesBothRoots(t *testing.T) {
	b, _ := newBackend(t)
	ctx := context.Background()
	mkdir(t, filepath.Join(b.myRepos(), "clone"))
	writeFile(t, filepath.Join(b.newProjects(), "draft", "notes.txt"), "x")

	for _, name := range []string{"clone", "draft"} {
		if err := b.DeleteLocal(ctx, name); err != nil {
			t.Fatalf("DeleteLocal(%s): %v", name, err)
		}
	}
	if entries := listDirs(b.myRepos(), b.newProjects()); len(entries) != 0 {
		t.Fatalf("expected both folders removed, left %v", entries)
	}
	if got := rejectDetail(t, b.DeleteLocal(ctx, "clone")); got != "Folder 'clone' not found" {
		t.Fatalf("unexpected detail: %q", got)
	}
}

func TestRemoteEdits_UpdateCache(t *testing.T) {
	b, gh := newBackend(t)
	ctx := context.Background()
	if err := b.cache.Save([]CachedRepo{
		{Name: "alpha", URL: "https://github.com/me/alpha"},
		{Name: "beta", URL: "https://github.com/me/beta"},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := b.UpdateDescription(ctx, "alpha", "new words"); err != nil {
		t.Fatalf("UpdateDescription: %v", err)
	}
	if gh.lastCall() != "edit me/alpha new words" {
		t.Fatalf("unexpected call: %q", gh.lastCall())
	}
	if err := b.DeleteRemote(ctx, "beta"); err != nil {
		t.Fatalf("DeleteRemote: %v", err)
	}

	gh.failNext = errors.New("HTTP 404: Not Found")
	err := b.UpdateDescription(ctx, "alpha", "lost")
	if err == nil || !strings.Contains(remote.Detail(err), "Not Found") {
		t.Fatalf("expected gh failure to surface, got %v", err)
	}

	repos, _ := b.cache.Load()
	if len(repos) != 1 || repos[0].Name != "alpha" || repos[0].Description != "new words" {
		t.Fatalf("unexpected cache: %+v", repos)
	}
}

func TestRenameRemote_MovesCloneAndOrigin(t *testing.T) {
	requireGit(t)
	b, gh := newBackend(t)
	ctx := context.Background()
	if err := b.cache.Save([]CachedRepo{{Name: "foo", URL: "https://github.com/me/foo"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	clone := filepath.Join(b.myRepos(), "foo")
	mkdir(t, clone)
	run(t, clone, "git", "init")
	run(t, clone, "git", "remote", "add", "origin", "https://github.com/me/foo.git")

	if err := b.RenameRemote(ctx, "foo", "bar"); err != nil {
		t.Fatalf("RenameRemote: %v", err)
	}
	if gh.lastCall() != "rename me/foo bar" {
		t.Fatalf("unexpected call: %q", gh.lastCall())
	}
	moved := filepath.Join(b.myRepos(), "bar")
	if got := strings.TrimSpace(runOut(t, moved, "git", "remote", "get-url", "origin")); got != "https://github.com/me/bar.git" {
		t.Fatalf("unexpected origin: %q", got)
	}
	repos, _ := b.cache.Load()
	if len(repos) != 1 || repos[0].Name != "bar" || repos[0].URL != "https://github.com/me/bar" {
		t.Fatalf("unexpected cache: %+v", repos)
	}
}

func TestPublish_MovesFolderAndCreatesRepo(t *testing.T) {
	requireGit(t)
	b, gh := newBackend(t)
	writeFile(t, filepath.Join(b.newProjects(), "draft", "main.go"), "package main\n")

	res, err := b.Publish(context.Background(), "draft", "", remote.Private)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if res.NewIdentifier != "https://github.com/me/draft" {
		t.Fatalf("unexpected identifier: %q", res.NewIdentifier)
	}
	if res.Message != "v0.0.1 - draft started 07.03.2026" {
		t.Fatalf("unexpected commit message: %q", res.Message)
	}
	if gh.calls[0] != "create me/draft Local project folder" || gh.lastCall() != "list me" {
		t.Fatalf("unexpected calls: %v", gh.calls)
	}
	dst := filepath.Join(b.myRepos(), "draft")
	if got := strings.TrimSpace(runOut(t, dst, "git", "log", "-1", "--format=%s")); got != res.Message {
		t.Fatalf("unexpected head commit: %q", got)
	}
	repos, _ := b.cache.Load()
	if len(repos) != 1 || repos[0].Name != "draft" || !repos[0].Private {
		t.Fatalf("expected refreshed cache to list the new repo: %+v", repos)
	}
}

func TestPublish_FailureMovesFolderBack(t *testing.T) {
	requireGit(t)
	b, gh := newBackend(t)
	writeFile(t, filepath.Join(b.newProjects(), "draft", "main.go"), "package main\n")
	gh.failNext = errors.New("name already exists on this account")

	if _, err := b.Publish(context.Background(), "draft", "demo", remote.Public); err == nil {
		t.Fatalf("expected publish failure")
	}
	if _, err := os.Stat(filepath.Join(b.newProjects(), "draft", "main.go")); err != nil {
		t.Fatalf("expected folder restored to NEW_PROJECTS: %v", err)
	}
	if _, err := os.Stat(filepath.Join(b.myRepos(), "draft")); !os.IsNotExist(err) {
		t.Fatalf("expected MY_REPOS/draft to be gone, stat err=%v", err)
	}

	mkdir(t, filepath.Join(b.myRepos(), "draft"))
	got := rejectDetail(t, func() error { _, err := b.Publish(context.Background(), "draft", "", remote.Public); return err }())
	if got != "Folder 'draft' already exists in MY_REPOS" {
		t.Fatalf("unexpected detail: %q", got)
	}
}

func TestPush_VersionModes(t *testing.T) {
	requireGit(t)
	b, _ := newBackend(t)
	ctx := context.Background()
	bare := filepath.Join(t.TempDir(), "alpha.git")
	run(t, filepath.Dir(bare), "git", "init", "--bare", bare)
	clone := filepath.Join(b.myRepos(), "alpha")
	run(t, b.myRepos(), "git", "clone", bare, clone)
	writeFile(t, filepath.Join(clone, "main.go"), "package main\n")

	_, err := b.Push(ctx, clone, remote.VersionUseExisting)
	if got := rejectDetail(t, err); got != "VERSION.md has no version lines. Select 'Generate Version' and try again." {
		t.Fatalf("unexpected detail: %q", got)
	}

	writeFile(t, filepath.Join(clone, "VERSION.md"), "v0.0.1 - alpha started\nv0.0.2 - first push\n")
	res, err := b.Push(ctx, clone, remote.VersionUseExisting)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if res.Message != "v0.0.2 - first push" {
		t.Fatalf("unexpected message: %q", res.Message)
	}

	writeFile(t, filepath.Join(clone, "util.go"), "package main\n\nfunc helper() {}\n")
	res, err = b.Push(ctx, "https://github.com/me/alpha", remote.VersionGenerate)
	if err != nil {
		t.Fatalf("Push generate: %v", err)
	}
	if !strings.HasPrefix(res.Message, "v0.0.3 - ") {
		t.Fatalf("expected generated next version, got %q", res.Message)
	}
	remoteLog := runOut(t, bare, "git", "log", "--all", "--format=%s")
	if !strings.Contains(remoteLog, "v0.0.2 - first push") || !strings.Contains(remoteLog, res.Message) {
		t.Fatalf("expected both pushes on the remote:\n%s", remoteLog)
	}

	mkdir(t, filepath.Join(b.newProjects(), "plain"))
	_, err = b.Push(ctx, filepath.Join(b.newProjects(), "plain"), remote.VersionUseExisting)
	if got := rejectDetail(t, err); got != "Target folder is not a git repository" {
		t.Fatalf("unexpected detail: %q", got)
	}
}

func TestResolveDir_StaysInsideWorkspace(t *testing.T) {
	b, _ := newBackend(t)
	ctx := context.Background()
	mkdir(t, filepath.Join(b.newProjects(), "draft"))
	outside := t.TempDir()

	if dir, ok := b.resolveDir(ctx, "https://github.com/me/draft.git"); !ok || filepath.Base(dir) != "draft" {
		t.Fatalf("expected url to resolve by name, got %q %v", dir, ok)
	}
	if _, ok := b.resolveDir(ctx, outside); ok {
		t.Fatalf("expected folder outside the workspace to be refused")
	}
	if _, ok := b.resolveDir(ctx, b.newProjects()); ok {
		t.Fatalf("expected a root itself to be refused")
	}
	if got := rejectDetail(t, b.OpenInEditor(ctx, outside)); got != "Project folder not found" {
		t.Fatalf("unexpected detail: %q", got)
	}
}

func TestDetails_ReadmeAndScreenshots(t *testing.T) {
	b, _ := newBackend(t)
	dir := filepath.Join(b.newProjects(), "draft")
	writeFile(t, filepath.Join(dir, "Readme.MD"), "# Draft\n")
	shots := filepath.Join(dir, ScreenshotsDir)
	writeFile(t, filepath.Join(shots, "b.PNG"), "x")
	writeFile(t, filepath.Join(shots, "A.jpg"), "x")
	writeFile(t, filepath.Join(shots, "notes.txt"), "x")

	d, err := b.Details(context.Background(), filepath.ToSlash(dir))
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if d.Readme != "# Draft\n" {
		t.Fatalf("unexpected readme: %q", d.Readme)
	}
	if len(d.Screenshots) != 2 || d.Screenshots[0].Name != "A.jpg" || d.Screenshots[1].Name != "b.PNG" {
		t.Fatalf("unexpected screenshots: %+v", d.Screenshots)
	}

	empty, err := b.Details(context.Background(), "https://github.com/me/not-installed")
	if err != nil || empty.Readme != "" || len(empty.Screenshots) != 0 {
		t.Fatalf("expected empty details for remote-only repo, got %+v %v", empty, err)
	}
}

func TestCreateProject_UniqueNames(t *testing.T) {
	b, _ := newBackend(t)
	ctx := context.Background()
	first, err := b.CreateProject(ctx)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	second, err := b.CreateProject(ctx)
	if err != nil {
		t.Fatalf("CreateProject again: %v", err)
	}
	if first.FolderName != "project-20260307-093000" || second.FolderName != "project-20260307-093000-2" {
		t.Fatalf("unexpected names: %q %q", first.FolderName, second.FolderName)
	}
	if !strings.HasSuffix(second.Path, "/NEW_PROJECTS/"+second.FolderName) {
		t.Fatalf("unexpected path: %q", second.Path)
	}
	if _, err := os.Stat(filepath.Join(b.newProjects(), first.FolderName, "README.md")); err != nil {
		t.Fatalf("expected README stub: %v", err)
	}
}

func TestInstall_RejectsBadURL(t *testing.T) {
	b, _ := newBackend(t)
	if _, err := b.Install(context.Background(), ""); err == nil {
		t.Fatalf("expected empty url to be rejected")
	}
}
