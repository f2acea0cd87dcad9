// Package workspace implements the dashboard collaborator against a local
// projects folder: published clones live in MY_REPOS, unpublished projects in
// NEW_PROJECTS, and the GitHub listing is cached in a YAML file.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"projects-factory/internal/gitrepo"
	"projects-factory/internal/logging"
	"projects-factory/internal/model"
	"projects-factory/internal/remote"
)

const (
	MyReposDir     = "MY_REPOS"
	NewProjectsDir = "NEW_PROJECTS"
	CacheFileName  = "repositories.yaml"

	DefaultEditor      = "code"
	DefaultGitStateTTL = 10 * time.Second
)

type Config struct {
	// Root holds MY_REPOS and NEW_PROJECTS.
	Root string
	// CachePath defaults to {Root}/repositories.yaml.
	CachePath          string
	Username           string
	DefaultPushMessage string
	GitStateTTL        time.Duration
	// Editor is the command used to open a project folder; the folder is appended.
	Editor      []string
	Timeouts    remote.Timeouts
	Concurrency int

	GitHub GitHub
	Logger *logging.Logger
	Now    func() time.Time
}

// Backend is safe for concurrent use; filesystem mutations are serialized.
type Backend struct {
	cfg    Config
	cache  RepoCache
	states *stateCache
	gh     GitHub
	log    *logging.Logger

	mu sync.Mutex
}

var _ remote.Backend = (*Backend)(nil)

func New(cfg Config) (*Backend, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, errors.New("workspace root is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, err
	}
	cfg.Root = root
	if cfg.CachePath == "" {
		cfg.CachePath = filepath.Join(root, CacheFileName)
	}
	if cfg.GitStateTTL <= 0 {
		cfg.GitStateTTL = DefaultGitStateTTL
	}
	if len(cfg.Editor) == 0 {
		cfg.Editor = []string{DefaultEditor}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.GitHub == nil {
		cfg.GitHub = GHCLI{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger()
	}
	cfg.Timeouts = cfg.Timeouts.Normalize()

	return &Backend{
		cfg:   cfg,
		cache: RepoCache{Path: cfg.CachePath},
		states: &stateCache{
			ttl:         cfg.GitStateTTL,
			concurrency: cfg.Concurrency,
			timeout:     cfg.Timeouts.GitRemote,
			now:         cfg.Now,
		},
		gh:  cfg.GitHub,
		log: cfg.Logger.With("component", "workspace"),
	}, nil
}

func (b *Backend) myRepos() string     { return filepath.Join(b.cfg.Root, MyReposDir) }
func (b *Backend) newProjects() string { return filepath.Join(b.cfg.Root, NewProjectsDir) }

func (b *Backend) slug(name string) string {
	if u := strings.TrimSpace(b.cfg.Username); u != "" {
		return u + "/" + name
	}
	return name
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

func (b *Backend) LoadSnapshot(ctx context.Context) (model.Snapshot, error) {
	repos, err := b.cache.Load()
	if err != nil {
		// A broken cache is recoverable with Refresh; local projects still load.
		b.log.Warn("repository cache unreadable", "path", b.cache.Path, "err", err)
		repos = nil
	}
	states := b.states.get(ctx, []string{b.myRepos(), b.newProjects()}, false)

	snap := model.Snapshot{
		Account: model.Account{
			Username:       b.cfg.Username,
			InstalledCount: len(listDirs(b.myRepos())),
			DefaultMessage: b.cfg.DefaultPushMessage,
		},
	}
	for _, r := range repos {
		p := model.Project{
			Name:        r.Name,
			URL:         r.URL,
			Description: r.Description,
			CreatedAt:   r.CreatedAt,
			IsPrivate:   r.Private,
		}
		if fs, ok := states.byRemote[model.NormalizeURL(r.URL)]; ok {
			p.CanPublish = fs.Status.CanPush()
		} else if fs, ok := states.byPath[filepath.Join(b.myRepos(), r.Name)]; ok {
			p.CanPublish = fs.Status.CanPush()
		}
		snap.Projects = append(snap.Projects, p)
	}

	for _, dir := range listDirs(b.newProjects()) {
		fs := states.byPath[dir]
		if fs.Status.IsGitHubOrigin() {
			// Already published; the cached listing owns it.
			continue
		}
		p := model.Project{
			Name:        filepath.Base(dir),
			URL:         filepath.ToSlash(dir),
			IsLocalOnly: true,
			CanPublish:  fs.Status.CanPush(),
		}
		if info, err := os.Stat(dir); err == nil {
			p.CreatedAt = info.ModTime().UTC().Format(time.RFC3339Nano)
		}
		snap.Projects = append(snap.Projects, p)
	}

	for _, dir := range listDirs(b.myRepos()) {
		if fs, ok := states.byPath[dir]; ok && fs.Status.HasOrigin() {
			snap.InstalledURLs = append(snap.InstalledURLs, fs.Status.OriginURL)
		}
	}
	return snap, nil
}

func (b *Backend) Install(ctx context.Context, url string) (remote.InstallResult, error) {
	name := model.RepoNameFromURL(url)
	if name == "" || !model.SafeName(name) {
		return remote.InstallResult{}, remote.Reject("install", "Invalid repository url")
	}
	ctx, cancel := withTimeout(ctx, b.cfg.Timeouts.Install)
	defer cancel()

	b.mu.Lock()
	defer b.mu.Unlock()
	skipped, err := gitrepo.Clone(ctx, url, filepath.Join(b.myRepos(), name))
	b.states.invalidate()
	if err != nil {
		return remote.InstallResult{}, remote.Wrap("install", err)
	}
	msg := "Installed " + name
	if skipped {
		msg = name + " already installed"
	}
	b.log.Info("installed repository", "name", name, "skipped", skipped)
	return remote.InstallResult{Message: msg, InstalledCount: len(listDirs(b.myRepos()))}, nil
}

// findFolder looks for name in MY_REPOS first, then NEW_PROJECTS.
func (b *Backend) findFolder(name string) (string, bool) {
	for _, root := range []string{b.myRepos(), b.newProjects()} {
		dir := filepath.Join(root, name)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, true
		}
	}
	return "", false
}

func (b *Backend) DeleteLocal(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if !model.SafeName(name) {
		return remote.Reject("delete", "Invalid project name")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	dir, ok := b.findFolder(name)
	if !ok {
		return remote.Reject("delete", fmt.Sprintf("Folder '%s' not found", name))
	}
	if err := ctx.Err(); err != nil {
		return remote.Wrap("delete", err)
	}
	err := os.RemoveAll(dir)
	b.states.invalidate()
	if err != nil {
		return remote.Wrap("delete", err)
	}
	b.log.Info("deleted folder", "dir", dir)
	return nil
}

func validRenamePair(op, oldName, newName string) error {
	if !model.SafeName(oldName) || !model.SafeName(newName) {
		return remote.Reject(op, "Invalid project name")
	}
	if oldName == newName {
		return remote.Reject(op, "New name must be different")
	}
	return nil
}

func (b *Backend) RenameLocal(ctx context.Context, oldName, newName string) error {
	if err := validRenamePair("rename", oldName, newName); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	src := filepath.Join(b.newProjects(), oldName)
	dst := filepath.Join(b.newProjects(), newName)
	if info, err := os.Stat(src); err != nil || !info.IsDir() {
		return remote.Reject("rename", fmt.Sprintf("Folder '%s' not found", oldName))
	}
	if _, err := os.Stat(dst); err == nil {
		return remote.Reject("rename", fmt.Sprintf("Folder '%s' already exists", newName))
	}
	err := os.Rename(src, dst)
	b.states.invalidate()
	if err != nil {
		return remote.Wrap("rename", err)
	}
	return nil
}

func (b *Backend) RenameRemote(ctx context.Context, oldName, newName string) error {
	if err := validRenamePair("rename-github", oldName, newName); err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, b.cfg.Timeouts.Rename)
	defer cancel()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.gh.RenameRepo(ctx, b.slug(oldName), newName); err != nil {
		return remote.Wrap("rename-github", err)
	}
	if err := b.cache.Rename(oldName, newName); err != nil {
		b.log.Warn("repository cache not updated after rename", "err", err)
	}

	// Keep an installed clone in step with the remote.
	src := filepath.Join(b.myRepos(), oldName)
	dst := filepath.Join(b.myRepos(), newName)
	if gitrepo.HasGitDir(src) {
		if _, err := os.Stat(dst); err == nil {
			b.log.Warn("clone not renamed: target exists", "target", dst)
		} else if err := os.Rename(src, dst); err != nil {
			b.log.Warn("clone not renamed", "err", err)
		} else if b.cfg.Username != "" {
			gctx, gcancel := withTimeout(ctx, b.cfg.Timeouts.GitRemote)
			origin := fmt.Sprintf("https://github.com/%s/%s.git", b.cfg.Username, newName)
			if err := gitrepo.SetRemoteURL(gctx, dst, "origin", origin); err != nil {
				b.log.Warn("origin not updated after rename", "err", err)
			}
			gcancel()
		}
	}
	b.states.invalidate()
	return nil
}

func (b *Backend) UpdateDescription(ctx context.Context, name, description string) error {
	if !model.SafeName(name) {
		return remote.Reject("update-description", "Invalid project name")
	}
	ctx, cancel := withTimeout(ctx, b.cfg.Timeouts.Request)
	defer cancel()
	if err := b.gh.EditDescription(ctx, b.slug(name), description); err != nil {
		return remote.Wrap("update-description", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.cache.SetDescription(name, description); err != nil {
		b.log.Warn("repository cache not updated after description change", "err", err)
	}
	return nil
}

func (b *Backend) Publish(ctx context.Context, name, description string, vis remote.Visibility) (remote.PublishResult, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if !model.SafeName(name) {
		return remote.PublishResult{}, remote.Reject("add-to-github", "Invalid project name")
	}
	src := filepath.Join(b.newProjects(), name)
	dst := filepath.Join(b.myRepos(), name)

	b.mu.Lock()
	defer b.mu.Unlock()
	if info, err := os.Stat(src); err != nil || !info.IsDir() {
		return remote.PublishResult{}, remote.Reject("add-to-github", fmt.Sprintf("Folder '%s' not found", name))
	}
	if _, err := os.Stat(dst); err == nil {
		return remote.PublishResult{}, remote.Reject("add-to-github", fmt.Sprintf("Folder '%s' already exists in MY_REPOS", name))
	}
	if err := os.MkdirAll(b.myRepos(), 0o755); err != nil {
		return remote.PublishResult{}, remote.Wrap("add-to-github", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return remote.PublishResult{}, remote.Wrap("add-to-github", err)
	}
	defer b.states.invalidate()

	message := fmt.Sprintf("v0.0.1 - %s started %s", name, b.cfg.Now().Format("02.01.2006"))
	url, err := b.publishFrom(ctx, dst, name, description, message, vis)
	if err != nil {
		if _, statErr := os.Stat(src); errors.Is(statErr, os.ErrNotExist) {
			if rbErr := os.Rename(dst, src); rbErr != nil {
				b.log.Error("publish rollback failed", "name", name, "err", rbErr)
			}
		}
		return remote.PublishResult{}, remote.Wrap("add-to-github", err)
	}
	return remote.PublishResult{NewIdentifier: url, Message: message}, nil
}

func (b *Backend) publishFrom(ctx context.Context, dir, name, description, message string, vis remote.Visibility) (string, error) {
	gctx, cancel := withTimeout(ctx, b.cfg.Timeouts.GitPush)
	defer cancel()
	if !gitrepo.HasGitDir(dir) {
		if err := gitrepo.Init(gctx, dir); err != nil {
			return "", err
		}
	}
	if _, err := gitrepo.CommitAll(gctx, dir, message, true); err != nil {
		return "", err
	}

	if description == "" {
		description = "Local project folder"
	}
	slug := b.slug(name)
	if err := b.gh.CreateRepo(gctx, CreateRepo{
		Slug:        slug,
		Description: description,
		Private:     vis == remote.Private,
		SourceDir:   dir,
	}); err != nil {
		return "", err
	}

	url := "https://github.com/" + slug
	if origin, err := gitrepo.RemoteURL(gctx, dir, "origin"); err == nil && origin != "" {
		url = strings.TrimSuffix(strings.TrimSuffix(origin, "/"), ".git")
	}
	if err := b.refreshLocked(ctx); err != nil {
		b.log.Warn("refresh after publish failed; caching the new repository directly", "err", err)
		_ = b.cache.Upsert(CachedRepo{
			Name:        name,
			URL:         url,
			Private:     vis == remote.Private,
			Description: description,
			CreatedAt:   b.cfg.Now().UTC().Format(time.RFC3339),
		})
	}
	return url, nil
}

// resolveDir maps a folder path or repository URL to a project folder inside
// the workspace. ok=false when nothing matches.
func (b *Backend) resolveDir(ctx context.Context, pathOrURL string) (string, bool) {
	raw := strings.TrimSpace(pathOrURL)
	if raw == "" {
		return "", false
	}
	var resolved string
	if info, err := os.Stat(raw); err == nil && info.IsDir() && filepath.IsAbs(raw) {
		resolved = raw
	} else if fs, ok := b.states.get(ctx, []string{b.myRepos(), b.newProjects()}, false).byRemote[model.NormalizeURL(raw)]; ok {
		resolved = fs.Dir
	} else {
		name := model.RepoNameFromURL(raw)
		if name == "" {
			name = filepath.Base(raw)
		}
		if dir, ok := b.findFolder(name); ok && model.SafeName(name) {
			resolved = dir
		}
	}
	if resolved == "" {
		return "", false
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", false
	}
	for _, root := range []string{b.myRepos(), b.newProjects()} {
		if rel, err := filepath.Rel(root, abs); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
			return abs, true
		}
	}
	return "", false
}

func (b *Backend) Push(ctx context.Context, pathOrURL string, mode remote.VersionMode) (remote.PushResult, error) {
	dir, ok := b.resolveDir(ctx, pathOrURL)
	if !ok {
		return remote.PushResult{}, remote.Reject("push", "Project folder not found")
	}
	if !gitrepo.HasGitDir(dir) {
		return remote.PushResult{}, remote.Reject("push", "Target folder is not a git repository")
	}
	ctx, cancel := withTimeout(ctx, b.cfg.Timeouts.GitPush)
	defer cancel()

	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.states.invalidate()

	var message string
	switch mode {
	case remote.VersionGenerate:
		line, err := gitrepo.GenerateVersionLine(ctx, dir, "")
		if err != nil {
			return remote.PushResult{}, remote.Wrap("push", err)
		}
		message = line
	default:
		message = gitrepo.LastVersionLine(dir)
		if message == "" {
			return remote.PushResult{}, remote.Reject("push", "VERSION.md has no version lines. Select 'Generate Version' and try again.")
		}
	}
	if strings.TrimSpace(message) == "" {
		message = b.cfg.DefaultPushMessage
	}

	if _, err := gitrepo.CommitAll(ctx, dir, message, false); err != nil {
		return remote.PushResult{}, remote.Wrap("push", err)
	}
	branch := gitrepo.CurrentBranch(ctx, dir, "master")
	rebased, err := gitrepo.PushRebasing(ctx, dir, branch)
	if err != nil {
		return remote.PushResult{}, remote.Wrap("push", err)
	}
	b.log.Info("pushed", "dir", dir, "branch", branch, "rebased", rebased)
	return remote.PushResult{Message: message}, nil
}

func (b *Backend) OpenInEditor(ctx context.Context, pathOrURL string) error {
	dir, ok := b.resolveDir(ctx, pathOrURL)
	if !ok {
		return remote.Reject("open-folder", "Project folder not found")
	}
	return launchEditor(b.cfg.Editor, dir)
}

func (b *Backend) DeleteRemote(ctx context.Context, name string) error {
	if !model.SafeName(name) {
		return remote.Reject("delete-github", "Invalid project name")
	}
	ctx, cancel := withTimeout(ctx, b.cfg.Timeouts.Request)
	defer cancel()
	if err := b.gh.DeleteRepo(ctx, b.slug(name)); err != nil {
		return remote.Wrap("delete-github", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.cache.Remove(name); err != nil {
		b.log.Warn("repository cache not updated after delete", "err", err)
	}
	return nil
}

func (b *Backend) Refresh(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.refreshLocked(ctx); err != nil {
		return remote.Wrap("refresh", err)
	}
	return nil
}

func (b *Backend) refreshLocked(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, b.cfg.Timeouts.Refresh)
	defer cancel()
	repos, err := b.gh.ListRepos(ctx, b.cfg.Username)
	if err != nil {
		return err
	}
	if err := b.cache.Save(repos); err != nil {
		return err
	}
	b.states.invalidate()
	b.log.Info("repository cache refreshed", "count", len(repos))
	return nil
}

// CreateProject makes a fresh, uniquely named folder in NEW_PROJECTS with a
// README stub.
func (b *Backend) CreateProject(ctx context.Context) (remote.CreateResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := os.MkdirAll(b.newProjects(), 0o755); err != nil {
		return remote.CreateResult{}, remote.Wrap("create-project", err)
	}
	base := "project-" + b.cfg.Now().Format("20060102-150405")
	name := base
	for i := 2; ; i++ {
		if _, ok := b.findFolder(name); !ok {
			break
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}
	dir := filepath.Join(b.newProjects(), name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return remote.CreateResult{}, remote.Wrap("create-project", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# "+name+"\n"), 0o644); err != nil {
		return remote.CreateResult{}, remote.Wrap("create-project", err)
	}
	b.states.invalidate()
	return remote.CreateResult{
		FolderName: name,
		Path:       filepath.ToSlash(dir),
		Message:    fmt.Sprintf("Project \"%s\" created", name),
	}, nil
}

func (b *Backend) Details(ctx context.Context, pathOrURL string) (remote.Details, error) {
	dir, ok := b.resolveDir(ctx, pathOrURL)
	if !ok {
		// Remote-only repositories have no local details.
		return remote.Details{}, nil
	}
	readme, err := readReadme(dir)
	if err != nil {
		return remote.Details{}, remote.Wrap("details", err)
	}
	shots, err := listScreenshots(dir)
	if err != nil {
		return remote.Details{}, remote.Wrap("project-screenshots", err)
	}
	return remote.Details{Readme: readme, Screenshots: shots}, nil
}
