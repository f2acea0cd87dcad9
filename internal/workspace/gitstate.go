package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"projects-factory/internal/gitrepo"
	"projects-factory/internal/model"
)

// folderState is the probed git state of one project folder.
type folderState struct {
	Dir    string
	Name   string
	Status gitrepo.Status
}

// gitStates is a TTL cache of folder states, indexed by folder path and by
// normalized origin URL.
type gitStates struct {
	byPath   map[string]folderState
	byRemote map[string]folderState
	expires  time.Time
}

type stateCache struct {
	ttl         time.Duration
	concurrency int
	timeout     time.Duration
	now         func() time.Time

	mu    sync.Mutex
	state *gitStates
}

func (c *stateCache) invalidate() {
	c.mu.Lock()
	c.state = nil
	c.mu.Unlock()
}

// get returns the cached states, probing every folder under roots when the
// cache is empty, expired, or force is set.
func (c *stateCache) get(ctx context.Context, roots []string, force bool) *gitStates {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if !force && c.state != nil && now.Before(c.state.expires) {
		return c.state
	}
	c.state = c.probe(ctx, roots)
	c.state.expires = now.Add(c.ttl)
	return c.state
}

func (c *stateCache) probe(ctx context.Context, roots []string) *gitStates {
	dirs := listDirs(roots...)
	p := pool.NewWithResults[folderState]().WithContext(ctx).WithMaxGoroutines(c.concurrency)
	for _, dir := range dirs {
		p.Go(func(ctx context.Context) (folderState, error) {
			pctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			st, err := gitrepo.GetStatus(pctx, dir)
			if err != nil {
				// An unreadable repository still shows up; it just cannot push.
				st = gitrepo.Status{IsRepo: gitrepo.HasGitDir(dir)}
			}
			return folderState{Dir: dir, Name: filepath.Base(dir), Status: st}, nil
		})
	}
	results, _ := p.Wait()

	out := &gitStates{
		byPath:   make(map[string]folderState, len(results)),
		byRemote: make(map[string]folderState, len(results)),
	}
	for _, fs := range results {
		out.byPath[fs.Dir] = fs
		if n := model.NormalizeURL(fs.Status.OriginURL); n != "" {
			out.byRemote[n] = fs
		}
	}
	return out
}

// listDirs returns the immediate subdirectories of each root, sorted per root.
// Missing roots are skipped.
func listDirs(roots ...string) []string {
	var out []string
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		var names []string
		for _, e := range entries {
			if e.IsDir() {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, n := range names {
			out = append(out, filepath.Join(root, n))
		}
	}
	return out
}
