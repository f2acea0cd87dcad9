package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// CachedRepo is one GitHub repository as last listed by Refresh.
type CachedRepo struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Private     bool   `yaml:"private"`
	Description string `yaml:"description"`
	CreatedAt   string `yaml:"created_at"`
}

type cacheFile struct {
	Repositories []CachedRepo `yaml:"repositories"`
}

// RepoCache is the on-disk repositories.yaml listing. Callers serialize access.
type RepoCache struct {
	Path string
}

// Load returns the cached repositories. A missing file is an empty cache.
func (c RepoCache) Load() ([]CachedRepo, error) {
	b, err := os.ReadFile(c.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var f cacheFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(c.Path), err)
	}
	out := f.Repositories[:0]
	for _, r := range f.Repositories {
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Save replaces the cache atomically.
func (c RepoCache) Save(repos []CachedRepo) error {
	if repos == nil {
		repos = []CachedRepo{}
	}
	b, err := yaml.Marshal(cacheFile{Repositories: repos})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.Path), ".repositories-*.yaml")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, c.Path)
}

// update loads, applies fn, and saves when fn reports a change.
func (c RepoCache) update(fn func(repos []CachedRepo) ([]CachedRepo, bool)) error {
	repos, err := c.Load()
	if err != nil {
		return err
	}
	next, changed := fn(repos)
	if !changed {
		return nil
	}
	return c.Save(next)
}

// Rename updates the entry's name and the last segment of its URL.
func (c RepoCache) Rename(oldName, newName string) error {
	return c.update(func(repos []CachedRepo) ([]CachedRepo, bool) {
		changed := false
		for i := range repos {
			if repos[i].Name != oldName {
				continue
			}
			repos[i].Name = newName
			if strings.HasSuffix(repos[i].URL, "/"+oldName) {
				repos[i].URL = strings.TrimSuffix(repos[i].URL, oldName) + newName
			}
			changed = true
		}
		return repos, changed
	})
}

func (c RepoCache) SetDescription(name, description string) error {
	return c.update(func(repos []CachedRepo) ([]CachedRepo, bool) {
		changed := false
		for i := range repos {
			if repos[i].Name == name {
				repos[i].Description = description
				changed = true
			}
		}
		return repos, changed
	})
}

func (c RepoCache) Remove(name string) error {
	return c.update(func(repos []CachedRepo) ([]CachedRepo, bool) {
		out := repos[:0]
		for _, r := range repos {
			if r.Name != name {
				out = append(out, r)
			}
		}
		return out, len(out) != len(repos)
	})
}

// Upsert adds r, replacing an entry with the same name.
func (c RepoCache) Upsert(r CachedRepo) error {
	return c.update(func(repos []CachedRepo) ([]CachedRepo, bool) {
		for i := range repos {
			if repos[i].Name == r.Name {
				repos[i] = r
				return repos, true
			}
		}
		return append(repos, r), true
	})
}
