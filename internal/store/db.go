package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"projects-factory/internal/model"
)

// Counters are the derived header figures recomputed by RecomputeCounters.
type Counters struct {
	Total     int `json:"total"`
	LocalOnly int `json:"localOnly"`
	Installed int `json:"installed"`
}

// Loader fetches the authoritative snapshot (records + installed URLs + account).
type Loader interface {
	LoadSnapshot(ctx context.Context) (model.Snapshot, error)
}

type LoaderFunc func(ctx context.Context) (model.Snapshot, error)

func (f LoaderFunc) LoadSnapshot(ctx context.Context) (model.Snapshot, error) { return f(ctx) }

// DB is the in-memory entity store: every known project plus the installed-URL set.
//
// DB has a single writer. All mutation goes through its methods, which are called
// by the mutation coordinator and the dashboard controller on the UI loop.
type DB struct {
	Account  model.Account
	Projects []model.Project

	installed map[string]bool
	counters  Counters

	// membershipChanged is set by structural changes (add/remove/load) so the next
	// RecomputeCounters pass reassigns row numbers. Field edits never set it.
	membershipChanged bool
}

func NewDB() *DB {
	return &DB{installed: map[string]bool{}}
}

// Load replaces the whole state with a freshly fetched snapshot. On error the
// previous state is left untouched.
func (db *DB) Load(ctx context.Context, l Loader) error {
	if l == nil {
		return fmt.Errorf("load snapshot: nil loader")
	}
	snap, err := l.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	projects, err := dedupeProjects(snap.Projects)
	if err != nil {
		return err
	}
	installed := make(map[string]bool, len(snap.InstalledURLs))
	for _, u := range snap.InstalledURLs {
		if n := model.NormalizeURL(u); n != "" {
			installed[n] = true
		}
	}

	db.Account = snap.Account
	db.Projects = projects
	db.installed = installed
	db.membershipChanged = true
	db.RecomputeCounters()
	return nil
}

func dedupeProjects(in []model.Project) ([]model.Project, error) {
	out := make([]model.Project, 0, len(in))
	seen := make(map[model.Key]bool, len(in))
	for _, p := range in {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, fmt.Errorf("load snapshot: project with empty name (url=%q)", p.URL)
		}
		if seen[p.Key()] {
			continue
		}
		seen[p.Key()] = true
		p.RowNumber = 0
		p.PublishUnconfirmed = false
		out = append(out, p)
	}
	return out, nil
}

// RecomputeCounters derives the header counters and, after a membership change,
// the dense 1..N row numbers. Calling it redundantly is harmless.
func (db *DB) RecomputeCounters() {
	c := Counters{Total: len(db.Projects)}
	for _, p := range db.Projects {
		if p.IsLocalOnly {
			c.LocalOnly++
		}
		if db.IsInstalled(p) {
			c.Installed++
		}
	}
	if db.membershipChanged || !db.rowNumbersDense() {
		db.assignRowNumbers()
	}
	db.membershipChanged = false
	db.counters = c
}

func (db *DB) Counters() Counters { return db.counters }

func (db *DB) rowNumbersDense() bool {
	n := len(db.Projects)
	seen := make([]bool, n+1)
	for _, p := range db.Projects {
		if p.RowNumber < 1 || p.RowNumber > n || seen[p.RowNumber] {
			return false
		}
		seen[p.RowNumber] = true
	}
	return true
}

// assignRowNumbers ranks by descending creation time, then name. The comparison is
// a total order over keys, so the result depends only on the set of records.
func (db *DB) assignRowNumbers() {
	idx := make([]int, len(db.Projects))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool {
		return rankLess(db.Projects[idx[i]], db.Projects[idx[j]])
	})
	for rank, i := range idx {
		db.Projects[i].RowNumber = rank + 1
	}
}

func rankLess(a, b model.Project) bool {
	ea, eb := a.CreatedEpoch(), b.CreatedEpoch()
	if ea != eb {
		return ea > eb
	}
	la, lb := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if la != lb {
		return la < lb
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.URL < b.URL
}

// IsInstalled reports whether a published project also has a local clone.
// Local-only projects are never installed.
func (db *DB) IsInstalled(p model.Project) bool {
	if p.IsLocalOnly {
		return false
	}
	return db.installed[model.NormalizeURL(p.URL)]
}

func (db *DB) HasInstalledURL(url string) bool {
	return db.installed[model.NormalizeURL(url)]
}

// MarkInstalled adds url to the installed set. added=false means it was already present.
func (db *DB) MarkInstalled(url string) (added bool) {
	n := model.NormalizeURL(url)
	if n == "" || db.installed[n] {
		return false
	}
	if db.installed == nil {
		db.installed = map[string]bool{}
	}
	db.installed[n] = true
	return true
}

func (db *DB) UnmarkInstalled(url string) (removed bool) {
	n := model.NormalizeURL(url)
	if !db.installed[n] {
		return false
	}
	delete(db.installed, n)
	return true
}

func (db *DB) InstalledURLs() []string {
	out := make([]string, 0, len(db.installed))
	for u := range db.installed {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func (db *DB) FindProject(key model.Key) (*model.Project, bool) {
	for i := range db.Projects {
		if db.Projects[i].Key() == key {
			return &db.Projects[i], true
		}
	}
	return nil, false
}

func (db *DB) indexOf(key model.Key) int {
	for i := range db.Projects {
		if db.Projects[i].Key() == key {
			return i
		}
	}
	return -1
}

// Add appends a new record. The caller recomputes counters afterwards.
func (db *DB) Add(p model.Project) error {
	return db.Insert(len(db.Projects), p)
}

// Insert places p at index i (clamped), used to restore a removed record in place.
func (db *DB) Insert(i int, p model.Project) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("add project: empty name")
	}
	if db.indexOf(p.Key()) >= 0 {
		return fmt.Errorf("add project: duplicate key %s", p.Key())
	}
	if i < 0 {
		i = 0
	}
	if i > len(db.Projects) {
		i = len(db.Projects)
	}
	p.RowNumber = 0
	db.Projects = append(db.Projects, model.Project{})
	copy(db.Projects[i+1:], db.Projects[i:])
	db.Projects[i] = p
	db.membershipChanged = true
	return nil
}

// Remove deletes the record for key and returns it with its former index.
func (db *DB) Remove(key model.Key) (model.Project, int, bool) {
	i := db.indexOf(key)
	if i < 0 {
		return model.Project{}, -1, false
	}
	p := db.Projects[i]
	db.Projects = append(db.Projects[:i], db.Projects[i+1:]...)
	db.membershipChanged = true
	return p, i, true
}

// Update applies fn to the record for key in place. fn must not change Name/URL;
// use Rekey for that.
func (db *DB) Update(key model.Key, fn func(p *model.Project)) bool {
	p, ok := db.FindProject(key)
	if !ok {
		return false
	}
	fn(p)
	p.Name, p.URL = key.Name, key.URL
	return true
}

// Rekey changes a record's identity in place. It is a field edit: row numbers
// are kept, and the installed-set entry follows the URL.
func (db *DB) Rekey(from, to model.Key) error {
	if from == to {
		return nil
	}
	p, ok := db.FindProject(from)
	if !ok {
		return fmt.Errorf("rekey: %s not found", from)
	}
	if _, clash := db.FindProject(to); clash {
		return fmt.Errorf("rekey: %s already exists", to)
	}
	if !p.IsLocalOnly && db.UnmarkInstalled(from.URL) {
		db.MarkInstalled(to.URL)
	}
	p.Name, p.URL = to.Name, to.URL
	return nil
}

// FindNextLaunchable returns the record with the smallest row number greater than
// after, wrapping to the lowest row number. ok=false only for an empty store.
func (db *DB) FindNextLaunchable(after int) (model.Project, bool) {
	var next, lowest *model.Project
	for i := range db.Projects {
		p := &db.Projects[i]
		if lowest == nil || p.RowNumber < lowest.RowNumber {
			lowest = p
		}
		if p.RowNumber > after && (next == nil || p.RowNumber < next.RowNumber) {
			next = p
		}
	}
	if next != nil {
		return *next, true
	}
	if lowest != nil {
		return *lowest, true
	}
	return model.Project{}, false
}

// Export returns a value copy of the state, row numbers included.
func (db *DB) Export() model.Snapshot {
	projects := make([]model.Project, len(db.Projects))
	copy(projects, db.Projects)
	return model.Snapshot{
		Account:       db.Account,
		Projects:      projects,
		InstalledURLs: db.InstalledURLs(),
	}
}

// Restore installs a previously exported state without a network load.
// Row numbers are kept when they still form a dense ranking.
func (db *DB) Restore(snap model.Snapshot) {
	projects := make([]model.Project, len(snap.Projects))
	copy(projects, snap.Projects)
	installed := make(map[string]bool, len(snap.InstalledURLs))
	for _, u := range snap.InstalledURLs {
		if n := model.NormalizeURL(u); n != "" {
			installed[n] = true
		}
	}
	db.Account = snap.Account
	db.Projects = projects
	db.installed = installed
	db.membershipChanged = false
	db.RecomputeCounters()
}
