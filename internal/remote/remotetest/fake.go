// Package remotetest provides a scriptable in-memory remote.Backend for tests.
package remotetest

import (
	"context"
	"fmt"
	"sync"

	"projects-factory/internal/model"
	"projects-factory/internal/remote"
)

const (
	OpLoad         = "load"
	OpInstall      = "install"
	OpDeleteLocal  = "delete"
	OpRenameLocal  = "rename"
	OpRenameRemote = "rename-remote"
	OpDescribe     = "describe"
	OpPublish      = "publish"
	OpPush         = "push"
	OpOpen         = "open"
	OpDeleteRemote = "delete-remote"
	OpRefresh      = "refresh"
	OpCreate       = "create"
	OpDetails      = "details"
)

type Call struct {
	Op   string
	Args []string
}

// Fake records every call and returns scripted errors, consumed in order per op.
type Fake struct {
	mu sync.Mutex

	Snapshot model.Snapshot
	Owner    string
	Created  remote.CreateResult
	Detail   remote.Details

	errs  map[string][]error
	calls []Call
}

func New(snap model.Snapshot) *Fake {
	return &Fake{Snapshot: snap, Owner: "me", errs: map[string][]error{}}
}

// FailNext makes the next call of op return err.
func (f *Fake) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = map[string][]error{}
	}
	f.errs[op] = append(f.errs[op], err)
}

func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *Fake) CallCount(op string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (f *Fake) record(op string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: op, Args: args})
	if q := f.errs[op]; len(q) > 0 {
		f.errs[op] = q[1:]
		return q[0]
	}
	return nil
}

func (f *Fake) LoadSnapshot(ctx context.Context) (model.Snapshot, error) {
	if err := f.record(OpLoad); err != nil {
		return model.Snapshot{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.Snapshot
	snap.Projects = append([]model.Project(nil), f.Snapshot.Projects...)
	snap.InstalledURLs = append([]string(nil), f.Snapshot.InstalledURLs...)
	return snap, nil
}

func (f *Fake) Install(ctx context.Context, url string) (remote.InstallResult, error) {
	if err := f.record(OpInstall, url); err != nil {
		return remote.InstallResult{}, err
	}
	return remote.InstallResult{Message: "Installed " + model.RepoNameFromURL(url)}, nil
}

func (f *Fake) DeleteLocal(ctx context.Context, name string) error {
	return f.record(OpDeleteLocal, name)
}

func (f *Fake) RenameLocal(ctx context.Context, oldName, newName string) error {
	return f.record(OpRenameLocal, oldName, newName)
}

func (f *Fake) RenameRemote(ctx context.Context, oldName, newName string) error {
	return f.record(OpRenameRemote, oldName, newName)
}

func (f *Fake) UpdateDescription(ctx context.Context, name, description string) error {
	return f.record(OpDescribe, name, description)
}

func (f *Fake) Publish(ctx context.Context, name, description string, vis remote.Visibility) (remote.PublishResult, error) {
	if err := f.record(OpPublish, name, description, string(vis)); err != nil {
		return remote.PublishResult{}, err
	}
	return remote.PublishResult{NewIdentifier: fmt.Sprintf("https://github.com/%s/%s", f.Owner, name)}, nil
}

func (f *Fake) Push(ctx context.Context, pathOrURL string, mode remote.VersionMode) (remote.PushResult, error) {
	if err := f.record(OpPush, pathOrURL, string(mode)); err != nil {
		return remote.PushResult{}, err
	}
	return remote.PushResult{Message: "v0.0.1 - project"}, nil
}

func (f *Fake) OpenInEditor(ctx context.Context, pathOrURL string) error {
	return f.record(OpOpen, pathOrURL)
}

func (f *Fake) DeleteRemote(ctx context.Context, name string) error {
	return f.record(OpDeleteRemote, name)
}

func (f *Fake) Refresh(ctx context.Context) error {
	return f.record(OpRefresh)
}

func (f *Fake) CreateProject(ctx context.Context) (remote.CreateResult, error) {
	if err := f.record(OpCreate); err != nil {
		return remote.CreateResult{}, err
	}
	return f.Created, nil
}

func (f *Fake) Details(ctx context.Context, pathOrURL string) (remote.Details, error) {
	if err := f.record(OpDetails, pathOrURL); err != nil {
		return remote.Details{}, err
	}
	return f.Detail, nil
}

var _ remote.Backend = (*Fake)(nil)
