// Package remote defines the collaborator contract the dashboard core drives:
// every remote-affecting action is an opaque call with a payload and an outcome.
package remote

import (
	"context"
	"fmt"
	"strings"

	"projects-factory/internal/model"
)

type VersionMode string

const (
	VersionUseExisting VersionMode = "use_existing"
	VersionGenerate    VersionMode = "generate_version"
)

func ParseVersionMode(s string) (VersionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(VersionUseExisting), "existing":
		return VersionUseExisting, nil
	case string(VersionGenerate), "generate":
		return VersionGenerate, nil
	default:
		return "", fmt.Errorf("invalid version mode: %q (expected use_existing|generate_version)", s)
	}
}

type Visibility string

const (
	Public  Visibility = "public"
	Private Visibility = "private"
)

func ParseVisibility(s string) (Visibility, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(Public):
		return Public, nil
	case string(Private):
		return Private, nil
	default:
		return "", fmt.Errorf("invalid visibility: %q (expected public|private)", s)
	}
}

type InstallResult struct {
	Message        string
	InstalledCount int
}

type PublishResult struct {
	// NewIdentifier is the published repository's URL; the record is rekeyed to it.
	NewIdentifier string
	Message       string
}

type PushResult struct {
	Message string
}

type CreateResult struct {
	FolderName string
	Path       string
	Message    string
}

type Screenshot struct {
	Name string
	Src  string
}

// Details is the auxiliary panel data for one project.
type Details struct {
	Readme      string
	Screenshots []Screenshot
}

// Backend is implemented by the HTTP client and the local workspace backend.
// Implementations must be safe to call from multiple goroutines.
type Backend interface {
	LoadSnapshot(ctx context.Context) (model.Snapshot, error)

	Install(ctx context.Context, url string) (InstallResult, error)
	DeleteLocal(ctx context.Context, name string) error
	RenameLocal(ctx context.Context, oldName, newName string) error
	RenameRemote(ctx context.Context, oldName, newName string) error
	UpdateDescription(ctx context.Context, name, description string) error
	Publish(ctx context.Context, name, description string, vis Visibility) (PublishResult, error)
	Push(ctx context.Context, pathOrURL string, mode VersionMode) (PushResult, error)
	OpenInEditor(ctx context.Context, pathOrURL string) error
	DeleteRemote(ctx context.Context, name string) error

	Refresh(ctx context.Context) error
	CreateProject(ctx context.Context) (CreateResult, error)
	Details(ctx context.Context, pathOrURL string) (Details, error)
}
