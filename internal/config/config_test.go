package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("expected defaults to validate, got %v", ValidationErrors(errs))
	}
	if cfg.Backend != BackendWorkspace {
		t.Errorf("Backend = %q, want %q", cfg.Backend, BackendWorkspace)
	}
	if cfg.GitStateTTL() != 10*time.Second {
		t.Errorf("GitStateTTL = %v, want 10s", cfg.GitStateTTL())
	}
	to := cfg.RemoteTimeouts()
	if to.Install != 300*time.Second || to.GitRemote != 5*time.Second {
		t.Errorf("unexpected timeouts: %+v", to)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := strings.Join([]string{
		"backend: http",
		"server:",
		"  url: http://127.0.0.1:7000",
		"timeouts:",
		"  git_push: 30",
		"dev:",
		"  enabled: true",
		"  snapshot_max_age: 90s",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("PROJECTS_FACTORY_GITHUB_USERNAME", "octo")
	t.Setenv("PROJECTS_FACTORY_TIMEOUTS_GIT_PUSH", "45")

	v := New()
	if err := ReadFile(v, path); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != BackendHTTP || cfg.Server.URL != "http://127.0.0.1:7000" {
		t.Fatalf("expected file values, got backend=%q url=%q", cfg.Backend, cfg.Server.URL)
	}
	if cfg.GitHub.Username != "octo" {
		t.Fatalf("expected env username, got %q", cfg.GitHub.Username)
	}
	if cfg.Timeouts.GitPush != 45 {
		t.Fatalf("expected env to win over file, got %d", cfg.Timeouts.GitPush)
	}
	if !cfg.Dev.Enabled || cfg.Dev.SnapshotMaxAge != 90*time.Second {
		t.Fatalf("unexpected dev config: %+v", cfg.Dev)
	}
	if cfg.Timeouts.Refresh != 120 {
		t.Fatalf("expected default refresh timeout, got %d", cfg.Timeouts.Refresh)
	}
}

func TestReadFile_MissingDefaultIsFine(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	v := New()
	if err := ReadFile(v, ""); err != nil {
		t.Fatalf("expected missing default config to be ignored, got %v", err)
	}
	if err := ReadFile(v, filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected explicit missing config to fail")
	}
}

func TestValidate_CollectsEveryError(t *testing.T) {
	cfg := Default()
	cfg.Backend = "ftp"
	cfg.Timeouts.Rename = 0
	cfg.Logging.Level = "loud"
	cfg.Metrics.Listen = "9464"

	errs := cfg.Validate()
	fields := map[string]bool{}
	for _, e := range errs {
		fields[e.Field] = true
	}
	for _, f := range []string{"backend", "timeouts.rename", "logging.level", "metrics.listen"} {
		if !fields[f] {
			t.Errorf("expected validation error for %s, got %v", f, errs)
		}
	}
	msg := ValidationErrors(errs).Error()
	if !strings.HasPrefix(msg, "4 validation errors:") {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestValidate_HTTPBackendNeedsURL(t *testing.T) {
	cfg := Default()
	cfg.Backend = BackendHTTP
	cfg.Server.URL = "localhost:5001"
	errs := cfg.Validate()
	if len(errs) != 1 || errs[0].Field != "server.url" {
		t.Fatalf("expected server.url error, got %v", errs)
	}

	v := New()
	v.Set("backend", "http")
	v.Set("server.url", "")
	_, err := Load(v)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
}

func TestConfigDir_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if got := ConfigFile(); got != filepath.Join(dir, "projects-factory", "config.yaml") {
		t.Fatalf("unexpected config file: %q", got)
	}
}

func TestEditorCommand_Splits(t *testing.T) {
	cfg := Default()
	cfg.Workspace.Editor = "code --reuse-window"
	got := cfg.EditorCommand()
	if len(got) != 2 || got[0] != "code" || got[1] != "--reuse-window" {
		t.Fatalf("unexpected argv: %v", got)
	}
}
