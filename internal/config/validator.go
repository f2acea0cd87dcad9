package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
)

// ValidationError is a single invalid setting.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

func ValidBackends() []string { return []string{BackendHTTP, BackendWorkspace} }

func ValidLogLevels() []string { return []string{"debug", "info", "warn", "error"} }

// Validate returns every problem found, not just the first.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	if !slices.Contains(ValidBackends(), c.Backend) {
		add("backend", c.Backend, "must be one of "+strings.Join(ValidBackends(), ", "))
	}
	switch c.Backend {
	case BackendHTTP:
		u, err := url.Parse(c.Server.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("server.url", c.Server.URL, "must be an http(s) URL")
		}
	case BackendWorkspace:
		if strings.TrimSpace(c.Workspace.Root) == "" {
			add("workspace.root", c.Workspace.Root, "must not be empty")
		}
		if len(c.EditorCommand()) == 0 {
			add("workspace.editor", c.Workspace.Editor, "must not be empty")
		}
		if c.Workspace.Concurrency < 1 {
			add("workspace.concurrency", c.Workspace.Concurrency, "must be at least 1")
		}
	}

	timeouts := []struct {
		field string
		value int
	}{
		{"timeouts.request", c.Timeouts.Request},
		{"timeouts.refresh", c.Timeouts.Refresh},
		{"timeouts.create_project", c.Timeouts.CreateProject},
		{"timeouts.install_per_repo", c.Timeouts.InstallPerRepo},
		{"timeouts.delete_per_repo", c.Timeouts.DeletePerRepo},
		{"timeouts.rename", c.Timeouts.Rename},
		{"timeouts.git_remote", c.Timeouts.GitRemote},
		{"timeouts.git_push", c.Timeouts.GitPush},
	}
	for _, t := range timeouts {
		if t.value < 1 {
			add(t.field, t.value, "must be at least 1 second")
		}
	}
	if c.Cache.GitStateTTLSec < 0 {
		add("cache.git_state_ttl_sec", c.Cache.GitStateTTLSec, "must not be negative")
	}
	if strings.TrimSpace(c.UI.DefaultPushMessage) == "" {
		add("ui.default_push_message", c.UI.DefaultPushMessage, "must not be empty")
	}
	if !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		add("logging.level", c.Logging.Level, "must be one of "+strings.Join(ValidLogLevels(), ", "))
	}
	if c.Dev.SnapshotMaxAge < 0 {
		add("dev.snapshot_max_age", c.Dev.SnapshotMaxAge, "must not be negative")
	}
	if c.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			add("metrics.listen", c.Metrics.Listen, "must be host:port")
		}
	}
	return errs
}
