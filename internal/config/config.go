// Package config loads projects-factory settings from the config file,
// PROJECTS_FACTORY_* environment variables and command-line overrides.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"projects-factory/internal/remote"
)

const (
	appName   = "projects-factory"
	EnvPrefix = "PROJECTS_FACTORY"

	BackendHTTP      = "http"
	BackendWorkspace = "workspace"
)

// Config holds all settings. Durations under Timeouts and Cache are whole
// seconds, mirroring the settings file users already have.
type Config struct {
	Backend   string          `mapstructure:"backend" yaml:"backend"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Workspace WorkspaceConfig `mapstructure:"workspace" yaml:"workspace"`
	GitHub    GitHubConfig    `mapstructure:"github" yaml:"github"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts" yaml:"timeouts"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	UI        UIConfig        `mapstructure:"ui" yaml:"ui"`
	State     StateConfig     `mapstructure:"state" yaml:"state"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Dev       DevConfig       `mapstructure:"dev" yaml:"dev"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

type ServerConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

type WorkspaceConfig struct {
	// Root contains MY_REPOS and NEW_PROJECTS.
	Root        string `mapstructure:"root" yaml:"root"`
	CachePath   string `mapstructure:"cache_path" yaml:"cache_path"`
	Editor      string `mapstructure:"editor" yaml:"editor"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
}

type GitHubConfig struct {
	Username string `mapstructure:"username" yaml:"username"`
	// GHPath overrides the gh binary.
	GHPath string `mapstructure:"gh_path" yaml:"gh_path"`
}

type TimeoutsConfig struct {
	Request        int `mapstructure:"request" yaml:"request"`
	Refresh        int `mapstructure:"refresh" yaml:"refresh"`
	CreateProject  int `mapstructure:"create_project" yaml:"create_project"`
	InstallPerRepo int `mapstructure:"install_per_repo" yaml:"install_per_repo"`
	DeletePerRepo  int `mapstructure:"delete_per_repo" yaml:"delete_per_repo"`
	Rename         int `mapstructure:"rename" yaml:"rename"`
	GitRemote      int `mapstructure:"git_remote" yaml:"git_remote"`
	GitPush        int `mapstructure:"git_push" yaml:"git_push"`
}

type CacheConfig struct {
	GitStateTTLSec int `mapstructure:"git_state_ttl_sec" yaml:"git_state_ttl_sec"`
}

type UIConfig struct {
	DefaultPushMessage string `mapstructure:"default_push_message" yaml:"default_push_message"`
	// TemplatesDir holds row/detail templates; empty uses the built-in ones.
	TemplatesDir string `mapstructure:"templates_dir" yaml:"templates_dir"`
	// ThemeFile is an optional YAML color theme.
	ThemeFile string `mapstructure:"theme_file" yaml:"theme_file"`
}

type StateConfig struct {
	// Dir holds the UI state database and the debug log.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

type DevConfig struct {
	Enabled        bool          `mapstructure:"enabled" yaml:"enabled"`
	SnapshotMaxAge time.Duration `mapstructure:"snapshot_max_age" yaml:"snapshot_max_age"`
}

type MetricsConfig struct {
	// Listen is an address such as 127.0.0.1:9464; empty disables the endpoint.
	Listen string `mapstructure:"listen" yaml:"listen"`
}

func Default() *Config {
	return &Config{
		Backend: BackendWorkspace,
		Server:  ServerConfig{URL: "http://127.0.0.1:5001"},
		Workspace: WorkspaceConfig{
			Root:        ".",
			Editor:      "code",
			Concurrency: 8,
		},
		Timeouts: TimeoutsConfig{
			Request:        30,
			Refresh:        120,
			CreateProject:  120,
			InstallPerRepo: 300,
			DeletePerRepo:  60,
			Rename:         60,
			GitRemote:      5,
			GitPush:        120,
		},
		Cache:   CacheConfig{GitStateTTLSec: 10},
		UI:      UIConfig{DefaultPushMessage: "update"},
		State:   StateConfig{Dir: ConfigDir()},
		Logging: LoggingConfig{Level: "info"},
		Dev:     DevConfig{SnapshotMaxAge: 10 * time.Minute},
	}
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers every key so environment overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("backend", d.Backend)
	v.SetDefault("server.url", d.Server.URL)

	v.SetDefault("workspace.root", d.Workspace.Root)
	v.SetDefault("workspace.cache_path", d.Workspace.CachePath)
	v.SetDefault("workspace.editor", d.Workspace.Editor)
	v.SetDefault("workspace.concurrency", d.Workspace.Concurrency)

	v.SetDefault("github.username", d.GitHub.Username)
	v.SetDefault("github.gh_path", d.GitHub.GHPath)

	v.SetDefault("timeouts.request", d.Timeouts.Request)
	v.SetDefault("timeouts.refresh", d.Timeouts.Refresh)
	v.SetDefault("timeouts.create_project", d.Timeouts.CreateProject)
	v.SetDefault("timeouts.install_per_repo", d.Timeouts.InstallPerRepo)
	v.SetDefault("timeouts.delete_per_repo", d.Timeouts.DeletePerRepo)
	v.SetDefault("timeouts.rename", d.Timeouts.Rename)
	v.SetDefault("timeouts.git_remote", d.Timeouts.GitRemote)
	v.SetDefault("timeouts.git_push", d.Timeouts.GitPush)

	v.SetDefault("cache.git_state_ttl_sec", d.Cache.GitStateTTLSec)

	v.SetDefault("ui.default_push_message", d.UI.DefaultPushMessage)
	v.SetDefault("ui.templates_dir", d.UI.TemplatesDir)
	v.SetDefault("ui.theme_file", d.UI.ThemeFile)

	v.SetDefault("state.dir", d.State.Dir)
	v.SetDefault("logging.level", d.Logging.Level)

	v.SetDefault("dev.enabled", d.Dev.Enabled)
	v.SetDefault("dev.snapshot_max_age", d.Dev.SnapshotMaxAge)

	v.SetDefault("metrics.listen", d.Metrics.Listen)
}

// ReadFile merges the YAML config file into v. An empty path means the
// default location; a missing default file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	explicit := path != ""
	if !explicit {
		path = ConfigFile()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		var notFound viper.ConfigFileNotFoundError
		if !explicit && errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// Load reads the configuration from v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (c *Config) RemoteTimeouts() remote.Timeouts {
	return remote.Timeouts{
		Request:       seconds(c.Timeouts.Request),
		Refresh:       seconds(c.Timeouts.Refresh),
		CreateProject: seconds(c.Timeouts.CreateProject),
		Install:       seconds(c.Timeouts.InstallPerRepo),
		Delete:        seconds(c.Timeouts.DeletePerRepo),
		Rename:        seconds(c.Timeouts.Rename),
		GitRemote:     seconds(c.Timeouts.GitRemote),
		GitPush:       seconds(c.Timeouts.GitPush),
	}
}

func (c *Config) GitStateTTL() time.Duration { return seconds(c.Cache.GitStateTTLSec) }

// EditorCommand splits the editor setting into argv.
func (c *Config) EditorCommand() []string { return strings.Fields(c.Workspace.Editor) }

// ConfigDir returns the user's projects-factory config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + appName
	}
	return filepath.Join(home, ".config", appName)
}

func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
