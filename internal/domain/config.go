package domain

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"text/template"
	"time"
)

//go:embed config_template.toml
var configTemplateContent string

// Runtime names.
const (
	RuntimeVirtual   = "virtual"   // In-process POSIX shell
	RuntimeNative    = "native"    // Host bash
	RuntimeContainer = "container" // docker/podman
)

// Workspace isolation modes.
const (
	IsolateAuto     = "auto"     // worktree when parallel jobs run in a git repository
	IsolateWorktree = "worktree" // one git worktree per job
	IsolateNone     = "none"     // every job runs in the build dir
)

// Store types.
const (
	StoreJSON = "json"
	StoreGit  = "git"
)

// Default configuration values.
const (
	DefaultRuntime        = RuntimeNative
	DefaultJobs           = 2
	DefaultShell          = "bash"
	DefaultEngine         = "docker"
	DefaultLinuxImage     = "ubuntu:22.04"
	DefaultLogLevel       = "info"
	DefaultWebhookRetries = 3
	DefaultWebhookTimeout = "30s"
	DefaultSMTPPort       = 25
)

// Config represents the runner configuration.
// Fields are ordered to minimize memory padding.
type Config struct {
	Warnings  []string        `toml:"-"`
	Container ContainerConfig `toml:"container"`
	Notify    NotifyConfig    `toml:"notify"`
	Runner    RunnerConfig    `toml:"runner"`
	Cache     CacheConfig     `toml:"cache"`
	Store     StoreConfig     `toml:"store"`
	Log       LogConfig       `toml:"log"`
}

// RunnerConfig holds settings from the [runner] section.
type RunnerConfig struct {
	Runtime string `toml:"runtime,omitempty"` // virtual, native or container
	Shell   string `toml:"shell,omitempty"`   // Shell used by the native and container runtimes
	Isolate string `toml:"isolate,omitempty"` // auto, worktree or none
	File    string `toml:"file,omitempty"`    // Build file path relative to the build dir
	Jobs    int    `toml:"jobs,omitempty"`    // Maximum parallel jobs
}

// ContainerConfig holds settings from the [container] section.
type ContainerConfig struct {
	Images map[string]string `toml:"images,omitempty"` // OS name -> image
	Engine string            `toml:"engine,omitempty"` // docker or podman
}

// StoreConfig holds settings from the [store] section.
type StoreConfig struct {
	Type string `toml:"type,omitempty"` // json or git
}

// CacheConfig holds settings from the [cache] section.
type CacheConfig struct {
	Dir      string `toml:"dir,omitempty"`      // Archive directory (default .cimatrix/cache)
	Disabled bool   `toml:"disabled,omitempty"` // Ignore cache sections of build files
}

// LogConfig holds settings from the [log] section.
type LogConfig struct {
	Level string `toml:"level,omitempty"` // debug, info, warn, error
}

// NotifyConfig holds settings from the [notify] section.
type NotifyConfig struct {
	WebhookTimeout string     `toml:"webhook_timeout,omitempty"`
	SMTP           SMTPConfig `toml:"smtp"`
	WebhookRetries int        `toml:"webhook_retries,omitempty"`
}

// SMTPConfig holds settings from the [notify.smtp] section.
// The password is read from the environment variable named by PasswordEnv.
type SMTPConfig struct {
	Host        string `toml:"host,omitempty"`
	From        string `toml:"from,omitempty"`
	Username    string `toml:"username,omitempty"`
	PasswordEnv string `toml:"password_env,omitempty"`
	Port        int    `toml:"port,omitempty"`
}

// WebhookTimeoutDuration parses WebhookTimeout, falling back to the default.
func (n NotifyConfig) WebhookTimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(n.WebhookTimeout); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(DefaultWebhookTimeout)
	return d
}

// ConfigInfo holds information about a config file.
type ConfigInfo struct {
	Path    string
	Content string
	Exists  bool
}

// LoadConfigOptions selects which config sources are merged.
type LoadConfigOptions struct {
	IgnoreGlobal bool
	IgnoreRepo   bool
}

// NewDefaultConfig returns a Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Runner: RunnerConfig{
			Runtime: DefaultRuntime,
			Jobs:    DefaultJobs,
			Shell:   DefaultShell,
			Isolate: IsolateAuto,
			File:    DefaultBuildFile,
		},
		Container: ContainerConfig{
			Engine: DefaultEngine,
			Images: map[string]string{OSLinux: DefaultLinuxImage},
		},
		Store: StoreConfig{Type: StoreJSON},
		Log:   LogConfig{Level: DefaultLogLevel},
		Notify: NotifyConfig{
			WebhookRetries: DefaultWebhookRetries,
			WebhookTimeout: DefaultWebhookTimeout,
			SMTP:           SMTPConfig{Port: DefaultSMTPPort},
		},
	}
}

// Validate checks values the TOML schema cannot express.
func (c *Config) Validate() error {
	switch c.Runner.Runtime {
	case RuntimeVirtual, RuntimeNative, RuntimeContainer:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRuntime, c.Runner.Runtime)
	}
	switch c.Store.Type {
	case StoreJSON, StoreGit:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStoreType, c.Store.Type)
	}
	switch c.Runner.Isolate {
	case IsolateAuto, IsolateWorktree, IsolateNone:
	default:
		return fmt.Errorf("invalid isolate mode: %q", c.Runner.Isolate)
	}
	if c.Runner.Jobs < 1 {
		return fmt.Errorf("runner.jobs must be at least 1, got %d", c.Runner.Jobs)
	}
	return nil
}

// templateData holds all data for rendering the config template.
type templateData struct {
	Runtime        string
	Shell          string
	Engine         string
	LogLevel       string
	StoreType      string
	WebhookTimeout string
	Images         []imageTemplateData
	Jobs           int
	WebhookRetries int
}

type imageTemplateData struct {
	OS    string
	Image string
}

// RenderConfigTemplate renders a commented config file from the given Config.
func RenderConfigTemplate(cfg *Config) string {
	osNames := make([]string, 0, len(cfg.Container.Images))
	for name := range cfg.Container.Images {
		osNames = append(osNames, name)
	}
	sort.Strings(osNames)
	images := make([]imageTemplateData, 0, len(osNames))
	for _, name := range osNames {
		images = append(images, imageTemplateData{OS: name, Image: cfg.Container.Images[name]})
	}

	data := templateData{
		Runtime:        cfg.Runner.Runtime,
		Shell:          cfg.Runner.Shell,
		Jobs:           cfg.Runner.Jobs,
		Engine:         cfg.Container.Engine,
		Images:         images,
		StoreType:      cfg.Store.Type,
		LogLevel:       cfg.Log.Level,
		WebhookRetries: cfg.Notify.WebhookRetries,
		WebhookTimeout: cfg.Notify.WebhookTimeout,
	}

	tmpl, err := template.New("config").Delims("<<", ">>").Parse(configTemplateContent)
	if err != nil {
		// Should never happen with embedded template
		panic(fmt.Sprintf("failed to parse config template: %v", err))
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		// Should never happen with valid data
		panic(fmt.Sprintf("failed to execute config template: %v", err))
	}

	return buf.String()
}
