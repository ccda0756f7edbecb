package domain

import (
	"context"
	"io"
	"time"
)

// BuildFileLoader reads and parses build files.
type BuildFileLoader interface {
	// Load reads the build file at path.
	// Returns ErrBuildFileNotFound if the file does not exist.
	Load(path string) (*BuildFile, error)

	// Parse parses build file content. path is only used in messages.
	Parse(data []byte, path string) (*BuildFile, error)
}

// BuildRepository manages build history.
type BuildRepository interface {
	// NextNumber returns the next available build number.
	NextNumber() (int, error)

	// Save creates or updates a build.
	Save(build *Build) error

	// Get retrieves a build by number. Returns nil if not found.
	Get(number int) (*Build, error)

	// List returns builds ordered by number, newest last.
	// A positive limit keeps only the most recent builds.
	List(limit int) ([]*Build, error)

	// Last returns the most recent build with a result, skipping
	// unfinished and canceled builds. Returns nil if none.
	Last() (*Build, error)
}

// Runtime opens shell sessions for jobs.
type Runtime interface {
	// Name returns the runtime name (virtual, native, container).
	Name() string

	// Supports reports whether the runtime can run jobs for the OS.
	Supports(os string) bool

	// Open starts a persistent shell session.
	Open(ctx context.Context, opts SessionOptions) (Session, error)
}

// RuntimeSelector picks the runtime for a job.
type RuntimeSelector interface {
	// Select returns preferred if it supports os, else a fallback that
	// does. Returns ErrNoRuntime if nothing supports os.
	Select(preferred, os string) (Runtime, error)
}

// Session is a persistent shell. Exported variables, the working directory
// and sourced files carry over from one Run to the next.
type Session interface {
	// Run executes one command line and returns its exit code.
	// When the command ends the shell (exit), Run returns its status with
	// ErrShellExited and later calls fail. Any other error means the
	// session itself broke.
	Run(ctx context.Context, command string) (int, error)

	// Close terminates the session.
	Close() error
}

// SessionOptions configures a session.
// Fields are ordered to minimize memory padding.
type SessionOptions struct {
	Stdout    io.Writer
	Stderr    io.Writer
	Dir       string   // Working directory
	OS        string   // Target OS of the job
	JobNumber string   // Used for naming containers and logs
	Env       []string // Extra NAME=VALUE pairs set before the first command
}

// RepoInfo describes the checked-out commit of a project.
// Fields are ordered to minimize memory padding.
type RepoInfo struct {
	Root        string // Top level of the working tree
	Branch      string // Empty when HEAD is detached
	Commit      string
	Message     string // Full commit message
	AuthorEmail string
	Dirty       bool // Uncommitted changes exist
}

// RepoInspector reads repository metadata.
type RepoInspector interface {
	// Inspect returns metadata for the repository containing dir.
	// Returns ErrNotGitRepository if dir is not inside a repository.
	Inspect(dir string) (*RepoInfo, error)
}

// WorkspaceManager provides an isolated checkout per job.
type WorkspaceManager interface {
	// Prepare creates the workspace for a job and returns its path.
	Prepare(jobNumber string) (string, error)

	// Release removes the workspace of a job.
	Release(jobNumber string) error
}

// CacheStore saves and restores cached directories between builds.
// dirs are absolute paths; archives remember entries by position in dirs,
// so the same key restores into a different checkout.
type CacheStore interface {
	// Key returns the cache key for a job and its directories as declared
	// in the build file, before any expansion.
	Key(job Job, declared []string) string

	// Restore unpacks the archive for key into dirs.
	// Returns false if no archive exists.
	Restore(key string, dirs []string) (bool, error)

	// Save archives dirs under key. Missing directories are skipped.
	Save(key string, dirs []string) error
}

// EmailSender delivers email notifications.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is a plain-text email.
type EmailMessage struct {
	Subject string
	Body    string
	To      []string
}

// WebhookPoster delivers webhook notifications.
type WebhookPoster interface {
	Post(ctx context.Context, url string, payload WebhookPayload) error
}

// ConfigLoader loads configuration from files.
type ConfigLoader interface {
	// Load returns the merged configuration (default, global, repo).
	Load() (*Config, error)

	// LoadWithOptions returns the merged configuration, skipping sources.
	LoadWithOptions(opts LoadConfigOptions) (*Config, error)
}

// ConfigManager reads and creates config files.
type ConfigManager interface {
	// GetGlobalConfigInfo returns information about the global config file.
	GetGlobalConfigInfo() ConfigInfo

	// GetRepoConfigInfo returns information about the project config file.
	GetRepoConfigInfo() ConfigInfo

	// InitGlobalConfig writes the global config file.
	// Returns ErrConfigExists if it already exists.
	InitGlobalConfig(cfg *Config) error

	// InitRepoConfig writes the project config file.
	// Returns ErrConfigExists if it already exists.
	InitRepoConfig(cfg *Config) error
}

// Logger writes diagnostic logs. An empty jobNumber logs globally only.
type Logger interface {
	Info(jobNumber, category, msg string)
	Debug(jobNumber, category, msg string)
	Warn(jobNumber, category, msg string)
	Error(jobNumber, category, msg string)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Info(string, string, string)  {}
func (NopLogger) Debug(string, string, string) {}
func (NopLogger) Warn(string, string, string)  {}
func (NopLogger) Error(string, string, string) {}

// Clock provides time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// RealClock implements Clock using the system clock.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}
