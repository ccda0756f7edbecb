package domain

import "errors"

// Domain errors.
var (
	ErrBuildFileNotFound = errors.New("build file not found")
	ErrInvalidBuildFile  = errors.New("invalid build file")
	ErrNoScript          = errors.New("build file has no script phase")
	ErrEmptyPhase        = errors.New("phase has no commands")
	ErrInvalidEnvEntry   = errors.New("invalid env entry")
	ErrUnsupportedOS     = errors.New("unsupported os")
	ErrInvalidPolicy     = errors.New("invalid notification policy")
	ErrEmptyMatrix       = errors.New("matrix expands to no jobs")
	ErrEmptyRule         = errors.New("matrix rule names no key")
	ErrJobNotFound       = errors.New("job not found")
	ErrBuildNotFound     = errors.New("build not found")
	ErrNoRuntime         = errors.New("no runtime supports os")
	ErrUnknownRuntime    = errors.New("unknown runtime")
	ErrSessionClosed     = errors.New("shell session closed")
	ErrShellExited       = errors.New("command exited the shell")
	ErrConfigExists      = errors.New("config file already exists")
	ErrNotGitRepository  = errors.New("not a git repository (or any of the parent directories)")
	ErrInvalidStoreType  = errors.New("invalid store type")
	ErrConfigNil         = errors.New("config is nil")
)
