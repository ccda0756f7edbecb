package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/snowman2/cimatrix/internal/domain"
)

// Ensure VirtualRuntime implements domain.Runtime.
var _ domain.Runtime = (*VirtualRuntime)(nil)

// VirtualRuntime interprets jobs with an in-process POSIX shell.
// External programs still run on the host.
type VirtualRuntime struct{}

// NewVirtualRuntime creates a virtual runtime.
func NewVirtualRuntime() *VirtualRuntime {
	return &VirtualRuntime{}
}

// Name returns the runtime name.
func (r *VirtualRuntime) Name() string {
	return domain.RuntimeVirtual
}

// Supports reports whether target is the host OS.
func (r *VirtualRuntime) Supports(target string) bool {
	return target == HostOS()
}

// Open creates an interpreter whose state carries across Run calls.
func (r *VirtualRuntime) Open(_ context.Context, opts domain.SessionOptions) (domain.Session, error) {
	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	runner, err := interp.New(
		interp.Dir(opts.Dir),
		interp.Env(expand.ListEnviron(append(os.Environ(), opts.Env...)...)),
		interp.StdIO(nil, stdout, stderr),
	)
	if err != nil {
		return nil, fmt.Errorf("create interpreter: %w", err)
	}
	return &virtualSession{runner: runner, stderr: stderr}, nil
}

type virtualSession struct {
	runner *interp.Runner
	stderr io.Writer
	mu     sync.Mutex
	closed bool
}

// Run interprets one command line. Parse errors exit with 2 like bash.
func (s *virtualSession) Run(ctx context.Context, command string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return -1, domain.ErrSessionClosed
	}

	prog, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil {
		_, _ = fmt.Fprintf(s.stderr, "syntax error: %v\n", err)
		return 2, nil
	}

	err = s.runner.Run(ctx, prog)
	if ctx.Err() != nil {
		s.closed = true
		return -1, ctx.Err()
	}
	code := 0
	if err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			code = int(exitStatus)
		} else {
			_, _ = fmt.Fprintln(s.stderr, err)
			code = 1
		}
	}
	if s.runner.Exited() {
		// The job called exit; nothing may run after it
		s.closed = true
		return code, domain.ErrShellExited
	}
	return code, nil
}

// Close releases the session.
func (s *virtualSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// HostOS returns the build file OS name of the machine cimatrix runs on.
func HostOS() string {
	switch runtime.GOOS {
	case "darwin":
		return domain.OSMacOS
	case "windows":
		return domain.OSWindows
	default:
		return domain.OSLinux
	}
}
