package shell

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/snowman2/cimatrix/internal/domain"
)

// Ensure NativeRuntime implements domain.Runtime.
var _ domain.Runtime = (*NativeRuntime)(nil)

// NativeRuntime runs jobs in a host shell process.
type NativeRuntime struct {
	shell string
}

// NewNativeRuntime creates a runtime using the given shell binary.
func NewNativeRuntime(shell string) *NativeRuntime {
	if shell == "" {
		shell = domain.DefaultShell
	}
	return &NativeRuntime{shell: shell}
}

// Name returns the runtime name.
func (r *NativeRuntime) Name() string {
	return domain.RuntimeNative
}

// Supports reports whether target is the host OS.
func (r *NativeRuntime) Supports(target string) bool {
	return target == HostOS()
}

// Open starts the shell in opts.Dir with the host environment plus opts.Env.
func (r *NativeRuntime) Open(_ context.Context, opts domain.SessionOptions) (domain.Session, error) {
	// #nosec G204 - shell comes from the runner configuration
	cmd := exec.Command(r.shell, shellArgs(r.shell)...)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.Stderr = opts.Stderr
	setProcessGroup(cmd)

	return startStream(cmd, opts.Stdout, func() { killProcessGroup(cmd) })
}

// shellArgs returns the flags that make shell read commands from stdin
// without loading user startup files.
func shellArgs(shell string) []string {
	if filepath.Base(shell) == "bash" {
		return []string{"--noprofile", "--norc", "-s"}
	}
	return []string{"-s"}
}
