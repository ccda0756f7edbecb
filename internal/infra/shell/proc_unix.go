//go:build !windows

package shell

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the shell in its own process group so that
// killProcessGroup reaches every command it started.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	// Negative pid signals the whole group
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
