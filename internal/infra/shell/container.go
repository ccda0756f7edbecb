package shell

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/uuid"

	"github.com/snowman2/cimatrix/internal/domain"
)

// Ensure ContainerRuntime implements domain.Runtime.
var _ domain.Runtime = (*ContainerRuntime)(nil)

// ContainerRuntime runs jobs in a docker or podman container.
// The job directory is mounted at the same path inside the container.
type ContainerRuntime struct {
	images   map[string]string // OS → image
	lookPath func(string) (string, error)
	engine   string
}

// NewContainerRuntime creates a container runtime.
func NewContainerRuntime(engine string, images map[string]string) *ContainerRuntime {
	if engine == "" {
		engine = domain.DefaultEngine
	}
	return &ContainerRuntime{
		engine:   engine,
		images:   images,
		lookPath: exec.LookPath,
	}
}

// Name returns the runtime name.
func (r *ContainerRuntime) Name() string {
	return domain.RuntimeContainer
}

// Supports reports whether an image is configured for target and the
// engine binary is installed.
func (r *ContainerRuntime) Supports(target string) bool {
	if r.images[target] == "" {
		return false
	}
	_, err := r.lookPath(r.engine)
	return err == nil
}

// Open starts a container running bash on stdin.
func (r *ContainerRuntime) Open(_ context.Context, opts domain.SessionOptions) (domain.Session, error) {
	image := r.images[opts.OS]
	if image == "" {
		return nil, fmt.Errorf("%w %s: no container image configured", domain.ErrNoRuntime, opts.OS)
	}

	name := containerName(opts.JobNumber)
	// #nosec G204 - engine and image come from the runner configuration
	cmd := exec.Command(r.engine, r.RunArgs(name, image, opts)...)
	cmd.Stderr = opts.Stderr
	setProcessGroup(cmd)

	kill := func() {
		// Killing the client alone leaves the container running
		_ = exec.Command(r.engine, "kill", name).Run() // #nosec G204
		killProcessGroup(cmd)
	}
	return startStream(cmd, opts.Stdout, kill)
}

// RunArgs constructs arguments for the run command.
//
// Generated command: <engine> run --rm --name <name> -w <dir> -i -e K=V... -v <dir>:<dir> <image> bash --noprofile --norc -s
func (r *ContainerRuntime) RunArgs(name, image string, opts domain.SessionOptions) []string {
	args := []string{"run", "--rm", "--name", name}
	if opts.Dir != "" {
		args = append(args, "-w", opts.Dir)
	}
	args = append(args, "-i")
	for _, kv := range opts.Env {
		args = append(args, "-e", kv)
	}
	if opts.Dir != "" {
		args = append(args, "-v", opts.Dir+":"+opts.Dir)
	}
	args = append(args, image)
	return append(args, "bash", "--noprofile", "--norc", "-s")
}

// containerName returns a unique container name for a job.
func containerName(jobNumber string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if jobNumber == "" {
		return "cimatrix-" + id
	}
	return "cimatrix-job-" + strings.ReplaceAll(jobNumber, ".", "-") + "-" + id
}
