// Package worktree provides per-job git worktrees.
package worktree

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/snowman2/cimatrix/internal/domain"
)

// Ensure Client implements domain.WorkspaceManager interface.
var _ domain.WorkspaceManager = (*Client)(nil)

// Info describes a registered worktree.
type Info struct {
	Path   string
	Head   string
	Branch string // Empty for detached worktrees
}

// Client manages git worktrees.
type Client struct {
	repoRoot string // Main repository root
	stateDir string // Worktrees live under <stateDir>/worktrees
}

// NewClient creates a new worktree client.
func NewClient(repoRoot, stateDir string) *Client {
	return &Client{
		repoRoot: repoRoot,
		stateDir: stateDir,
	}
}

// Prepare creates a detached worktree of HEAD for the job.
// A worktree left behind by an interrupted build is replaced.
func (c *Client) Prepare(jobNumber string) (string, error) {
	path := domain.WorktreePath(c.stateDir, jobNumber)

	registered, err := c.isRegistered(path)
	if err != nil {
		return "", err
	}
	if registered {
		if err := c.remove(path); err != nil {
			return "", fmt.Errorf("remove stale worktree: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create worktree directory: %w", err)
	}

	args := []string{"worktree", "add", "--detach", path, "HEAD"}
	out, err := c.git(args...)
	if err != nil {
		// Registered but directory missing, or directory left without registration
		if strings.Contains(out, "already registered") || strings.Contains(out, "already exists") {
			if pruneErr := c.prune(); pruneErr != nil {
				return "", fmt.Errorf("prune stale worktrees: %w", pruneErr)
			}
			_ = os.RemoveAll(path)
			if out, err = c.git(args...); err != nil {
				return "", fmt.Errorf("create worktree after prune: %w: %s", err, out)
			}
			return path, nil
		}
		return "", fmt.Errorf("create worktree: %w: %s", err, out)
	}

	return path, nil
}

// Release removes the job's worktree, discarding anything the job wrote.
func (c *Client) Release(jobNumber string) error {
	path := domain.WorktreePath(c.stateDir, jobNumber)

	registered, err := c.isRegistered(path)
	if err != nil {
		return err
	}
	if !registered {
		return os.RemoveAll(path)
	}
	return c.remove(path)
}

// List returns all worktrees of the repository.
func (c *Client) List() ([]Info, error) {
	cmd := exec.Command("git", "worktree", "list", "--porcelain")
	cmd.Dir = c.repoRoot

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}

	return parseWorktreeList(string(out))
}

func (c *Client) isRegistered(path string) (bool, error) {
	worktrees, err := c.List()
	if err != nil {
		return false, err
	}
	for _, wt := range worktrees {
		if sameFile(wt.Path, path) {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) remove(path string) error {
	if out, err := c.git("worktree", "remove", "--force", path); err != nil {
		return fmt.Errorf("remove worktree: %w: %s", err, out)
	}
	return nil
}

// prune removes stale worktree entries.
func (c *Client) prune() error {
	if out, err := c.git("worktree", "prune"); err != nil {
		return fmt.Errorf("prune worktrees: %w: %s", err, out)
	}
	return nil
}

func (c *Client) git(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = c.repoRoot
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// sameFile compares paths after resolving symlinks (macOS /var → /private/var).
func sameFile(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	return errA == nil && errB == nil && ra == rb
}

// parseWorktreeList parses the porcelain output of git worktree list.
// Format:
//
//	worktree /path/to/worktree
//	HEAD abc123
//	branch refs/heads/branch-name   (or "detached")
//	<blank line>
func parseWorktreeList(output string) ([]Info, error) {
	var worktrees []Info
	var current Info

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "worktree "):
			current.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			current.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			ref := strings.TrimPrefix(line, "branch ")
			current.Branch = strings.TrimPrefix(ref, "refs/heads/")
		case line == "":
			if current.Path != "" {
				worktrees = append(worktrees, current)
			}
			current = Info{}
		}
	}

	// Handle last entry if no trailing newline
	if current.Path != "" {
		worktrees = append(worktrees, current)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse worktree list: %w", err)
	}

	return worktrees, nil
}
