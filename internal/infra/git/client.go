// Package git provides git operations.
package git

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/snowman2/cimatrix/internal/domain"
)

// Ensure Client implements domain.RepoInspector.
var _ domain.RepoInspector = (*Client)(nil)

// Client reads repository metadata.
// Commit metadata comes from go-git; the working tree status uses the git
// CLI, which is much faster than go-git on large trees.
type Client struct{}

// NewClient creates a new git client.
func NewClient() *Client {
	return &Client{}
}

// Inspect returns metadata for the repository containing dir.
func (c *Client) Inspect(dir string) (*domain.RepoInfo, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, domain.ErrNotGitRepository
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		// Bare repositories have nothing to build
		return nil, domain.ErrNotGitRepository
	}
	info := &domain.RepoInfo{Root: filepath.Clean(wt.Filesystem.Root())}

	head, err := repo.Head()
	if err != nil {
		// Fresh repository without commits
		return info, nil
	}
	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}
	info.Commit = head.Hash().String()

	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("read HEAD commit: %w", err)
	}
	info.Message = strings.TrimSpace(commit.Message)
	info.AuthorEmail = commit.Author.Email

	dirty, err := HasUncommittedChanges(info.Root)
	if err != nil {
		return nil, err
	}
	info.Dirty = dirty

	return info, nil
}

// HasUncommittedChanges checks for uncommitted changes in a directory.
// Returns true if there are uncommitted changes (staged or unstaged).
func HasUncommittedChanges(dir string) (bool, error) {
	cmd := exec.Command("git", "status", "--porcelain")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("failed to check uncommitted changes: %w", err)
	}
	return len(out) > 0, nil
}
