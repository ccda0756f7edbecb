package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowman2/cimatrix/internal/domain"
)

func TestNewRootCommand_WithHelp_ShowsHelp(t *testing.T) {
	// Create root command with nil container
	root := NewRootCommand(nil, "test-version")

	stdout, _, err := execute(root, "--help")

	require.NoError(t, err)
	assert.Contains(t, stdout, "Build Commands:")
	assert.Contains(t, stdout, "History Commands:")
	assert.Contains(t, stdout, "Setup Commands:")
	for _, name := range []string{"run", "matrix", "validate", "compile", "history", "show", "logs", "config"} {
		assert.Contains(t, stdout, name)
	}
}

func TestNewRootCommand_Version(t *testing.T) {
	root := NewRootCommand(nil, "1.2.3")

	stdout, _, err := execute(root, "--version")

	require.NoError(t, err)
	assert.Contains(t, stdout, "1.2.3")
}

func TestNewRootCommand_PrintsConfigWarnings(t *testing.T) {
	// Setup
	c, dir := newTestContainer(t, testBuildFile())
	require.NoError(t, os.WriteFile(filepath.Join(dir, domain.RepoConfigFileName),
		[]byte(testRepoConfig+"\n[runner.extra]\nunknown = 1\n"), 0o644))
	root := NewRootCommand(c, "test")

	// Execute
	_, stderr, err := execute(root, "matrix")

	// Assert
	require.NoError(t, err)
	assert.Contains(t, stderr, "Warning:")
}

func TestExitError(t *testing.T) {
	assert.Equal(t, "exit status 1", (&ExitError{Code: 1}).Error())
	assert.Equal(t, "build failed", (&ExitError{Code: 1, Message: "build failed"}).Error())

	var exitErr *ExitError
	wrapped := errors.Join(errors.New("context"), &ExitError{Code: 2})
	require.ErrorAs(t, wrapped, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}
