package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowman2/cimatrix/internal/domain"
)

// =============================================================================
// Config Command Tests
// =============================================================================

func TestConfigCommand_NoSubcommand_ShowsHelp(t *testing.T) {
	// Setup
	container, _ := newTestContainer(t, "")

	// Execute
	stdout, _, err := execute(newConfigCommand(container))

	// Assert - should show help with subcommand list
	require.NoError(t, err)
	assert.Contains(t, stdout, "Available Commands:")
	assert.Contains(t, stdout, "show")
	assert.Contains(t, stdout, "template")
	assert.Contains(t, stdout, "init")
}

// =============================================================================
// Config Show Subcommand Tests
// =============================================================================

func TestConfigShowCommand_DisplaysEffectiveConfig(t *testing.T) {
	// Setup
	container, dir := newTestContainer(t, "")

	// Execute
	stdout, _, err := execute(newConfigCommand(container), "show")

	// Assert
	require.NoError(t, err)
	assert.Contains(t, stdout, "[Loaded from]")
	assert.Contains(t, stdout, "(not found)")
	assert.Contains(t, stdout, "- "+filepath.Join(dir, domain.RepoConfigFileName)+"\n")
	assert.Contains(t, stdout, "[Effective Config]")
	assert.Contains(t, stdout, "[runner]")
	assert.Contains(t, stdout, "runtime = 'virtual'")
	assert.Contains(t, stdout, "jobs = 1")
}

func TestConfigShowCommand_IgnoreRepo(t *testing.T) {
	// Setup
	container, dir := newTestContainer(t, "")

	// Execute
	stdout, _, err := execute(newConfigCommand(container), "show", "--ignore-repo")

	// Assert
	require.NoError(t, err)
	assert.NotContains(t, stdout, filepath.Join(dir, domain.RepoConfigFileName))
	assert.Contains(t, stdout, "runtime = '"+domain.DefaultRuntime+"'")
}

// =============================================================================
// Config Template Subcommand Tests
// =============================================================================

func TestConfigTemplateCommand_OutputsTemplate(t *testing.T) {
	// Setup
	container, _ := newTestContainer(t, "")

	// Execute
	stdout, _, err := execute(newConfigCommand(container), "template")

	// Assert
	require.NoError(t, err)
	assert.Contains(t, stdout, "[runner]")
	assert.Contains(t, stdout, "[notify.smtp]")

	// Should not contain metadata headers (just template content)
	assert.NotContains(t, stdout, "[Loaded from]")
	assert.NotContains(t, stdout, "[Effective Config]")
}

// =============================================================================
// Config Init Subcommand Tests
// =============================================================================

func TestConfigInitCommand_CreatesRepoConfig(t *testing.T) {
	// Setup
	container, dir := newTestContainer(t, "")
	require.NoError(t, os.Remove(filepath.Join(dir, domain.RepoConfigFileName)))

	// Execute
	stdout, _, err := execute(newConfigCommand(container), "init")

	// Assert
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created config file:")

	info := container.ConfigManager.GetRepoConfigInfo()
	assert.True(t, info.Exists)
	assert.Contains(t, info.Content, "[runner]")
}

func TestConfigInitCommand_WithGlobalFlag(t *testing.T) {
	// Setup
	container, _ := newTestContainer(t, "")

	// Execute
	stdout, _, err := execute(newConfigCommand(container), "init", "--global")

	// Assert
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created config file:")

	info := container.ConfigManager.GetGlobalConfigInfo()
	assert.True(t, info.Exists)
	assert.Contains(t, info.Content, "[runner]")
}

func TestConfigInitCommand_ErrorIfFileExists(t *testing.T) {
	// Setup
	container, _ := newTestContainer(t, "")

	// Execute - the project config already exists
	_, _, err := execute(newConfigCommand(container), "init")

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfigExists)
}
