package app

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowman2/cimatrix/internal/domain"
	"github.com/snowman2/cimatrix/internal/infra/gitstore"
	"github.com/snowman2/cimatrix/internal/infra/jsonstore"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, out)
}

func setupGitRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "master")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".travis.yml"), []byte("script: true\n"), 0o644))
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "init")
	return dir
}

func TestNew_OutsideRepository(t *testing.T) {
	// Setup
	dir := t.TempDir()

	// Execute
	c, err := New(dir)

	// Assert
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	assert.Equal(t, dir, c.Config.BuildDir)
	assert.Equal(t, filepath.Join(dir, ".cimatrix"), c.Config.StateDir)
	assert.IsType(t, &jsonstore.Store{}, c.Builds)
	assert.Nil(t, c.Workspaces)
	assert.NotNil(t, c.Cache)
	assert.Nil(t, c.Email)

	ignore, err := os.ReadFile(filepath.Join(dir, ".cimatrix", ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, "*\n", string(ignore))
}

func TestNew_InsideRepository(t *testing.T) {
	// Setup
	dir := setupGitRepo(t)
	sub := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(sub, 0o750))

	// Execute
	c, err := New(sub)

	// Assert
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	actual, err := filepath.EvalSymlinks(c.Config.BuildDir)
	require.NoError(t, err)
	assert.Equal(t, resolved, actual)
	assert.NotNil(t, c.Workspaces)
}

func TestNew_StateDirIgnoredByGit(t *testing.T) {
	// Setup
	dir := setupGitRepo(t)

	// Execute
	c, err := New(dir)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	// Assert
	info, err := c.Repo.Inspect(dir)
	require.NoError(t, err)
	assert.False(t, info.Dirty)
}

func TestNew_GitStore(t *testing.T) {
	// Setup
	dir := setupGitRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, domain.RepoConfigFileName), []byte("[store]\ntype = \"git\"\n\n[notify.smtp]\nhost = \"localhost\"\n\n[cache]\ndisabled = true\n"), 0o644))

	// Execute
	c, err := New(dir)

	// Assert
	require.NoError(t, err)
	defer func() { _ = c.Close() }()
	assert.IsType(t, &gitstore.Store{}, c.Builds)
	assert.NotNil(t, c.Email)
	assert.Nil(t, c.Cache)
}

func TestNew_GitStoreOutsideRepository(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, domain.RepoConfigFileName), []byte("[store]\ntype = \"git\"\n"), 0o644))

	_, err := New(dir)

	assert.ErrorIs(t, err, domain.ErrNotGitRepository)
}

func TestCacheDir(t *testing.T) {
	cfg := Config{BuildDir: "/src/p", StateDir: "/src/p/.cimatrix"}

	appConfig := domain.NewDefaultConfig()
	assert.Equal(t, "/src/p/.cimatrix/cache", cacheDir(appConfig, cfg))

	appConfig.Cache.Dir = "ci-cache"
	assert.Equal(t, "/src/p/ci-cache", cacheDir(appConfig, cfg))

	appConfig.Cache.Dir = "/var/cache/cimatrix"
	assert.Equal(t, "/var/cache/cimatrix", cacheDir(appConfig, cfg))
}
