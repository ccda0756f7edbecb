package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowman2/cimatrix/internal/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoader_Load_Defaults(t *testing.T) {
	loader := NewLoaderWithGlobalDir(t.TempDir(), t.TempDir())

	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, domain.NewDefaultConfig(), cfg)
}

func TestLoader_Load_RepoConfigOnly(t *testing.T) {
	// Setup
	buildDir := t.TempDir()
	writeFile(t, domain.RepoConfigPath(buildDir), `
[runner]
runtime = "virtual"
jobs = 4

[store]
type = "git"

[log]
level = "debug"
`)

	// Execute
	cfg, err := NewLoaderWithGlobalDir(buildDir, t.TempDir()).Load()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.RuntimeVirtual, cfg.Runner.Runtime)
	assert.Equal(t, 4, cfg.Runner.Jobs)
	assert.Equal(t, domain.StoreGit, cfg.Store.Type)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, domain.DefaultShell, cfg.Runner.Shell)
	assert.Empty(t, cfg.Warnings)
}

func TestLoader_Load_MergeRepoOverridesGlobal(t *testing.T) {
	// Setup
	buildDir := t.TempDir()
	globalDir := t.TempDir()
	writeFile(t, filepath.Join(globalDir, domain.ConfigFileName), `
[runner]
runtime = "container"
jobs = 8

[container]
engine = "podman"

[container.images]
osx = "sickcodes/docker-osx"

[notify.smtp]
host = "smtp.example.com"
port = 587
from = "ci@example.com"
`)
	writeFile(t, domain.RepoConfigPath(buildDir), `
[runner]
jobs = 1

[container.images]
linux = "python:3.5"
`)

	// Execute
	cfg, err := NewLoaderWithGlobalDir(buildDir, globalDir).Load()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, domain.RuntimeContainer, cfg.Runner.Runtime)
	assert.Equal(t, 1, cfg.Runner.Jobs)
	assert.Equal(t, "podman", cfg.Container.Engine)
	assert.Equal(t, map[string]string{
		"linux": "python:3.5",
		"osx":   "sickcodes/docker-osx",
	}, cfg.Container.Images)
	assert.Equal(t, "smtp.example.com", cfg.Notify.SMTP.Host)
	assert.Equal(t, 587, cfg.Notify.SMTP.Port)
}

func TestLoader_LoadWithOptions_IgnoreRepo(t *testing.T) {
	buildDir := t.TempDir()
	globalDir := t.TempDir()
	writeFile(t, filepath.Join(globalDir, domain.ConfigFileName), "[runner]\njobs = 3\n")
	writeFile(t, domain.RepoConfigPath(buildDir), "[runner]\njobs = 5\n")
	loader := NewLoaderWithGlobalDir(buildDir, globalDir)

	cfg, err := loader.LoadWithOptions(domain.LoadConfigOptions{IgnoreRepo: true})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Runner.Jobs)

	cfg, err = loader.LoadWithOptions(domain.LoadConfigOptions{IgnoreGlobal: true, IgnoreRepo: true})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultJobs, cfg.Runner.Jobs)
}

func TestLoader_Load_Warnings(t *testing.T) {
	buildDir := t.TempDir()
	writeFile(t, domain.RepoConfigPath(buildDir), `
[runner]
runtime = "native"
color = true

[agents]
name = "x"
`)

	cfg, err := NewLoaderWithGlobalDir(buildDir, t.TempDir()).Load()

	require.NoError(t, err)
	assert.Equal(t, []string{
		"unknown key in [runner]: color",
		"unknown section: agents",
	}, cfg.Warnings)
}

func TestLoader_Load_InvalidValues(t *testing.T) {
	buildDir := t.TempDir()
	writeFile(t, domain.RepoConfigPath(buildDir), "[runner]\nruntime = \"vm\"\n")

	_, err := NewLoaderWithGlobalDir(buildDir, t.TempDir()).Load()

	assert.ErrorIs(t, err, domain.ErrUnknownRuntime)
}

func TestLoader_Load_InvalidTOML(t *testing.T) {
	buildDir := t.TempDir()
	writeFile(t, domain.RepoConfigPath(buildDir), "[runner\n")

	_, err := NewLoaderWithGlobalDir(buildDir, t.TempDir()).Load()

	assert.Error(t, err)
}

func TestLoader_LoadGlobal_NoDir(t *testing.T) {
	_, err := NewLoaderWithGlobalDir(t.TempDir(), "").LoadGlobal()

	assert.ErrorIs(t, err, os.ErrNotExist)
}
