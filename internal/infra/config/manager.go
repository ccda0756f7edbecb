package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/snowman2/cimatrix/internal/domain"
)

// Ensure Manager implements domain.ConfigManager.
var _ domain.ConfigManager = (*Manager)(nil)

// Manager manages configuration files.
type Manager struct {
	buildDir      string // Project root holding .cimatrix.toml
	globalConfDir string // Path to global config directory (e.g., ~/.config/cimatrix)
}

// NewManager creates a new Manager.
func NewManager(buildDir string) *Manager {
	return &Manager{
		buildDir:      buildDir,
		globalConfDir: defaultGlobalConfigDir(),
	}
}

// NewManagerWithGlobalDir creates a new Manager with a custom global config directory.
// This is useful for testing.
func NewManagerWithGlobalDir(buildDir, globalConfDir string) *Manager {
	return &Manager{
		buildDir:      buildDir,
		globalConfDir: globalConfDir,
	}
}

// GetRepoConfigInfo returns information about the project config file.
func (m *Manager) GetRepoConfigInfo() domain.ConfigInfo {
	return m.getConfigInfo(domain.RepoConfigPath(m.buildDir))
}

// GetGlobalConfigInfo returns information about the global config file.
func (m *Manager) GetGlobalConfigInfo() domain.ConfigInfo {
	if m.globalConfDir == "" {
		return domain.ConfigInfo{}
	}
	return m.getConfigInfo(filepath.Join(m.globalConfDir, domain.ConfigFileName))
}

// getConfigInfo reads a config file and returns its info.
func (m *Manager) getConfigInfo(path string) domain.ConfigInfo {
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.ConfigInfo{
			Path:   path,
			Exists: false,
		}
	}
	return domain.ConfigInfo{
		Path:    path,
		Content: string(content),
		Exists:  true,
	}
}

// InitRepoConfig creates the project config file from the template.
func (m *Manager) InitRepoConfig(cfg *domain.Config) error {
	return m.initConfig(domain.RepoConfigPath(m.buildDir), cfg)
}

// InitGlobalConfig creates the global config file from the template.
func (m *Manager) InitGlobalConfig(cfg *domain.Config) error {
	if m.globalConfDir == "" {
		return errors.New("global config directory not available")
	}
	if err := os.MkdirAll(m.globalConfDir, 0o700); err != nil {
		return err
	}
	return m.initConfig(filepath.Join(m.globalConfDir, domain.ConfigFileName), cfg)
}

// initConfig creates a config file with default template.
func (m *Manager) initConfig(path string, cfg *domain.Config) error {
	if _, err := os.Stat(path); err == nil {
		return domain.ErrConfigExists
	}
	content := domain.RenderConfigTemplate(cfg)
	return os.WriteFile(path, []byte(content), 0o600)
}
