// Package usecase contains the application use cases.
package usecase

import (
	"context"
	"fmt"

	"github.com/snowman2/cimatrix/internal/domain"
)

// ShowConfigInput contains the input for the ShowConfig use case.
type ShowConfigInput struct {
	IgnoreGlobal bool // Skip the global config file
	IgnoreRepo   bool // Skip the project config file
}

// ShowConfigOutput contains the output of the ShowConfig use case.
type ShowConfigOutput struct {
	EffectiveConfig *domain.Config    // Merged default, global and repository config
	GlobalConfig    domain.ConfigInfo // Global config file info
	RepoConfig      domain.ConfigInfo // Repository config file info
}

// ShowConfig displays configuration file information.
type ShowConfig struct {
	configManager domain.ConfigManager
	configLoader  domain.ConfigLoader
}

// NewShowConfig creates a new ShowConfig use case.
func NewShowConfig(configManager domain.ConfigManager, configLoader domain.ConfigLoader) *ShowConfig {
	return &ShowConfig{
		configManager: configManager,
		configLoader:  configLoader,
	}
}

// Execute retrieves configuration file information.
func (uc *ShowConfig) Execute(_ context.Context, in ShowConfigInput) (*ShowConfigOutput, error) {
	cfg, err := uc.configLoader.LoadWithOptions(domain.LoadConfigOptions{
		IgnoreGlobal: in.IgnoreGlobal,
		IgnoreRepo:   in.IgnoreRepo,
	})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &ShowConfigOutput{
		GlobalConfig:    uc.configManager.GetGlobalConfigInfo(),
		RepoConfig:      uc.configManager.GetRepoConfigInfo(),
		EffectiveConfig: cfg,
	}, nil
}
