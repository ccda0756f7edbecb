package usecase

import (
	"context"

	"github.com/snowman2/cimatrix/internal/domain"
)

// InitConfigInput contains the input for the InitConfig use case.
type InitConfigInput struct {
	Config *domain.Config // Values rendered into the new file
	Global bool           // If true, initialize global config; otherwise project config
}

// InitConfigOutput contains the output of the InitConfig use case.
type InitConfigOutput struct {
	Path string // Path to the created config file
}

// InitConfig writes a commented configuration file.
type InitConfig struct {
	configManager domain.ConfigManager
}

// NewInitConfig creates a new InitConfig use case.
func NewInitConfig(configManager domain.ConfigManager) *InitConfig {
	return &InitConfig{
		configManager: configManager,
	}
}

// Execute creates the configuration file.
// Returns domain.ErrConfigExists if it already exists.
func (uc *InitConfig) Execute(_ context.Context, in InitConfigInput) (*InitConfigOutput, error) {
	if in.Config == nil {
		return nil, domain.ErrConfigNil
	}

	var err error
	var path string
	if in.Global {
		path = uc.configManager.GetGlobalConfigInfo().Path
		err = uc.configManager.InitGlobalConfig(in.Config)
	} else {
		path = uc.configManager.GetRepoConfigInfo().Path
		err = uc.configManager.InitRepoConfig(in.Config)
	}
	if err != nil {
		return nil, err
	}

	return &InitConfigOutput{Path: path}, nil
}
