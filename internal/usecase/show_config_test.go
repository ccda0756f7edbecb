package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowman2/cimatrix/internal/domain"
	"github.com/snowman2/cimatrix/internal/testutil"
	"github.com/snowman2/cimatrix/internal/usecase"
)

func TestShowConfig_Execute(t *testing.T) {
	t.Run("returns both config infos and effective config", func(t *testing.T) {
		manager := testutil.NewMockConfigManager()
		manager.RepoConfigInfo = domain.ConfigInfo{
			Path:    "/src/project/.cimatrix.toml",
			Content: "[runner]\nruntime = \"virtual\"",
			Exists:  true,
		}
		manager.GlobalConfigInfo = domain.ConfigInfo{
			Path:    "/home/test/.config/cimatrix/config.toml",
			Content: "[log]\nlevel = \"debug\"",
			Exists:  true,
		}
		loader := testutil.NewMockConfigLoader()
		loader.Config.Runner.Runtime = domain.RuntimeVirtual

		uc := usecase.NewShowConfig(manager, loader)
		out, err := uc.Execute(context.Background(), usecase.ShowConfigInput{})

		require.NoError(t, err)
		assert.Equal(t, "/src/project/.cimatrix.toml", out.RepoConfig.Path)
		assert.True(t, out.RepoConfig.Exists)
		assert.Equal(t, "[log]\nlevel = \"debug\"", out.GlobalConfig.Content)
		require.NotNil(t, out.EffectiveConfig)
		assert.Equal(t, domain.RuntimeVirtual, out.EffectiveConfig.Runner.Runtime)
	})

	t.Run("handles non-existent files", func(t *testing.T) {
		manager := testutil.NewMockConfigManager()

		uc := usecase.NewShowConfig(manager, testutil.NewMockConfigLoader())
		out, err := uc.Execute(context.Background(), usecase.ShowConfigInput{})

		require.NoError(t, err)
		assert.False(t, out.RepoConfig.Exists)
		assert.False(t, out.GlobalConfig.Exists)
		assert.Equal(t, domain.DefaultJobs, out.EffectiveConfig.Runner.Jobs)
	})

	t.Run("returns load error", func(t *testing.T) {
		loader := testutil.NewMockConfigLoader()
		loader.LoadErr = errors.New("bad toml")

		uc := usecase.NewShowConfig(testutil.NewMockConfigManager(), loader)
		_, err := uc.Execute(context.Background(), usecase.ShowConfigInput{})

		assert.EqualError(t, err, "load config: bad toml")
	})
}

func TestShowConfigTemplate_Execute(t *testing.T) {
	t.Run("renders config values", func(t *testing.T) {
		cfg := domain.NewDefaultConfig()
		cfg.Runner.Jobs = 6

		out, err := usecase.NewShowConfigTemplate().Execute(context.Background(), usecase.ShowConfigTemplateInput{Config: cfg})

		require.NoError(t, err)
		assert.Contains(t, out.Template, "[runner]")
		assert.Contains(t, out.Template, "jobs = 6")
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := usecase.NewShowConfigTemplate().Execute(context.Background(), usecase.ShowConfigTemplateInput{})

		assert.ErrorIs(t, err, domain.ErrConfigNil)
	})
}
