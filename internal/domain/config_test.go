package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, RuntimeNative, cfg.Runner.Runtime)
	assert.Equal(t, DefaultJobs, cfg.Runner.Jobs)
	assert.Equal(t, IsolateAuto, cfg.Runner.Isolate)
	assert.Equal(t, ".travis.yml", cfg.Runner.File)
	assert.Equal(t, "ubuntu:22.04", cfg.Container.Images[OSLinux])
	assert.Equal(t, StoreJSON, cfg.Store.Type)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"unknown runtime", func(c *Config) { c.Runner.Runtime = "vm" }, ErrUnknownRuntime},
		{"unknown store", func(c *Config) { c.Store.Type = "sqlite" }, ErrInvalidStoreType},
		{"bad isolate", func(c *Config) { c.Runner.Isolate = "chroot" }, nil},
		{"zero jobs", func(c *Config) { c.Runner.Jobs = 0 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			assert.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestNotifyConfig_WebhookTimeoutDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, NotifyConfig{WebhookTimeout: "5s"}.WebhookTimeoutDuration())
	assert.Equal(t, 30*time.Second, NotifyConfig{WebhookTimeout: "soon"}.WebhookTimeoutDuration())
	assert.Equal(t, 30*time.Second, NotifyConfig{}.WebhookTimeoutDuration())
}

func TestRenderConfigTemplate(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Container.Images[OSMacOS] = "sickcodes/docker-osx"

	out := RenderConfigTemplate(cfg)

	assert.Contains(t, out, `runtime = "native"`)
	assert.Contains(t, out, "jobs = 2")
	assert.Contains(t, out, `engine = "docker"`)
	assert.Contains(t, out, "linux = \"ubuntu:22.04\"\nosx = \"sickcodes/docker-osx\"")
	assert.Contains(t, out, `type = "json"`)
	assert.Contains(t, out, "webhook_retries = 3")
}
