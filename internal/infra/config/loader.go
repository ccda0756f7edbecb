// Package config provides configuration loading functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/snowman2/cimatrix/internal/domain"
)

// Ensure Loader implements domain.ConfigLoader.
var _ domain.ConfigLoader = (*Loader)(nil)

// Loader loads configuration from TOML files.
type Loader struct {
	buildDir      string // Project root holding .cimatrix.toml
	globalConfDir string // Path to global config directory (e.g., ~/.config/cimatrix)
}

// NewLoader creates a new Loader.
func NewLoader(buildDir string) *Loader {
	return &Loader{
		buildDir:      buildDir,
		globalConfDir: defaultGlobalConfigDir(),
	}
}

// NewLoaderWithGlobalDir creates a new Loader with a custom global config directory.
// This is useful for testing.
func NewLoaderWithGlobalDir(buildDir, globalConfDir string) *Loader {
	return &Loader{
		buildDir:      buildDir,
		globalConfDir: globalConfDir,
	}
}

// defaultGlobalConfigDir returns the default global config directory.
func defaultGlobalConfigDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return domain.GlobalAppDir(configHome)
}

// Load returns the merged configuration (default <- global <- repo).
func (l *Loader) Load() (*domain.Config, error) {
	return l.LoadWithOptions(domain.LoadConfigOptions{})
}

// LoadGlobal returns only the global configuration.
func (l *Loader) LoadGlobal() (*domain.Config, error) {
	if l.globalConfDir == "" {
		return nil, os.ErrNotExist
	}
	return l.loadFile(filepath.Join(l.globalConfDir, domain.ConfigFileName))
}

// LoadRepo returns only the project configuration.
func (l *Loader) LoadRepo() (*domain.Config, error) {
	return l.loadFile(domain.RepoConfigPath(l.buildDir))
}

// LoadWithOptions returns the merged configuration with options to ignore sources.
func (l *Loader) LoadWithOptions(opts domain.LoadConfigOptions) (*domain.Config, error) {
	var global, repo *domain.Config
	var err error

	if !opts.IgnoreGlobal {
		global, err = l.LoadGlobal()
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if !opts.IgnoreRepo {
		repo, err = l.LoadRepo()
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	base := domain.NewDefaultConfig()

	// Merge: default <- global <- repo (later takes precedence)
	if global != nil {
		base = mergeConfigs(base, global)
	}
	if repo != nil {
		base = mergeConfigs(base, repo)
	}

	if err := base.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return base, nil
}

// loadFile loads a configuration from a file.
func (l *Loader) loadFile(path string) (*domain.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return convertRawToDomainConfig(raw), nil
}

// convertRawToDomainConfig converts the raw map to domain config and collects warnings.
func convertRawToDomainConfig(raw map[string]any) *domain.Config {
	res := &domain.Config{}
	var warnings []string

	for section, value := range raw {
		m, ok := value.(map[string]any)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("unknown key: %s", section))
			continue
		}
		switch section {
		case "runner":
			for k, v := range m {
				switch k {
				case "runtime":
					res.Runner.Runtime = asString(v)
				case "shell":
					res.Runner.Shell = asString(v)
				case "isolate":
					res.Runner.Isolate = asString(v)
				case "file":
					res.Runner.File = asString(v)
				case "jobs":
					res.Runner.Jobs = asInt(v)
				default:
					warnings = append(warnings, fmt.Sprintf("unknown key in [runner]: %s", k))
				}
			}
		case "container":
			for k, v := range m {
				switch k {
				case "engine":
					res.Container.Engine = asString(v)
				case "images":
					images, ok := v.(map[string]any)
					if !ok {
						warnings = append(warnings, "[container.images] must be a table")
						continue
					}
					res.Container.Images = make(map[string]string, len(images))
					for osName, image := range images {
						res.Container.Images[osName] = asString(image)
					}
				default:
					warnings = append(warnings, fmt.Sprintf("unknown key in [container]: %s", k))
				}
			}
		case "store":
			for k, v := range m {
				switch k {
				case "type":
					res.Store.Type = asString(v)
				default:
					warnings = append(warnings, fmt.Sprintf("unknown key in [store]: %s", k))
				}
			}
		case "cache":
			for k, v := range m {
				switch k {
				case "dir":
					res.Cache.Dir = asString(v)
				case "disabled":
					if b, ok := v.(bool); ok {
						res.Cache.Disabled = b
					}
				default:
					warnings = append(warnings, fmt.Sprintf("unknown key in [cache]: %s", k))
				}
			}
		case "log":
			for k, v := range m {
				switch k {
				case "level":
					res.Log.Level = asString(v)
				default:
					warnings = append(warnings, fmt.Sprintf("unknown key in [log]: %s", k))
				}
			}
		case "notify":
			warnings = append(warnings, parseNotifySection(m, &res.Notify)...)
		default:
			warnings = append(warnings, fmt.Sprintf("unknown section: %s", section))
		}
	}

	sort.Strings(warnings)
	res.Warnings = warnings
	return res
}

// parseNotifySection parses [notify] and [notify.smtp].
func parseNotifySection(m map[string]any, res *domain.NotifyConfig) []string {
	var warnings []string
	for k, v := range m {
		switch k {
		case "webhook_retries":
			res.WebhookRetries = asInt(v)
		case "webhook_timeout":
			res.WebhookTimeout = asString(v)
		case "smtp":
			smtp, ok := v.(map[string]any)
			if !ok {
				warnings = append(warnings, "[notify.smtp] must be a table")
				continue
			}
			for sk, sv := range smtp {
				switch sk {
				case "host":
					res.SMTP.Host = asString(sv)
				case "port":
					res.SMTP.Port = asInt(sv)
				case "from":
					res.SMTP.From = asString(sv)
				case "username":
					res.SMTP.Username = asString(sv)
				case "password_env":
					res.SMTP.PasswordEnv = asString(sv)
				default:
					warnings = append(warnings, fmt.Sprintf("unknown key in [notify.smtp]: %s", sk))
				}
			}
		default:
			warnings = append(warnings, fmt.Sprintf("unknown key in [notify]: %s", k))
		}
	}
	return warnings
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

// mergeConfigs merges two configs, with override taking precedence.
func mergeConfigs(base, override *domain.Config) *domain.Config {
	result := &domain.Config{
		Runner:    base.Runner,
		Container: base.Container,
		Store:     base.Store,
		Cache:     base.Cache,
		Log:       base.Log,
		Notify:    base.Notify,
		Warnings:  append([]string{}, base.Warnings...),
	}
	result.Warnings = append(result.Warnings, override.Warnings...)

	result.Container.Images = make(map[string]string, len(base.Container.Images))
	for osName, image := range base.Container.Images {
		result.Container.Images[osName] = image
	}
	for osName, image := range override.Container.Images {
		result.Container.Images[osName] = image
	}

	if override.Runner.Runtime != "" {
		result.Runner.Runtime = override.Runner.Runtime
	}
	if override.Runner.Shell != "" {
		result.Runner.Shell = override.Runner.Shell
	}
	if override.Runner.Isolate != "" {
		result.Runner.Isolate = override.Runner.Isolate
	}
	if override.Runner.File != "" {
		result.Runner.File = override.Runner.File
	}
	if override.Runner.Jobs > 0 {
		result.Runner.Jobs = override.Runner.Jobs
	}
	if override.Container.Engine != "" {
		result.Container.Engine = override.Container.Engine
	}
	if override.Store.Type != "" {
		result.Store.Type = override.Store.Type
	}
	if override.Cache.Dir != "" {
		result.Cache.Dir = override.Cache.Dir
	}
	if override.Cache.Disabled {
		result.Cache.Disabled = override.Cache.Disabled
	}
	if override.Log.Level != "" {
		result.Log.Level = override.Log.Level
	}
	if override.Notify.WebhookRetries > 0 {
		result.Notify.WebhookRetries = override.Notify.WebhookRetries
	}
	if override.Notify.WebhookTimeout != "" {
		result.Notify.WebhookTimeout = override.Notify.WebhookTimeout
	}
	smtp := override.Notify.SMTP
	if smtp.Host != "" {
		result.Notify.SMTP.Host = smtp.Host
	}
	if smtp.Port > 0 {
		result.Notify.SMTP.Port = smtp.Port
	}
	if smtp.From != "" {
		result.Notify.SMTP.From = smtp.From
	}
	if smtp.Username != "" {
		result.Notify.SMTP.Username = smtp.Username
	}
	if smtp.PasswordEnv != "" {
		result.Notify.SMTP.PasswordEnv = smtp.PasswordEnv
	}

	return result
}
