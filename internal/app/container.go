// Package app provides the dependency injection container for the application.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/snowman2/cimatrix/internal/domain"
	"github.com/snowman2/cimatrix/internal/infra/cache"
	"github.com/snowman2/cimatrix/internal/infra/config"
	"github.com/snowman2/cimatrix/internal/infra/git"
	"github.com/snowman2/cimatrix/internal/infra/gitstore"
	"github.com/snowman2/cimatrix/internal/infra/jsonstore"
	"github.com/snowman2/cimatrix/internal/infra/logging"
	"github.com/snowman2/cimatrix/internal/infra/notify"
	"github.com/snowman2/cimatrix/internal/infra/shell"
	"github.com/snowman2/cimatrix/internal/infra/travisfile"
	"github.com/snowman2/cimatrix/internal/infra/worktree"
	"github.com/snowman2/cimatrix/internal/usecase"
)

// Config holds the application paths.
type Config struct {
	BuildDir string // Project root; the git top level inside a repository
	StateDir string // Path to .cimatrix
	Home     string // Expands $HOME in cache directories
}

// newConfig resolves the build dir from dir.
func newConfig(dir string, repo *domain.RepoInfo) Config {
	buildDir := dir
	if repo != nil {
		buildDir = repo.Root
	}
	home, _ := os.UserHomeDir()
	return Config{
		BuildDir: buildDir,
		StateDir: domain.StateDir(buildDir),
		Home:     home,
	}
}

// Container provides dependency injection for the application.
// It holds all port implementations and provides factory methods for use cases.
type Container struct {
	// Ports (interfaces bound to implementations)
	Builds        domain.BuildRepository
	BuildFiles    domain.BuildFileLoader
	Runtimes      domain.RuntimeSelector
	Workspaces    domain.WorkspaceManager // nil outside a git repository
	Cache         domain.CacheStore       // nil when caching is disabled
	Repo          domain.RepoInspector
	Email         domain.EmailSender // nil when SMTP is not configured
	Webhooks      domain.WebhookPoster
	Clock         domain.Clock
	ConfigLoader  domain.ConfigLoader
	ConfigManager domain.ConfigManager
	JobLogger     domain.Logger

	// Pointer fields
	Logger    *slog.Logger
	AppConfig *domain.Config // Config at startup; use cases reload it
	closer    func() error

	// Configuration
	Config Config
}

// New creates a new Container for the project containing dir.
func New(dir string) (*Container, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve directory: %w", err)
	}

	gitClient := git.NewClient()
	repo, err := gitClient.Inspect(abs)
	if err != nil && !errors.Is(err, domain.ErrNotGitRepository) {
		return nil, err
	}
	cfg := newConfig(abs, repo)

	// Load app config; a broken file is reported when a command reloads it
	configLoader := config.NewLoader(cfg.BuildDir)
	appConfig, err := configLoader.Load()
	if err != nil {
		appConfig = domain.NewDefaultConfig()
	}

	if err := ensureStateDir(cfg.StateDir); err != nil {
		return nil, err
	}

	var builds domain.BuildRepository
	switch appConfig.Store.Type {
	case domain.StoreGit:
		gitStore, err := gitstore.New(cfg.BuildDir, gitstore.DefaultNamespace)
		if err != nil {
			return nil, fmt.Errorf("open git store: %w", err)
		}
		builds = gitStore
	default:
		builds = jsonstore.New(domain.BuildsStorePath(cfg.StateDir))
	}

	level := logging.ParseLevel(appConfig.Log.Level)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	jobLogger := logging.New(cfg.StateDir, level)

	c := &Container{
		Builds:        builds,
		BuildFiles:    travisfile.NewLoader(),
		Runtimes:      shell.NewDefaultRegistry(appConfig),
		Repo:          gitClient,
		Webhooks:      notify.NewWebhookPoster(appConfig.Notify.WebhookTimeoutDuration(), appConfig.Notify.WebhookRetries),
		Clock:         domain.RealClock{},
		ConfigLoader:  configLoader,
		ConfigManager: config.NewManager(cfg.BuildDir),
		JobLogger:     jobLogger,
		Logger:        logger,
		AppConfig:     appConfig,
		closer:        jobLogger.Close,
		Config:        cfg,
	}
	if repo != nil {
		c.Workspaces = worktree.NewClient(cfg.BuildDir, cfg.StateDir)
	}
	if !appConfig.Cache.Disabled {
		c.Cache = cache.New(cacheDir(appConfig, cfg))
	}
	if appConfig.Notify.SMTP.Host != "" {
		c.Email = notify.NewSMTPSender(appConfig.Notify.SMTP)
	}
	return c, nil
}

// NewWithDeps creates a new Container with custom dependencies for testing.
func NewWithDeps(cfg Config, builds domain.BuildRepository, loader domain.BuildFileLoader, clock domain.Clock, logger *slog.Logger) *Container {
	return &Container{
		Builds:     builds,
		BuildFiles: loader,
		Clock:      clock,
		JobLogger:  domain.NopLogger{},
		Logger:     logger,
		AppConfig:  domain.NewDefaultConfig(),
		Config:     cfg,
	}
}

// Close releases open log files.
func (c *Container) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// ensureStateDir creates the state directory with a .gitignore, so that
// logs, caches and worktrees never show up as uncommitted changes.
func ensureStateDir(stateDir string) error {
	if err := os.MkdirAll(stateDir, 0o750); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	ignore := filepath.Join(stateDir, ".gitignore")
	if _, err := os.Stat(ignore); err == nil {
		return nil
	}
	if err := os.WriteFile(ignore, []byte("*\n"), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", ignore, err)
	}
	return nil
}

func cacheDir(appConfig *domain.Config, cfg Config) string {
	dir := appConfig.Cache.Dir
	if dir == "" {
		return domain.CacheDir(cfg.StateDir)
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(cfg.BuildDir, dir)
}

// UseCase factory methods

// RunJobUseCase returns a new RunJob use case.
func (c *Container) RunJobUseCase() *usecase.RunJob {
	return usecase.NewRunJob(c.Runtimes, c.Cache, c.JobLogger, c.Clock, c.Config.StateDir, c.Config.Home)
}

// NotifyBuildUseCase returns a new NotifyBuild use case.
func (c *Container) NotifyBuildUseCase() *usecase.NotifyBuild {
	return usecase.NewNotifyBuild(c.Email, c.Webhooks, c.JobLogger)
}

// RunBuildUseCase returns a new RunBuild use case.
func (c *Container) RunBuildUseCase() *usecase.RunBuild {
	return usecase.NewRunBuild(
		c.ConfigLoader,
		c.BuildFiles,
		c.Builds,
		c.Repo,
		c.Workspaces,
		c.RunJobUseCase(),
		c.NotifyBuildUseCase(),
		c.JobLogger,
		c.Clock,
		c.Config.BuildDir,
	)
}

// ShowMatrixUseCase returns a new ShowMatrix use case.
func (c *Container) ShowMatrixUseCase() *usecase.ShowMatrix {
	return usecase.NewShowMatrix(c.ConfigLoader, c.BuildFiles, c.Builds, c.Config.BuildDir)
}

// ValidateBuildFileUseCase returns a new ValidateBuildFile use case.
func (c *Container) ValidateBuildFileUseCase() *usecase.ValidateBuildFile {
	return usecase.NewValidateBuildFile(c.ConfigLoader, c.BuildFiles, c.Config.BuildDir)
}

// CompileJobUseCase returns a new CompileJob use case.
func (c *Container) CompileJobUseCase() *usecase.CompileJob {
	return usecase.NewCompileJob(c.ConfigLoader, c.BuildFiles, c.Builds, c.Repo, c.Config.BuildDir)
}

// ListBuildsUseCase returns a new ListBuilds use case.
func (c *Container) ListBuildsUseCase() *usecase.ListBuilds {
	return usecase.NewListBuilds(c.Builds)
}

// ShowBuildUseCase returns a new ShowBuild use case.
func (c *Container) ShowBuildUseCase() *usecase.ShowBuild {
	return usecase.NewShowBuild(c.Builds)
}

// ShowLogsUseCase returns a new ShowLogs use case.
func (c *Container) ShowLogsUseCase() *usecase.ShowLogs {
	return usecase.NewShowLogs(c.Builds, c.Config.StateDir)
}

// ShowConfigUseCase returns a new ShowConfig use case.
func (c *Container) ShowConfigUseCase() *usecase.ShowConfig {
	return usecase.NewShowConfig(c.ConfigManager, c.ConfigLoader)
}

// ShowConfigTemplateUseCase returns a new ShowConfigTemplate use case.
func (c *Container) ShowConfigTemplateUseCase() *usecase.ShowConfigTemplate {
	return usecase.NewShowConfigTemplate()
}

// InitConfigUseCase returns a new InitConfig use case.
func (c *Container) InitConfigUseCase() *usecase.InitConfig {
	return usecase.NewInitConfig(c.ConfigManager)
}
