// Package testutil provides shared test utilities and mock implementations.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/snowman2/cimatrix/internal/domain"
)

// MockClock is a test double for domain.Clock.
type MockClock struct {
	NowTime time.Time
}

// Now returns the configured time.
func (m *MockClock) Now() time.Time {
	return m.NowTime
}

// MockBuildRepository is a test double for domain.BuildRepository.
// Fields are ordered to minimize memory padding.
type MockBuildRepository struct {
	Builds  map[int]*domain.Build
	SaveErr error
	GetErr  error
	ListErr error
	Saves   int // Number of Save calls
	NextN   int
	mu      sync.Mutex
}

// NewMockBuildRepository creates a new MockBuildRepository with initialized maps.
func NewMockBuildRepository() *MockBuildRepository {
	return &MockBuildRepository{
		Builds: make(map[int]*domain.Build),
		NextN:  1,
	}
}

// Ensure MockBuildRepository implements domain.BuildRepository interface.
var _ domain.BuildRepository = (*MockBuildRepository)(nil)

// NextNumber returns the next build number.
func (m *MockBuildRepository) NextNumber() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.NextN
	m.NextN++
	return n, nil
}

// Save stores a copy of the build.
func (m *MockBuildRepository) Save(build *domain.Build) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saves++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	cp := *build
	cp.Jobs = slices.Clone(build.Jobs)
	m.Builds[build.Number] = &cp
	return nil
}

// Get returns a build by number.
func (m *MockBuildRepository) Get(number int) (*domain.Build, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return m.Builds[number], nil
}

// List returns builds ordered by number.
func (m *MockBuildRepository) List(limit int) ([]*domain.Build, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	builds := make([]*domain.Build, 0, len(m.Builds))
	for _, b := range m.Builds {
		builds = append(builds, b)
	}
	slices.SortFunc(builds, func(a, b *domain.Build) int { return a.Number - b.Number })
	if limit > 0 && len(builds) > limit {
		builds = builds[len(builds)-limit:]
	}
	return builds, nil
}

// Last returns the most recent build with a result.
func (m *MockBuildRepository) Last() (*domain.Build, error) {
	builds, err := m.List(0)
	if err != nil {
		return nil, err
	}
	for i := len(builds) - 1; i >= 0; i-- {
		if builds[i].State.HasResult() {
			return builds[i], nil
		}
	}
	return nil, nil
}

// MockBuildFileLoader is a test double for domain.BuildFileLoader.
type MockBuildFileLoader struct {
	BuildFile *domain.BuildFile
	Err       error
	Paths     []string // Paths passed to Load
}

// Ensure MockBuildFileLoader implements domain.BuildFileLoader interface.
var _ domain.BuildFileLoader = (*MockBuildFileLoader)(nil)

// Load returns the configured build file.
func (m *MockBuildFileLoader) Load(path string) (*domain.BuildFile, error) {
	m.Paths = append(m.Paths, path)
	if m.Err != nil {
		return nil, m.Err
	}
	bf := *m.BuildFile
	bf.Path = path
	return &bf, nil
}

// Parse returns the configured build file.
func (m *MockBuildFileLoader) Parse(_ []byte, path string) (*domain.BuildFile, error) {
	return m.Load(path)
}

// CommandHandler decides the outcome of a command in a MockSession.
type CommandHandler func(ctx context.Context, opts domain.SessionOptions, command string) (int, error)

// MockRuntime is a test double for domain.Runtime.
// Fields are ordered to minimize memory padding.
type MockRuntime struct {
	Handler  CommandHandler // nil runs every command successfully
	OpenErr  error
	RuntName string
	OSes     []string // Supported OS; empty supports all
	Sessions []*MockSession
	mu       sync.Mutex
}

// NewMockRuntime creates a runtime supporting every OS.
func NewMockRuntime(name string) *MockRuntime {
	return &MockRuntime{RuntName: name}
}

// Ensure MockRuntime implements domain.Runtime interface.
var _ domain.Runtime = (*MockRuntime)(nil)

// Name returns the runtime name.
func (m *MockRuntime) Name() string {
	return m.RuntName
}

// Supports reports whether os is listed.
func (m *MockRuntime) Supports(os string) bool {
	return len(m.OSes) == 0 || slices.Contains(m.OSes, os)
}

// Open records and returns a new session.
func (m *MockRuntime) Open(_ context.Context, opts domain.SessionOptions) (domain.Session, error) {
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	s := &MockSession{opts: opts, handler: m.Handler}
	m.mu.Lock()
	m.Sessions = append(m.Sessions, s)
	m.mu.Unlock()
	return s, nil
}

// Session returns the session opened for a job.
func (m *MockRuntime) Session(jobNumber string) *MockSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.Sessions {
		if s.opts.JobNumber == jobNumber {
			return s
		}
	}
	return nil
}

// MockSession is a test double for domain.Session.
type MockSession struct {
	handler  CommandHandler
	opts     domain.SessionOptions
	commands []string
	mu       sync.Mutex
	closed   bool
}

// Ensure MockSession implements domain.Session interface.
var _ domain.Session = (*MockSession)(nil)

// Run records the command, echoes it to stdout and asks the handler for
// the exit code.
func (m *MockSession) Run(ctx context.Context, command string) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return -1, domain.ErrSessionClosed
	}
	m.commands = append(m.commands, command)
	m.mu.Unlock()

	if m.opts.Stdout != nil {
		_, _ = fmt.Fprintf(m.opts.Stdout, "ran: %s\n", command)
	}
	if m.handler == nil {
		return 0, nil
	}
	code, err := m.handler(ctx, m.opts, command)
	if errors.Is(err, domain.ErrShellExited) {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
	}
	return code, err
}

// Close marks the session closed.
func (m *MockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Commands returns the commands run so far.
func (m *MockSession) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.commands)
}

// Options returns the options the session was opened with.
func (m *MockSession) Options() domain.SessionOptions {
	return m.opts
}

// Closed reports whether Close was called.
func (m *MockSession) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockRuntimeSelector is a test double for domain.RuntimeSelector.
type MockRuntimeSelector struct {
	Runtimes map[string]domain.Runtime
}

// NewMockRuntimeSelector creates a selector over runtimes keyed by name.
func NewMockRuntimeSelector(runtimes ...domain.Runtime) *MockRuntimeSelector {
	m := &MockRuntimeSelector{Runtimes: make(map[string]domain.Runtime)}
	for _, rt := range runtimes {
		m.Runtimes[rt.Name()] = rt
	}
	return m
}

// Ensure MockRuntimeSelector implements domain.RuntimeSelector interface.
var _ domain.RuntimeSelector = (*MockRuntimeSelector)(nil)

// Select returns the preferred runtime if it supports os.
func (m *MockRuntimeSelector) Select(preferred, os string) (domain.Runtime, error) {
	rt, ok := m.Runtimes[preferred]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownRuntime, preferred)
	}
	if !rt.Supports(os) {
		return nil, fmt.Errorf("%w %s", domain.ErrNoRuntime, os)
	}
	return rt, nil
}

// MockRepoInspector is a test double for domain.RepoInspector.
type MockRepoInspector struct {
	Info *domain.RepoInfo
	Err  error
}

// Ensure MockRepoInspector implements domain.RepoInspector interface.
var _ domain.RepoInspector = (*MockRepoInspector)(nil)

// Inspect returns the configured info, or ErrNotGitRepository if none.
func (m *MockRepoInspector) Inspect(_ string) (*domain.RepoInfo, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Info == nil {
		return nil, domain.ErrNotGitRepository
	}
	return m.Info, nil
}

// MockWorkspaceManager is a test double for domain.WorkspaceManager.
// Fields are ordered to minimize memory padding.
type MockWorkspaceManager struct {
	PrepareErr error
	Prepared   []string
	Released   []string
	Root       string // Workspaces are Root/<job number>
	mu         sync.Mutex
}

// Ensure MockWorkspaceManager implements domain.WorkspaceManager interface.
var _ domain.WorkspaceManager = (*MockWorkspaceManager)(nil)

// Prepare records the job and returns its path.
func (m *MockWorkspaceManager) Prepare(jobNumber string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PrepareErr != nil {
		return "", m.PrepareErr
	}
	m.Prepared = append(m.Prepared, jobNumber)
	return m.Root + "/" + jobNumber, nil
}

// Release records the job.
func (m *MockWorkspaceManager) Release(jobNumber string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Released = append(m.Released, jobNumber)
	return nil
}

// MockCacheStore is a test double for domain.CacheStore.
// Fields are ordered to minimize memory padding.
type MockCacheStore struct {
	Archives   map[string][]string // key → saved dirs
	RestoreErr error
	SaveErr    error
	Restored   []string // Keys passed to Restore
	mu         sync.Mutex
}

// NewMockCacheStore creates an empty cache store.
func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{Archives: make(map[string][]string)}
}

// Ensure MockCacheStore implements domain.CacheStore interface.
var _ domain.CacheStore = (*MockCacheStore)(nil)

// Key returns "<os>|<env>".
func (m *MockCacheStore) Key(job domain.Job, _ []string) string {
	return job.OS + "|" + job.Env.Key()
}

// Restore reports whether key was saved before.
func (m *MockCacheStore) Restore(key string, _ []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Restored = append(m.Restored, key)
	if m.RestoreErr != nil {
		return false, m.RestoreErr
	}
	_, ok := m.Archives[key]
	return ok, nil
}

// Save records dirs under key.
func (m *MockCacheStore) Save(key string, dirs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Archives[key] = slices.Clone(dirs)
	return nil
}

// MockEmailSender is a test double for domain.EmailSender.
type MockEmailSender struct {
	Err  error
	Sent []domain.EmailMessage
}

// Ensure MockEmailSender implements domain.EmailSender interface.
var _ domain.EmailSender = (*MockEmailSender)(nil)

// Send records the message.
func (m *MockEmailSender) Send(_ context.Context, msg domain.EmailMessage) error {
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

// WebhookCall records one Post.
type WebhookCall struct {
	URL     string
	Payload domain.WebhookPayload
}

// MockWebhookPoster is a test double for domain.WebhookPoster.
type MockWebhookPoster struct {
	Err   error
	Calls []WebhookCall
}

// Ensure MockWebhookPoster implements domain.WebhookPoster interface.
var _ domain.WebhookPoster = (*MockWebhookPoster)(nil)

// Post records the call.
func (m *MockWebhookPoster) Post(_ context.Context, url string, payload domain.WebhookPayload) error {
	m.Calls = append(m.Calls, WebhookCall{URL: url, Payload: payload})
	return m.Err
}

// MockConfigLoader is a test double for domain.ConfigLoader.
type MockConfigLoader struct {
	Config  *domain.Config
	LoadErr error
}

// NewMockConfigLoader creates a loader returning the default config.
func NewMockConfigLoader() *MockConfigLoader {
	return &MockConfigLoader{Config: domain.NewDefaultConfig()}
}

// Ensure MockConfigLoader implements domain.ConfigLoader interface.
var _ domain.ConfigLoader = (*MockConfigLoader)(nil)

// Load returns the configured config.
func (m *MockConfigLoader) Load() (*domain.Config, error) {
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return m.Config, nil
}

// LoadWithOptions returns the configured config.
func (m *MockConfigLoader) LoadWithOptions(_ domain.LoadConfigOptions) (*domain.Config, error) {
	return m.Load()
}

// MockConfigManager is a test double for domain.ConfigManager.
type MockConfigManager struct {
	InitRepoErr      error
	InitGlobalErr    error
	InitConfig       *domain.Config // Config passed to the last Init call
	RepoConfigInfo   domain.ConfigInfo
	GlobalConfigInfo domain.ConfigInfo
	InitRepoCalled   bool
	InitGlobalCalled bool
}

// NewMockConfigManager creates a new MockConfigManager.
func NewMockConfigManager() *MockConfigManager {
	return &MockConfigManager{
		RepoConfigInfo: domain.ConfigInfo{
			Path:   "/src/project/.cimatrix.toml",
			Exists: false,
		},
		GlobalConfigInfo: domain.ConfigInfo{
			Path:   "/home/test/.config/cimatrix/config.toml",
			Exists: false,
		},
	}
}

// Ensure MockConfigManager implements domain.ConfigManager interface.
var _ domain.ConfigManager = (*MockConfigManager)(nil)

// GetRepoConfigInfo returns the configured repo config info.
func (m *MockConfigManager) GetRepoConfigInfo() domain.ConfigInfo {
	return m.RepoConfigInfo
}

// GetGlobalConfigInfo returns the configured global config info.
func (m *MockConfigManager) GetGlobalConfigInfo() domain.ConfigInfo {
	return m.GlobalConfigInfo
}

// InitRepoConfig records the call and returns configured error.
func (m *MockConfigManager) InitRepoConfig(cfg *domain.Config) error {
	m.InitRepoCalled = true
	m.InitConfig = cfg
	return m.InitRepoErr
}

// InitGlobalConfig records the call and returns configured error.
func (m *MockConfigManager) InitGlobalConfig(cfg *domain.Config) error {
	m.InitGlobalCalled = true
	m.InitConfig = cfg
	return m.InitGlobalErr
}

// RecordingLogger is a domain.Logger that keeps every line.
type RecordingLogger struct {
	Lines []string
	mu    sync.Mutex
}

// Ensure RecordingLogger implements domain.Logger interface.
var _ domain.Logger = (*RecordingLogger)(nil)

func (l *RecordingLogger) record(level, jobNumber, category, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Lines = append(l.Lines, fmt.Sprintf("%s [%s] [%s] %s", level, jobNumber, category, msg))
}

// Info records an info line.
func (l *RecordingLogger) Info(jobNumber, category, msg string) {
	l.record("INFO", jobNumber, category, msg)
}

// Debug records a debug line.
func (l *RecordingLogger) Debug(jobNumber, category, msg string) {
	l.record("DEBUG", jobNumber, category, msg)
}

// Warn records a warn line.
func (l *RecordingLogger) Warn(jobNumber, category, msg string) {
	l.record("WARN", jobNumber, category, msg)
}

// Error records an error line.
func (l *RecordingLogger) Error(jobNumber, category, msg string) {
	l.record("ERROR", jobNumber, category, msg)
}

// Snapshot returns the recorded lines.
func (l *RecordingLogger) Snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.Lines)
}

// SyncBuffer is an io.Writer safe for concurrent use.
type SyncBuffer struct {
	buf []byte
	mu  sync.Mutex
}

// Ensure SyncBuffer implements io.Writer interface.
var _ io.Writer = (*SyncBuffer)(nil)

// Write appends p.
func (b *SyncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// String returns everything written so far.
func (b *SyncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
