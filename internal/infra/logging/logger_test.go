package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowman2/cimatrix/internal/domain"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo}, // default
		{"", slog.LevelInfo},        // default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseLevel(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLogger_Info(t *testing.T) {
	// Setup
	stateDir := t.TempDir()
	logger := New(stateDir, slog.LevelInfo)
	defer func() { _ = logger.Close() }()

	// Execute
	logger.Info("3.2", "job", "test message")

	// Verify global log
	content, err := os.ReadFile(domain.GlobalLogPath(stateDir))
	require.NoError(t, err)
	assert.Contains(t, string(content), "[INFO]")
	assert.Contains(t, string(content), "[job-3.2]")
	assert.Contains(t, string(content), "[job]")
	assert.Contains(t, string(content), "test message")

	// Verify job log
	jobContent, err := os.ReadFile(domain.JobLogPath(stateDir, 3, "3.2"))
	require.NoError(t, err)
	assert.Contains(t, string(jobContent), "[job-3.2]")
	assert.Contains(t, string(jobContent), "test message")
}

func TestLogger_GlobalLogOnly(t *testing.T) {
	// Setup
	stateDir := t.TempDir()
	logger := New(stateDir, slog.LevelInfo)
	defer func() { _ = logger.Close() }()

	// Execute
	logger.Info("", "build", "global message")

	// Verify global log
	content, err := os.ReadFile(domain.GlobalLogPath(stateDir))
	require.NoError(t, err)
	assert.Contains(t, string(content), "[global]")
	assert.Contains(t, string(content), "global message")

	entries, err := os.ReadDir(filepath.Join(stateDir, "logs"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the global log exists")
}

func TestLogger_LevelFiltering(t *testing.T) {
	// Setup
	stateDir := t.TempDir()
	logger := New(stateDir, slog.LevelWarn)
	defer func() { _ = logger.Close() }()

	// Execute
	logger.Debug("1.1", "job", "debug message")
	logger.Info("1.1", "job", "info message")
	logger.Warn("1.1", "job", "warn message")
	logger.Error("1.1", "job", "error message")

	// Verify
	content, err := os.ReadFile(domain.GlobalLogPath(stateDir))
	require.NoError(t, err)
	assert.NotContains(t, string(content), "debug message")
	assert.NotContains(t, string(content), "info message")
	assert.Contains(t, string(content), "warn message")
	assert.Contains(t, string(content), "error message")
}

func TestLogger_DisabledWhenEmptyStateDir(t *testing.T) {
	logger := New("", slog.LevelInfo)
	defer func() { _ = logger.Close() }()

	// Should not panic
	logger.Info("1.1", "job", "test message")
	logger.Debug("1.1", "job", "debug message")
	logger.Warn("", "build", "warn message")
	logger.Error("", "build", "error message")
}

func TestLogger_LogFormat(t *testing.T) {
	// Setup
	stateDir := t.TempDir()
	logger := New(stateDir, slog.LevelInfo)
	defer func() { _ = logger.Close() }()

	// Execute
	logger.Info("42.1", "usecase", `job started: "linux"`)

	// Verify format: [timestamp] [INFO] [job-42.1] [usecase] message
	content, err := os.ReadFile(domain.GlobalLogPath(stateDir))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Regexp(t, `^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] `, line)
	assert.Contains(t, line, "[INFO] [job-42.1] [usecase]")
	assert.Contains(t, line, `job started: "linux"`)
}

func TestLogger_MultipleJobFiles(t *testing.T) {
	// Setup
	stateDir := t.TempDir()
	logger := New(stateDir, slog.LevelInfo)
	defer func() { _ = logger.Close() }()

	// Execute
	logger.Info("1.1", "job", "message for job 1")
	logger.Info("1.2", "job", "message for job 2")
	logger.Info("1.1", "job", "another message for job 1")

	// Verify global log has all messages
	globalContent, err := os.ReadFile(domain.GlobalLogPath(stateDir))
	require.NoError(t, err)
	assert.Contains(t, string(globalContent), "message for job 1")
	assert.Contains(t, string(globalContent), "message for job 2")

	job1, err := os.ReadFile(domain.JobLogPath(stateDir, 1, "1.1"))
	require.NoError(t, err)
	assert.Contains(t, string(job1), "another message for job 1")
	assert.NotContains(t, string(job1), "message for job 2")

	job2, err := os.ReadFile(domain.JobLogPath(stateDir, 1, "1.2"))
	require.NoError(t, err)
	assert.NotContains(t, string(job2), "message for job 1")
}

func TestLogger_Close(t *testing.T) {
	stateDir := t.TempDir()
	logger := New(stateDir, slog.LevelInfo)
	logger.Info("1.1", "job", "test message")

	assert.NoError(t, logger.Close())
	assert.FileExists(t, domain.GlobalLogPath(stateDir))
	assert.FileExists(t, domain.JobLogPath(stateDir, 1, "1.1"))
}
