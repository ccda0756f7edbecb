// Package logging provides file-based logging for cimatrix.
// It outputs logs to both a global log file (.cimatrix/logs/cimatrix.log)
// and job-specific log files (.cimatrix/logs/build-B/job-B.N.log).
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/snowman2/cimatrix/internal/domain"
)

// Ensure Logger implements domain.Logger interface.
var _ domain.Logger = (*Logger)(nil)

// Logger wraps slog.Logger with file-based output support.
// Fields are ordered to minimize memory padding.
type Logger struct {
	globalFile *os.File
	jobFiles   map[string]*os.File
	stateDir   string
	mu         sync.Mutex
	level      slog.Level
}

// New creates a new Logger that writes under the state directory.
// If stateDir is empty, logging is disabled (returns a no-op logger).
func New(stateDir string, level slog.Level) *Logger {
	return &Logger{
		stateDir: stateDir,
		level:    level,
		jobFiles: make(map[string]*os.File),
	}
}

// ParseLevel parses a log level string into slog.Level.
func ParseLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ensureDir creates the parent directory of path if it doesn't exist.
func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o750)
}

// ensureGlobalFile opens or returns the global log file.
func (l *Logger) ensureGlobalFile() (*os.File, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.globalFile != nil {
		return l.globalFile, nil
	}

	path := domain.GlobalLogPath(l.stateDir)
	if err := ensureDir(path); err != nil {
		return nil, fmt.Errorf("create logs directory: %w", err)
	}

	// G302: Log files are append-only and need read access by repository users
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) //nolint:gosec // Log file readable by owner and group
	if err != nil {
		return nil, fmt.Errorf("open global log file: %w", err)
	}
	l.globalFile = f
	return f, nil
}

// ensureJobFile opens or returns the job log file.
func (l *Logger) ensureJobFile(jobNumber string, buildNumber int) (*os.File, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if f, ok := l.jobFiles[jobNumber]; ok {
		return f, nil
	}

	path := domain.JobLogPath(l.stateDir, buildNumber, jobNumber)
	if err := ensureDir(path); err != nil {
		return nil, fmt.Errorf("create logs directory: %w", err)
	}

	// G302: Log files are append-only and need read access by repository users
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) //nolint:gosec // Log file readable by owner and group
	if err != nil {
		return nil, fmt.Errorf("open job log file: %w", err)
	}
	l.jobFiles[jobNumber] = f
	return f, nil
}

// Close closes all open log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var lastErr error
	if l.globalFile != nil {
		if err := l.globalFile.Close(); err != nil {
			lastErr = err
		}
		l.globalFile = nil
	}
	for n, f := range l.jobFiles {
		if err := f.Close(); err != nil {
			lastErr = err
		}
		delete(l.jobFiles, n)
	}
	return lastErr
}

// formatLog formats a log entry in the specified format.
// Format: [2025-12-30 09:32:51] [INFO] [job-1.2] [category] message
func formatLog(t time.Time, level slog.Level, jobNumber, category, msg string) string {
	levelStr := levelToString(level)
	scope := "global"
	if jobNumber != "" {
		scope = "job-" + jobNumber
	}
	return fmt.Sprintf("[%s] [%s] [%s] [%s] %s\n",
		t.Format("2006-01-02 15:04:05"),
		levelStr,
		scope,
		category,
		msg,
	)
}

func levelToString(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "DEBUG"
	case slog.LevelInfo:
		return "INFO"
	case slog.LevelWarn:
		return "WARN"
	case slog.LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// log writes a log entry to appropriate files based on jobNumber.
// If jobNumber is empty, logs only to global log.
// Otherwise logs to both global and job-specific log.
func (l *Logger) log(level slog.Level, jobNumber, category, msg string) {
	if l.stateDir == "" {
		return // Logging disabled
	}

	if level < l.level {
		return // Skip if below minimum level
	}

	now := time.Now()
	entry := formatLog(now, level, jobNumber, category, msg)

	// Write to global log
	if gf, err := l.ensureGlobalFile(); err == nil {
		_, _ = io.WriteString(gf, entry)
	}

	// Write to job log if jobNumber names a job
	if build, _, ok := domain.ParseJobNumber(jobNumber); ok {
		if jf, err := l.ensureJobFile(jobNumber, build); err == nil {
			_, _ = io.WriteString(jf, entry)
		}
	}
}

// Info logs an info message.
func (l *Logger) Info(jobNumber, category, msg string) {
	l.log(slog.LevelInfo, jobNumber, category, msg)
}

// Debug logs a debug message.
func (l *Logger) Debug(jobNumber, category, msg string) {
	l.log(slog.LevelDebug, jobNumber, category, msg)
}

// Warn logs a warning message.
func (l *Logger) Warn(jobNumber, category, msg string) {
	l.log(slog.LevelWarn, jobNumber, category, msg)
}

// Error logs an error message.
func (l *Logger) Error(jobNumber, category, msg string) {
	l.log(slog.LevelError, jobNumber, category, msg)
}
