package usecase

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/snowman2/cimatrix/internal/domain"
	"github.com/snowman2/cimatrix/internal/usecase/shared"
)

// ShowLogsInput contains the parameters for showing job logs.
type ShowLogsInput struct {
	Job         string // Job number, e.g. 3.2
	Lines       int    // Number of lines to display from the end (0 = all)
	Diagnostics bool   // Show the runner's log instead of command output
}

// ShowLogsOutput contains the result of showing job logs.
type ShowLogsOutput struct {
	LogPath string // Path to the log file
	Content string // Log file content
}

// ShowLogs is the use case for viewing the output of a job.
type ShowLogs struct {
	builds   domain.BuildRepository
	stateDir string
}

// NewShowLogs creates a new ShowLogs use case.
func NewShowLogs(
	builds domain.BuildRepository,
	stateDir string,
) *ShowLogs {
	return &ShowLogs{
		builds:   builds,
		stateDir: stateDir,
	}
}

// Execute reads and returns the job log content.
func (uc *ShowLogs) Execute(_ context.Context, in ShowLogsInput) (*ShowLogsOutput, error) {
	buildNumber, _, ok := domain.ParseJobNumber(in.Job)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a job number", domain.ErrJobNotFound, in.Job)
	}

	// Verify the job exists
	build, err := shared.GetBuild(uc.builds, buildNumber)
	if err != nil {
		return nil, err
	}
	result, ok := build.Job(in.Job)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, in.Job)
	}

	logPath := result.LogPath
	if logPath == "" {
		logPath = domain.JobOutputPath(uc.stateDir, buildNumber, in.Job)
	}
	if in.Diagnostics {
		logPath = domain.JobLogPath(uc.stateDir, buildNumber, in.Job)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no log file found for job %s (state %s)", in.Job, result.State)
		}
		return nil, fmt.Errorf("read log file: %w", err)
	}

	// If lines is specified, get only the last N lines
	out := strings.TrimRight(string(content), "\n")
	if in.Lines > 0 {
		lines := strings.Split(out, "\n")
		if len(lines) > in.Lines {
			lines = lines[len(lines)-in.Lines:]
		}
		out = strings.Join(lines, "\n")
	}

	return &ShowLogsOutput{
		LogPath: logPath,
		Content: out,
	}, nil
}
