package tui

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/snowman2/cimatrix/internal/domain"
)

func TestView_ShowsJobsAndCounts(t *testing.T) {
	// Setup
	m, _ := newTestModel(t)
	jobs := testJobs()
	m.Update(MsgEvent{Kind: domain.EventJobStarted, Time: testStart, Job: jobs[0]})
	m.Update(MsgEvent{Kind: domain.EventCommandStarted, Job: jobs[0], Command: "pytest\n--cov"})

	// Execute
	view := m.View()

	// Assert
	assert.Contains(t, view, "build #4")
	assert.Contains(t, view, "4.1")
	assert.Contains(t, view, "4.2")
	assert.Contains(t, view, "(allowed to fail)")
	assert.Contains(t, view, "$ pytest ...")
	assert.Contains(t, view, "1 running")
	assert.Contains(t, view, "1 queued")
	assert.Contains(t, view, "cancel build")
}

func TestView_ShowsReasonAndError(t *testing.T) {
	// Setup
	m, _ := newTestModel(t)
	m.Update(MsgEvent{Kind: domain.EventJobFinished, Time: testStart, Job: testJobs()[0], State: domain.JobErrored, Reason: `install command "pip" exited with 1`})
	m.Update(MsgBuildDone{Err: errors.New("boom")})

	// Execute
	view := m.View()

	// Assert
	assert.Contains(t, view, `install command "pip" exited with 1`)
	assert.Contains(t, view, "1 errored")
	assert.Contains(t, view, "Error: boom")
	assert.NotContains(t, view, "cancel build")
}

func TestView_Canceling(t *testing.T) {
	m, _ := newTestModel(t)
	m.canceling = true

	assert.Contains(t, m.View(), "canceling build")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		want string
		d    time.Duration
	}{
		{"0s", -time.Second},
		{"0s", 0},
		{"2s", 1500 * time.Millisecond},
		{"59s", 59 * time.Second},
		{"1m05s", 65 * time.Second},
		{"1h01m", time.Hour + time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.d))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 40))
	assert.Equal(t, "abcdefghijklmno", truncate("abcdefghijklmno", 5))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "日本語...", truncate("日本語のコマンド", 10))
}

func TestJobStateIcon(t *testing.T) {
	tests := []struct {
		state domain.JobState
		want  string
	}{
		{domain.JobCreated, "○"},
		{domain.JobStarted, "●"},
		{domain.JobPassed, "✓"},
		{domain.JobFailed, "✗"},
		{domain.JobErrored, "!"},
		{domain.JobCanceled, "−"},
		{domain.JobState("unknown"), "?"},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.want, JobStateIcon(tt.state))
		})
	}
}

func TestStyles_StateStyles(t *testing.T) {
	styles := DefaultStyles()
	for _, state := range []domain.JobState{domain.JobCreated, domain.JobStarted, domain.JobPassed, domain.JobFailed, domain.JobErrored, domain.JobCanceled} {
		assert.NotEmpty(t, styles.JobStateStyle(state).Render(string(state)))
	}
	for _, state := range []domain.BuildState{domain.BuildCreated, domain.BuildStarted, domain.BuildPassed, domain.BuildFailed, domain.BuildErrored, domain.BuildCanceled} {
		assert.NotEmpty(t, styles.BuildStateStyle(state).Render(string(state)))
	}
}
