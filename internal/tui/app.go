// Package tui renders live build progress with bubbletea.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/snowman2/cimatrix/internal/domain"
)

// jobRow is the live state of one job.
// Fields are ordered to minimize memory padding.
type jobRow struct {
	startedAt  time.Time
	finishedAt time.Time
	state      domain.JobState
	command    string
	reason     string
	job        domain.Job
}

// Model is the bubbletea model of a running build.
type Model struct {
	// Dependencies (pointers first for alignment)
	clock  domain.Clock
	cancel context.CancelFunc
	err    error

	// State
	rows  []*jobRow
	index map[string]*jobRow

	// Components
	keys    KeyMap
	styles  Styles
	help    help.Model
	spinner spinner.Model

	buildState  domain.BuildState
	title       string
	startedAt   time.Time
	width       int
	buildNumber int
	canceling   bool
	done        bool
	details     bool
}

// New creates a build view. cancel stops the build when the user asks to.
func New(title string, clock domain.Clock, cancel context.CancelFunc) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = DefaultStyles().StateStarted.UnsetWidth()

	return &Model{
		clock:      clock,
		cancel:     cancel,
		index:      make(map[string]*jobRow),
		keys:       DefaultKeyMap(),
		styles:     DefaultStyles(),
		help:       help.New(),
		spinner:    s,
		buildState: domain.BuildCreated,
		title:      title,
		details:    true,
	}
}

// Init starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Err returns the error the build returned, if any.
func (m *Model) Err() error {
	return m.err
}

// Done returns true once the build returned.
func (m *Model) Done() bool {
	return m.done
}

// row returns the row of a job, adding it when it was not announced.
func (m *Model) row(job domain.Job) *jobRow {
	if r, ok := m.index[job.Number]; ok {
		return r
	}
	r := &jobRow{job: job, state: domain.JobCreated}
	m.rows = append(m.rows, r)
	m.index[job.Number] = r
	return r
}

// counts returns how many jobs are in each state.
func (m *Model) counts() map[domain.JobState]int {
	counts := make(map[domain.JobState]int, 6)
	for _, r := range m.rows {
		counts[r.state]++
	}
	return counts
}
