package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/snowman2/cimatrix/internal/domain"
)

// Update handles messages and updates the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case MsgEvent:
		m.applyEvent(msg)
		return m, nil

	case MsgBuildDone:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

// handleKey handles keyboard input.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		if !m.canceling && m.cancel != nil {
			m.canceling = true
			m.cancel()
		}
	case key.Matches(msg, m.keys.Details):
		m.details = !m.details
	}
	return m, nil
}

// applyEvent records an event in the job rows.
func (m *Model) applyEvent(e MsgEvent) {
	switch e.Kind {
	case domain.EventBuildStarted:
		m.buildNumber = e.BuildNumber
		m.buildState = domain.BuildStarted
		m.startedAt = e.Time
		for _, job := range e.Jobs {
			m.row(job)
		}

	case domain.EventJobStarted:
		r := m.row(e.Job)
		r.state = domain.JobStarted
		r.startedAt = e.Time

	case domain.EventCommandStarted:
		r := m.row(e.Job)
		r.command = e.Command

	case domain.EventCommandFinished:
		r := m.row(e.Job)
		if r.command == e.Command {
			r.command = ""
		}

	case domain.EventJobFinished:
		r := m.row(e.Job)
		r.state = e.State
		r.reason = e.Reason
		r.command = ""
		r.finishedAt = e.Time
		if r.startedAt.IsZero() {
			r.startedAt = e.Time
		}

	case domain.EventBuildFinished:
		m.buildState = e.BuildState
	}
}
