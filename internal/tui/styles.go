package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/snowman2/cimatrix/internal/domain"
)

// Colors defines the color palette for the TUI and styled CLI output.
var Colors = struct {
	// Base colors
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Muted     lipgloss.Color
	Error     lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color

	// Text colors
	Text      lipgloss.Color
	TextMuted lipgloss.Color

	// State colors
	Created  lipgloss.Color
	Started  lipgloss.Color
	Passed   lipgloss.Color
	Failed   lipgloss.Color
	Errored  lipgloss.Color
	Canceled lipgloss.Color
}{
	Primary:   lipgloss.Color("#6C5CE7"), // Purple
	Secondary: lipgloss.Color("#A29BFE"), // Lavender
	Muted:     lipgloss.Color("#636E72"), // Gray
	Error:     lipgloss.Color("#D63031"), // Red
	Success:   lipgloss.Color("#00B894"), // Green
	Warning:   lipgloss.Color("#FDCB6E"), // Yellow

	Text:      lipgloss.Color("#DFE6E9"), // Light gray
	TextMuted: lipgloss.Color("#B2BEC3"),

	Created:  lipgloss.Color("#74B9FF"), // Light blue
	Started:  lipgloss.Color("#FDCB6E"), // Yellow
	Passed:   lipgloss.Color("#00B894"), // Green
	Failed:   lipgloss.Color("#D63031"), // Red
	Errored:  lipgloss.Color("#E17055"), // Orange
	Canceled: lipgloss.Color("#636E72"), // Gray
}

// Styles contains all the lipgloss styles for the build view.
type Styles struct {
	// App
	App lipgloss.Style

	// Header
	Header     lipgloss.Style
	HeaderText lipgloss.Style
	HeaderInfo lipgloss.Style

	// Job rows
	JobNumber    lipgloss.Style
	JobLabel     lipgloss.Style
	JobCommand   lipgloss.Style
	JobReason    lipgloss.Style
	JobDuration  lipgloss.Style
	AllowFailure lipgloss.Style

	// State badges
	StateCreated  lipgloss.Style
	StateStarted  lipgloss.Style
	StatePassed   lipgloss.Style
	StateFailed   lipgloss.Style
	StateErrored  lipgloss.Style
	StateCanceled lipgloss.Style

	// Footer
	Footer  lipgloss.Style
	Warning lipgloss.Style

	// Error
	ErrorMsg lipgloss.Style
}

// DefaultStyles returns the default styles for the TUI.
func DefaultStyles() Styles {
	badge := lipgloss.NewStyle().Width(9)
	return Styles{
		App: lipgloss.NewStyle().
			Padding(1, 2),

		Header: lipgloss.NewStyle().
			Foreground(Colors.Primary).
			MarginBottom(1),

		HeaderText: lipgloss.NewStyle().
			Bold(true).
			Foreground(Colors.Primary),

		HeaderInfo: lipgloss.NewStyle().
			Foreground(Colors.Muted),

		JobNumber: lipgloss.NewStyle().
			Foreground(Colors.Secondary).
			Width(7),

		JobLabel: lipgloss.NewStyle().
			Foreground(Colors.Text),

		JobCommand: lipgloss.NewStyle().
			Foreground(Colors.TextMuted).
			Italic(true),

		JobReason: lipgloss.NewStyle().
			Foreground(Colors.Error),

		JobDuration: lipgloss.NewStyle().
			Foreground(Colors.Muted).
			Width(8).
			Align(lipgloss.Right),

		AllowFailure: lipgloss.NewStyle().
			Foreground(Colors.Muted).
			Italic(true),

		StateCreated:  badge.Foreground(Colors.Created),
		StateStarted:  badge.Foreground(Colors.Started).Bold(true),
		StatePassed:   badge.Foreground(Colors.Passed).Bold(true),
		StateFailed:   badge.Foreground(Colors.Failed).Bold(true),
		StateErrored:  badge.Foreground(Colors.Errored).Bold(true),
		StateCanceled: badge.Foreground(Colors.Canceled),

		Footer: lipgloss.NewStyle().
			Foreground(Colors.Muted).
			MarginTop(1),

		Warning: lipgloss.NewStyle().
			Foreground(Colors.Warning),

		ErrorMsg: lipgloss.NewStyle().
			Foreground(Colors.Error).
			Bold(true),
	}
}

// JobStateStyle returns the badge style for a job state.
func (s Styles) JobStateStyle(state domain.JobState) lipgloss.Style {
	switch state {
	case domain.JobStarted:
		return s.StateStarted
	case domain.JobPassed:
		return s.StatePassed
	case domain.JobFailed:
		return s.StateFailed
	case domain.JobErrored:
		return s.StateErrored
	case domain.JobCanceled:
		return s.StateCanceled
	default:
		return s.StateCreated
	}
}

// BuildStateStyle returns the badge style for a build state.
func (s Styles) BuildStateStyle(state domain.BuildState) lipgloss.Style {
	switch state {
	case domain.BuildStarted:
		return s.StateStarted
	case domain.BuildPassed:
		return s.StatePassed
	case domain.BuildFailed:
		return s.StateFailed
	case domain.BuildErrored:
		return s.StateErrored
	case domain.BuildCanceled:
		return s.StateCanceled
	default:
		return s.StateCreated
	}
}

// JobStateIcon returns the icon for a job state.
func JobStateIcon(state domain.JobState) string {
	switch state {
	case domain.JobCreated:
		return "○"
	case domain.JobStarted:
		return "●"
	case domain.JobPassed:
		return "✓"
	case domain.JobFailed:
		return "✗"
	case domain.JobErrored:
		return "!"
	case domain.JobCanceled:
		return "−"
	default:
		return "?"
	}
}
