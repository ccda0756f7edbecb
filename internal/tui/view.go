package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/snowman2/cimatrix/internal/domain"
)

// View renders the model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.headerView())
	b.WriteString("\n")

	for _, r := range m.rows {
		b.WriteString(m.rowView(r))
		b.WriteString("\n")
	}

	b.WriteString(m.footerView())
	return m.styles.App.Render(b.String())
}

// headerView renders the build title, state and elapsed time.
func (m *Model) headerView() string {
	title := m.title
	if m.buildNumber > 0 {
		title = fmt.Sprintf("%s  build #%d", m.title, m.buildNumber)
	}
	info := m.styles.BuildStateStyle(m.buildState).UnsetWidth().Render(string(m.buildState))
	if !m.startedAt.IsZero() {
		info += m.styles.HeaderInfo.Render("  " + FormatDuration(m.clock.Now().Sub(m.startedAt)))
	}
	return m.styles.Header.Render(m.styles.HeaderText.Render(title) + "  " + info)
}

// rowView renders one job and, with details on, its current command or reason.
func (m *Model) rowView(r *jobRow) string {
	icon := JobStateIcon(r.state)
	if r.state == domain.JobStarted && !m.done {
		icon = m.spinner.View()
	}

	line := fmt.Sprintf("%s %s %s %s %s",
		m.styles.JobStateStyle(r.state).UnsetWidth().Render(icon),
		m.styles.JobNumber.Render(r.job.Number),
		m.styles.JobStateStyle(r.state).Render(string(r.state)),
		m.styles.JobDuration.Render(m.rowDuration(r)),
		m.styles.JobLabel.Render(r.job.Label()),
	)
	if r.job.AllowFailure {
		line += " " + m.styles.AllowFailure.Render("(allowed to fail)")
	}

	if !m.details {
		return line
	}
	switch {
	case r.command != "":
		line += "\n" + strings.Repeat(" ", 12) + m.styles.JobCommand.Render("$ "+truncate(firstLine(r.command), m.width-14))
	case r.reason != "" && r.state != domain.JobPassed:
		line += "\n" + strings.Repeat(" ", 12) + m.styles.JobReason.Render(truncate(r.reason, m.width-12))
	}
	return line
}

// rowDuration returns the run time of a job so far.
func (m *Model) rowDuration(r *jobRow) string {
	switch {
	case r.startedAt.IsZero():
		return ""
	case r.finishedAt.IsZero():
		return FormatDuration(m.clock.Now().Sub(r.startedAt))
	default:
		return FormatDuration(r.finishedAt.Sub(r.startedAt))
	}
}

// footerView renders job counts, errors and key help.
func (m *Model) footerView() string {
	counts := m.counts()
	var parts []string
	for _, state := range []domain.JobState{
		domain.JobPassed, domain.JobFailed, domain.JobErrored,
		domain.JobCanceled, domain.JobStarted, domain.JobCreated,
	} {
		if n := counts[state]; n > 0 {
			parts = append(parts, m.styles.JobStateStyle(state).UnsetWidth().Render(fmt.Sprintf("%d %s", n, stateLabel(state))))
		}
	}

	var b strings.Builder
	b.WriteString(strings.Join(parts, ", "))
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(m.styles.ErrorMsg.Render("Error: " + m.err.Error()))
	}
	b.WriteString("\n")
	switch {
	case m.done:
	case m.canceling:
		b.WriteString(m.styles.Warning.Render("canceling build, waiting for running jobs..."))
	default:
		b.WriteString(m.help.View(m.keys))
	}
	return m.styles.Footer.Render(b.String())
}

// stateLabel names a job state in the footer counts.
func stateLabel(state domain.JobState) string {
	switch state {
	case domain.JobStarted:
		return "running"
	case domain.JobCreated:
		return "queued"
	default:
		return string(state)
	}
}

// FormatDuration renders a duration rounded to seconds, e.g. 1m05s.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}

// truncate shortens s to width terminal cells, ignoring widths too small to matter.
func truncate(s string, width int) string {
	if width < 10 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}

// firstLine returns the first line of a multi-line command.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
