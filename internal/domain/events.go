package domain

import "time"

// EventKind identifies a build progress event.
type EventKind string

const (
	EventBuildStarted    EventKind = "build_started"
	EventJobStarted      EventKind = "job_started"
	EventCommandStarted  EventKind = "command_started"
	EventCommandFinished EventKind = "command_finished"
	EventJobFinished     EventKind = "job_finished"
	EventBuildFinished   EventKind = "build_finished"
)

// Event reports build progress to the CLI and TUI.
// Only the fields relevant to Kind are set.
// Fields are ordered to minimize memory padding.
type Event struct {
	Time    time.Time
	Build   *Build
	Command *CommandResult
	Result  *JobResult
	Kind    EventKind
	Job     Job
}

// EventHandler receives events. It may be called from several goroutines.
type EventHandler func(Event)

// Emit calls h if it is set.
func (h EventHandler) Emit(e Event) {
	if h != nil {
		h(e)
	}
}
