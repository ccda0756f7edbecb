package tui

import (
	"time"

	"github.com/snowman2/cimatrix/internal/domain"
)

// Msg is the sealed interface for all TUI messages.
//
// go-sumtype:decl Msg
type Msg interface {
	sealed()
}

// MsgEvent carries a build event into the program.
// It holds copies, so the runner may keep mutating the build.
// Fields are ordered to minimize memory padding.
type MsgEvent struct {
	Time        time.Time
	Kind        domain.EventKind
	Command     string
	Reason      string
	State       domain.JobState
	BuildState  domain.BuildState
	Jobs        []domain.Job // Set for build_started
	Job         domain.Job
	ExitCode    int
	BuildNumber int
}

func (MsgEvent) sealed() {}

// NewMsgEvent copies the fields of e that the view needs.
func NewMsgEvent(e domain.Event) MsgEvent {
	msg := MsgEvent{
		Time: e.Time,
		Kind: e.Kind,
		Job:  e.Job,
	}
	if e.Build != nil {
		msg.BuildNumber = e.Build.Number
		msg.BuildState = e.Build.State
		if e.Kind == domain.EventBuildStarted {
			msg.Jobs = make([]domain.Job, len(e.Build.Jobs))
			for i, r := range e.Build.Jobs {
				msg.Jobs[i] = r.Job
			}
		}
	}
	if e.Command != nil {
		msg.Command = e.Command.Command
		msg.ExitCode = e.Command.ExitCode
	}
	if e.Result != nil {
		msg.State = e.Result.State
		msg.Reason = e.Result.Reason
	}
	return msg
}

// MsgBuildDone is sent when the build returned.
type MsgBuildDone struct {
	Err error
}

func (MsgBuildDone) sealed() {}
