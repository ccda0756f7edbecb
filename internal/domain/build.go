package domain

import (
	"slices"
	"time"
)

// JobState represents the lifecycle state of a job.
type JobState string

const (
	JobCreated  JobState = "created"  // Queued
	JobStarted  JobState = "started"  // Running
	JobPassed   JobState = "passed"   // Every command succeeded
	JobFailed   JobState = "failed"   // A script command failed
	JobErrored  JobState = "errored"  // A setup command failed, or the job could not run
	JobCanceled JobState = "canceled" // Stopped before it finished
)

// IsFinished returns true if the state is terminal.
func (s JobState) IsFinished() bool {
	switch s {
	case JobPassed, JobFailed, JobErrored, JobCanceled:
		return true
	}
	return false
}

// IsBroken returns true for failed or errored.
func (s JobState) IsBroken() bool {
	return s == JobFailed || s == JobErrored
}

// BuildState represents the lifecycle state of a build.
type BuildState string

const (
	BuildCreated  BuildState = "created"
	BuildStarted  BuildState = "started"
	BuildPassed   BuildState = "passed"
	BuildFailed   BuildState = "failed"
	BuildErrored  BuildState = "errored"
	BuildCanceled BuildState = "canceled"
)

// IsFinished returns true if the state is terminal.
func (s BuildState) IsFinished() bool {
	switch s {
	case BuildPassed, BuildFailed, BuildErrored, BuildCanceled:
		return true
	}
	return false
}

// HasResult returns true if the build concluded on its own, so its state
// is a pass or fail verdict. Canceled builds have none.
func (s BuildState) HasResult() bool {
	return s.IsFinished() && s != BuildCanceled
}

// CommandResult records one executed command.
// Fields are ordered to minimize memory padding.
type CommandResult struct {
	Phase    Phase         `json:"phase" yaml:"phase"`
	Command  string        `json:"command" yaml:"command"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Index    int           `json:"index" yaml:"index"`
	ExitCode int           `json:"exit_code" yaml:"exit_code"`
}

// JobResult records the outcome of one job.
// Fields are ordered to minimize memory padding.
type JobResult struct {
	StartedAt  time.Time       `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time       `json:"finished_at" yaml:"finished_at"`
	State      JobState        `json:"state" yaml:"state"`
	Reason     string          `json:"reason,omitempty" yaml:"reason,omitempty"`
	Runtime    string          `json:"runtime,omitempty" yaml:"runtime,omitempty"`
	LogPath    string          `json:"log_path,omitempty" yaml:"log_path,omitempty"`
	Commands   []CommandResult `json:"commands,omitempty" yaml:"commands,omitempty"`
	Job        Job             `json:"job" yaml:"job"`
}

// Duration returns how long the job ran.
func (r JobResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Build records one run of a build file.
// Fields are ordered to minimize memory padding.
type Build struct {
	StartedAt  time.Time   `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time   `json:"finished_at" yaml:"finished_at"`
	State      BuildState  `json:"state" yaml:"state"`
	File       string      `json:"file" yaml:"file"`
	Branch     string      `json:"branch,omitempty" yaml:"branch,omitempty"`
	Commit     string      `json:"commit,omitempty" yaml:"commit,omitempty"`
	Jobs       []JobResult `json:"jobs" yaml:"jobs"`
	Number     int         `json:"number" yaml:"number"`
	FastFinish bool        `json:"fast_finish" yaml:"fast_finish"`
}

// Duration returns how long the build ran.
func (b *Build) Duration() time.Duration {
	if b.StartedAt.IsZero() || b.FinishedAt.IsZero() {
		return 0
	}
	return b.FinishedAt.Sub(b.StartedAt)
}

// Job returns the result of a job by number.
func (b *Build) Job(number string) (*JobResult, bool) {
	for i := range b.Jobs {
		if b.Jobs[i].Job.Number == number {
			return &b.Jobs[i], true
		}
	}
	return nil, false
}

// ConcludeBuild derives the build state from job results.
// Allowed-to-fail jobs never affect the result. Among required jobs an
// errored job wins over a failed one, and an unfinished or canceled job
// makes the build canceled.
func ConcludeBuild(results []JobResult) BuildState {
	var failed, errored, canceled bool
	for _, r := range results {
		if r.Job.AllowFailure {
			continue
		}
		switch r.State {
		case JobErrored:
			errored = true
		case JobFailed:
			failed = true
		case JobPassed:
		default:
			canceled = true
		}
	}
	switch {
	case errored:
		return BuildErrored
	case failed:
		return BuildFailed
	case canceled:
		return BuildCanceled
	default:
		return BuildPassed
	}
}

// BuildProgress tracks job states while a build runs and decides when the
// build has concluded.
type BuildProgress struct {
	states     map[string]JobState
	required   map[string]bool
	fastFinish bool
}

// NewBuildProgress creates a tracker for jobs.
// fast_finish only applies when at least one job is required.
func NewBuildProgress(jobs []Job, fastFinish bool) *BuildProgress {
	p := &BuildProgress{
		states:   make(map[string]JobState, len(jobs)),
		required: make(map[string]bool, len(jobs)),
	}
	for _, j := range jobs {
		p.states[j.Number] = JobCreated
		if !j.AllowFailure {
			p.required[j.Number] = true
		}
	}
	p.fastFinish = fastFinish && len(p.required) > 0
	return p
}

// Record stores the latest state of a job.
func (p *BuildProgress) Record(jobNumber string, state JobState) {
	if _, ok := p.states[jobNumber]; ok {
		p.states[jobNumber] = state
	}
}

// Concluded returns true once the build outcome can no longer change.
// Without fast_finish that is when every job finished. With fast_finish it
// is when a required job broke or every required job finished.
func (p *BuildProgress) Concluded() bool {
	if !p.fastFinish {
		for _, s := range p.states {
			if !s.IsFinished() {
				return false
			}
		}
		return true
	}

	for n := range p.required {
		if p.states[n].IsBroken() {
			return true
		}
	}
	for n := range p.required {
		if !p.states[n].IsFinished() {
			return false
		}
	}
	return true
}

// Pending returns the numbers of jobs that have not finished.
func (p *BuildProgress) Pending() []string {
	var pending []string
	for n, s := range p.states {
		if !s.IsFinished() {
			pending = append(pending, n)
		}
	}
	slices.Sort(pending)
	return pending
}
