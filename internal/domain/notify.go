package domain

import (
	"fmt"
	"strings"
	"time"
)

// NotifyPolicy decides when a notifier fires for a build outcome.
type NotifyPolicy string

const (
	NotifyAlways NotifyPolicy = "always" // Every build with this outcome
	NotifyNever  NotifyPolicy = "never"  // Never
	NotifyChange NotifyPolicy = "change" // Only when the state differs from the previous build
)

// IsValid returns true if p is a known policy.
func (p NotifyPolicy) IsValid() bool {
	switch p {
	case NotifyAlways, NotifyNever, NotifyChange:
		return true
	}
	return false
}

// Notifications holds the notifications section of a build file.
type Notifications struct {
	Email    EmailNotification
	Webhooks WebhookNotification
}

// EmailNotification configures build emails.
// Fields are ordered to minimize memory padding.
type EmailNotification struct {
	OnSuccess  NotifyPolicy
	OnFailure  NotifyPolicy
	Recipients []string
	Enabled    bool
}

// WebhookNotification configures webhook POSTs.
type WebhookNotification struct {
	OnSuccess NotifyPolicy
	OnFailure NotifyPolicy
	URLs      []string
}

// Enabled returns true if at least one URL is configured.
func (w WebhookNotification) Enabled() bool {
	return len(w.URLs) > 0
}

func (n *Notifications) applyDefaults() {
	if n.Email.OnSuccess == "" {
		n.Email.OnSuccess = NotifyChange
	}
	if n.Email.OnFailure == "" {
		n.Email.OnFailure = NotifyAlways
	}
	if n.Webhooks.OnSuccess == "" {
		n.Webhooks.OnSuccess = NotifyAlways
	}
	if n.Webhooks.OnFailure == "" {
		n.Webhooks.OnFailure = NotifyAlways
	}
}

func (n Notifications) validate() error {
	policies := []struct {
		name   string
		policy NotifyPolicy
	}{
		{"notifications.email.on_success", n.Email.OnSuccess},
		{"notifications.email.on_failure", n.Email.OnFailure},
		{"notifications.webhooks.on_success", n.Webhooks.OnSuccess},
		{"notifications.webhooks.on_failure", n.Webhooks.OnFailure},
	}
	for _, p := range policies {
		if p.policy != "" && !p.policy.IsValid() {
			return fmt.Errorf("%w: %s: %q", ErrInvalidPolicy, p.name, p.policy)
		}
	}
	return nil
}

// ShouldNotify applies a success/failure policy pair to a concluded build.
// previous is the last build with a result before this one, or nil.
// Canceled builds never notify.
func ShouldNotify(onSuccess, onFailure NotifyPolicy, current BuildState, previous *Build) bool {
	var policy NotifyPolicy
	switch current {
	case BuildPassed:
		policy = onSuccess
	case BuildFailed, BuildErrored:
		policy = onFailure
	default:
		return false
	}

	switch policy {
	case NotifyAlways:
		return true
	case NotifyChange:
		return previous == nil || previous.State != current
	default:
		return false
	}
}

// WebhookPayload is the JSON body posted to webhook URLs.
// Fields are ordered to minimize memory padding.
type WebhookPayload struct {
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	State      BuildState          `json:"state"`
	Branch     string              `json:"branch,omitempty"`
	Commit     string              `json:"commit,omitempty"`
	Jobs       []WebhookJobPayload `json:"jobs"`
	Number     int                 `json:"number"`
	Duration   float64             `json:"duration_seconds"`
}

// WebhookJobPayload describes one job in a WebhookPayload.
type WebhookJobPayload struct {
	Number       string   `json:"number"`
	OS           string   `json:"os"`
	Env          string   `json:"env,omitempty"`
	State        JobState `json:"state"`
	AllowFailure bool     `json:"allow_failure"`
}

// NewWebhookPayload builds the webhook body for a build.
func NewWebhookPayload(b *Build) WebhookPayload {
	p := WebhookPayload{
		Number:     b.Number,
		State:      b.State,
		Branch:     b.Branch,
		Commit:     b.Commit,
		StartedAt:  b.StartedAt,
		FinishedAt: b.FinishedAt,
		Duration:   b.Duration().Seconds(),
		Jobs:       make([]WebhookJobPayload, 0, len(b.Jobs)),
	}
	for _, r := range b.Jobs {
		p.Jobs = append(p.Jobs, WebhookJobPayload{
			Number:       r.Job.Number,
			OS:           r.Job.OS,
			Env:          r.Job.Env.Display(),
			State:        r.State,
			AllowFailure: r.Job.AllowFailure,
		})
	}
	return p
}

// NewEmailMessage renders the build summary email.
func NewEmailMessage(b *Build, to []string) EmailMessage {
	subject := fmt.Sprintf("Build #%d %s", b.Number, b.State)
	if b.Branch != "" {
		subject += " (" + b.Branch + ")"
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Build #%d %s in %s\n", b.Number, b.State, b.Duration().Round(time.Second))
	if b.Commit != "" {
		fmt.Fprintf(&body, "Commit: %s\n", b.Commit)
	}
	body.WriteString("\n")
	for _, r := range b.Jobs {
		line := fmt.Sprintf("%-6s %-9s %s", r.Job.Number, r.State, r.Job.Label())
		if r.Job.AllowFailure {
			line += " [allowed to fail]"
		}
		body.WriteString(line + "\n")
	}
	return EmailMessage{Subject: subject, Body: body.String(), To: to}
}
