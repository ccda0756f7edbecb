package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/snowman2/cimatrix/internal/domain"
)

// NotifyBuildInput contains the parameters for notifying about a build.
// Fields are ordered to minimize memory padding.
type NotifyBuildInput struct {
	Build         *domain.Build
	Previous      *domain.Build // Last finished build before this one, or nil
	AuthorEmail   string        // Fallback email recipient
	Notifications domain.Notifications
}

// NotifyBuildOutput contains the result of notifying.
type NotifyBuildOutput struct {
	Sent    []string // "email" or webhook URLs that were delivered
	Skipped []string // Notifiers that were due but could not be delivered
	Errors  []error
}

// Err joins the delivery errors.
func (o *NotifyBuildOutput) Err() error {
	return errors.Join(o.Errors...)
}

// NotifyBuild is the use case for sending build notifications.
// Delivery errors are collected and never change the build.
type NotifyBuild struct {
	email    domain.EmailSender // nil when SMTP is not configured
	webhooks domain.WebhookPoster
	logger   domain.Logger
}

// NewNotifyBuild creates a new NotifyBuild use case.
func NewNotifyBuild(email domain.EmailSender, webhooks domain.WebhookPoster, logger domain.Logger) *NotifyBuild {
	return &NotifyBuild{
		email:    email,
		webhooks: webhooks,
		logger:   logger,
	}
}

// Execute sends the notifications due for the build.
func (uc *NotifyBuild) Execute(ctx context.Context, in NotifyBuildInput) (*NotifyBuildOutput, error) {
	if in.Build == nil {
		return nil, domain.ErrBuildNotFound
	}
	out := &NotifyBuildOutput{}
	n := in.Notifications
	b := in.Build

	if n.Email.Enabled && domain.ShouldNotify(n.Email.OnSuccess, n.Email.OnFailure, b.State, in.Previous) {
		uc.sendEmail(ctx, in, out)
	}

	if n.Webhooks.Enabled() && domain.ShouldNotify(n.Webhooks.OnSuccess, n.Webhooks.OnFailure, b.State, in.Previous) {
		payload := domain.NewWebhookPayload(b)
		for _, url := range n.Webhooks.URLs {
			if uc.webhooks == nil {
				out.Skipped = append(out.Skipped, url)
				continue
			}
			if err := uc.webhooks.Post(ctx, url, payload); err != nil {
				uc.logger.Warn("", "notify", fmt.Sprintf("webhook %s: %v", url, err))
				out.Errors = append(out.Errors, fmt.Errorf("webhook %s: %w", url, err))
				continue
			}
			uc.logger.Info("", "notify", fmt.Sprintf("posted build #%d to %s", b.Number, url))
			out.Sent = append(out.Sent, url)
		}
	}

	return out, nil
}

func (uc *NotifyBuild) sendEmail(ctx context.Context, in NotifyBuildInput, out *NotifyBuildOutput) {
	to := in.Notifications.Email.Recipients
	if len(to) == 0 && in.AuthorEmail != "" {
		to = []string{in.AuthorEmail}
	}
	if len(to) == 0 || uc.email == nil {
		uc.logger.Debug("", "notify", "email due but no recipient or SMTP host configured")
		out.Skipped = append(out.Skipped, "email")
		return
	}

	if err := uc.email.Send(ctx, domain.NewEmailMessage(in.Build, to)); err != nil {
		uc.logger.Warn("", "notify", fmt.Sprintf("email: %v", err))
		out.Errors = append(out.Errors, fmt.Errorf("email: %w", err))
		return
	}
	uc.logger.Info("", "notify", fmt.Sprintf("emailed build #%d to %d recipient(s)", in.Build.Number, len(to)))
	out.Sent = append(out.Sent, "email")
}
