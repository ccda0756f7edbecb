// Package notify delivers build notifications by email and webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/snowman2/cimatrix/internal/domain"
)

// Ensure WebhookPoster implements domain.WebhookPoster.
var _ domain.WebhookPoster = (*WebhookPoster)(nil)

// WebhookPoster posts build payloads as JSON, retrying on connection
// errors, 429 and 5xx responses.
type WebhookPoster struct {
	client *retryablehttp.Client
}

// NewWebhookPoster creates a poster with a per-attempt timeout and a
// maximum number of retries.
func NewWebhookPoster(timeout time.Duration, retries int) *WebhookPoster {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retries < 0 {
		retries = domain.DefaultWebhookRetries
	}

	client := retryablehttp.NewClient()
	client.Logger = nil
	client.HTTPClient = &http.Client{Timeout: timeout}
	client.RetryMax = retries
	client.CheckRetry = retryablehttp.DefaultRetryPolicy
	// Hand the last response back instead of a generic "giving up" error
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &WebhookPoster{client: client}
}

// Post sends payload to url and fails unless the final response is 2xx.
func (p *WebhookPoster) Post(ctx context.Context, url string, payload domain.WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "cimatrix")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post webhook %s: unexpected status %s", url, resp.Status)
	}
	return nil
}
