// Package deploy is the boundary to the publishing step. A publish failure
// after a favorable gate outcome is never retried here; retry policy belongs
// to the deployment system and a resubmission must run the gate again.
package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Controller publishes an approved or allowed candidate.
type Controller interface {
	Publish(ctx context.Context, candidateID string) error
}

// Webhook publishes by POSTing the candidate id to a deployment endpoint.
type Webhook struct {
	url    string
	token  string
	client *http.Client
}

// NewWebhook creates a webhook deployment controller.
func NewWebhook(url, token string) (*Webhook, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("deploy webhook url is required")
	}
	return &Webhook{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: defaultTimeout},
	}, nil
}

// Publish triggers the deployment webhook once.
func (w *Webhook) Publish(ctx context.Context, candidateID string) error {
	payload, err := json.Marshal(map[string]string{"candidate_id": candidateID})
	if err != nil {
		return fmt.Errorf("marshal publish payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("publish %s: %w", candidateID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("publish %s: unexpected status %d", candidateID, resp.StatusCode)
	}
	return nil
}

// NoOp is a deployment controller that publishes nothing, used by dry runs.
type NoOp struct{}

// Publish does nothing and succeeds.
func (NoOp) Publish(ctx context.Context, candidateID string) error { return nil }
