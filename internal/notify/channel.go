// Package notify abstracts the human approval channel: the gate posts a
// blocked-deployment message and polls the resulting thread for replies.
package notify

import (
	"context"
	"time"
)

// Response is one reply observed on a notification thread.
type Response struct {
	Author   string
	Body     string
	PostedAt time.Time
}

// Channel is the external notification transport. Responses must return the
// full thread history on every call: the gate is resumable across process
// restarts and reconstructs approval state from history alone.
type Channel interface {
	Name() string
	Post(ctx context.Context, candidateID, text string) (threadID string, err error)
	Responses(ctx context.Context, threadID string) ([]Response, error)
}
