// Package memory provides an in-process notification channel used by tests
// and dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MEKXH/shipgate/internal/notify"
)

// Channel stores threads in memory.
type Channel struct {
	mu      sync.Mutex
	nextID  int
	threads map[string][]notify.Response

	// PostErr and RespondErr, when set, are returned by the corresponding
	// method to simulate transport failures.
	PostErr    error
	RespondErr error
}

// New creates an empty in-memory channel.
func New() *Channel {
	return &Channel{
		nextID:  1,
		threads: make(map[string][]notify.Response),
	}
}

func (c *Channel) Name() string { return "memory" }

// Post opens a new thread for the candidate.
func (c *Channel) Post(ctx context.Context, candidateID, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PostErr != nil {
		return "", c.PostErr
	}
	threadID := fmt.Sprintf("thread-%d", c.nextID)
	c.nextID++
	c.threads[threadID] = []notify.Response{}
	return threadID, nil
}

// Responses returns the full reply history for a thread.
func (c *Channel) Responses(ctx context.Context, threadID string) ([]notify.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.RespondErr != nil {
		return nil, c.RespondErr
	}
	replies, ok := c.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("unknown thread: %s", threadID)
	}
	out := make([]notify.Response, len(replies))
	copy(out, replies)
	return out, nil
}

// Reply appends a response to a thread, simulating a human reply.
func (c *Channel) Reply(threadID, author, body string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.threads[threadID] = append(c.threads[threadID], notify.Response{
		Author:   author,
		Body:     body,
		PostedAt: at,
	})
}
