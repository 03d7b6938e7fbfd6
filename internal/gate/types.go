package gate

import (
	"time"

	"github.com/MEKXH/shipgate/internal/policy"
)

// State is the lifecycle state of an approval request.
type State string

const (
	StateOpen       State = "open"
	StateApproved   State = "approved"
	StateTimedOut   State = "timed_out"
	StateSuperseded State = "superseded"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateApproved, StateTimedOut, StateSuperseded:
		return true
	}
	return false
}

// Request is a persisted approval request record. Once a request reaches a
// terminal state it is never modified again.
type Request struct {
	ID                  string          `json:"id"`
	CandidateID         string          `json:"candidate_id"`
	Lineage             string          `json:"lineage"`
	ThreadID            string          `json:"thread_id"`
	State               State           `json:"state"`
	Decision            policy.Decision `json:"decision"`
	CreatedAt           time.Time       `json:"created_at"`
	ResolvedAt          time.Time       `json:"resolved_at,omitempty"`
	Approver            string          `json:"approver,omitempty"`
	Reason              string          `json:"reason,omitempty"`
	SupersededBy        string          `json:"superseded_by,omitempty"`
	ProbeNeverSucceeded bool            `json:"probe_never_succeeded,omitempty"`
}

// Query filters approval requests when listing.
type Query struct {
	ID          string
	CandidateID string
	Lineage     string
	State       State
}
