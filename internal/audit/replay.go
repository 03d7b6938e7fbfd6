package audit

import (
	"fmt"

	"github.com/MEKXH/shipgate/internal/gate"
)

// ReplayedRequest is the gate state reconstructed from a candidate's audit
// trail. Replaying a terminal trail must reproduce the state reached live.
type ReplayedRequest struct {
	RequestID           string
	State               gate.State
	Approver            string
	Reason              string
	SupersededBy        string
	ProbeNeverSucceeded bool
}

// Replay folds a candidate's audit records, in order, into the approval
// request state they describe. ok is false when the trail never opened a
// gate (an allow-path candidate has no request to reconstruct).
func Replay(records []Record) (ReplayedRequest, bool, error) {
	var replayed ReplayedRequest
	opened := false

	for _, record := range records {
		switch record.Event {
		case EventGateOpened:
			replayed = ReplayedRequest{
				RequestID: detailString(record, "request_id"),
				State:     gate.StateOpen,
			}
			opened = true
		case EventApproved:
			if !opened {
				return ReplayedRequest{}, false, fmt.Errorf("replay: %s before %s", EventApproved, EventGateOpened)
			}
			replayed.State = gate.StateApproved
			replayed.Approver = detailString(record, "approver")
			replayed.Reason = detailString(record, "reason")
		case EventTimedOut:
			if !opened {
				return ReplayedRequest{}, false, fmt.Errorf("replay: %s before %s", EventTimedOut, EventGateOpened)
			}
			replayed.State = gate.StateTimedOut
			replayed.ProbeNeverSucceeded = detailBool(record, "probe_never_succeeded")
		case EventSuperseded:
			if !opened {
				return ReplayedRequest{}, false, fmt.Errorf("replay: %s before %s", EventSuperseded, EventGateOpened)
			}
			replayed.State = gate.StateSuperseded
			replayed.SupersededBy = detailString(record, "superseded_by")
		}
	}

	return replayed, opened, nil
}

func detailString(record Record, key string) string {
	if record.Detail == nil {
		return ""
	}
	if value, ok := record.Detail[key].(string); ok {
		return value
	}
	return ""
}

func detailBool(record Record, key string) bool {
	if record.Detail == nil {
		return false
	}
	if value, ok := record.Detail[key].(bool); ok {
		return value
	}
	return false
}
