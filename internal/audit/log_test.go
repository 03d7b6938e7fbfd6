package audit

import (
	"sync"
	"testing"
	"time"

	"github.com/MEKXH/shipgate/internal/gate"
)

func TestLog_AppendAndReadAll(t *testing.T) {
	log := NewLog(t.TempDir())
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []Record{
		{Time: at, CandidateID: "cand-1", Event: EventDecided, Detail: map[string]any{"outcome": "block"}},
		{Time: at.Add(time.Second), CandidateID: "cand-1", Event: EventGateOpened, Detail: map[string]any{"request_id": "req-1"}},
		{Time: at.Add(2 * time.Second), CandidateID: "cand-2", Event: EventDecided, Detail: map[string]any{"outcome": "allow"}},
	}
	for _, record := range records {
		if err := log.Append(record); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	all, err := log.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	if all[0].Event != EventDecided || all[1].Event != EventGateOpened {
		t.Fatalf("append order not preserved: %+v", all)
	}

	forFirst, err := log.ForCandidate("cand-1")
	if err != nil {
		t.Fatalf("ForCandidate error: %v", err)
	}
	if len(forFirst) != 2 {
		t.Fatalf("expected 2 records for cand-1, got %d", len(forFirst))
	}
}

func TestLog_ReadMissingFileIsEmpty(t *testing.T) {
	log := NewLog(t.TempDir())
	all, err := log.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll error: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty log, got %d records", len(all))
	}
}

func TestLog_ConcurrentAppends(t *testing.T) {
	log := NewLog(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := log.Append(Record{
				Time:        time.Now(),
				CandidateID: "cand-1",
				Event:       EventDecided,
			}); err != nil {
				t.Errorf("Append error: %v", err)
			}
		}()
	}
	wg.Wait()

	all, err := log.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll error: %v", err)
	}
	if len(all) != 20 {
		t.Fatalf("expected 20 records, got %d", len(all))
	}
}

func TestReplay_ApprovedTrail(t *testing.T) {
	records := []Record{
		{CandidateID: "cand-1", Event: EventDecided, Detail: map[string]any{"outcome": "block"}},
		{CandidateID: "cand-1", Event: EventGateOpened, Detail: map[string]any{"request_id": "req-1"}},
		{CandidateID: "cand-1", Event: EventApproved, Detail: map[string]any{"request_id": "req-1", "approver": "alice", "reason": "false positive"}},
		{CandidateID: "cand-1", Event: EventDeployed},
	}

	replayed, ok, err := Replay(records)
	if err != nil {
		t.Fatalf("Replay error: %v", err)
	}
	if !ok {
		t.Fatal("expected a gate to be reconstructed")
	}
	if replayed.State != gate.StateApproved {
		t.Fatalf("expected approved, got %s", replayed.State)
	}
	if replayed.Approver != "alice" || replayed.Reason != "false positive" {
		t.Fatalf("unexpected approval detail: %+v", replayed)
	}
	if replayed.RequestID != "req-1" {
		t.Fatalf("unexpected request id: %q", replayed.RequestID)
	}
}

func TestReplay_TimedOutTrail(t *testing.T) {
	records := []Record{
		{CandidateID: "cand-1", Event: EventDecided},
		{CandidateID: "cand-1", Event: EventGateOpened, Detail: map[string]any{"request_id": "req-1"}},
		{CandidateID: "cand-1", Event: EventTimedOut, Detail: map[string]any{"request_id": "req-1", "probe_never_succeeded": true}},
		{CandidateID: "cand-1", Event: EventAborted},
	}

	replayed, ok, err := Replay(records)
	if err != nil {
		t.Fatalf("Replay error: %v", err)
	}
	if !ok || replayed.State != gate.StateTimedOut {
		t.Fatalf("expected timed_out, got %+v", replayed)
	}
	if !replayed.ProbeNeverSucceeded {
		t.Fatal("expected probe_never_succeeded to replay")
	}
}

func TestReplay_AllowTrailHasNoGate(t *testing.T) {
	records := []Record{
		{CandidateID: "cand-1", Event: EventDecided, Detail: map[string]any{"outcome": "allow"}},
		{CandidateID: "cand-1", Event: EventDeployed},
	}

	_, ok, err := Replay(records)
	if err != nil {
		t.Fatalf("Replay error: %v", err)
	}
	if ok {
		t.Fatal("expected no gate on allow trail")
	}
}

func TestReplay_TerminalBeforeOpenIsError(t *testing.T) {
	records := []Record{
		{CandidateID: "cand-1", Event: EventApproved},
	}
	if _, _, err := Replay(records); err == nil {
		t.Fatal("expected error for terminal event before gate_opened")
	}
}
