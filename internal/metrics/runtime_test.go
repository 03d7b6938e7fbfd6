package metrics

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRecordReviewerRun(t *testing.T) {
	m := NewRuntimeMetrics(t.TempDir())

	if _, err := m.RecordReviewerRun(120*time.Millisecond, nil); err != nil {
		t.Fatalf("RecordReviewerRun error: %v", err)
	}
	if _, err := m.RecordReviewerRun(40*time.Millisecond, errors.New("model unavailable")); err != nil {
		t.Fatalf("RecordReviewerRun error: %v", err)
	}
	if _, err := m.RecordReviewerRun(10*time.Millisecond, context.DeadlineExceeded); err != nil {
		t.Fatalf("RecordReviewerRun error: %v", err)
	}

	snap := m.Snapshot()
	if snap.Reviewer.Total != 3 {
		t.Fatalf("expected 3 runs, got %d", snap.Reviewer.Total)
	}
	if snap.Reviewer.Failures != 2 {
		t.Fatalf("expected 2 failures, got %d", snap.Reviewer.Failures)
	}
	if snap.Reviewer.Timeouts != 1 {
		t.Fatalf("expected 1 timeout, got %d", snap.Reviewer.Timeouts)
	}
	if snap.Reviewer.MaxLatencyMs != 120 {
		t.Fatalf("expected max latency 120ms, got %d", snap.Reviewer.MaxLatencyMs)
	}
	if got := snap.Reviewer.FailureRatio(); got < 0.66 || got > 0.67 {
		t.Fatalf("unexpected failure ratio: %f", got)
	}
}

func TestRecordGateOutcome(t *testing.T) {
	m := NewRuntimeMetrics(t.TempDir())

	for _, outcome := range []string{"allow", "block", "approved", "deployed", "timed_out", "aborted"} {
		if _, err := m.RecordGateOutcome(outcome); err != nil {
			t.Fatalf("RecordGateOutcome(%s) error: %v", outcome, err)
		}
	}

	snap := m.Snapshot()
	if snap.Gate.Runs != 6 {
		t.Fatalf("expected 6 runs, got %d", snap.Gate.Runs)
	}
	if snap.Gate.Allowed != 1 || snap.Gate.Blocked != 1 || snap.Gate.Deployed != 1 {
		t.Fatalf("unexpected gate stats: %+v", snap.Gate)
	}
	if !snap.HasData() {
		t.Fatal("expected HasData true")
	}
}

func TestSnapshotPersistsAndReloads(t *testing.T) {
	workspace := t.TempDir()
	m := NewRuntimeMetrics(workspace)

	if _, err := m.RecordGateOutcome("deployed"); err != nil {
		t.Fatalf("RecordGateOutcome error: %v", err)
	}

	loaded, err := ReadRuntimeSnapshot(workspace)
	if err != nil {
		t.Fatalf("ReadRuntimeSnapshot error: %v", err)
	}
	if loaded.Gate.Deployed != 1 {
		t.Fatalf("expected persisted deployed count 1, got %d", loaded.Gate.Deployed)
	}
}

func TestReadRuntimeSnapshotMissingFile(t *testing.T) {
	snap, err := ReadRuntimeSnapshot(t.TempDir())
	if err != nil {
		t.Fatalf("ReadRuntimeSnapshot error: %v", err)
	}
	if snap.HasData() {
		t.Fatal("expected empty snapshot for missing file")
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var m *RuntimeMetrics
	if _, err := m.RecordReviewerRun(time.Second, nil); err != nil {
		t.Fatalf("nil recorder should no-op, got %v", err)
	}
	if _, err := m.RecordGateOutcome("allow"); err != nil {
		t.Fatalf("nil recorder should no-op, got %v", err)
	}
}
