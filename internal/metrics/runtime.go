package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const runtimeMetricsFileName = "runtime_metrics.json"

var latencyBucketUpperBoundsMs = []int64{
	10, 25, 50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000,
}

// RuntimeSnapshot contains aggregated gate runtime metrics.
type RuntimeSnapshot struct {
	UpdatedAt time.Time     `json:"updated_at"`
	Reviewer  ReviewerStats `json:"reviewer"`
	Gate      GateStats     `json:"gate"`
}

// ReviewerStats tracks reviewer invocation metrics.
type ReviewerStats struct {
	Total             int64 `json:"total"`
	Failures          int64 `json:"failures"`
	Timeouts          int64 `json:"timeouts"`
	TotalLatencyMs    int64 `json:"total_latency_ms"`
	MaxLatencyMs      int64 `json:"max_latency_ms"`
	LastLatencyMs     int64 `json:"last_latency_ms"`
	P95ProxyLatencyMs int64 `json:"p95_proxy_latency_ms"`
}

// FailureRatio returns failures/total in [0,1].
func (r ReviewerStats) FailureRatio() float64 {
	if r.Total <= 0 {
		return 0
	}
	return float64(r.Failures) / float64(r.Total)
}

// AvgLatencyMs returns average reviewer latency in milliseconds.
func (r ReviewerStats) AvgLatencyMs() float64 {
	if r.Total <= 0 {
		return 0
	}
	return float64(r.TotalLatencyMs) / float64(r.Total)
}

// GateStats counts candidate runs per terminal outcome.
type GateStats struct {
	Runs       int64 `json:"runs"`
	Allowed    int64 `json:"allowed"`
	Blocked    int64 `json:"blocked"`
	Approved   int64 `json:"approved"`
	TimedOut   int64 `json:"timed_out"`
	Superseded int64 `json:"superseded"`
	Deployed   int64 `json:"deployed"`
	Aborted    int64 `json:"aborted"`
}

// HasData reports whether any metrics were recorded.
func (s RuntimeSnapshot) HasData() bool {
	return s.Reviewer.Total > 0 || s.Gate.Runs > 0
}

// RuntimeMetrics records and persists gate runtime metrics.
type RuntimeMetrics struct {
	path string

	mu      sync.Mutex
	snap    RuntimeSnapshot
	buckets []int64
}

// NewRuntimeMetrics creates a metrics recorder rooted at <workspace>/state/runtime_metrics.json.
func NewRuntimeMetrics(workspacePath string) *RuntimeMetrics {
	return &RuntimeMetrics{
		path:    runtimeMetricsPath(workspacePath),
		buckets: make([]int64, len(latencyBucketUpperBoundsMs)+1),
	}
}

// Snapshot returns the latest in-memory snapshot.
func (m *RuntimeMetrics) Snapshot() RuntimeSnapshot {
	if m == nil {
		return RuntimeSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// RecordReviewerRun updates reviewer metrics and persists the snapshot.
func (m *RuntimeMetrics) RecordReviewerRun(duration time.Duration, runErr error) (RuntimeSnapshot, error) {
	if m == nil {
		return RuntimeSnapshot{}, nil
	}

	now := time.Now().UTC()
	latencyMs := duration.Milliseconds()
	if latencyMs < 0 {
		latencyMs = 0
	}

	m.mu.Lock()
	m.snap.UpdatedAt = now
	m.snap.Reviewer.Total++
	m.snap.Reviewer.TotalLatencyMs += latencyMs
	m.snap.Reviewer.LastLatencyMs = latencyMs
	if latencyMs > m.snap.Reviewer.MaxLatencyMs {
		m.snap.Reviewer.MaxLatencyMs = latencyMs
	}
	if runErr != nil {
		m.snap.Reviewer.Failures++
		if isTimeoutError(runErr) {
			m.snap.Reviewer.Timeouts++
		}
	}

	m.buckets[latencyBucketIndex(latencyMs)]++
	m.snap.Reviewer.P95ProxyLatencyMs = p95ProxyFromBuckets(m.buckets, m.snap.Reviewer.Total)

	snapshot := m.snap
	m.mu.Unlock()

	return snapshot, persistRuntimeSnapshot(m.path, snapshot)
}

// RecordGateOutcome counts one candidate run outcome and persists the snapshot.
func (m *RuntimeMetrics) RecordGateOutcome(outcome string) (RuntimeSnapshot, error) {
	if m == nil {
		return RuntimeSnapshot{}, nil
	}

	now := time.Now().UTC()

	m.mu.Lock()
	m.snap.UpdatedAt = now
	m.snap.Gate.Runs++
	switch strings.ToLower(strings.TrimSpace(outcome)) {
	case "allow":
		m.snap.Gate.Allowed++
	case "block":
		m.snap.Gate.Blocked++
	case "approved":
		m.snap.Gate.Approved++
	case "timed_out":
		m.snap.Gate.TimedOut++
	case "superseded":
		m.snap.Gate.Superseded++
	case "deployed":
		m.snap.Gate.Deployed++
	case "aborted":
		m.snap.Gate.Aborted++
	}
	snapshot := m.snap
	m.mu.Unlock()

	return snapshot, persistRuntimeSnapshot(m.path, snapshot)
}

// ReadRuntimeSnapshot reads the persisted snapshot from workspace state.
// If no file exists yet, it returns a zero-value snapshot and nil error.
func ReadRuntimeSnapshot(workspacePath string) (RuntimeSnapshot, error) {
	path := runtimeMetricsPath(workspacePath)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RuntimeSnapshot{}, nil
		}
		return RuntimeSnapshot{}, fmt.Errorf("read runtime metrics: %w", err)
	}

	var snap RuntimeSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return RuntimeSnapshot{}, fmt.Errorf("decode runtime metrics: %w", err)
	}
	return snap, nil
}

func runtimeMetricsPath(workspacePath string) string {
	return filepath.Join(workspacePath, "state", runtimeMetricsFileName)
}

func persistRuntimeSnapshot(path string, snapshot RuntimeSnapshot) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create runtime metrics dir: %w", err)
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode runtime metrics: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, payload, 0o644); err != nil {
		return fmt.Errorf("write runtime metrics temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename runtime metrics file: %w", err)
	}
	return nil
}

func latencyBucketIndex(latencyMs int64) int {
	for i, upper := range latencyBucketUpperBoundsMs {
		if latencyMs <= upper {
			return i
		}
	}
	return len(latencyBucketUpperBoundsMs)
}

func p95ProxyFromBuckets(buckets []int64, total int64) int64 {
	if total <= 0 {
		return 0
	}
	target := int64(float64(total) * 0.95)
	if target <= 0 {
		target = 1
	}

	var cumulative int64
	for i, count := range buckets {
		cumulative += count
		if cumulative < target {
			continue
		}
		if i >= len(latencyBucketUpperBoundsMs) {
			return latencyBucketUpperBoundsMs[len(latencyBucketUpperBoundsMs)-1]
		}
		return latencyBucketUpperBoundsMs[i]
	}
	return latencyBucketUpperBoundsMs[len(latencyBucketUpperBoundsMs)-1]
}

func isTimeoutError(runErr error) bool {
	if errors.Is(runErr, context.DeadlineExceeded) {
		return true
	}
	lowered := strings.ToLower(strings.TrimSpace(fmt.Sprint(runErr)))
	if lowered == "<nil>" {
		return false
	}
	return strings.Contains(lowered, "deadline exceeded") ||
		strings.Contains(lowered, "timeout") ||
		strings.Contains(lowered, "timed out")
}
