// Package audit keeps the append-only record of every gate decision and
// transition. The log is the sole source of truth for what happened and why;
// records are never mutated or deleted.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	auditFileMode = 0644
	auditDirMode  = 0755
)

// Event names one meaningful transition in a candidate's lifecycle.
type Event string

const (
	EventDecided    Event = "decided"
	EventGateOpened Event = "gate_opened"
	EventApproved   Event = "approved"
	EventTimedOut   Event = "timed_out"
	EventSuperseded Event = "superseded"
	EventDeployed   Event = "deployed"
	EventAborted    Event = "aborted"
)

// Record is one audit entry written as a single JSON line.
type Record struct {
	Time        time.Time      `json:"time"`
	CandidateID string         `json:"candidate_id"`
	Event       Event          `json:"event"`
	Detail      map[string]any `json:"detail,omitempty"`
}

// Log appends audit records to <workspace>/state/audit.jsonl.
type Log struct {
	path string
	mu   sync.Mutex
}

// NewLog creates an append-only audit log rooted at workspace state.
func NewLog(workspace string) *Log {
	return &Log{
		path: filepath.Join(workspace, "state", "audit.jsonl"),
	}
}

// Append writes one record as one JSONL line. Concurrent writers are safe:
// each append is a single atomic write under the log mutex.
func (l *Log) Append(record Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), auditDirMode); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, auditFileMode)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	encoded = append(encoded, '\n')

	if _, err := file.Write(encoded); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync audit file: %w", err)
	}
	return nil
}

// ReadAll returns every record in append order.
func (l *Log) ReadAll() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("parse audit record: %w", err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit file: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// ForCandidate returns the candidate's records in append order.
func (l *Log) ForCandidate(candidateID string) ([]Record, error) {
	all, err := l.ReadAll()
	if err != nil {
		return nil, err
	}
	matched := []Record{}
	for _, record := range all {
		if record.CandidateID == candidateID {
			matched = append(matched, record)
		}
	}
	return matched, nil
}
