// Package baseline persists a known-good snapshot per lineage and reports
// regressions of new candidates against it.
package baseline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MEKXH/shipgate/internal/review"
)

const (
	baselineFileMode = 0644
	baselineDirMode  = 0755
)

// Baseline is the persisted known-good snapshot of a lineage.
type Baseline struct {
	Lineage    string          `json:"lineage"`
	URL        string          `json:"url"`
	CapturedAt time.Time       `json:"captured_at"`
	Page       review.Snapshot `json:"page"`
}

// Store persists baselines under <workspace>/state/baselines/<lineage>.json.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a baseline store rooted at the workspace state dir.
func NewStore(workspace string) *Store {
	return &Store{dir: filepath.Join(workspace, "state", "baselines")}
}

func (s *Store) pathFor(lineage string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, lineage)
	return filepath.Join(s.dir, name+".json")
}

// Save writes the baseline for its lineage atomically.
func (s *Store) Save(b Baseline) error {
	if strings.TrimSpace(b.Lineage) == "" {
		return fmt.Errorf("baseline lineage is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, baselineDirMode); err != nil {
		return fmt.Errorf("create baseline dir: %w", err)
	}

	encoded, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal baseline: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.dir, "baseline-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp baseline: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(encoded); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp baseline: %w", err)
	}
	if err := tmpFile.Chmod(baselineFileMode); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp baseline: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp baseline: %w", err)
	}

	if err := os.Rename(tmpPath, s.pathFor(b.Lineage)); err != nil {
		return fmt.Errorf("replace baseline: %w", err)
	}
	return nil
}

// Load reads the baseline for a lineage. A missing baseline returns ok=false.
func (s *Store) Load(lineage string) (Baseline, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.pathFor(lineage))
	if err != nil {
		if os.IsNotExist(err) {
			return Baseline{}, false, nil
		}
		return Baseline{}, false, fmt.Errorf("read baseline: %w", err)
	}

	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return Baseline{}, false, fmt.Errorf("parse baseline: %w", err)
	}
	return b, true, nil
}

// Capture stores the candidate's snapshot as the new baseline for its lineage.
func (s *Store) Capture(candidate review.Candidate, at time.Time) error {
	if candidate.Page == nil {
		return fmt.Errorf("candidate %s has no parsed page", candidate.ID)
	}
	return s.Save(Baseline{
		Lineage:    candidate.Lineage,
		URL:        candidate.URL,
		CapturedAt: at,
		Page:       *candidate.Page,
	})
}

// Reviewer compares candidates against the stored lineage baseline.
type Reviewer struct {
	store *Store
	now   func() time.Time
}

// NewReviewer creates a baseline reviewer backed by the given store.
func NewReviewer(store *Store) *Reviewer {
	return &Reviewer{store: store, now: time.Now}
}

func (r *Reviewer) ID() string { return "baseline" }

// Review reports regressions relative to the stored baseline. A lineage
// without a baseline yields a single informational finding.
func (r *Reviewer) Review(ctx context.Context, candidate review.Candidate) (review.Report, error) {
	if candidate.Page == nil {
		return review.Report{}, fmt.Errorf("candidate %s has no parsed page", candidate.ID)
	}

	base, ok, err := r.store.Load(candidate.Lineage)
	if err != nil {
		return review.Report{}, err
	}
	if !ok {
		return review.Report{
			CandidateID: candidate.ID,
			ProducedAt:  r.now(),
			Findings: []review.Finding{{
				Kind:     "no_baseline",
				Severity: review.SeverityInfo,
				Message:  fmt.Sprintf("no baseline captured for lineage %q; regression comparison skipped", candidate.Lineage),
			}},
		}, nil
	}

	return review.Report{
		CandidateID: candidate.ID,
		Findings:    Compare(&base.Page, candidate.Page),
		ProducedAt:  r.now(),
	}, nil
}

// Compare diffs a candidate snapshot against the baseline snapshot.
func Compare(base, current *review.Snapshot) []review.Finding {
	findings := []review.Finding{}

	for _, id := range base.IDs {
		if current.HasID(id) {
			continue
		}
		findings = append(findings, review.Finding{
			Kind:         "removed_element",
			Severity:     review.SeverityCritical,
			Message:      fmt.Sprintf("element #%s present in baseline is missing from the candidate", id),
			Location:     "#" + id,
			SuggestedFix: fmt.Sprintf("restore the element with id=%q or recapture the baseline", id),
		})
	}

	if current.Counts.Buttons < base.Counts.Buttons {
		findings = append(findings, review.Finding{
			Kind:     "fewer_buttons",
			Severity: review.SeverityHigh,
			Message:  fmt.Sprintf("button count dropped from %d to %d", base.Counts.Buttons, current.Counts.Buttons),
		})
	}
	if current.Counts.Scripts < base.Counts.Scripts {
		findings = append(findings, review.Finding{
			Kind:     "fewer_scripts",
			Severity: review.SeverityHigh,
			Message:  fmt.Sprintf("script count dropped from %d to %d", base.Counts.Scripts, current.Counts.Scripts),
		})
	}
	if current.Counts.Stylesheets < base.Counts.Stylesheets {
		findings = append(findings, review.Finding{
			Kind:     "fewer_stylesheets",
			Severity: review.SeverityMedium,
			Message:  fmt.Sprintf("stylesheet count dropped from %d to %d", base.Counts.Stylesheets, current.Counts.Stylesheets),
		})
	}
	if base.Title != "" && current.Title != base.Title {
		findings = append(findings, review.Finding{
			Kind:     "title_changed",
			Severity: review.SeverityLow,
			Message:  fmt.Sprintf("page title changed from %q to %q", base.Title, current.Title),
			Location: "title",
		})
	}

	return findings
}
