package review

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// Reviewer produces one Report per candidate. Implementations must honor
// context cancellation; the registry enforces a per-reviewer timeout on top.
type Reviewer interface {
	ID() string
	Review(ctx context.Context, candidate Candidate) (Report, error)
}

// Registry holds the ordered set of reviewers registered at startup.
type Registry struct {
	reviewers []Reviewer
	timeout   time.Duration
	now       func() time.Time
}

// NewRegistry creates a registry with the given per-reviewer timeout.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Registry{
		timeout: timeout,
		now:     time.Now,
	}
}

// Register appends a reviewer. Registration order is preserved and defines
// report order for aggregation.
func (r *Registry) Register(rev Reviewer) error {
	id := strings.TrimSpace(rev.ID())
	if id == "" {
		return fmt.Errorf("reviewer id is required")
	}
	for _, existing := range r.reviewers {
		if existing.ID() == id {
			return fmt.Errorf("reviewer already registered: %s", id)
		}
	}
	r.reviewers = append(r.reviewers, rev)
	return nil
}

// IDs returns reviewer ids in registration order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.reviewers))
	for _, rev := range r.reviewers {
		ids = append(ids, rev.ID())
	}
	return ids
}

// Len returns the number of registered reviewers.
func (r *Registry) Len() int {
	return len(r.reviewers)
}

// Reviewers returns the registered reviewers in registration order.
func (r *Registry) Reviewers() []Reviewer {
	return r.reviewers
}

// Run invokes one reviewer with timeout and panic recovery. A reviewer that
// fails, times out, or panics yields a synthetic report carrying a single
// HIGH finding: a reviewer that cannot run is evidence of risk, not success.
// The returned error reports the underlying failure for observability; the
// report is usable either way.
func (r *Registry) Run(ctx context.Context, rev Reviewer, candidate Candidate) (Report, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	report, err := r.runProtected(runCtx, rev, candidate)
	if err != nil {
		slog.Warn("reviewer failed",
			"reviewer", rev.ID(),
			"candidate", candidate.ID,
			"error", err,
		)
		return FailureReport(rev.ID(), candidate.ID, err, r.now()), err
	}

	report.ReviewerID = rev.ID()
	report.CandidateID = candidate.ID
	if report.ProducedAt.IsZero() {
		report.ProducedAt = r.now()
	}
	if report.Findings == nil {
		report.Findings = []Finding{}
	}
	return report, nil
}

func (r *Registry) runProtected(ctx context.Context, rev Reviewer, candidate Candidate) (report Report, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("reviewer panic: %v", recovered)
		}
	}()
	return rev.Review(ctx, candidate)
}

// FailureReport builds the synthetic report substituted for a reviewer that
// could not produce one.
func FailureReport(reviewerID, candidateID string, cause error, at time.Time) Report {
	return Report{
		ReviewerID:  reviewerID,
		CandidateID: candidateID,
		ProducedAt:  at,
		Findings: []Finding{{
			Kind:     "reviewer_failure",
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("reviewer %s did not complete: %v", reviewerID, cause),
		}},
	}
}
