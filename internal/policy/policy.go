// Package policy turns the complete set of reviewer reports for a candidate
// into a single publish decision.
package policy

import (
	"fmt"
	"time"

	"github.com/MEKXH/shipgate/internal/review"
)

// Outcome is the aggregate decision for a candidate.
type Outcome string

const (
	OutcomeAllow Outcome = "allow"
	OutcomeBlock Outcome = "block"
)

// Decision is the aggregated result. Derived from reports, never mutated.
type Decision struct {
	CandidateID      string           `json:"candidate_id"`
	Outcome          Outcome          `json:"outcome"`
	BlockingFindings []review.Finding `json:"blocking_findings"`
	AllFindings      []review.Finding `json:"all_findings"`
	DecidedAt        time.Time        `json:"decided_at"`
}

// Policy is the configured blocking threshold.
type Policy struct {
	blocking map[review.Severity]struct{}
}

// NewPolicy builds a policy from the set of blocking severities. An empty
// set falls back to the default {critical, high}.
func NewPolicy(blockSeverities []review.Severity) (Policy, error) {
	if len(blockSeverities) == 0 {
		blockSeverities = []review.Severity{review.SeverityCritical, review.SeverityHigh}
	}
	blocking := make(map[review.Severity]struct{}, len(blockSeverities))
	for _, severity := range blockSeverities {
		if !severity.Valid() {
			return Policy{}, fmt.Errorf("unknown severity in policy: %q", severity)
		}
		blocking[severity] = struct{}{}
	}
	return Policy{blocking: blocking}, nil
}

// Blocks reports whether the given severity blocks under this policy.
func (p Policy) Blocks(severity review.Severity) bool {
	_, ok := p.blocking[severity]
	return ok
}

// Aggregate merges all reviewer reports into one decision. It is a pure
// function of its inputs: identical report sets always yield identical
// decisions. The caller supplies decidedAt so re-runs stay comparable.
//
// reports must contain exactly one report per id in registered, in the same
// order; a gap is a precondition violation because the orchestrator owns the
// join barrier that waits for completeness.
func (p Policy) Aggregate(candidateID string, reports []review.Report, registered []string, decidedAt time.Time) (Decision, error) {
	if len(reports) != len(registered) {
		return Decision{}, fmt.Errorf("aggregate %s: have %d reports, want %d", candidateID, len(reports), len(registered))
	}
	byReviewer := make(map[string]struct{}, len(reports))
	for _, report := range reports {
		byReviewer[report.ReviewerID] = struct{}{}
	}
	for _, id := range registered {
		if _, ok := byReviewer[id]; !ok {
			return Decision{}, fmt.Errorf("aggregate %s: missing report from reviewer %s", candidateID, id)
		}
	}

	all := []review.Finding{}
	blocking := []review.Finding{}
	for _, report := range reports {
		for _, finding := range report.Findings {
			all = append(all, finding)
			if p.Blocks(finding.Severity) {
				blocking = append(blocking, finding)
			}
		}
	}

	outcome := OutcomeAllow
	if len(blocking) > 0 {
		outcome = OutcomeBlock
	}

	return Decision{
		CandidateID:      candidateID,
		Outcome:          outcome,
		BlockingFindings: blocking,
		AllFindings:      all,
		DecidedAt:        decidedAt,
	}, nil
}
