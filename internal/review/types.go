package review

import "time"

// Severity ranks how badly a finding endangers the candidate.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

var severityRank = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
	SeverityInfo:     0,
}

// Rank returns a numeric weight for ordering; unknown severities rank lowest.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// Finding is one reported issue from a reviewer. Immutable once produced.
type Finding struct {
	Kind         string   `json:"kind"`
	Severity     Severity `json:"severity"`
	Message      string   `json:"message"`
	Location     string   `json:"location,omitempty"`
	SuggestedFix string   `json:"suggested_fix,omitempty"`
}

// Report is one reviewer's complete output for one candidate.
type Report struct {
	ReviewerID  string    `json:"reviewer_id"`
	CandidateID string    `json:"candidate_id"`
	Findings    []Finding `json:"findings"`
	ProducedAt  time.Time `json:"produced_at"`
}

// Candidate is a proposed change awaiting the gate's decision.
// Lineage groups successive candidates for the same deployment target.
type Candidate struct {
	ID      string
	Lineage string
	URL     string
	HTML    string
	Page    *Snapshot
}
