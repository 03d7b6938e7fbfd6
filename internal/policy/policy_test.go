package policy

import (
	"reflect"
	"testing"
	"time"

	"github.com/MEKXH/shipgate/internal/review"
)

var decidedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func defaultPolicy(t *testing.T) Policy {
	t.Helper()
	p, err := NewPolicy(nil)
	if err != nil {
		t.Fatalf("NewPolicy error: %v", err)
	}
	return p
}

func report(reviewerID string, severities ...review.Severity) review.Report {
	findings := make([]review.Finding, 0, len(severities))
	for i, severity := range severities {
		findings = append(findings, review.Finding{
			Kind:     "issue",
			Severity: severity,
			Message:  string(severity),
			Location: reviewerID,
		})
		_ = i
	}
	return review.Report{
		ReviewerID:  reviewerID,
		CandidateID: "cand-1",
		Findings:    findings,
		ProducedAt:  decidedAt,
	}
}

func TestAggregate_BlockingSeverities(t *testing.T) {
	tests := []struct {
		name     string
		reports  []review.Report
		expected Outcome
	}{
		{
			name:     "critical blocks",
			reports:  []review.Report{report("structural", review.SeverityCritical)},
			expected: OutcomeBlock,
		},
		{
			name:     "high blocks",
			reports:  []review.Report{report("structural", review.SeverityLow, review.SeverityHigh)},
			expected: OutcomeBlock,
		},
		{
			name:     "medium low info allow",
			reports:  []review.Report{report("structural", review.SeverityMedium, review.SeverityLow, review.SeverityInfo)},
			expected: OutcomeAllow,
		},
		{
			name:     "no findings allow",
			reports:  []review.Report{report("structural")},
			expected: OutcomeAllow,
		},
	}

	p := defaultPolicy(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := p.Aggregate("cand-1", tt.reports, []string{"structural"}, decidedAt)
			if err != nil {
				t.Fatalf("Aggregate error: %v", err)
			}
			if decision.Outcome != tt.expected {
				t.Fatalf("expected %s, got %s", tt.expected, decision.Outcome)
			}
		})
	}
}

func TestAggregate_BlockingFindingsAreExactSubset(t *testing.T) {
	p := defaultPolicy(t)
	reports := []review.Report{
		report("structural", review.SeverityCritical, review.SeverityLow),
		report("semantic", review.SeverityMedium, review.SeverityHigh),
	}

	decision, err := p.Aggregate("cand-1", reports, []string{"structural", "semantic"}, decidedAt)
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}
	if len(decision.AllFindings) != 4 {
		t.Fatalf("expected 4 findings, got %d", len(decision.AllFindings))
	}
	if len(decision.BlockingFindings) != 2 {
		t.Fatalf("expected 2 blocking findings, got %d", len(decision.BlockingFindings))
	}
	for _, f := range decision.BlockingFindings {
		if !p.Blocks(f.Severity) {
			t.Fatalf("non-blocking finding in blocking set: %+v", f)
		}
	}
}

func TestAggregate_Deterministic(t *testing.T) {
	p := defaultPolicy(t)
	reports := []review.Report{
		report("structural", review.SeverityHigh, review.SeverityInfo),
		report("baseline", review.SeverityMedium),
		report("semantic"),
	}
	registered := []string{"structural", "baseline", "semantic"}

	first, err := p.Aggregate("cand-1", reports, registered, decidedAt)
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}
	second, err := p.Aggregate("cand-1", reports, registered, decidedAt)
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("aggregation not deterministic:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestAggregate_PreservesInputOrder(t *testing.T) {
	p := defaultPolicy(t)
	reports := []review.Report{
		report("structural", review.SeverityLow, review.SeverityMedium),
		report("semantic", review.SeverityInfo),
	}

	decision, err := p.Aggregate("cand-1", reports, []string{"structural", "semantic"}, decidedAt)
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}
	locations := make([]string, 0, len(decision.AllFindings))
	for _, f := range decision.AllFindings {
		locations = append(locations, f.Location)
	}
	expected := []string{"structural", "structural", "semantic"}
	if !reflect.DeepEqual(locations, expected) {
		t.Fatalf("expected order %v, got %v", expected, locations)
	}
}

func TestAggregate_MissingReportIsError(t *testing.T) {
	p := defaultPolicy(t)
	reports := []review.Report{report("structural")}

	if _, err := p.Aggregate("cand-1", reports, []string{"structural", "semantic"}, decidedAt); err == nil {
		t.Fatal("expected error for missing reviewer report")
	}
	wrong := []review.Report{report("structural"), report("imposter")}
	if _, err := p.Aggregate("cand-1", wrong, []string{"structural", "semantic"}, decidedAt); err == nil {
		t.Fatal("expected error for report from unregistered reviewer")
	}
}

func TestNewPolicy_CustomThreshold(t *testing.T) {
	p, err := NewPolicy([]review.Severity{review.SeverityCritical})
	if err != nil {
		t.Fatalf("NewPolicy error: %v", err)
	}
	decision, err := p.Aggregate("cand-1",
		[]review.Report{report("structural", review.SeverityHigh)},
		[]string{"structural"}, decidedAt)
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}
	if decision.Outcome != OutcomeAllow {
		t.Fatalf("high should not block under critical-only policy, got %s", decision.Outcome)
	}
}

func TestNewPolicy_RejectsUnknownSeverity(t *testing.T) {
	if _, err := NewPolicy([]review.Severity{"fatal"}); err == nil {
		t.Fatal("expected error for unknown severity")
	}
}
