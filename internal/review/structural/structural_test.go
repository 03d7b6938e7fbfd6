package structural

import (
	"context"
	"testing"
	"time"

	"github.com/MEKXH/shipgate/internal/review"
	"github.com/MEKXH/shipgate/internal/review/fetch"
)

func reviewPage(t *testing.T, rawHTML string, criticalIDs []string) review.Report {
	t.Helper()
	snapshot, err := fetch.Parse(rawHTML)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	rev := New(criticalIDs)
	rev.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	report, err := rev.Review(context.Background(), review.Candidate{
		ID:   "cand-1",
		Page: snapshot,
	})
	if err != nil {
		t.Fatalf("Review error: %v", err)
	}
	return report
}

func findingsOfKind(report review.Report, kind string) []review.Finding {
	var matched []review.Finding
	for _, f := range report.Findings {
		if f.Kind == kind {
			matched = append(matched, f)
		}
	}
	return matched
}

func TestReview_HealthyPageHasNoBlockingFindings(t *testing.T) {
	page := `<html><head><title>Counter</title>
	<link rel="stylesheet" href="style.css"><script src="app.js"></script></head>
	<body>
	<div id="count">0</div>
	<button id="increment">+</button>
	<button id="decrement">-</button>
	<button id="reset">Reset</button>
	</body></html>`

	report := reviewPage(t, page, []string{"count", "increment", "decrement", "reset"})
	for _, f := range report.Findings {
		if f.Severity == review.SeverityCritical || f.Severity == review.SeverityHigh {
			t.Fatalf("unexpected blocking finding: %+v", f)
		}
	}
}

func TestReview_MissingCriticalElementIsCritical(t *testing.T) {
	page := `<html><head><title>Counter</title><script src="app.js"></script></head>
	<body>
	<div id="count">0</div>
	<button id="decrement">-</button>
	<button id="reset">Reset</button>
	</body></html>`

	report := reviewPage(t, page, []string{"count", "increment", "decrement", "reset"})
	missing := findingsOfKind(report, "missing_critical_element")
	if len(missing) != 1 {
		t.Fatalf("expected 1 missing element finding, got %d", len(missing))
	}
	if missing[0].Severity != review.SeverityCritical {
		t.Fatalf("expected critical severity, got %s", missing[0].Severity)
	}
	if missing[0].Location != "#increment" {
		t.Fatalf("unexpected location: %q", missing[0].Location)
	}
}

func TestReview_DuplicateIDReportedOnce(t *testing.T) {
	page := `<html><head><title>t</title><script src="a.js"></script></head>
	<body><div id="count"></div><span id="count"></span><button id="b">go</button></body></html>`

	report := reviewPage(t, page, nil)
	dups := findingsOfKind(report, "duplicate_id")
	if len(dups) != 1 {
		t.Fatalf("expected duplicate id reported once, got %d", len(dups))
	}
	if dups[0].Severity != review.SeverityCritical {
		t.Fatalf("expected critical severity, got %s", dups[0].Severity)
	}
}

func TestReview_EmptyButtonAndMissingScripts(t *testing.T) {
	page := `<html><head><title>t</title></head><body><button id="go"></button></body></html>`

	report := reviewPage(t, page, nil)
	if len(findingsOfKind(report, "empty_button")) != 1 {
		t.Fatal("expected empty button finding")
	}
	if len(findingsOfKind(report, "no_scripts")) != 1 {
		t.Fatal("expected no_scripts finding")
	}
	if len(findingsOfKind(report, "no_stylesheets")) != 1 {
		t.Fatal("expected no_stylesheets finding")
	}
}

func TestReview_AriaLabelSatisfiesButtonText(t *testing.T) {
	page := `<html><head><title>t</title><script src="a.js"></script></head>
	<body><button id="reset" aria-label="Reset counter"></button></body></html>`

	report := reviewPage(t, page, nil)
	if len(findingsOfKind(report, "empty_button")) != 0 {
		t.Fatal("aria-label should satisfy the empty button check")
	}
}

func TestReview_AccessibilityChecks(t *testing.T) {
	page := `<html><head><title>t</title><script src="a.js"></script></head>
	<body>
	<input id="email" type="text">
	<img src="hero.png">
	<a href="/somewhere"></a>
	<button id="b">ok</button>
	</body></html>`

	report := reviewPage(t, page, nil)
	for _, kind := range []string{"input_without_label", "image_without_alt", "empty_link"} {
		found := findingsOfKind(report, kind)
		if len(found) != 1 {
			t.Fatalf("expected 1 %s finding, got %d", kind, len(found))
		}
		if found[0].Severity != review.SeverityMedium {
			t.Fatalf("expected medium severity for %s, got %s", kind, found[0].Severity)
		}
	}
}

func TestReview_NoParsedPageFails(t *testing.T) {
	rev := New(nil)
	if _, err := rev.Review(context.Background(), review.Candidate{ID: "cand"}); err == nil {
		t.Fatal("expected error for candidate without parsed page")
	}
}
