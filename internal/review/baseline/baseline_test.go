package baseline

import (
	"context"
	"testing"
	"time"

	"github.com/MEKXH/shipgate/internal/review"
	"github.com/MEKXH/shipgate/internal/review/fetch"
)

const basePage = `<html><head><title>Counter</title>
<link rel="stylesheet" href="style.css"><script src="app.js"></script></head>
<body>
<div id="count">0</div>
<button id="increment">+</button>
<button id="decrement">-</button>
<button id="reset">Reset</button>
</body></html>`

const brokenPage = `<html><head><title>Counter</title>
<link rel="stylesheet" href="style.css"><script src="app.js"></script></head>
<body>
<div id="count">0</div>
<button id="decrement">-</button>
<button id="reset">Reset</button>
</body></html>`

func mustParse(t *testing.T, rawHTML string) *review.Snapshot {
	t.Helper()
	snapshot, err := fetch.Parse(rawHTML)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	return snapshot
}

func TestStore_CaptureAndLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	capturedAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	err := store.Capture(review.Candidate{
		ID:      "cand-1",
		Lineage: "main",
		URL:     "https://example.test/app",
		Page:    mustParse(t, basePage),
	}, capturedAt)
	if err != nil {
		t.Fatalf("Capture error: %v", err)
	}

	loaded, ok, err := store.Load("main")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !ok {
		t.Fatal("expected baseline to exist")
	}
	if !loaded.CapturedAt.Equal(capturedAt) {
		t.Fatalf("unexpected captured_at: %s", loaded.CapturedAt)
	}
	if !loaded.Page.HasID("increment") {
		t.Fatal("expected baseline page to contain #increment")
	}
}

func TestStore_LoadMissingLineage(t *testing.T) {
	store := NewStore(t.TempDir())
	_, ok, err := store.Load("never-captured")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if ok {
		t.Fatal("expected no baseline")
	}
}

func TestReviewer_NoBaselineIsInfoOnly(t *testing.T) {
	rev := NewReviewer(NewStore(t.TempDir()))
	report, err := rev.Review(context.Background(), review.Candidate{
		ID:      "cand-1",
		Lineage: "main",
		Page:    mustParse(t, basePage),
	})
	if err != nil {
		t.Fatalf("Review error: %v", err)
	}
	if len(report.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(report.Findings))
	}
	if report.Findings[0].Kind != "no_baseline" || report.Findings[0].Severity != review.SeverityInfo {
		t.Fatalf("unexpected finding: %+v", report.Findings[0])
	}
}

func TestReviewer_DetectsRemovedElementAndFewerButtons(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := store.Capture(review.Candidate{
		ID: "cand-1", Lineage: "main", Page: mustParse(t, basePage),
	}, time.Now()); err != nil {
		t.Fatalf("Capture error: %v", err)
	}

	rev := NewReviewer(store)
	report, err := rev.Review(context.Background(), review.Candidate{
		ID:      "cand-2",
		Lineage: "main",
		Page:    mustParse(t, brokenPage),
	})
	if err != nil {
		t.Fatalf("Review error: %v", err)
	}

	byKind := map[string]review.Finding{}
	for _, f := range report.Findings {
		byKind[f.Kind] = f
	}
	removed, ok := byKind["removed_element"]
	if !ok {
		t.Fatalf("expected removed_element finding, got %+v", report.Findings)
	}
	if removed.Severity != review.SeverityCritical || removed.Location != "#increment" {
		t.Fatalf("unexpected removed_element finding: %+v", removed)
	}
	if fewer, ok := byKind["fewer_buttons"]; !ok || fewer.Severity != review.SeverityHigh {
		t.Fatalf("expected high fewer_buttons finding, got %+v", byKind)
	}
}

func TestReviewer_IdenticalSnapshotIsClean(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := store.Capture(review.Candidate{
		ID: "cand-1", Lineage: "main", Page: mustParse(t, basePage),
	}, time.Now()); err != nil {
		t.Fatalf("Capture error: %v", err)
	}

	rev := NewReviewer(store)
	report, err := rev.Review(context.Background(), review.Candidate{
		ID: "cand-2", Lineage: "main", Page: mustParse(t, basePage),
	})
	if err != nil {
		t.Fatalf("Review error: %v", err)
	}
	if len(report.Findings) != 0 {
		t.Fatalf("expected no findings, got %+v", report.Findings)
	}
}
