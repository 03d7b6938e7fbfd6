package commands

import (
	"strings"
	"testing"
	"time"

	"github.com/MEKXH/shipgate/internal/config"
	"github.com/MEKXH/shipgate/internal/review"
	"github.com/MEKXH/shipgate/internal/review/baseline"
)

func TestBaselineShow_PrintsStoredSnapshot(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("USERPROFILE", tmpDir)

	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	cfg := config.DefaultConfig()
	store := baseline.NewStore(cfg.WorkspacePath())
	err := store.Save(baseline.Baseline{
		Lineage:    "counter-app",
		URL:        "http://localhost:8080/",
		CapturedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Page: review.Snapshot{
			Title:   "Counter",
			Buttons: []review.ButtonInfo{{ID: "increment", Text: "+"}},
			IDs:     []string{"count", "increment"},
		},
	})
	if err != nil {
		t.Fatalf("save baseline: %v", err)
	}

	cmd := newBaselineShowCmd()
	if err := cmd.Flags().Set("lineage", "counter-app"); err != nil {
		t.Fatalf("set lineage flag: %v", err)
	}

	out := captureOutput(t, func() {
		if err := runBaselineShow(cmd, nil); err != nil {
			t.Errorf("runBaselineShow: %v", err)
		}
	})
	if !strings.Contains(out, `"Counter"`) {
		t.Fatalf("expected title in output, got %q", out)
	}
	if !strings.Contains(out, "2 ids") {
		t.Fatalf("expected id count in output, got %q", out)
	}
}

func TestBaselineShow_MissingBaseline(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("USERPROFILE", tmpDir)

	if err := runInit(nil, nil); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	cmd := newBaselineShowCmd()
	if err := cmd.Flags().Set("lineage", "no-such-lineage"); err != nil {
		t.Fatalf("set lineage flag: %v", err)
	}

	out := captureOutput(t, func() {
		if err := runBaselineShow(cmd, nil); err != nil {
			t.Errorf("runBaselineShow: %v", err)
		}
	})
	if !strings.Contains(out, "No baseline stored") {
		t.Fatalf("expected missing-baseline notice, got %q", out)
	}
}
