package commands

import (
	"context"
	"testing"

	"github.com/MEKXH/shipgate/internal/config"
	"github.com/MEKXH/shipgate/internal/orchestrator"
	"github.com/MEKXH/shipgate/internal/policy"
	"github.com/MEKXH/shipgate/internal/review"
	"github.com/MEKXH/shipgate/internal/review/fetch"
)

const healthyPage = `<!DOCTYPE html>
<html>
<head>
  <title>Counter</title>
  <link rel="stylesheet" href="style.css">
</head>
<body>
  <h1>Counter</h1>
  <span id="count">0</span>
  <button id="increment">+</button>
  <button id="decrement">-</button>
  <button id="reset">Reset</button>
  <script src="app.js"></script>
</body>
</html>`

func dryRunConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Workspace = t.TempDir()
	// No provider keys in tests, so the model-backed reviewer stays out.
	cfg.Reviewers.Order = []string{"structural", "baseline"}
	cfg.Gate.MaxWaitMinutes = 1
	return cfg
}

func TestBuildRuntime_DryRun(t *testing.T) {
	rt, err := buildRuntime(context.Background(), dryRunConfig(t), true)
	if err != nil {
		t.Fatalf("buildRuntime: %v", err)
	}
	if rt.channel.Name() != "memory" {
		t.Fatalf("expected memory channel in dry run, got %q", rt.channel.Name())
	}
}

func TestBuildRuntime_UnknownReviewer(t *testing.T) {
	cfg := dryRunConfig(t)
	cfg.Reviewers.Order = []string{"structural", "mystery"}

	if _, err := buildRuntime(context.Background(), cfg, true); err == nil {
		t.Fatal("expected error for unknown reviewer")
	}
}

func TestBuildRuntime_SemanticNeedsProvider(t *testing.T) {
	cfg := dryRunConfig(t)
	cfg.Reviewers.Order = []string{"semantic"}

	if _, err := buildRuntime(context.Background(), cfg, true); err == nil {
		t.Fatal("expected error when no provider is configured")
	}
}

func TestDryRunGate_HealthyPageDeploys(t *testing.T) {
	rt, err := buildRuntime(context.Background(), dryRunConfig(t), true)
	if err != nil {
		t.Fatalf("buildRuntime: %v", err)
	}

	page, err := fetch.Parse(healthyPage)
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}

	outcome, err := rt.orch.Run(context.Background(), review.Candidate{
		ID:      "cand-1",
		Lineage: "counter-app",
		URL:     "http://localhost:8000",
		HTML:    healthyPage,
		Page:    page,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Decision.Outcome != policy.OutcomeAllow {
		t.Fatalf("expected allow for healthy page, got %s with %+v",
			outcome.Decision.Outcome, outcome.Decision.BlockingFindings)
	}
	if outcome.Result != orchestrator.ResultDeployed {
		t.Fatalf("expected %s, got %s", orchestrator.ResultDeployed, outcome.Result)
	}
}
