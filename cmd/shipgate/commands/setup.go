package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MEKXH/shipgate/internal/audit"
	"github.com/MEKXH/shipgate/internal/config"
	"github.com/MEKXH/shipgate/internal/deploy"
	"github.com/MEKXH/shipgate/internal/gate"
	"github.com/MEKXH/shipgate/internal/metrics"
	"github.com/MEKXH/shipgate/internal/notify"
	"github.com/MEKXH/shipgate/internal/notify/memory"
	"github.com/MEKXH/shipgate/internal/notify/telegram"
	"github.com/MEKXH/shipgate/internal/orchestrator"
	"github.com/MEKXH/shipgate/internal/policy"
	"github.com/MEKXH/shipgate/internal/provider"
	"github.com/MEKXH/shipgate/internal/review"
	"github.com/MEKXH/shipgate/internal/review/baseline"
	"github.com/MEKXH/shipgate/internal/review/fetch"
	"github.com/MEKXH/shipgate/internal/review/semantic"
	"github.com/MEKXH/shipgate/internal/review/structural"
)

// gateRuntime holds the wired components one gate run (or the server) needs.
type gateRuntime struct {
	cfg       *config.Config
	workspace string
	fetcher   *fetch.Fetcher
	baselines *baseline.Store
	gate      *gate.Service
	audit     *audit.Log
	channel   notify.Channel
	orch      *orchestrator.Orchestrator
}

// buildRuntime wires reviewers, policy, channel, gate, and deployer from
// config. dryRun swaps in the in-memory channel and a no-op deployer.
func buildRuntime(ctx context.Context, cfg *config.Config, dryRun bool) (*gateRuntime, error) {
	workspace, err := cfg.WorkspacePathChecked()
	if err != nil {
		return nil, fmt.Errorf("invalid workspace: %w", err)
	}

	baselines := baseline.NewStore(workspace)
	registry := review.NewRegistry(cfg.Reviewers.Timeout())
	for _, name := range cfg.Reviewers.Order {
		rev, err := buildReviewer(ctx, cfg, name, baselines)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(rev); err != nil {
			return nil, err
		}
	}

	blockSeverities := make([]review.Severity, 0, len(cfg.Policy.BlockSeverities))
	for _, s := range cfg.Policy.BlockSeverities {
		blockSeverities = append(blockSeverities, review.Severity(strings.ToLower(strings.TrimSpace(s))))
	}
	pol, err := policy.NewPolicy(blockSeverities)
	if err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	channel, err := buildChannel(cfg, dryRun)
	if err != nil {
		return nil, err
	}

	gateSvc := gate.NewService(workspace, channel, gate.Config{
		MaxWait:      cfg.Gate.MaxWait(),
		PollInterval: cfg.Gate.PollInterval(),
		Marker:       cfg.Gate.Marker,
		Approvers:    cfg.Gate.Approvers,
	})
	auditLog := audit.NewLog(workspace)

	deployer, err := buildDeployer(cfg, dryRun)
	if err != nil {
		return nil, err
	}

	orch, err := orchestrator.New(registry, pol, gateSvc, auditLog, channel, deployer)
	if err != nil {
		return nil, err
	}
	orch.SetRuntimeMetrics(metrics.NewRuntimeMetrics(workspace))

	return &gateRuntime{
		cfg:       cfg,
		workspace: workspace,
		fetcher:   fetch.NewFetcher(30 * time.Second),
		baselines: baselines,
		gate:      gateSvc,
		audit:     auditLog,
		channel:   channel,
		orch:      orch,
	}, nil
}

func buildReviewer(ctx context.Context, cfg *config.Config, name string, baselines *baseline.Store) (review.Reviewer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "structural":
		return structural.New(cfg.Reviewers.CriticalElements), nil
	case "baseline":
		return baseline.NewReviewer(baselines), nil
	case "semantic":
		chatModel, err := provider.NewChatModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("semantic reviewer needs a model provider: %w", err)
		}
		return semantic.New(chatModel), nil
	default:
		return nil, fmt.Errorf("unknown reviewer %q in reviewers.order", name)
	}
}

func buildChannel(cfg *config.Config, dryRun bool) (notify.Channel, error) {
	if dryRun || !cfg.Channels.Telegram.Enabled {
		if !dryRun {
			slog.Info("telegram disabled, approvals via in-memory channel will only time out")
		}
		return memory.New(), nil
	}
	channel, err := telegram.New(&cfg.Channels.Telegram)
	if err != nil {
		return nil, fmt.Errorf("telegram channel: %w", err)
	}
	return channel, nil
}

func buildDeployer(cfg *config.Config, dryRun bool) (deploy.Controller, error) {
	if dryRun || strings.TrimSpace(cfg.Deploy.WebhookURL) == "" {
		if !dryRun {
			slog.Info("no deploy webhook configured, publishing is a no-op")
		}
		return deploy.NoOp{}, nil
	}
	return deploy.NewWebhook(cfg.Deploy.WebhookURL, cfg.Deploy.Token)
}
