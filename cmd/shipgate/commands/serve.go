package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MEKXH/shipgate/internal/config"
	"github.com/MEKXH/shipgate/internal/gateway"
	"github.com/MEKXH/shipgate/internal/review"
)

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the Shipgate server",
		Long:  `Runs the HTTP gateway; submitted candidates are gated in the background.`,
		RunE:  runServe,
	}
}

// gatewayRunner adapts the wired runtime to the gateway's submission
// interface: fetch the page, then hand the candidate to the orchestrator.
type gatewayRunner struct {
	rt *gateRuntime
}

func (g *gatewayRunner) Submit(ctx context.Context, candidateID, url, lineage string) error {
	rawHTML, page, err := g.rt.fetcher.Fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("fetch candidate: %w", err)
	}
	outcome, err := g.rt.orch.Run(ctx, review.Candidate{
		ID:      candidateID,
		Lineage: lineage,
		URL:     url,
		HTML:    rawHTML,
		Page:    page,
	})
	if err != nil {
		return err
	}
	slog.Info("gate run finished",
		"candidate_id", candidateID,
		"lineage", lineage,
		"outcome", string(outcome.Decision.Outcome),
		"result", string(outcome.Result),
	)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	rt, err := buildRuntime(ctx, cfg, false)
	if err != nil {
		return err
	}

	resumed, err := rt.orch.Resume(ctx)
	if err != nil {
		return fmt.Errorf("resume open approval requests: %w", err)
	}
	if resumed > 0 {
		slog.Info("resumed approval requests left open by a previous run", "count", resumed)
	}

	gatewayServer := gateway.New(cfg.Gateway, &gatewayRunner{rt: rt}, rt.gate)

	errCh := make(chan error, 1)
	go func() {
		if err := gatewayServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("gateway server failed: %w", err)
		}
	}()

	fmt.Printf("Shipgate server running. Gateway: http://%s\nPress Ctrl+C to stop.\n", gatewayServer.Addr())

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		slog.Error("server component failed", "error", runErr)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	slog.Info("shutting down")
	if err := gatewayServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("gateway shutdown failed", "error", err)
	}

	return runErr
}
