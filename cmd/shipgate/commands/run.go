package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MEKXH/shipgate/internal/config"
	"github.com/MEKXH/shipgate/internal/orchestrator"
	"github.com/MEKXH/shipgate/internal/render"
	"github.com/MEKXH/shipgate/internal/review"
)

func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Gate a deployment candidate",
		Long: `Fetches the candidate page, runs every configured reviewer, and either
deploys it or holds it at the approval gate.`,
		Args: cobra.ExactArgs(1),
		RunE: runGate,
	}
	cmd.Flags().String("lineage", "", "Deployment lineage the candidate belongs to")
	cmd.Flags().String("candidate", "", "Candidate id (generated when empty)")
	cmd.Flags().Bool("dry-run", false, "Use the in-memory channel and skip publishing")
	_ = cmd.MarkFlagRequired("lineage")
	return cmd
}

func runGate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	url := args[0]
	lineage, _ := cmd.Flags().GetString("lineage")
	candidateID, _ := cmd.Flags().GetString("candidate")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if candidateID == "" {
		candidateID = uuid.NewString()
	}

	rt, err := buildRuntime(ctx, cfg, dryRun)
	if err != nil {
		return err
	}

	rawHTML, page, err := rt.fetcher.Fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("fetch candidate: %w", err)
	}

	outcome, err := rt.orch.Run(ctx, review.Candidate{
		ID:      candidateID,
		Lineage: lineage,
		URL:     url,
		HTML:    rawHTML,
		Page:    page,
	})
	if outcome.Decision.CandidateID != "" {
		fmt.Print(render.Decision(outcome.Decision))
	}
	if err != nil {
		return err
	}

	switch outcome.Result {
	case orchestrator.ResultDeployed:
		fmt.Printf("\nCandidate %s deployed.\n", candidateID)
	case orchestrator.ResultAborted:
		if outcome.Request != nil {
			fmt.Printf("\nCandidate %s aborted (gate %s).\n", candidateID, outcome.Request.State)
		} else {
			fmt.Printf("\nCandidate %s aborted.\n", candidateID)
		}
	}
	return nil
}
