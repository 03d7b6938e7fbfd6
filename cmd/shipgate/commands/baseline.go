package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MEKXH/shipgate/internal/config"
	"github.com/MEKXH/shipgate/internal/review"
	"github.com/MEKXH/shipgate/internal/review/baseline"
	"github.com/MEKXH/shipgate/internal/review/fetch"
)

func NewBaselineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage known-good page baselines",
	}
	cmd.AddCommand(newBaselineCaptureCmd(), newBaselineShowCmd())
	return cmd
}

func newBaselineCaptureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture <url>",
		Short: "Record the current page as the lineage baseline",
		Args:  cobra.ExactArgs(1),
		RunE:  runBaselineCapture,
	}
	cmd.Flags().String("lineage", "", "Deployment lineage the baseline belongs to")
	_ = cmd.MarkFlagRequired("lineage")
	return cmd
}

func newBaselineShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored baseline for a lineage",
		RunE:  runBaselineShow,
	}
	cmd.Flags().String("lineage", "", "Deployment lineage")
	_ = cmd.MarkFlagRequired("lineage")
	return cmd
}

func runBaselineCapture(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	workspace, err := cfg.WorkspacePathChecked()
	if err != nil {
		return fmt.Errorf("invalid workspace: %w", err)
	}

	url := args[0]
	lineage, _ := cmd.Flags().GetString("lineage")

	fetcher := fetch.NewFetcher(30 * time.Second)
	rawHTML, page, err := fetcher.Fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("fetch page: %w", err)
	}

	store := baseline.NewStore(workspace)
	candidate := review.Candidate{Lineage: lineage, URL: url, HTML: rawHTML, Page: page}
	if err := store.Capture(candidate, time.Now().UTC()); err != nil {
		return fmt.Errorf("capture baseline: %w", err)
	}

	fmt.Printf("Baseline captured for lineage %q from %s\n", lineage, url)
	fmt.Printf("Elements: %d buttons, %d scripts, %d stylesheets, title %q\n",
		len(page.Buttons), len(page.Scripts), len(page.Stylesheets), page.Title)
	return nil
}

func runBaselineShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	workspace, err := cfg.WorkspacePathChecked()
	if err != nil {
		return fmt.Errorf("invalid workspace: %w", err)
	}

	lineage, _ := cmd.Flags().GetString("lineage")
	store := baseline.NewStore(workspace)
	base, found, err := store.Load(lineage)
	if err != nil {
		return fmt.Errorf("load baseline: %w", err)
	}
	if !found {
		fmt.Printf("No baseline stored for lineage %q.\n", lineage)
		return nil
	}

	fmt.Printf("Lineage:  %s\n", base.Lineage)
	fmt.Printf("URL:      %s\n", base.URL)
	fmt.Printf("Captured: %s\n", base.CapturedAt.Format(time.RFC3339))
	fmt.Printf("Title:    %q\n", base.Page.Title)
	fmt.Printf("Elements: %d buttons, %d scripts, %d stylesheets, %d ids\n",
		len(base.Page.Buttons), len(base.Page.Scripts), len(base.Page.Stylesheets), len(base.Page.IDs))
	return nil
}
