package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MEKXH/shipgate/internal/audit"
	"github.com/MEKXH/shipgate/internal/config"
	"github.com/MEKXH/shipgate/internal/metrics"
	"github.com/MEKXH/shipgate/internal/render"
)

func NewAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit [candidateID]",
		Short: "Show the audit trail",
		Long: `Lists audit records, oldest first. With a candidate id the trail is
filtered to that candidate; --replay reconstructs its gate state from the
trail alone.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runAudit,
	}
	cmd.Flags().Bool("replay", false, "Reconstruct gate state from the candidate's trail")
	cmd.Flags().Bool("stats", false, "Show runtime reviewer and gate counters")
	return cmd
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	workspace, err := cfg.WorkspacePathChecked()
	if err != nil {
		return fmt.Errorf("invalid workspace: %w", err)
	}

	log := audit.NewLog(workspace)
	replay, _ := cmd.Flags().GetBool("replay")
	stats, _ := cmd.Flags().GetBool("stats")

	var records []audit.Record
	if len(args) == 1 {
		records, err = log.ForCandidate(args[0])
	} else {
		records, err = log.ReadAll()
	}
	if err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	fmt.Print(render.AuditTrail(records))

	if replay {
		if len(args) != 1 {
			return fmt.Errorf("--replay needs a candidate id")
		}
		replayed, opened, err := audit.Replay(records)
		if err != nil {
			return fmt.Errorf("replay: %w", err)
		}
		fmt.Println()
		if !opened {
			fmt.Println("No gate was opened for this candidate.")
		} else {
			fmt.Printf("Replayed gate state: %s (request %s)\n", replayed.State, replayed.RequestID)
			if replayed.Approver != "" {
				fmt.Printf("Approved by %s: %s\n", replayed.Approver, replayed.Reason)
			}
			if replayed.SupersededBy != "" {
				fmt.Printf("Superseded by request %s\n", replayed.SupersededBy)
			}
		}
	}

	if stats {
		snapshot, err := metrics.ReadRuntimeSnapshot(workspace)
		if err != nil {
			return fmt.Errorf("read runtime metrics: %w", err)
		}
		fmt.Println()
		if !snapshot.HasData() {
			fmt.Println("No runtime metrics recorded yet.")
			return nil
		}
		fmt.Printf("Reviewer runs: %d (%.0f%% failed, avg %.0fms, p95 ~%dms)\n",
			snapshot.Reviewer.Total,
			snapshot.Reviewer.FailureRatio()*100,
			snapshot.Reviewer.AvgLatencyMs(),
			snapshot.Reviewer.P95ProxyLatencyMs,
		)
		fmt.Printf("Gate runs: %d (allow %d, block %d, approved %d, timed out %d, superseded %d, deployed %d, aborted %d)\n",
			snapshot.Gate.Runs,
			snapshot.Gate.Allowed,
			snapshot.Gate.Blocked,
			snapshot.Gate.Approved,
			snapshot.Gate.TimedOut,
			snapshot.Gate.Superseded,
			snapshot.Gate.Deployed,
			snapshot.Gate.Aborted,
		)
	}
	return nil
}
