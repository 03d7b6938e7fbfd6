package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MEKXH/shipgate/internal/config"
	"github.com/MEKXH/shipgate/internal/gate"
	"github.com/MEKXH/shipgate/internal/notify/memory"
	"github.com/MEKXH/shipgate/internal/render"
)

func NewApprovalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "Inspect approval requests",
	}
	cmd.AddCommand(newApprovalsListCmd(), newApprovalsShowCmd())
	return cmd
}

func newApprovalsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List approval requests",
		RunE:  runApprovalsList,
	}
	cmd.Flags().String("state", "", "Filter by state (open|approved|timed_out|superseded)")
	cmd.Flags().String("lineage", "", "Filter by lineage")
	return cmd
}

func newApprovalsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one approval request with its decision",
		Args:  cobra.ExactArgs(1),
		RunE:  runApprovalsShow,
	}
}

// readOnlyGate opens the gate service against the workspace store without a
// live notification channel. Listing never probes the channel.
func readOnlyGate() (*gate.Service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	workspace, err := cfg.WorkspacePathChecked()
	if err != nil {
		return nil, fmt.Errorf("invalid workspace: %w", err)
	}
	return gate.NewService(workspace, memory.New(), gate.Config{
		MaxWait:      cfg.Gate.MaxWait(),
		PollInterval: cfg.Gate.PollInterval(),
		Marker:       cfg.Gate.Marker,
		Approvers:    cfg.Gate.Approvers,
	}), nil
}

func runApprovalsList(cmd *cobra.Command, args []string) error {
	svc, err := readOnlyGate()
	if err != nil {
		return err
	}

	state, _ := cmd.Flags().GetString("state")
	lineage, _ := cmd.Flags().GetString("lineage")

	requests, err := svc.List(gate.Query{State: gate.State(state), Lineage: lineage})
	if err != nil {
		return fmt.Errorf("list approvals: %w", err)
	}
	fmt.Print(render.Requests(requests))
	return nil
}

func runApprovalsShow(cmd *cobra.Command, args []string) error {
	svc, err := readOnlyGate()
	if err != nil {
		return err
	}

	request, err := svc.Get(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Request:   %s\n", request.ID)
	fmt.Printf("Candidate: %s\n", request.CandidateID)
	fmt.Printf("Lineage:   %s\n", request.Lineage)
	fmt.Printf("State:     %s\n", request.State)
	fmt.Printf("Created:   %s\n", request.CreatedAt.Format(time.RFC3339))
	if !request.ResolvedAt.IsZero() {
		fmt.Printf("Resolved:  %s\n", request.ResolvedAt.Format(time.RFC3339))
	}
	if request.Approver != "" {
		fmt.Printf("Approver:  %s\n", request.Approver)
		fmt.Printf("Reason:    %s\n", request.Reason)
	}
	if request.SupersededBy != "" {
		fmt.Printf("Superseded by: %s\n", request.SupersededBy)
	}
	if request.State == gate.StateTimedOut && request.ProbeNeverSucceeded {
		fmt.Println("Note: the approval channel was never reachable while this gate was open.")
	}
	fmt.Println()
	fmt.Print(render.Decision(request.Decision))
	return nil
}
