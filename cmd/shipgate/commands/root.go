package commands

import (
	"github.com/MEKXH/shipgate/internal/config"
	"github.com/spf13/cobra"
)

var logLevelOverride string

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shipgate",
		Short: "Shipgate - Deployment quality gate",
		Long:  `Shipgate reviews deployment candidates, blocks risky ones, and holds them for human approval.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "init" {
				return configureLogger(config.DefaultConfig(), logLevelOverride)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return configureLogger(cfg, logLevelOverride)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level (debug|info|warn|error)")

	cmd.AddCommand(
		NewInitCmd(),
		NewRunCmd(),
		NewServeCmd(),
		NewBaselineCmd(),
		NewApprovalsCmd(),
		NewAuditCmd(),
		NewVersionCmd(),
	)

	return cmd
}
