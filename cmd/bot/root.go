package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bot",
		Short: "Shift attendance confirmation and escalation bot",
		Long: `Asks scheduled workers to confirm presence when their shift starts and
escalates unanswered confirmations through the configured policy stages.

Without a subcommand the bot runs in serve mode.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(newServeCmd(), newSweepCmd(), newPolicyCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat bot, cron sweeps and HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}
