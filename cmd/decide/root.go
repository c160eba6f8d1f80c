package main

import (
	"github.com/spf13/cobra"

	"github.com/slipstream/decisionengine/internal/config"
)

func newRootCommand(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "decide",
		Short:         "Evaluate releases against a decision policy",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", ctx.logLevel, "Log level written to stderr")

	rootCmd.AddCommand(newEvaluateCommand(ctx))
	rootCmd.AddCommand(newValidateCommand(ctx))
	rootCmd.AddCommand(newSpecificationsCommand(ctx))

	return rootCmd
}
