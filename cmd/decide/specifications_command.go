package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slipstream/decisionengine/internal/decisioning/specifications"
)

func newSpecificationsCommand(_ *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "specifications",
		Short: "List the specifications in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for i, name := range specifications.Names(specifications.Default()) {
				fmt.Fprintf(cmd.OutOrStdout(), "%2d  %s\n", i+1, name)
			}
			return nil
		},
	}
}
