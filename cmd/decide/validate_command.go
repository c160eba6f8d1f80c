package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/slipstream/decisionengine/internal/library/quality"
	"github.com/slipstream/decisionengine/internal/policy"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var policyPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a policy file and summarise its profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := ctx.loadPolicy(policyPath)
			if err != nil {
				return err
			}
			sum, err := policy.Checksum(doc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderProfiles(doc.Profiles))
			fmt.Fprintf(out, "policy ok: %d profiles, %d custom formats, %d items, checksum %s\n",
				len(doc.Profiles), len(doc.CustomFormats), len(doc.Items), sum[:12])
			return nil
		},
	}

	cmd.Flags().StringVarP(&policyPath, "policy", "p", "", "Policy file (yaml, toml or json)")
	_ = cmd.MarkFlagRequired("policy")
	return cmd
}

func renderProfiles(profiles []quality.Profile) string {
	headers := []string{"ID", "Name", "Cutoff", "Upgrades", "Allowed", "Min Score"}
	aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight, alignRight}

	rows := make([][]string, 0, len(profiles))
	for _, p := range profiles {
		allowed := 0
		for _, item := range p.Items {
			if item.Allowed {
				allowed++
			}
		}
		upgrades := "no"
		if p.UpgradeAllowed {
			upgrades = "yes"
		}
		rows = append(rows, []string{
			strconv.FormatInt(p.ID, 10),
			p.Name,
			strconv.Itoa(p.Cutoff),
			upgrades,
			strconv.Itoa(allowed),
			strconv.Itoa(p.MinFormatScore),
		})
	}
	return renderTable(headers, rows, aligns)
}
