package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/slipstream/decisionengine/internal/decisioning"
	"github.com/slipstream/decisionengine/internal/decisioning/specifications"
)

type evaluateOptions struct {
	policyPath   string
	releasesPath string
	source       string
	workers      int
	sizeBucketMB int64
	jsonOutput   bool
	acceptedOnly bool
}

func newEvaluateCommand(ctx *commandContext) *cobra.Command {
	var opts evaluateOptions

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Decide which releases to download",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, ctx, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.policyPath, "policy", "p", "", "Policy file (yaml, toml or json)")
	cmd.Flags().StringVarP(&opts.releasesPath, "releases", "r", "", "Release file (yaml, toml or json)")
	cmd.Flags().StringVar(&opts.source, "source", "", "Override the search source (rss, search, userSearch, interactiveSearch, push)")
	cmd.Flags().IntVar(&opts.workers, "workers", 4, "Releases evaluated concurrently")
	cmd.Flags().Int64Var(&opts.sizeBucketMB, "size-bucket", decisioning.DefaultSizeBucketMB, "Size bucket in MB used when ranking")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Write the batch as JSON")
	cmd.Flags().BoolVar(&opts.acceptedOnly, "accepted", false, "Only list accepted releases, in download order")
	_ = cmd.MarkFlagRequired("policy")
	_ = cmd.MarkFlagRequired("releases")

	return cmd
}

func runEvaluate(cmd *cobra.Command, ctx *commandContext, opts evaluateOptions) error {
	doc, err := ctx.loadPolicy(opts.policyPath)
	if err != nil {
		return err
	}
	file, err := readReleases(ctx.fs, opts.releasesPath)
	if err != nil {
		return err
	}

	search := decisioning.SearchContext{Source: file.Source}
	if opts.source != "" {
		search.Source = decisioning.Source(opts.source)
	}
	if search.Source == "" {
		search.Source = decisioning.SourceSearch
	}
	if !search.Source.Valid() {
		return fmt.Errorf("unknown source %q", search.Source)
	}

	snap, err := doc.Snapshot(ctx.now())
	if err != nil {
		return err
	}

	engine := decisioning.NewEngine(nil, specifications.Default(), decisioning.Config{
		Workers:      opts.workers,
		SizeBucketMB: opts.sizeBucketMB,
		AgeTolerance: decisioning.DefaultAgeTolerance,
	}, ctx.logger(cmd.ErrOrStderr()))

	batch, err := engine.EvaluateSnapshot(cmd.Context(), snap, file.Releases, search)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		return writeJSON(cmd, batch)
	}

	decisions := batch.Decisions
	if opts.acceptedOnly {
		decisions = batch.Ranked
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderDecisions(decisions))
	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d releases accepted\n", batch.AcceptedCount(), len(batch.Decisions))
	return nil
}

func renderDecisions(decisions []*decisioning.Decision) string {
	headers := []string{"Rank", "Title", "Quality", "Score", "Size", "Indexer", "Decision"}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft}

	rows := make([][]string, 0, len(decisions))
	for _, d := range decisions {
		rank := ""
		if d.Rank > 0 {
			rank = strconv.Itoa(d.Rank)
		}
		qualityName, score := "", ""
		if c := d.Candidate; c != nil {
			qualityName = c.Quality.String()
			score = strconv.Itoa(c.FormatScore)
		}
		rows = append(rows, []string{
			rank,
			d.Release.Title,
			qualityName,
			score,
			humanize.Bytes(uint64(max(d.Release.Size, 0))),
			d.Release.IndexerName,
			decisionLabel(d),
		})
	}
	return renderTable(headers, rows, aligns)
}

func decisionLabel(d *decisioning.Decision) string {
	switch {
	case d.Accepted():
		return "accepted"
	case d.TemporarilyRejected():
		return "pending: " + strings.Join(d.Reasons(), "; ")
	default:
		return "rejected: " + strings.Join(d.Reasons(), "; ")
	}
}
