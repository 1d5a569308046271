package main

import (
	"time"

	"github.com/JonMunkholm/releasemerge/internal/core"
	"github.com/JonMunkholm/releasemerge/internal/merge"
	"github.com/spf13/cobra"
)

var fixCmd = &cobra.Command{
	Use:   "merge-fix",
	Short: "Reconcile a fix delta with the current delta",
	Long: `Reconcile a fix delta with the current delta.

Each fix row is emitted as is when the current delta has no row for its id.
A fix that reasserts a published state (effective time before the cutoff)
over unpublished current work is discarded. Otherwise the two rows are merged
field by field against the last published values: fields changed since
publication keep the current value, the rest take the fix value.

Published values come from --baseline when given, else from the database.`,
	Args: cobra.NoArgs,
	RunE: runFix,
}

var fixReq core.FixRequest

func init() {
	rootCmd.AddCommand(fixCmd)

	fixCmd.Flags().StringVar(&fixReq.Current, "current", "", "Current delta archive")
	fixCmd.Flags().StringVar(&fixReq.Fix, "fix", "", "Fix delta archive")
	fixCmd.Flags().StringVar(&fixReq.Out, "out", "", "Merged delta archive to write")
	fixCmd.Flags().StringVar(&fixReq.PublishedBefore, "published-before", "", "Reversion cutoff YYYYMMDD (default: MERGE_PUBLISHED_BEFORE)")
	fixCmd.Flags().StringVar(&fixReq.Baseline, "baseline", "", "Published Snapshot package supplying last published values")
	_ = fixCmd.MarkFlagRequired("current")
	_ = fixCmd.MarkFlagRequired("fix")
	_ = fixCmd.MarkFlagRequired("out")
}

func runFix(cmd *cobra.Command, _ []string) error {
	report, err := app.svc.MergeFix(cmd.Context(), fixReq)
	if err != nil {
		return err
	}

	o := report.Result.Outcomes
	printf(cmd, "wrote %s (run %s, %s)\n", report.Output, report.RunID, report.Duration.Round(time.Millisecond))
	printf(cmd, "  lines written:   %d\n", report.Result.Lines)
	printf(cmd, "  fix used:        %d\n", o[merge.OutcomeEmitFix])
	printf(cmd, "  merged:          %d\n", o[merge.OutcomeMerged])
	printf(cmd, "  timestamp only:  %d\n", o[merge.OutcomeTimestampCollapsed])
	printf(cmd, "  discarded:       %d\n", o[merge.OutcomeDiscard])
	return nil
}
