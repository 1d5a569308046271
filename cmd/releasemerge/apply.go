package main

import (
	"time"

	"github.com/JonMunkholm/releasemerge/internal/core"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply-delta",
	Short: "Fold a delta archive into a full release package",
	Long: `Fold a delta archive into a full release package.

Snapshot rows are replaced by the delta row with the same id and unseen ids
are appended; Delta and Full files get every delta row appended. Every member
is renamed to the target effective time, which defaults to the date in the
delta archive name. Language refset content for locales other than the
designated one is withheld and reported.

The new package is written to <out>/<package-dir>.zip. Nothing is left
there when the run fails.`,
	Args: cobra.NoArgs,
	RunE: runApply,
}

var applyReq core.ApplyRequest

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().StringVar(&applyReq.Base, "base", "", "Full release package archive")
	applyCmd.Flags().StringVar(&applyReq.Delta, "delta", "", "Delta archive to apply")
	applyCmd.Flags().StringVar(&applyReq.OutDir, "out", ".", "Directory for the new package")
	applyCmd.Flags().StringVar(&applyReq.PrimaryLocaleDelta, "primary-locale-delta", "", "Primary-locale delta consulted for the regional override")
	applyCmd.Flags().StringVar(&applyReq.EffectiveTime, "effective-time", "", "Target effective time YYYYMMDD (default: from the delta archive name)")
	applyCmd.Flags().StringVar(&applyReq.PackageDir, "package-dir", "", "Top-level directory of the new package (default: MERGE_PACKAGE_DIR, then the base name)")
	_ = applyCmd.MarkFlagRequired("base")
	_ = applyCmd.MarkFlagRequired("delta")
}

func runApply(cmd *cobra.Command, _ []string) error {
	report, err := app.svc.ApplyDelta(cmd.Context(), applyReq)
	if err != nil {
		return err
	}

	r := report.Result
	printf(cmd, "wrote %s (run %s, %s)\n", report.Output, report.RunID, report.Duration.Round(time.Millisecond))
	printf(cmd, "  members:    %d\n", r.Members)
	printf(cmd, "  replaced:   %d\n", r.Replaced)
	printf(cmd, "  new:        %d\n", r.New)
	printf(cmd, "  appended:   %d\n", r.Appended)
	if r.Suppressed > 0 || r.Dropped > 0 || r.Overridden > 0 {
		printf(cmd, "  withheld:   %d suppressed, %d dropped, %d kept by regional override\n",
			r.Suppressed, r.Dropped, r.Overridden)
	}
	for _, key := range r.Unmerged {
		printf(cmd, "  unmerged:   %s\n", key)
	}
	return nil
}
