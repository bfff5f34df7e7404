package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/enrich-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List enrichment run history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rl, err := store.OpenRunLog(cfg.Store.RunLogPath)
		if err != nil {
			return eris.Wrap(err, "open run log")
		}
		defer rl.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := rl.Recent(cmd.Context(), limit)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs recorded.")
			return nil
		}

		formatRuns(os.Stdout, runs)
		return nil
	},
}

// formatRuns writes a tabular run history to w.
func formatRuns(out io.Writer, runs []store.RunRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tCANDIDATES\tSKIPPED\tFOUND\tNOT_FOUND\tFAILED")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			truncateID(r.ID),
			r.StartedAt.Format("2006-01-02 15:04"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
			r.Candidates,
			r.Skipped,
			r.Found,
			r.NotFound,
			r.Failed,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	runsCmd.Flags().Int("limit", 20, "max number of runs to display")
	rootCmd.AddCommand(runsCmd)
}
