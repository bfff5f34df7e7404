package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/dispatcher"
	"github.com/sells-group/enrich-cli/internal/input"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/shutdown"
	"github.com/sells-group/enrich-cli/internal/store"
)

var enrichInput string

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Run an enrichment pass over the configured input file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Input.Path
		if enrichInput != "" {
			path = enrichInput
		}

		rows, err := input.Load(path, cfg.Input.Sheet)
		if err != nil {
			return eris.Wrap(err, "load input")
		}
		if cfg.Input.Limit > 0 && len(rows) > cfg.Input.Limit {
			rows = rows[:cfg.Input.Limit]
		}

		st := store.New(store.Options{
			CachePath:     cfg.Store.CachePath,
			ExportPath:    cfg.Store.ExportPath,
			FlushInterval: cfg.Store.FlushInterval,
			FlushEvery:    cfg.Store.FlushEvery,
		})
		st.Load()

		reg, breakers, err := buildRegistry(cfg)
		if err != nil {
			return err
		}

		coord := shutdown.New(func() {
			if err := st.Flush(true); err != nil {
				zap.L().Error("final flush failed", zap.Error(err))
			}
		})
		defer coord.Finalize()

		ctx, cancel := coord.Watch(cmd.Context())
		defer cancel()

		d := dispatcher.New(dispatcher.Options{
			Workers:   cfg.Dispatch.Workers,
			BatchSize: cfg.Dispatch.BatchSize,
		}, reg, st)

		sum, err := d.Run(ctx, rows)
		if err != nil {
			return eris.Wrap(err, "enrichment run")
		}
		coord.Finalize()

		if blocked := breakers.Blocked(); len(blocked) > 0 {
			zap.L().Warn("sources still in cooldown at exit", zap.Strings("sources", blocked))
		}

		logRun(cmd.Context(), sum)
		printSummary(sum)
		return nil
	},
}

// logRun appends the summary to the run history database. Failures are
// logged, not fatal: history is a convenience, the export is the product.
func logRun(ctx context.Context, sum model.RunSummary) {
	rl, err := store.OpenRunLog(cfg.Store.RunLogPath)
	if err != nil {
		zap.L().Warn("run log unavailable", zap.Error(err))
		return
	}
	defer rl.Close()

	if _, err := rl.Append(ctx, sum, time.Now()); err != nil {
		zap.L().Warn("run log append failed", zap.Error(err))
	}
}

func printSummary(sum model.RunSummary) {
	fmt.Fprintf(os.Stdout, "candidates: %d  skipped: %d  found: %d  not found: %d  failed: %d  elapsed: %s\n",
		sum.Candidates, sum.Skipped, sum.Found, sum.NotFound, sum.Failed, sum.Elapsed.Round(time.Second))
	for _, name := range sum.HaltedSources() {
		fmt.Fprintf(os.Stdout, "source halted: %s\n", name)
	}
}

func init() {
	enrichCmd.Flags().StringVarP(&enrichInput, "input", "i", "", "input file (overrides config)")
	rootCmd.AddCommand(enrichCmd)
}
