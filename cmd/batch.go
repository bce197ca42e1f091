package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gradeforge/gradeforge/internal/report"
	"github.com/gradeforge/gradeforge/internal/stats"
)

var batchParallelism int

// batchCmd generates reports for a set of students in parallel.
var batchCmd = &cobra.Command{
	Use:   "batch [studentID...]",
	Short: "Generate reports for students in parallel",
	Long: `Generates the CSV, JSON, and Parquet report files for each named student,
or for every student in the database when no IDs are given. Reports run on a
bounded worker pool with a live progress bar; one failed report never stops
the rest of the batch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		ctx := context.Background()

		ids := args
		if len(ids) == 0 {
			students, err := getStore().FindAll(ctx)
			if err != nil {
				return fmt.Errorf("load students: %w", err)
			}
			for _, st := range students {
				ids = append(ids, st.ID)
			}
		}
		if len(ids) == 0 {
			fmt.Println("No students found. Run 'gradeforge seed' or 'gradeforge import' first.")
			return nil
		}

		worker, err := newWorker()
		if err != nil {
			return err
		}
		coordinator := report.NewCoordinator(worker, logger)
		coordinator.ProgressOut = os.Stdout

		summary := coordinator.Run(ctx, ids, batchParallelism)

		fmt.Printf("\nBatch complete: %d succeeded, %d failed in %s\n",
			summary.Succeeded, summary.Failed, summary.WallTime.Round(time.Millisecond))
		if len(summary.Durations) > 0 {
			secs := make([]float64, len(summary.Durations))
			for i, d := range summary.Durations {
				secs[i] = d.Seconds()
			}
			fmt.Printf("Report time: mean %.3fs, median %.3fs\n", stats.Mean(secs), stats.Median(secs))
		}
		for _, reason := range summary.FailureReasons {
			fmt.Printf("  failed: %s\n", reason)
		}
		fmt.Printf("Cache hit rate: %.1f%%\n", getCache().HitRate()*100)

		if summary.Failed > 0 {
			return fmt.Errorf("%d of %d reports failed", summary.Failed, summary.Total)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVarP(&batchParallelism, "parallelism", "p", 0,
		"Worker pool size for this batch (defaults to --workers, clamped to the pool bounds)")
	batchCmd.PreRun = func(cmd *cobra.Command, args []string) {
		if batchParallelism == 0 {
			batchParallelism = getConfig().NumWorkers
		}
	}
}
