package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var historyLimit int
var historyEvent string

// historyCmd shows the report event log.
var historyCmd = &cobra.Command{
	Use:   "history [studentID]",
	Short: "View the report event log",
	Long: `Queries the report event log and displays the history, newest first.
Pass a student ID to filter to one student, and use --event to filter by
event type (report_start, report_end, error).`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		studentFilter := ""
		if len(args) > 0 {
			studentFilter = args[0]
		}
		getLogger().Debug("querying report event log",
			"student_filter", studentFilter, "event_filter", historyEvent, "limit", historyLimit)
		return getStore().DisplayReportHistory(context.Background(), os.Stdout, studentFilter, historyEvent, historyLimit)
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "Limit the number of log records displayed")
	historyCmd.Flags().StringVarP(&historyEvent, "event", "e", "", "Filter records by event type (report_start, report_end, error)")
}
