package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gradeforge/gradeforge/internal/importer"
)

var importFetch bool

// importCmd loads grade records from CSV files.
var importCmd = &cobra.Command{
	Use:   "import [file...]",
	Short: "Bulk-import grade records from CSV files",
	Long: `Imports grade records from the named CSV files, or from every CSV in the
imports directory when no files are given.

Each line is: studentId,subjectCode,score[,date][,subjectType]
Lines starting with '#' are comments. Malformed lines are skipped and counted.

With --fetch, the configured --feed-url index pages are scanned for .csv
links and the files are downloaded into the imports directory first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		cfg := getConfig()
		ctx := context.Background()
		im := newImporter()

		if importFetch {
			if len(cfg.ImportFeedURLs) == 0 {
				return fmt.Errorf("--fetch requires at least one --feed-url")
			}
			paths, err := importer.FetchFeeds(ctx, nil, cfg.ImportFeedURLs, cfg.ImportsDir, logger)
			if err != nil {
				logger.Warn("feed fetch finished with errors", "error", err)
			}
			fmt.Printf("Fetched %d feed file(s) into %s\n", len(paths), cfg.ImportsDir)
		}

		var total importer.Result
		if len(args) == 0 {
			res, err := im.ImportDir(ctx, cfg.ImportsDir)
			if err != nil {
				return err
			}
			total = res
		} else {
			for _, path := range args {
				res, err := im.ImportFile(ctx, path)
				total.Imported += res.Imported
				total.Skipped += res.Skipped
				if err != nil {
					return err
				}
			}
		}

		fmt.Printf("Imported %d grade(s), skipped %d malformed line(s)\n", total.Imported, total.Skipped)
		return nil
	},
}

func init() {
	importCmd.Flags().BoolVar(&importFetch, "fetch", false, "Download CSVs linked from the configured feed URLs before importing")
}
