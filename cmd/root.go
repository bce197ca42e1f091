package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gradeforge/gradeforge/internal/cache"
	"github.com/gradeforge/gradeforge/internal/config"
	"github.com/gradeforge/gradeforge/internal/export"
	"github.com/gradeforge/gradeforge/internal/importer"
	"github.com/gradeforge/gradeforge/internal/report"
	"github.com/gradeforge/gradeforge/internal/store"
)

var (
	// Config flags - bound in init()
	reportsDir    string
	importsDir    string
	dbPath        string
	workers       int
	cacheCapacity int
	warmQuota     int
	logFormat     string
	logLevel      string
	logOutput     string
	feedURLs      []string

	// Global instances populated in PersistentPreRunE
	rootLogger *slog.Logger
	appStore   *store.Store
	appCache   *cache.Cache
	appConfig  config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gradeforge",
	Short: "Generate student grade reports in parallel with a frequency-aware cache.",
	Long: `GradeForge manages student grade records in DuckDB and generates per-student
reports (CSV, JSON, and Parquet) through a bounded worker pool. Repeated
aggregate lookups are served from an in-process cache that evicts the least
frequently used entries first.

The 'batch' command generates reports for a set of students with a console
progress bar. 'ui' opens the interactive console, 'import' loads grade CSVs,
and 'history' shows the report event log.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var level slog.Level
		switch strings.ToLower(logLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		var logWriter io.Writer = os.Stderr
		if logOutput != "" && strings.ToLower(logOutput) != "stderr" {
			if strings.ToLower(logOutput) == "stdout" {
				logWriter = os.Stdout
			} else {
				f, err := os.OpenFile(logOutput, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err != nil {
					return fmt.Errorf("failed to open log file %s: %w", logOutput, err)
				}
				logWriter = f
			}
		}

		opts := &slog.HandlerOptions{Level: level}
		var handler slog.Handler
		if logFormat == "json" {
			handler = slog.NewJSONHandler(logWriter, opts)
		} else {
			handler = slog.NewTextHandler(logWriter, opts)
		}
		rootLogger = slog.New(handler)
		slog.SetDefault(rootLogger)

		appConfig = config.Config{
			ReportsDir:     reportsDir,
			ImportsDir:     importsDir,
			DbPath:         dbPath,
			NumWorkers:     workers,
			ImportFeedURLs: feedURLs,
			CacheCapacity:  cacheCapacity,
			WarmQuota:      warmQuota,
		}
		rootLogger.Debug("configuration loaded", slog.Any("config", appConfig))

		if appConfig.ReportsDir == "" || appConfig.ImportsDir == "" || appConfig.DbPath == "" {
			return fmt.Errorf("--reports-dir, --imports-dir, and --db-path flags are required")
		}
		for _, d := range []string{appConfig.ReportsDir, appConfig.ImportsDir} {
			if err := os.MkdirAll(d, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", d, err)
			}
		}
		if appConfig.DbPath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(appConfig.DbPath), 0o755); err != nil {
				return fmt.Errorf("failed to create database directory: %w", err)
			}
		}

		rootLogger.Info("opening student database", slog.String("path", appConfig.DbPath))
		var err error
		appStore, err = store.Open(appConfig.DbPath)
		if err != nil {
			return err
		}

		appCache = cache.New(cache.Options{
			Capacity:  appConfig.CacheCapacity,
			WarmQuota: appConfig.WarmQuota,
			Warm:      report.Warmer(appStore),
		})
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if appStore != nil {
			rootLogger.Info("closing student database")
			if err := appStore.Close(); err != nil {
				rootLogger.Error("failed to close database cleanly", "error", err)
			}
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called by main.main().
func Execute() {
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(uiCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(seedCmd)

	if err := rootCmd.Execute(); err != nil {
		if rootLogger != nil {
			rootLogger.Error("command execution failed", "error", err)
		} else {
			fmt.Fprintf(os.Stderr, "command execution failed: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&reportsDir, "reports-dir", "r", "./reports", "Root directory for generated report files")
	rootCmd.PersistentFlags().StringVarP(&importsDir, "imports-dir", "i", "./imports", "Directory scanned for grade CSV files")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db-path", "d", "./gradeforge.duckdb", "Path to DuckDB database file (:memory: for in-memory)")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", config.DefaultNumWorkers, "Number of concurrent report workers (clamped per batch)")
	rootCmd.PersistentFlags().IntVar(&cacheCapacity, "cache-capacity", config.DefaultCacheCapacity, "Maximum number of cached aggregate entries")
	rootCmd.PersistentFlags().IntVar(&warmQuota, "warm-quota", config.DefaultWarmQuota, "Number of hot students re-primed by a cache refresh")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log output format (text or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logOutput, "log-output", "stderr", "Log output destination (stderr, stdout, or file path)")
	rootCmd.PersistentFlags().StringSliceVar(&feedURLs, "feed-url", nil, "Feed index URLs to discover grade CSVs from (can specify multiple)")

	rootCmd.Version = "0.1.0"
}

func getLogger() *slog.Logger {
	if rootLogger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return rootLogger
}

func getStore() *store.Store {
	return appStore
}

func getCache() *cache.Cache {
	return appCache
}

func getConfig() config.Config {
	return appConfig
}

// newWorker wires the report worker from the shared store, cache, and
// exporter.
func newWorker() (*report.Worker, error) {
	exporter := export.New(appConfig.ReportsDir)
	if err := exporter.EnsureDirs(); err != nil {
		return nil, err
	}
	return &report.Worker{
		Source:   report.NewCachedSource(appCache, appStore),
		Store:    appStore,
		Exporter: exporter,
		Logger:   getLogger(),
	}, nil
}

func newImporter() *importer.Importer {
	return &importer.Importer{Writer: appStore, Logger: getLogger()}
}
