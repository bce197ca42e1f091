package config

import "runtime"

const (
	// DefaultCacheCapacity bounds the number of entries the access cache
	// holds before evicting one.
	DefaultCacheCapacity = 150

	// DefaultWarmQuota is how many hot students get re-primed into the
	// cache by a refresh.
	DefaultWarmQuota = 20
)

var (
	// Default number of report workers. The coordinator clamps this to its
	// own bounds per batch.
	DefaultNumWorkers = runtime.NumCPU()
)

// Config holds application settings
type Config struct {
	ReportsDir     string // root for the csv/, json/, parquet/ report output dirs
	ImportsDir     string // directory scanned for bulk import files
	DbPath         string
	NumWorkers     int
	ImportFeedURLs []string
	CacheCapacity  int
	WarmQuota      int
}
