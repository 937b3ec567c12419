package config

import "time"

// Config holds all runtime configuration
type Config struct {
	// Workspace API settings
	WorkspaceBaseURL string
	APIToken         string
	WorkspaceID      string
	Region           string
	RequestTimeout   time.Duration
	RateLimit        int
	LookbackPeriod   time.Duration

	// Offline input
	SnapshotPath string

	// Concurrency settings
	Concurrency int

	// Output settings
	OutputDir string
	Format    string

	// Analysis settings
	ExcludeTables []string

	// Server settings
	ServerPort int
	StorePath  string

	// Operational flags
	Verbose bool
	DryRun  bool
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Region:         "eastus",
		RequestTimeout: 30 * time.Second,
		RateLimit:      10,
		LookbackPeriod: 90 * 24 * time.Hour, // 90 days
		Concurrency:    4,
		OutputDir:      "./report",
		Format:         "json",
		ServerPort:     8080,
		StorePath:      "./sentinellens.db",
		Verbose:        false,
		DryRun:         false,
	}
}

// LookbackDays converts the lookback period to whole days, rounding up and
// never returning less than one day.
func (c *Config) LookbackDays() int {
	days := int((c.LookbackPeriod + 24*time.Hour - 1) / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	return days
}
