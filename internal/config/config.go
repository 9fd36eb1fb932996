package config

import "time"

// Config holds runtime settings for the Inkwell CLI.
//
// Fields:
//   - DatabasePath: path to the local sqlite journal database.
//   - TrashRetention: how long soft-deleted entries stay in the trash
//     before cleanup purges them.
//
// Units: TrashRetention is a time.Duration (e.g., 30*24*time.Hour).
type Config struct {
	DatabasePath   string
	TrashRetention time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "journal.db"
	c.TrashRetention = 30 * 24 * time.Hour
}

// TrashRetentionDays returns the retention window in whole days, as consumed
// by the trash cleanup.
func (c *Config) TrashRetentionDays() int {
	return int(c.TrashRetention.Hours() / 24)
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
