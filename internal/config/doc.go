// Package config loads runtime configuration for the Inkwell CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-d string   path to the journal database file
//	-r int      trash retention (days)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for the retention window, so values
// can be either strings like "720h" or integer nanoseconds:
//
//	{
//	  "database_path": "journal.db",
//	  "trash_retention": "720h"
//	}
//
// Primary API
//
//   - type Config                     — holds DatabasePath and TrashRetention
//   - func LoadConfig() *Config       — builds Config by applying defaults, JSON, then flags
//   - func (*Config) LoadDefaults()   — sets sensible defaults
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
