package config

import (
	"flag"
	"os"
	"time"

	"github.com/inkwellapp/inkwell/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   path to the journal database file (default from Config)
//	-r int      trash retention in days (default from Config)
//
// Note: The function filters os.Args to only include the flags it knows
// about, using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path to the journal database file")
	retentionDays := fs.Int("r", cfg.TrashRetentionDays(), "trash retention (in days)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.TrashRetention = time.Duration(*retentionDays) * 24 * time.Hour
}
