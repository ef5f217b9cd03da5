/*
Package config loads service configuration from environment variables
with command-line flag fallbacks. Environment wins over flags, flags
carry the defaults.

ENVIRONMENT:
  RUN_ADDRESS        listen address (default :8080)
  DATABASE_URI       PostgreSQL DSN; empty selects SQLite
  SQLITE_PATH        SQLite database path (default incentive.db)
  REFERENCE_FILE     JSON reference-data file; empty uses built-ins
  DAY_START_HOUR     business-day anchor hour (default 8)
  DUPLICATE_WINDOW   duplicate-guard trailing window (default 60m)
*/
package config

import (
	"flag"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the service configuration.
type Config struct {
	RunAddress      string        `env:"RUN_ADDRESS"`
	DatabaseURI     string        `env:"DATABASE_URI"`
	SQLitePath      string        `env:"SQLITE_PATH"`
	ReferenceFile   string        `env:"REFERENCE_FILE"`
	DayStartHour    int           `env:"DAY_START_HOUR" envDefault:"-1"`
	DuplicateWindow time.Duration `env:"DUPLICATE_WINDOW"`
}

// Load parses flags and environment variables into a Config.
func Load() (*Config, error) {
	var flags Config
	flag.StringVar(&flags.RunAddress, "a", ":8080", "address and port to listen on")
	flag.StringVar(&flags.DatabaseURI, "d", "", "PostgreSQL DSN (empty = SQLite)")
	flag.StringVar(&flags.SQLitePath, "db", "incentive.db", "SQLite database path")
	flag.StringVar(&flags.ReferenceFile, "ref", "", "reference data JSON file (empty = built-in defaults)")
	flag.IntVar(&flags.DayStartHour, "day-start", 8, "business day anchor hour")
	flag.DurationVar(&flags.DuplicateWindow, "dup-window", time.Hour, "duplicate guard window")
	flag.Parse()

	fromEnv := Config{DayStartHour: -1}
	if err := env.Parse(&fromEnv); err != nil {
		return nil, err
	}

	cfg := flags
	if fromEnv.RunAddress != "" {
		cfg.RunAddress = fromEnv.RunAddress
	}
	if fromEnv.DatabaseURI != "" {
		cfg.DatabaseURI = fromEnv.DatabaseURI
	}
	if fromEnv.SQLitePath != "" {
		cfg.SQLitePath = fromEnv.SQLitePath
	}
	if fromEnv.ReferenceFile != "" {
		cfg.ReferenceFile = fromEnv.ReferenceFile
	}
	if fromEnv.DayStartHour >= 0 {
		cfg.DayStartHour = fromEnv.DayStartHour
	}
	if fromEnv.DuplicateWindow > 0 {
		cfg.DuplicateWindow = fromEnv.DuplicateWindow
	}
	return &cfg, nil
}
