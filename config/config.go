/*
config.go - Environment-driven server configuration

PURPOSE:

	Loads server configuration from environment variables, with a .env
	file picked up in development. Command-line flags in main override
	whatever the environment provides.

VARIABLES:

	PORT       HTTP server port (default 8080)
	DB_PATH    SQLite database path (default commission.db, ":memory:" works)
	LOG_LEVEL  logrus level: debug, info, warn, error (default info)

SEE ALSO:
  - cmd/server/main.go: flag overrides and startup
*/
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds server settings.
type Config struct {
	Port     int
	DBPath   string
	LogLevel logrus.Level
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first if present; a missing file is not
// an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:     8080,
		DBPath:   "commission.db",
		LogLevel: logrus.InfoLevel,
	}

	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return cfg, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Port = p
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		lvl, err := logrus.ParseLevel(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid LOG_LEVEL %q", v)
		}
		cfg.LogLevel = lvl
	}

	return cfg, nil
}
