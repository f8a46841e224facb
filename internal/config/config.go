// Package config loads backend settings from a .env file and the
// environment. Flags passed on the command line take priority.
package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// Config holds the backend's runtime settings.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string
	// Addr is the HTTP listen address.
	Addr string
	// AdminName is the admin account created on first run.
	AdminName string
	// LogPath optionally mirrors logs to a file.
	LogPath string
}

// Load reads .env (when present) and the environment, applying defaults for
// anything unset.
func Load() Config {
	if err := godotenv.Load(".env"); err == nil {
		slog.Info("loaded environment from .env file")
	}

	return Config{
		DBPath:    getenv("GEARBOOK_DB", "gearbook.sqlite3"),
		Addr:      getenv("GEARBOOK_ADDR", ":8080"),
		AdminName: getenv("GEARBOOK_ADMIN", "Admin"),
		LogPath:   getenv("GEARBOOK_LOG", ""),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
