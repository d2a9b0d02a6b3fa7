package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the hosted backend.
type Config struct {
	// Port is the HTTP server port.
	Port int

	// PublicURL is the externally reachable base URL, used to build blob
	// retrieval references.
	PublicURL string

	// DatabaseURL selects the record store: a postgres:// or postgresql://
	// URL selects PostgreSQL, anything else is a SQLite database path.
	DatabaseURL string

	// BlobDatabase is the SQLite database path holding uploaded blobs.
	BlobDatabase string
}

// UsesPostgres reports whether DatabaseURL points at PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// ClientConfig holds configuration for the timeline CLI.
type ClientConfig struct {
	// ServerURL is the base URL of the hosted backend.
	ServerURL string

	// UID and DisplayName identify the signed-in user. An empty UID means
	// nobody is signed in.
	UID         string
	DisplayName string

	LogLevel slog.Level
}

// loadDotEnv seeds the environment from a .env file in the working
// directory, if there is one. Variables already set win.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads server configuration from environment variables with sensible
// defaults.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	port := 3000
	if p := os.Getenv("PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
	}

	publicURL := os.Getenv("TIMELINE_PUBLIC_URL")
	if publicURL == "" {
		publicURL = fmt.Sprintf("http://localhost:%d", port)
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		dbURL = "timeline.db"
	}

	blobDB := os.Getenv("TIMELINE_BLOB_DATABASE")
	if blobDB == "" {
		blobDB = "timeline-blobs.db"
	}

	return &Config{
		Port:         port,
		PublicURL:    strings.TrimRight(publicURL, "/"),
		DatabaseURL:  dbURL,
		BlobDatabase: blobDB,
	}, nil
}

// LoadClient reads CLI configuration from environment variables.
func LoadClient() (*ClientConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	serverURL := os.Getenv("TIMELINE_SERVER_URL")
	if serverURL == "" {
		return nil, fmt.Errorf("TIMELINE_SERVER_URL is required")
	}

	displayName := os.Getenv("TIMELINE_DISPLAY_NAME")
	if displayName == "" {
		displayName = os.Getenv("USER")
	}

	level := slog.LevelWarn
	if l := os.Getenv("TIMELINE_LOG_LEVEL"); l != "" {
		if err := level.UnmarshalText([]byte(l)); err != nil {
			return nil, fmt.Errorf("invalid TIMELINE_LOG_LEVEL: %w", err)
		}
	}

	return &ClientConfig{
		ServerURL:   strings.TrimRight(serverURL, "/"),
		UID:         os.Getenv("TIMELINE_UID"),
		DisplayName: displayName,
		LogLevel:    level,
	}, nil
}
