package config

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	// File paths
	DBPath string

	// Server settings
	ServerHost string
	ServerPort int
	APIKey     string

	// Sync settings
	SyncPageSize     int64
	FetchConcurrency int
	FetchTimeout     time.Duration
	Interval         time.Duration

	// Google OAuth client settings for the Gmail provider
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Log settings
	LogLevel zerolog.Level
}

// DefaultConfig returns an initial configuration with hardcoded defaults
// plus credentials pulled from the environment.
func DefaultConfig() *Config {
	return &Config{
		DBPath:             DefaultDBPath,
		ServerHost:         DefaultServerHost,
		ServerPort:         DefaultServerPort,
		APIKey:             GetEnvString("MAILFEED_API_KEY", ""),
		SyncPageSize:       int64(GetEnvInt("MAILFEED_SYNC_PAGE_SIZE", DefaultSyncPageSize)),
		FetchConcurrency:   GetEnvInt("MAILFEED_FETCH_CONCURRENCY", DefaultFetchConcurrency),
		FetchTimeout:       time.Duration(GetEnvInt("MAILFEED_FETCH_TIMEOUT_SEC", DefaultFetchTimeoutSec)) * time.Second,
		Interval:           time.Duration(DefaultInterval) * time.Minute,
		GoogleClientID:     GetEnvString("MAILFEED_GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: GetEnvString("MAILFEED_GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  GetEnvString("MAILFEED_GOOGLE_REDIRECT_URL", ""),
		LogLevel:           GetEnvLogLevel("MAILFEED_LOG_LEVEL", zerolog.DebugLevel),
	}
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}
