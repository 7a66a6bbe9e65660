package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pion/logging"
)

// Config holds the application configuration.
type Config struct {
	Room      string
	APIURL    string // rendezvous API; empty when SignalURL is set directly
	Token     string
	SignalURL string // direct signaling relay URL, bypasses the API
	StunURL   string
	LogLevel  logging.LogLevel
}

// Load reads configuration from a .env file (if present) and environment
// variables. Environment variables take precedence over .env values.
func Load() (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	room := os.Getenv("DUOCALL_ROOM")
	if room == "" {
		return nil, fmt.Errorf("DUOCALL_ROOM environment variable is required")
	}

	apiURL := os.Getenv("DUOCALL_API")
	signalURL := os.Getenv("DUOCALL_SIGNAL_URL")
	if apiURL == "" && signalURL == "" {
		return nil, fmt.Errorf("one of DUOCALL_API or DUOCALL_SIGNAL_URL is required")
	}

	return &Config{
		Room:      room,
		APIURL:    apiURL,
		Token:     os.Getenv("DUOCALL_TOKEN"),
		SignalURL: signalURL,
		StunURL:   envOr("DUOCALL_STUN", "stun:stun.l.google.com:19302"),
		LogLevel:  parseLogLevel(os.Getenv("DUOCALL_LOG_LEVEL")),
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLogLevel(s string) logging.LogLevel {
	switch strings.ToLower(s) {
	case "trace":
		return logging.LogLevelTrace
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}
