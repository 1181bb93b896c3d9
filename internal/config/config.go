package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the portal scribe.
type Config struct {
	// CDP connection settings
	CDPAddress string
	CDPPort    int

	// API server settings
	APIBindAddr      string
	APIBindFallbacks []string

	// Storage settings
	DataDir       string
	ScriptsDir    string
	MaxFileSizeMB int
	BufferSize    int

	// Rule table
	RulesPath string // empty uses the embedded default table

	// Browser launch settings
	LaunchBrowser bool
	StartURL      string
	ProfileDir    string

	// Tab matching and behavior
	TabURLFilter   string
	ReloadOnAttach bool

	// Capture behavior
	MaxBodyBytes int
	HistoryLimit int

	// Optional shutdown notification endpoint (ntfy-style POST)
	NotifyEndpoint string
}

// Load reads configuration from environment variables and an optional
// .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:       getEnvOrDefault("SCRIBE_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:          getEnvIntOrDefault("SCRIBE_CDP_PORT", 9222),
		APIBindAddr:      getEnvOrDefault("SCRIBE_API_BIND", "127.0.0.1:8560"),
		APIBindFallbacks: []string{"127.0.0.1:8561", "127.0.0.1:8562"},
		DataDir:          getEnvOrDefault("SCRIBE_DATA_DIR", "./scribe_data"),
		ScriptsDir:       getEnvOrDefault("SCRIBE_SCRIPTS_DIR", "./scribe_data/scripts"),
		MaxFileSizeMB:    getEnvIntOrDefault("SCRIBE_MAX_FILE_SIZE_MB", 200),
		BufferSize:       getEnvIntOrDefault("SCRIBE_BUFFER_SIZE", 5000),
		RulesPath:        getEnvOrDefault("SCRIBE_RULES_PATH", ""),
		LaunchBrowser:    getEnvBoolOrDefault("SCRIBE_LAUNCH_BROWSER", false),
		StartURL:         getEnvOrDefault("SCRIBE_START_URL", ""),
		ProfileDir:       getEnvOrDefault("SCRIBE_PROFILE_DIR", "./scribe_data/profile"),
		TabURLFilter:     getEnvOrDefault("SCRIBE_TAB_URL_FILTER", ""),
		ReloadOnAttach:   getEnvBoolOrDefault("SCRIBE_RELOAD_ON_ATTACH", false),
		MaxBodyBytes:     getEnvIntOrDefault("SCRIBE_MAX_BODY_BYTES", 10*1024*1024),
		HistoryLimit:     getEnvIntOrDefault("SCRIBE_HISTORY_LIMIT", 2000),
		NotifyEndpoint:   getEnvOrDefault("SCRIBE_NOTIFY_ENDPOINT", ""),
	}

	return cfg, nil
}

// GetCDPURL returns the CDP HTTP endpoint used by the chromedp remote
// allocator.
func (c *Config) GetCDPURL() string {
	return fmt.Sprintf("http://%s:%d", c.CDPAddress, c.CDPPort)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
