// Package config provides configuration management for the park ledger.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/park-ledger/pkg/ledger"
)

// Config represents the application configuration.
type Config struct {
	Storage   StorageConfig
	Posting   PostingConfig
	Server    ServerConfig
	// RulesPath (PARK_LEDGER_RULES_PATH) is an optional YAML rules override.
	// A relative path is resolved against the data root, not the working directory.
	RulesPath string
	Debug     bool
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	DataRoot string
	DBPath   string
}

// PostingConfig tunes the posting engine.
type PostingConfig struct {
	// ConflictRetries bounds the read-after-conflict retry loop.
	ConflictRetries int
	// EstimateRatio is the share of capacity assumed for events without
	// registrations during reconciliation. Zero disables estimates.
	EstimateRatio decimal.Decimal
}

// ServerConfig configures the HTTP callback surface.
type ServerConfig struct {
	ListenAddr string
}

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	retries, err := parseIntEnv("PARK_LEDGER_CONFLICT_RETRIES", ledger.DefaultMaxAttempts)
	if err != nil {
		return nil, err
	}
	if retries < 1 {
		return nil, fmt.Errorf("invalid PARK_LEDGER_CONFLICT_RETRIES: must be at least 1, got %d", retries)
	}

	ratio, err := parseDecimalEnv("PARK_LEDGER_ESTIMATE_RATIO", decimal.Zero)
	if err != nil {
		return nil, err
	}
	if ratio.IsNegative() || ratio.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("invalid PARK_LEDGER_ESTIMATE_RATIO: must be within [0, 1], got %s", ratio)
	}

	config := &Config{
		Storage: StorageConfig{
			DataRoot: getEnvOrDefault("PARK_LEDGER_DATA_ROOT", "./data"),
			DBPath:   os.Getenv("PARK_LEDGER_DB_PATH"),
		},
		Posting: PostingConfig{
			ConflictRetries: retries,
			EstimateRatio:   ratio,
		},
		Server: ServerConfig{
			ListenAddr: getEnvOrDefault("PARK_LEDGER_LISTEN_ADDR", ":8085"),
		},
		RulesPath: os.Getenv("PARK_LEDGER_RULES_PATH"),
		Debug:     os.Getenv("DEBUG") == "true",
	}

	return config, nil
}

// Validate checks that every required dotted path ("storage.dataRoot",
// "server.listenAddr", ...) is set.
func (c *Config) Validate(required ...string) error {
	var missing []string

	for _, path := range required {
		var value string
		switch path {
		case "storage.dataRoot":
			value = c.Storage.DataRoot
		case "storage.dbPath":
			value = c.Storage.DBPath
		case "server.listenAddr":
			value = c.Server.ListenAddr
		case "rulesPath":
			value = c.RulesPath
		default:
			return fmt.Errorf("unknown configuration path %q", path)
		}

		if strings.TrimSpace(value) == "" {
			missing = append(missing, path)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}

	return nil
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv parses an int from an environment variable.
// Returns defaultValue if the environment variable is not set.
func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}

	return parsed, nil
}

func parseDecimalEnv(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal value for %s: %s", key, value)
	}

	return parsed, nil
}
