package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration for the allocation service.
type Config struct {
	Port     int
	LogLevel string
	DevMode  bool

	// HistoryDBPath is where the allocation history/audit store persists
	// AllocationResults. An unset HISTORY_DB_PATH falls back to
	// ./data/allocation_history.db; the server always opens a store here.
	HistoryDBPath string

	// DefaultMinAllocation is used to seed mock/dev constraints when a
	// caller does not supply its own.
	DefaultMinAllocation float64

	// DefaultMaxConcentration, when > 0, seeds a default concentration cap
	// for dev/mock constraints.
	DefaultMaxConcentration float64

	// SchedulerIntervalMinutes is the requested pending-order re-evaluation
	// interval, in minutes. The server starts the scheduler regardless and
	// registers no re-evaluation job; a value > 0 only logs that no
	// pending-order store is wired.
	SchedulerIntervalMinutes int
}

// Load reads configuration from environment variables, falling back to a
// local .env file if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                     getEnvAsInt("PORT", 8080),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		DevMode:                  getEnvAsBool("DEV_MODE", false),
		HistoryDBPath:            getEnv("HISTORY_DB_PATH", "./data/allocation_history.db"),
		DefaultMinAllocation:     getEnvAsFloat("DEFAULT_MIN_ALLOCATION", 1000),
		DefaultMaxConcentration:  getEnvAsFloat("DEFAULT_MAX_CONCENTRATION", 0),
		SchedulerIntervalMinutes: getEnvAsInt("SCHEDULER_INTERVAL_MINUTES", 0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present and sane.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DefaultMinAllocation < 0 {
		return fmt.Errorf("DEFAULT_MIN_ALLOCATION must be >= 0")
	}
	if c.DefaultMaxConcentration < 0 || c.DefaultMaxConcentration > 1 {
		return fmt.Errorf("DEFAULT_MAX_CONCENTRATION must be in [0,1]")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
