package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// CORS origin for the dev SPA. Empty disables cross-origin access.
	CORSOrigin string

	// Auth
	SessionDays      int
	BcryptCost       int
	LoginMaxAttempts int
	LoginWindow      time.Duration

	// Housekeeping
	SessionSweepInterval time.Duration

	// Logging
	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "3001"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/tally.db"),

		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:5173"),

		SessionDays:      getEnvInt("SESSION_DAYS", 30),
		BcryptCost:       getEnvInt("BCRYPT_COST", 12),
		LoginMaxAttempts: getEnvInt("LOGIN_MAX_ATTEMPTS", 3),
		LoginWindow:      getEnvDuration("LOGIN_WINDOW", 10*time.Minute),

		SessionSweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", time.Hour),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.SessionDays < 1 {
		errs = append(errs, fmt.Sprintf("invalid session days %d: must be at least 1", c.SessionDays))
	}

	// bcrypt rejects costs outside [4, 31]
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Sprintf("invalid bcrypt cost %d: must be between 4 and 31", c.BcryptCost))
	}

	if c.LoginMaxAttempts < 1 {
		errs = append(errs, fmt.Sprintf("invalid login max attempts %d: must be at least 1", c.LoginMaxAttempts))
	}

	if c.LoginWindow < time.Second {
		errs = append(errs, fmt.Sprintf("invalid login window %v: must be at least 1 second", c.LoginWindow))
	}

	if c.SessionSweepInterval < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid session sweep interval %v: must be at least 1 minute", c.SessionSweepInterval))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
