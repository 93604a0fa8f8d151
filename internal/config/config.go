package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const minJWTSecretLen = 32

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Calendar used for month boundaries. "Local" or an IANA zone name.
	LedgerTimezone string

	// Sessions
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int

	// AMQP, empty URL disables ledger events
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	// HTTP protection
	RateLimitPerMinute int
	TrustedProxies     []string

	// Snapshot feeds and notices
	SnapshotCacheSize int
	SnapshotTTL       time.Duration

	HistoryDefaultCount int

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:           getEnv("PORT", "8081"),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/finan.db"),
		LedgerTimezone: getEnv("LEDGER_TIMEZONE", "Local"),

		JWTSecret:  getEnv("JWT_SECRET", ""),
		TokenTTL:   getEnvDuration("TOKEN_TTL", 24*time.Hour),
		BcryptCost: getEnvInt("BCRYPT_COST", bcrypt.DefaultCost),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "finan"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "ledger.events"),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),

		SnapshotCacheSize: getEnvInt("SNAPSHOT_CACHE_SIZE", 1024),
		SnapshotTTL:       getEnvDuration("SNAPSHOT_TTL", 30*time.Minute),

		HistoryDefaultCount: getEnvInt("HISTORY_DEFAULT_COUNT", 3),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "tint"),
	}

	return cfg
}

// Location resolves LedgerTimezone. Call after Validate.
func (c *Config) Location() (*time.Location, error) {
	if c.LedgerTimezone == "" || strings.EqualFold(c.LedgerTimezone, "Local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.LedgerTimezone)
}

// Validate validates the server configuration and returns every problem found.
func (c *Config) Validate() error {
	errors := c.validateStorage()

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if len(c.JWTSecret) < minJWTSecretLen {
		errors = append(errors, fmt.Sprintf("JWT_SECRET must be at least %d bytes", minJWTSecretLen))
	}
	if c.TokenTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid token TTL %v: must be at least 1 minute", c.TokenTTL))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errors = append(errors, fmt.Sprintf("invalid bcrypt cost %d: must be between %d and %d", c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if c.SnapshotCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid snapshot cache size %d: must be at least 1", c.SnapshotCacheSize))
	}
	if c.SnapshotTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid snapshot TTL %v: must be at least 1 second", c.SnapshotTTL))
	}
	if c.HistoryDefaultCount < 1 {
		errors = append(errors, fmt.Sprintf("invalid history default count %d: must be at least 1", c.HistoryDefaultCount))
	}

	return combine(errors)
}

// ValidateStorage checks only what offline tools need: the database path
// and the ledger timezone.
func (c *Config) ValidateStorage() error {
	return combine(c.validateStorage())
}

func (c *Config) validateStorage() []string {
	var errors []string

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		// Check if directory exists or can be created
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid ledger timezone '%s': %v", c.LedgerTimezone, err))
	}
	return errors
}

func combine(errors []string) error {
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
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

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
