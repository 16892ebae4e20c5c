package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL        string
	AMQPExchange   string
	AMQPQueue      string
	AMQPCandidates string

	// Ingestion
	IngestBatchSize   int
	IngestInterval    time.Duration
	FeedAccessGranted bool
	// IngestInProcess runs the scanner inside the API process. Disable it
	// when ingest-worker owns the same database.
	IngestInProcess bool

	// Analytics
	ForecastHorizonDays int
	// CategoryLookback limits category breakdowns to recent months; 0
	// covers all history.
	CategoryLookback    int
	CacheSize           int
	CacheTTL            time.Duration

	// Backend selection
	DataBackend string

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		SQLiteDBPath:       getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:      getEnv("AMQP_QUEUE", "message_arrivals"),
		AMQPCandidates: getEnv("AMQP_CANDIDATES_KEY", "candidate_presented"),

		IngestBatchSize:   getEnvInt("INGEST_BATCH_SIZE", 50),
		IngestInterval:    getEnvDuration("INGEST_INTERVAL", 5*time.Minute),
		FeedAccessGranted: getEnvBool("FEED_ACCESS_GRANTED", true),
		IngestInProcess:   getEnvBool("INGEST_IN_PROCESS", true),

		ForecastHorizonDays: getEnvInt("FORECAST_HORIZON_DAYS", 30),
		CategoryLookback:    getEnvInt("CATEGORY_LOOKBACK_MONTHS", 0),
		CacheSize:           getEnvInt("ANALYTICS_CACHE_SIZE", 128),
		CacheTTL:            getEnvDuration("ANALYTICS_CACHE_TTL", 10*time.Minute),

		DataBackend: getEnv("DATA_BACKEND", "memory"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.IngestBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid ingest batch size %d: must be at least 1", c.IngestBatchSize))
	} else if c.IngestBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid ingest batch size %d: must be at most 1000", c.IngestBatchSize))
	}

	if c.IngestInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid ingest interval %v: must be at least 1 second", c.IngestInterval))
	} else if c.IngestInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid ingest interval %v: must be at most 24 hours", c.IngestInterval))
	}

	if c.ForecastHorizonDays < 1 || c.ForecastHorizonDays > 365 {
		errors = append(errors, fmt.Sprintf("invalid forecast horizon %d: must be between 1 and 365 days", c.ForecastHorizonDays))
	}
	if c.CategoryLookback < 0 || c.CategoryLookback > 24 {
		errors = append(errors, fmt.Sprintf("invalid category lookback %d: must be between 0 (all history) and 24 months", c.CategoryLookback))
	}
	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid analytics cache size %d: must be at least 1", c.CacheSize))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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
