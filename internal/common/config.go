package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Database    DatabaseConfig   `toml:"database"`
	Queue       QueueConfig      `toml:"queue"`
	Matching    MatchingConfig   `toml:"matching"`
	MasterSync  MasterSyncConfig `toml:"master_sync"`
	Uploads     UploadsConfig    `toml:"uploads"`
	Logging     LoggingConfig    `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// DatabaseConfig is the relational catalog store. Postgres in production,
// SQLite for local runs and tests.
type DatabaseConfig struct {
	Driver          string `toml:"driver" validate:"oneof=postgres sqlite"`
	DSN             string `toml:"dsn" validate:"required"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime string `toml:"conn_max_lifetime"` // e.g. "30m" - pool recycle interval
}

type QueueConfig struct {
	Path              string `toml:"path"`               // Badger directory for queue + job state
	Name              string `toml:"name"`               // Queue name prefix in the key space
	Concurrency       int    `toml:"concurrency"`        // Number of concurrent workers
	PollInterval      string `toml:"poll_interval"`      // e.g. "1s"
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g. "5m" - lease before redelivery
	MaxRetries        int    `toml:"max_retries" validate:"gte=1,lte=10"`
	BackoffBase       string `toml:"backoff_base"` // e.g. "1s" - first retry delay, doubles per attempt
	BackoffCap        string `toml:"backoff_cap"`  // e.g. "5m" - retry delay ceiling
	JobTimeout        string `toml:"job_timeout"`  // e.g. "600s" - per-task execution deadline
}

// MatchingConfig tunes the fuzzy matcher and the pipeline worker.
// Thresholds are fractions in config (0.95 / 0.70) and converted once to
// the 0-100 score scale the matcher uses.
type MatchingConfig struct {
	AutoThreshold   float64 `toml:"auto_threshold" validate:"gt=0,lte=1"`
	ReviewThreshold float64 `toml:"review_threshold" validate:"gt=0,lte=1"`
	ReviewTTLDays   int     `toml:"review_ttl_days" validate:"gte=1"`
	TopCandidates   int     `toml:"top_candidates" validate:"gte=5"`
	CandidateWindow int     `toml:"candidate_window"`
	BatchSize       int     `toml:"batch_size"`
	SKUPrefix       string  `toml:"sku_prefix"`
}

type MasterSyncConfig struct {
	SheetURL       string `toml:"sheet_url"`       // Master supplier directory (Google Sheet)
	Schedule       string `toml:"schedule"`        // Cron expression; empty disables the scheduler entry
	ExpirySchedule string `toml:"expiry_schedule"` // Cron expression for the review-expiry sweep
}

type UploadsConfig struct {
	Dir string `toml:"dir"` // Shared directory file parsers may read from
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values.
// Only user-facing settings belong in skuforge.toml; technical parameters
// are defaulted here.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "./data/skuforge.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: "30m",
		},
		Queue: QueueConfig{
			Path:              "./data/queue",
			Name:              "skuforge_tasks",
			Concurrency:       4,
			PollInterval:      "1s",
			VisibilityTimeout: "5m",
			MaxRetries:        3,
			BackoffBase:       "1s",
			BackoffCap:        "5m",
			JobTimeout:        "600s",
		},
		Matching: MatchingConfig{
			AutoThreshold:   0.95,
			ReviewThreshold: 0.70,
			ReviewTTLDays:   30,
			TopCandidates:   5,
			CandidateWindow: 1000,
			BatchSize:       50,
			SKUPrefix:       "SKU",
		},
		MasterSync: MasterSyncConfig{
			Schedule:       "0 3 * * *", // Daily at 03:00
			ExpirySchedule: "0 * * * *", // Hourly
		},
		Uploads: UploadsConfig{
			Dir: "./data/uploads",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

var configValidate = validator.New()

// LoadFromFiles loads configuration: defaults -> file(s) -> env overrides.
// Later files override earlier ones.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := configValidate.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// ApplyFlagOverrides applies command-line overrides (highest priority).
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SKUFORGE_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("SKUFORGE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("SKUFORGE_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if driver := os.Getenv("SKUFORGE_DATABASE_DRIVER"); driver != "" {
		config.Database.Driver = driver
	}
	if dsn := os.Getenv("SKUFORGE_DATABASE_URL"); dsn != "" {
		config.Database.DSN = dsn
	}

	if path := os.Getenv("SKUFORGE_QUEUE_PATH"); path != "" {
		config.Queue.Path = path
	}
	if name := os.Getenv("SKUFORGE_QUEUE_NAME"); name != "" {
		config.Queue.Name = name
	}
	if concurrency := os.Getenv("SKUFORGE_MAX_WORKERS"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Queue.Concurrency = c
		}
	}
	if timeout := os.Getenv("SKUFORGE_JOB_TIMEOUT"); timeout != "" {
		config.Queue.JobTimeout = timeout
	}
	if maxRetries := os.Getenv("SKUFORGE_MAX_RETRIES"); maxRetries != "" {
		if mr, err := strconv.Atoi(maxRetries); err == nil {
			config.Queue.MaxRetries = mr
		}
	}

	if auto := os.Getenv("SKUFORGE_MATCH_CONFIDENCE_AUTO_THRESHOLD"); auto != "" {
		if v, err := strconv.ParseFloat(auto, 64); err == nil {
			config.Matching.AutoThreshold = v
		}
	}
	if review := os.Getenv("SKUFORGE_MATCH_CONFIDENCE_REVIEW_THRESHOLD"); review != "" {
		if v, err := strconv.ParseFloat(review, 64); err == nil {
			config.Matching.ReviewThreshold = v
		}
	}
	if ttl := os.Getenv("SKUFORGE_REVIEW_TTL_DAYS"); ttl != "" {
		if v, err := strconv.Atoi(ttl); err == nil {
			config.Matching.ReviewTTLDays = v
		}
	}

	if sheetURL := os.Getenv("SKUFORGE_MASTER_SHEET_URL"); sheetURL != "" {
		config.MasterSync.SheetURL = sheetURL
	}
	if uploads := os.Getenv("SKUFORGE_UPLOADS_DIR"); uploads != "" {
		config.Uploads.Dir = uploads
	}

	if level := os.Getenv("SKUFORGE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("SKUFORGE_LOG_OUTPUT"); output != "" {
		var outputs []string
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// Duration parses a duration field, falling back to def on empty or bad
// values so a typo in config degrades instead of crashing.
func Duration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
