package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the WordForge server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Worker   WorkerConfig
	Mailer   MailerConfig
	Engine   EngineConfig
	Cron     CronConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// WorkerConfig points at the external generation worker network. Tier
// endpoint paths hang off the base URL; the secret authenticates dispatch
// calls and the worker's content callbacks.
type WorkerConfig struct {
	BaseURL string
	Secret  string
	Timeout time.Duration
}

// MailerConfig points at the mail-delivery service used for batch
// notifications. An empty URL disables notifications.
type MailerConfig struct {
	URL     string
	From    string
	Timeout time.Duration
}

// EngineConfig tunes the dispatcher and settlement engine. The staleness
// window is the minimum idle time before a batch is eligible for
// escalation or forced completion; the dispatch batch size bounds one
// trigger invocation's work so it fits the invoker's wall-clock budget.
type EngineConfig struct {
	StalenessWindow   time.Duration
	DispatchBatchSize int
}

// CronConfig guards the internal trigger endpoints.
type CronConfig struct {
	Secret string
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("WORDFORGE_PORT", 8080),
			Env:  envString("WORDFORGE_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Worker: WorkerConfig{
			BaseURL: os.Getenv("WORKER_BASE_URL"),
			Secret:  os.Getenv("WORKER_SECRET"),
			Timeout: envDuration("WORKER_TIMEOUT", 5*time.Second),
		},
		Mailer: MailerConfig{
			URL:     os.Getenv("MAILER_URL"),
			From:    envString("MAILER_FROM", "noreply@wordforge.io"),
			Timeout: envDuration("MAILER_TIMEOUT", 10*time.Second),
		},
		Engine: EngineConfig{
			StalenessWindow:   envDuration("SETTLE_STALENESS_WINDOW", 20*time.Minute),
			DispatchBatchSize: envInt("DISPATCH_BATCH_SIZE", 5),
		},
		Cron: CronConfig{
			Secret: os.Getenv("CRON_SECRET"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Worker.BaseURL == "" {
		return fmt.Errorf("WORKER_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Worker.BaseURL, "http://") && !strings.HasPrefix(c.Worker.BaseURL, "https://") {
		return fmt.Errorf("WORKER_BASE_URL must start with http:// or https://, got %q", c.Worker.BaseURL)
	}
	if c.Worker.Secret == "" {
		return fmt.Errorf("WORKER_SECRET is required")
	}

	if c.Cron.Secret == "" {
		return fmt.Errorf("CRON_SECRET is required")
	}

	if c.Engine.StalenessWindow <= 0 {
		return fmt.Errorf("SETTLE_STALENESS_WINDOW must be positive, got %s", c.Engine.StalenessWindow)
	}
	if c.Engine.DispatchBatchSize <= 0 {
		return fmt.Errorf("DISPATCH_BATCH_SIZE must be positive, got %d", c.Engine.DispatchBatchSize)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
