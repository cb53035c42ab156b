package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "FINTERA"

// Config holds all application configuration
type Config struct {
	// Server
	Port           string
	Environment    string
	LogLevel       string
	AllowedOrigins []string

	// Database
	DatabaseURL     string
	DBMaxOpenConns  int
	DBMaxIdleConns  int
	DBSlowThreshold time.Duration

	// JWT
	JWTSecret string

	// Background Workers
	WorkerCount int

	Automation     AutomationConfig
	Reconciliation ReconciliationConfig
	Storage        StorageConfig
	PubSub         PubSubConfig

	// Redis backs the scheduler's cross-instance lock; empty means in-process locking.
	RedisURL string

	// Sentry
	SentryDSN string

	MetricsEnabled bool
}

// AutomationConfig tunes rule execution
type AutomationConfig struct {
	MaxParallelRules       int
	SlowExecutionThreshold time.Duration
	SchedulerRefresh       time.Duration
	TickLockTTL            time.Duration
}

// ReconciliationConfig tunes the integrity scans
type ReconciliationConfig struct {
	DuplicateThreshold float64
	Epsilon            float64
	PageSize           int
	AutoFixUnbalanced  bool
	Interval           time.Duration
}

// StorageConfig selects where review documents are kept
type StorageConfig struct {
	Driver      string // local | s3
	Path        string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

// PubSubConfig enables the upstream event subscription when Subscription is set
type PubSubConfig struct {
	ProjectID       string
	Subscription    string
	CredentialsJSON string
}

// Load reads configuration from FINTERA_-prefixed environment variables.
// A few unprefixed names (PORT, DATABASE_URL, JWT_SECRET, SENTRY_DSN) are
// honoured for compatibility with hosting platforms.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	legacy := map[string]string{
		"server.port":  "PORT",
		"database.url": "DATABASE_URL",
		"jwt.secret":   "JWT_SECRET",
		"sentry.dsn":   "SENTRY_DSN",
		"redis.url":    "REDIS_URL",
	}
	for key, env := range legacy {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, env)
	}

	cfg := &Config{
		Port:            v.GetString("server.port"),
		Environment:     v.GetString("server.environment"),
		LogLevel:        v.GetString("log.level"),
		AllowedOrigins:  splitList(v.GetString("server.allowed_origins")),
		DatabaseURL:     v.GetString("database.url"),
		DBMaxOpenConns:  v.GetInt("database.max_open"),
		DBMaxIdleConns:  v.GetInt("database.max_idle"),
		DBSlowThreshold: v.GetDuration("database.slow_threshold"),
		JWTSecret:       v.GetString("jwt.secret"),
		WorkerCount:     v.GetInt("worker.count"),
		Automation: AutomationConfig{
			MaxParallelRules:       v.GetInt("automation.max_parallel_rules"),
			SlowExecutionThreshold: v.GetDuration("automation.slow_execution_threshold"),
			SchedulerRefresh:       v.GetDuration("automation.scheduler_refresh"),
			TickLockTTL:            v.GetDuration("automation.tick_lock_ttl"),
		},
		Reconciliation: ReconciliationConfig{
			DuplicateThreshold: v.GetFloat64("reconciliation.duplicate_threshold"),
			Epsilon:            v.GetFloat64("reconciliation.epsilon"),
			PageSize:           v.GetInt("reconciliation.page_size"),
			AutoFixUnbalanced:  v.GetBool("reconciliation.auto_fix_unbalanced"),
			Interval:           v.GetDuration("reconciliation.interval"),
		},
		Storage: StorageConfig{
			Driver:      v.GetString("storage.driver"),
			Path:        v.GetString("storage.path"),
			S3Bucket:    v.GetString("storage.s3_bucket"),
			S3Region:    v.GetString("storage.s3_region"),
			S3Endpoint:  v.GetString("storage.s3_endpoint"),
			S3AccessKey: v.GetString("storage.s3_access_key"),
			S3SecretKey: v.GetString("storage.s3_secret_key"),
		},
		PubSub: PubSubConfig{
			ProjectID:       v.GetString("pubsub.project_id"),
			Subscription:    v.GetString("pubsub.subscription"),
			CredentialsJSON: v.GetString("pubsub.credentials_json"),
		},
		RedisURL:       v.GetString("redis.url"),
		SentryDSN:      v.GetString("sentry.dsn"),
		MetricsEnabled: v.GetBool("metrics.enabled"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Set default JWT secret for development
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-in-production"
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", "*")
	v.SetDefault("log.level", "info")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open", 50)
	v.SetDefault("database.max_idle", 5)
	v.SetDefault("database.slow_threshold", "200ms")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("worker.count", 5)

	v.SetDefault("automation.max_parallel_rules", 4)
	v.SetDefault("automation.slow_execution_threshold", "2s")
	v.SetDefault("automation.scheduler_refresh", "5m")
	v.SetDefault("automation.tick_lock_ttl", "1m")

	v.SetDefault("reconciliation.duplicate_threshold", 0.95)
	v.SetDefault("reconciliation.epsilon", 0.001)
	v.SetDefault("reconciliation.page_size", 500)
	v.SetDefault("reconciliation.auto_fix_unbalanced", false)
	v.SetDefault("reconciliation.interval", "6h")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.path", "./storage")
	v.SetDefault("storage.s3_bucket", "")
	v.SetDefault("storage.s3_region", "us-east-1")
	v.SetDefault("storage.s3_endpoint", "")
	v.SetDefault("storage.s3_access_key", "")
	v.SetDefault("storage.s3_secret_key", "")

	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.subscription", "")
	v.SetDefault("pubsub.credentials_json", "")

	v.SetDefault("redis.url", "")
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("metrics.enabled", true)
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" && c.IsProduction() {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.Reconciliation.DuplicateThreshold <= 0 || c.Reconciliation.DuplicateThreshold > 1 {
		return fmt.Errorf("reconciliation duplicate threshold must be in (0, 1], got %v", c.Reconciliation.DuplicateThreshold)
	}
	if c.Reconciliation.Epsilon < 0 || c.Reconciliation.Epsilon > 0.001 {
		return fmt.Errorf("reconciliation epsilon must be between 0 and 0.001, got %v", c.Reconciliation.Epsilon)
	}
	if c.Storage.Driver != "local" && c.Storage.Driver != "s3" {
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "s3" && c.Storage.S3Bucket == "" {
		return fmt.Errorf("storage s3 bucket is required for the s3 driver")
	}
	if c.Automation.MaxParallelRules < 1 {
		c.Automation.MaxParallelRules = 1
	}
	return nil
}

// IsProduction reports whether the process runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// splitList reads a comma-separated list, dropping blanks
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
