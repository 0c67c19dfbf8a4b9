package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/atriumhq/atrium/pkg/observability"
	"github.com/atriumhq/atrium/pkg/storage/postgres"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database postgres.Config

	// Redis configuration (optional, rate limiting)
	Redis RedisConfig

	// Observability configuration
	Observability ObservabilityConfig

	// Feature configuration
	Features FeaturesConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// RedisConfig holds redis connection settings for the rate limiter
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int

	// Rate limiting (admin routes)
	RateLimitEnabled bool
	RateLimitPerMin  int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// Business gauge refresh schedule (cron spec)
	StatsRefreshSchedule string
}

// FeaturesConfig holds feature flag settings
type FeaturesConfig struct {
	// MultiTenantAdmin enables the administrative API surface. When false,
	// admin routes answer feature-unavailable and every caller resolves to
	// the base role tier.
	MultiTenantAdmin bool

	// FlagFile, when set, is a JSON file watched for live flag changes.
	FlagFile string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Observability: loadObservabilityConfig(),
		Features:      loadFeaturesConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("ATRIUM_HOST", "0.0.0.0"),
		Port:            getEnv("ATRIUM_PORT", "8080"),
		ReadTimeout:     getEnvDuration("ATRIUM_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("ATRIUM_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("ATRIUM_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("ATRIUM_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("ATRIUM_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig() postgres.Config {
	cfg := postgres.DefaultConfig()

	if pgURL := getEnv("ATRIUM_POSTGRES_URL", ""); pgURL != "" {
		cfg.URL = pgURL
	}
	if maxConns := getEnvInt("ATRIUM_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if maxIdle := getEnvInt("ATRIUM_POSTGRES_MAX_IDLE_CONNS", 0); maxIdle > 0 {
		cfg.MaxIdleConns = maxIdle
	}
	if timeout := getEnvDuration("ATRIUM_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.ConnectTimeout = timeout
	}

	return cfg
}

// loadRedisConfig loads redis configuration from environment
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:              getEnv("ATRIUM_REDIS_URL", ""),
		Password:         getEnv("ATRIUM_REDIS_PASSWORD", ""),
		DB:               getEnvInt("ATRIUM_REDIS_DB", 0),
		PoolSize:         getEnvInt("ATRIUM_REDIS_POOL_SIZE", 10),
		RateLimitEnabled: getEnvBool("ATRIUM_RATE_LIMIT_ENABLED", false),
		RateLimitPerMin:  getEnvInt("ATRIUM_RATE_LIMIT_PER_MIN", 120),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:             parseLogLevel(getEnv("ATRIUM_LOG_LEVEL", "info")),
		MetricsEnabled:       getEnvBool("ATRIUM_METRICS_ENABLED", true),
		StatsRefreshSchedule: getEnv("ATRIUM_STATS_REFRESH_SCHEDULE", "@every 1m"),
	}
}

// loadFeaturesConfig loads feature flag configuration from environment
func loadFeaturesConfig() FeaturesConfig {
	return FeaturesConfig{
		MultiTenantAdmin: getEnvBool("ATRIUM_MULTI_TENANT_ADMIN", false),
		FlagFile:         getEnv("ATRIUM_FLAG_FILE", ""),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Redis.RateLimitEnabled {
		if c.Redis.URL == "" {
			return fmt.Errorf("redis URL is required when rate limiting is enabled")
		}
		if c.Redis.RateLimitPerMin <= 0 {
			return fmt.Errorf("rate limit per minute must be positive")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
