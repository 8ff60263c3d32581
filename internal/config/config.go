// Package config provides centralized configuration management for the
// experimentation, context-store and reconciler services.
// It uses envconfig for environment variable loading and validator for validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix is prepended to every environment variable (SUPERPOSITION_DB_HOST, ...).
	EnvPrefix = "SUPERPOSITION"

	// EnvironmentProduction is the production environment identifier
	EnvironmentProduction = "production"
)

// Config holds the complete application configuration.
type Config struct {
	App             AppConfig             `envconfig:"APP"`
	Server          ServerConfig          `envconfig:"SERVER"`
	Database        DatabaseConfig        `envconfig:"DB"`
	Redis           RedisConfig           `envconfig:"REDIS"`
	ContextStore    ContextStoreConfig    `envconfig:"CONTEXT_STORE"`
	Snowflake       SnowflakeConfig       `envconfig:"SNOWFLAKE"`
	Reconciler      ReconcilerConfig      `envconfig:"RECONCILER"`
	Cache           CacheConfig           `envconfig:"CACHE"`
	Experimentation ExperimentationConfig `envconfig:"EXPERIMENTATION"`
	Observability   ObservabilityConfig   `envconfig:"OBSERVABILITY"`
}

// AppConfig contains core application settings.
type AppConfig struct {
	Name            string        `envconfig:"NAME" default:"superposition"`
	Version         string        `envconfig:"VERSION" default:"dev"`
	Environment     string        `envconfig:"ENV" default:"development" validate:"oneof=development staging production"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// ServerConfig holds the HTTP servers of both services.
type ServerConfig struct {
	Experiments ExperimentsServerConfig `envconfig:"EXPERIMENTS"`
	Context     ContextServerConfig     `envconfig:"CONTEXT"`
}

// CacheConfig sizes the in-memory experiment cache.
type CacheConfig struct {
	Capacity int           `envconfig:"CAPACITY" default:"10000" validate:"min=1"`
	TTL      time.Duration `envconfig:"TTL" default:"60s" validate:"gt=0"`
}

// Load reads configuration from environment variables with the SUPERPOSITION prefix.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if cfg.Snowflake.Hostname == "" {
		cfg.Snowflake.Hostname = os.Getenv("HOSTNAME")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate performs validation on the loaded configuration using go-playground/validator.
func (c *Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	env := c.App.Environment

	checks := []func() error{
		func() error { return c.Database.Validate(env) },
		func() error { return c.Redis.Validate(env) },
		func() error { return c.Server.Experiments.Validate(env) },
		func() error { return c.Server.Context.Validate(env) },
		func() error { return c.ContextStore.Validate(env) },
		c.Observability.Validate,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}

	return nil
}

// LogConfig logs the current configuration (without sensitive data).
func (c *Config) LogConfig(log *slog.Logger) {
	log.Info("configuration loaded",
		slog.String("app_name", c.App.Name),
		slog.String("version", c.App.Version),
		slog.String("environment", c.App.Environment),
		slog.String("log_level", c.App.LogLevel),
		slog.String("log_format", c.App.LogFormat),
		slog.Duration("shutdown_timeout", c.App.ShutdownTimeout),
		slog.String("experiments_port", c.Server.Experiments.Port),
		slog.String("context_port", c.Server.Context.Port),
		slog.String("context_store_url", c.ContextStore.URL),
		slog.Duration("context_store_timeout", c.ContextStore.Timeout),
		slog.Bool("context_store_token_set", c.ContextStore.AdminToken != ""),
		slog.String("hostname", c.Snowflake.Hostname),
		slog.String("observability_port", c.Observability.Port),
		slog.Bool("db_configured", c.Database.IsConfigured()),
		slog.Bool("redis_configured", c.Redis.IsConfigured()),
		slog.Bool("allow_same_keys_overlapping_ctx", c.Experimentation.AllowSameKeysOverlappingCtx),
		slog.Bool("allow_diff_keys_overlapping_ctx", c.Experimentation.AllowDiffKeysOverlappingCtx),
		slog.Bool("allow_same_keys_non_overlapping_ctx", c.Experimentation.AllowSameKeysNonOverlappingCtx),
	)
}

// Shared validation helper functions

// validatePort checks if port is valid (1-65535)
func validatePort(port, context string) error {
	if port == "" {
		return fmt.Errorf("%s port cannot be empty", context)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("%s port must be a number: %w", context, err)
	}
	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("%s port must be between 1 and 65535, got %d", context, portNum)
	}
	return nil
}

// validateHost checks if host is not empty and contains no whitespace
func validateHost(host, context string) error {
	return validateNoWhitespace(host, context+" host")
}

// validateNoWhitespace checks if a value is not empty and contains no whitespace
func validateNoWhitespace(value, fieldName string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	if strings.TrimSpace(value) != value {
		return fmt.Errorf("%s cannot contain whitespace", fieldName)
	}
	return nil
}

// validatePasswordStrength checks password meets minimum requirements
func validatePasswordStrength(password, context, environment string) error {
	if environment == EnvironmentProduction && len(password) < 12 {
		return fmt.Errorf("%s password must be at least 12 characters in production", context)
	}
	return nil
}

// isSecureSSLMode checks if SSL mode is production-safe
func isSecureSSLMode(mode string) bool {
	return mode == "require" || mode == "verify-ca" || mode == "verify-full"
}

// parseAndValidateURL is a helper for parsing URLs with scheme validation
func parseAndValidateURL(rawURL string, allowedSchemes []string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	if !slices.Contains(allowedSchemes, parsed.Scheme) {
		return nil, fmt.Errorf("invalid scheme '%s', must be one of: %v", parsed.Scheme, allowedSchemes)
	}

	if parsed.Host == "" {
		return nil, fmt.Errorf("host is required in URL")
	}

	return parsed, nil
}
