package config

import (
	"encoding/hex"
	"fmt"
	"time"
)

// HTTPServerConfig is shared by the experimentation and context-store REST servers.
// The port lives on the embedding struct so each server keeps its own default.
type HTTPServerConfig struct {
	Host              string        `envconfig:"HOST" default:"0.0.0.0"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes    int           `envconfig:"MAX_HEADER_BYTES" default:"524288" validate:"min=1"` // 512KB

	// Security
	APIKeyHash string `envconfig:"API_KEY_HASH"`
	TLSEnabled bool   `envconfig:"TLS_ENABLED" default:"false"`
	TLSCert    string `envconfig:"TLS_CERT_FILE"`
	TLSKey     string `envconfig:"TLS_KEY_FILE"`
}

// ExperimentsServerConfig configures the experimentation REST API.
type ExperimentsServerConfig struct {
	HTTPServerConfig
	Port string `envconfig:"PORT" default:"8080"`
}

// ContextServerConfig configures the context-store REST API.
type ContextServerConfig struct {
	HTTPServerConfig
	Port string `envconfig:"PORT" default:"8081"`

	// DimensionPriorities weighs each dimension when computing a context's
	// priority, e.g. "city:4,variant_id:1024". Unlisted dimensions weigh 1.
	DimensionPriorities map[string]int `envconfig:"DIMENSION_PRIORITIES"`
}

// Validate performs validation on the experimentation server.
func (c *ExperimentsServerConfig) Validate(environment string) error {
	return c.HTTPServerConfig.validate(c.Port, "experiments server", environment)
}

// Validate performs validation on the context-store server.
func (c *ContextServerConfig) Validate(environment string) error {
	if err := c.HTTPServerConfig.validate(c.Port, "context server", environment); err != nil {
		return err
	}
	for name, weight := range c.DimensionPriorities {
		if weight < 0 {
			return fmt.Errorf("context server dimension %q priority must be >= 0, got %d", name, weight)
		}
	}
	return nil
}

func (c *HTTPServerConfig) validate(port, context, environment string) error {
	if err := validatePort(port, context); err != nil {
		return err
	}

	if err := validateHost(c.Host, context); err != nil {
		return err
	}

	// Production security requirements
	if environment == EnvironmentProduction {
		if c.APIKeyHash == "" {
			return fmt.Errorf("%s API key hash is required in production environment", context)
		}
		if !c.TLSEnabled {
			return fmt.Errorf("%s TLS must be enabled in production environment", context)
		}
	}

	if c.APIKeyHash != "" {
		if err := validateSHA256Hash(c.APIKeyHash); err != nil {
			return fmt.Errorf("invalid %s API key hash: %w", context, err)
		}
	}

	if c.TLSEnabled && (c.TLSCert == "" || c.TLSKey == "") {
		return fmt.Errorf("%s TLS enabled but cert or key file not specified", context)
	}

	return nil
}

// validateSHA256Hash checks if the hash is a valid SHA-256 hex string (64 hex characters)
func validateSHA256Hash(hash string) error {
	if len(hash) != 64 {
		return fmt.Errorf("SHA-256 hash must be 64 characters, got %d", len(hash))
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return fmt.Errorf("hash must be valid hexadecimal: %w", err)
	}
	return nil
}
