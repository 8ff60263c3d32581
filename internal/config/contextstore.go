package config

import (
	"fmt"
	"time"
)

// ContextStoreConfig points the experimentation service at the context store.
type ContextStoreConfig struct {
	URL string `envconfig:"URL" default:"http://localhost:8081"`

	// AdminToken is sent as a bearer token on every bulk call.
	AdminToken string `envconfig:"ADMIN_TOKEN"`

	// Timeout bounds a single bulk call, including reading the response.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"10s" validate:"gt=0"`

	// MaxResponseBytes caps the decoded response body.
	MaxResponseBytes int64 `envconfig:"MAX_RESPONSE_BYTES" default:"10485760" validate:"min=1"` // 10MB
}

// Validate checks the remote URL and production credentials.
func (c *ContextStoreConfig) Validate(environment string) error {
	if _, err := parseAndValidateURL(c.URL, []string{"http", "https"}); err != nil {
		return fmt.Errorf("invalid context store URL: %w", err)
	}

	if environment == EnvironmentProduction && c.AdminToken == "" {
		return fmt.Errorf("context store admin token is required in production environment")
	}

	return nil
}
