package config

import (
	"fmt"
	"strings"
	"time"
)

// ObservabilityConfig sizes the admin server each binary runs beside its API:
// liveness, readiness over Postgres and Redis, and Prometheus scraping.
type ObservabilityConfig struct {
	Port string `envconfig:"PORT" default:"9090"`

	// Timeout bounds reads, writes, idle connections and each readiness check.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s" validate:"min=1s"`

	LivenessPath  string `envconfig:"LIVENESS_PATH" default:"/healthz"`
	ReadinessPath string `envconfig:"READINESS_PATH" default:"/readyz"`
	MetricsPath   string `envconfig:"METRICS_PATH" default:"/metrics"`
}

// Validate requires a usable port and three distinct absolute paths.
func (o *ObservabilityConfig) Validate() error {
	if err := validatePort(o.Port, "observability"); err != nil {
		return err
	}

	seen := make(map[string]string, 3)
	for _, p := range []struct{ name, path string }{
		{"liveness", o.LivenessPath},
		{"readiness", o.ReadinessPath},
		{"metrics", o.MetricsPath},
	} {
		if !strings.HasPrefix(p.path, "/") {
			return fmt.Errorf("observability %s path must start with '/', got %q", p.name, p.path)
		}
		if other, dup := seen[p.path]; dup {
			return fmt.Errorf("observability %s and %s paths are both %q", other, p.name, p.path)
		}
		seen[p.path] = p.name
	}
	return nil
}
