// Package observability hosts the admin server (health endpoints and metrics) and the
// Prometheus collectors shared by every service.
package observability

import "context"

// Checker reports the health of one dependency (e.g., "postgres", "redis").
// Check must honour ctx so the readiness endpoint answers within its timeout.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc struct {
	Component string
	Fn        func(ctx context.Context) error
}

// Name returns the component name.
func (c CheckerFunc) Name() string { return c.Component }

// Check runs the wrapped function.
func (c CheckerFunc) Check(ctx context.Context) error { return c.Fn(ctx) }
