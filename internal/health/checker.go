// Package health reports whether the auth backend can serve sign-ins.
package health

import (
	"context"
	"fmt"
	"time"
)

// DefaultCheckTimeout bounds one readiness check.
const DefaultCheckTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is satisfied by the OPA step-up evaluator.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Checker pings the database and the step-up policy. Nil dependencies are skipped, so an
// in-memory deployment is always ready.
type Checker struct {
	DB      Pinger
	Policy  PolicyChecker
	Timeout time.Duration
}

// Check returns the first failing dependency, or nil when everything answers.
func (c *Checker) Check(ctx context.Context) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if c.DB != nil {
		if err := c.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if c.Policy != nil {
		if err := c.Policy.HealthCheck(ctx); err != nil {
			return fmt.Errorf("policy: %w", err)
		}
	}
	return nil
}
