package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/alienxp03/gempt/internal/oracle"
)

const (
	healthyTTL   = 30 * time.Minute
	unhealthyTTL = time.Minute
)

// modelReporter is implemented by oracles bound to a default model.
type modelReporter interface {
	Model() string
}

// healthCache remembers health checks per oracle and model. A failed
// check expires sooner so a fixed key or restarted CLI shows up quickly.
type healthCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]oracle.HealthStatus
}

func newHealthCache() *healthCache {
	return &healthCache{
		now:     time.Now,
		entries: make(map[string]oracle.HealthStatus),
	}
}

func healthKey(o oracle.Oracle) string {
	if m, ok := o.(modelReporter); ok && m.Model() != "" {
		return o.Name() + "/" + m.Model()
	}
	return o.Name()
}

// check returns a cached status for o or runs a new health check.
func (c *healthCache) check(ctx context.Context, o oracle.Oracle, refresh bool) oracle.HealthStatus {
	key := healthKey(o)

	c.mu.Lock()
	status, ok := c.entries[key]
	c.mu.Unlock()

	if ok && !refresh {
		ttl := unhealthyTTL
		if status.Healthy {
			ttl = healthyTTL
		}
		if c.now().Sub(status.CheckedAt) <= ttl {
			return status
		}
	}

	status = oracle.HealthCheck(ctx, o)

	c.mu.Lock()
	c.entries[key] = status
	c.mu.Unlock()
	return status
}
