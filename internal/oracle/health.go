package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// HealthCheckPrompt is the prompt sent to oracles for health checks.
const HealthCheckPrompt = "1+1? One digit answer only"

// HealthStatus is the result of a health check.
type HealthStatus struct {
	Name         string        `json:"name"`
	Available    bool          `json:"available"`
	Healthy      bool          `json:"healthy"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	CheckedAt    time.Time     `json:"checked_at"`
}

// HealthCheck sends a trivial prompt and validates the reply.
func HealthCheck(ctx context.Context, o Oracle) HealthStatus {
	status := HealthStatus{Name: o.Name(), Available: o.Available()}
	if !status.Available {
		status.Error = "not available"
		status.CheckedAt = time.Now()
		return status
	}

	start := time.Now()
	out, err := Invoke(ctx, o, 30*time.Second, Request{Prompt: HealthCheckPrompt})
	status.ResponseTime = time.Since(start)
	status.CheckedAt = time.Now()

	if err != nil {
		status.Error = err.Error()
		return status
	}
	if err := validateHealthResponse(out); err != nil {
		status.Error = err.Error()
		return status
	}

	status.Healthy = true
	return status
}

func validateHealthResponse(content string) error {
	trimmed := strings.TrimSpace(content)
	if strings.Contains(trimmed, "2") && len(trimmed) <= 16 {
		return nil
	}
	if trimmed == "" {
		return fmt.Errorf("unexpected response: empty")
	}
	return fmt.Errorf("unexpected response: %q", truncate(trimmed, 120))
}
