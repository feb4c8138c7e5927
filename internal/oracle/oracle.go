// Package oracle wraps the external models that play the Solver and the
// Verifier behind one capability contract.
//
// Oracles are stateless: every call carries the whole prompt, and any
// history a role needs travels in Request.Context.
package oracle

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/alienxp03/gempt/internal/core"
)

const (
	// DefaultTimeout is the default per-call timeout.
	DefaultTimeout = 3 * time.Minute

	// MaxOutputSize is the maximum size of a response (10MB).
	MaxOutputSize = 10 * 1024 * 1024
)

// Oracle is an external model that turns a prompt (and optional image)
// into unstructured text.
type Oracle interface {
	// Name returns the oracle's unique identifier (e.g. "openai").
	Name() string

	// Available reports whether the oracle can be called (key set, CLI
	// installed).
	Available() bool

	// Invoke sends one request. Timeouts and network faults are returned
	// as errors, never as text.
	Invoke(ctx context.Context, req Request) (string, error)
}

// Request is one oracle call.
type Request struct {
	// Role is the participant the oracle plays for this call.
	Role core.Participant

	// System is the instruction block, sent as a system message where the
	// transport supports one.
	System string

	// Prompt is the main user text.
	Prompt string

	// Context is optional extra text appended after the prompt.
	Context string

	// Media is the optional image.
	Media *core.Media

	// Model overrides the oracle's default model.
	Model string
}

// UserText joins the prompt and context.
func (r Request) UserText() string {
	parts := make([]string, 0, 2)
	if p := strings.TrimSpace(r.Prompt); p != "" {
		parts = append(parts, p)
	}
	if c := strings.TrimSpace(r.Context); c != "" {
		parts = append(parts, c)
	}
	return strings.Join(parts, "\n\n")
}

// Config holds configuration for creating an oracle.
type Config struct {
	// Name is the registry name. Defaults to the provider name.
	Name string

	// Provider selects the transport: openai, gemini, cli or scripted.
	Provider string

	// Model is the default model for this oracle.
	Model string

	// APIKey authenticates HTTP transports.
	APIKey string

	// BaseURL overrides the API endpoint.
	BaseURL string

	// Command and Args configure the cli transport.
	Command string
	Args    []string

	// MediaFlag is the cli flag that receives the image path.
	MediaFlag string

	// Replies are the queued responses of the scripted transport.
	Replies []string

	// Timeout bounds a single call. Default: DefaultTimeout.
	Timeout time.Duration

	// MaxRetries applies to the cli transport only. Negative means default.
	MaxRetries int
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c Config) name(fallback string) string {
	if c.Name != "" {
		return c.Name
	}
	return fallback
}

// Invoke calls o with a per-call timeout applied on top of ctx.
func Invoke(ctx context.Context, o Oracle, timeout time.Duration, req Request) (string, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := o.Invoke(ctx, req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", &TransportError{Oracle: o.Name(), Model: req.Model, Message: "call timed out", Err: err}
		}
		return "", err
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func logCall(name, model string, role core.Participant, elapsed time.Duration, outputLen int) {
	slog.Debug("Oracle call completed",
		"oracle", name,
		"model", model,
		"role", role,
		"duration", elapsed,
		"output_len", outputLen,
	)
}
