package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// CLIOracle runs a local command-line model tool. The prompt is passed as
// the last argument; an image is written to a temp file whose path is
// handed over with MediaFlag.
type CLIOracle struct {
	name       string
	command    string
	args       []string
	model      string
	mediaFlag  string
	timeout    time.Duration
	maxRetries int
	backoff    func(attempt int) time.Duration
}

// NewCLIOracle creates a CLI oracle from configuration.
func NewCLIOracle(cfg Config) *CLIOracle {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 2 // 3 attempts in total
	}

	return &CLIOracle{
		name:       cfg.name(filepath.Base(cfg.Command)),
		command:    cfg.Command,
		args:       cfg.Args,
		model:      cfg.Model,
		mediaFlag:  cfg.MediaFlag,
		timeout:    cfg.timeout(),
		maxRetries: maxRetries,
		backoff: func(attempt int) time.Duration {
			return time.Duration(math.Pow(2, float64(attempt))) * time.Second
		},
	}
}

func (o *CLIOracle) Name() string  { return o.name }
func (o *CLIOracle) Model() string { return o.model }

// Available checks if the CLI tool is installed and accessible.
func (o *CLIOracle) Available() bool {
	_, err := exec.LookPath(o.command)
	return err == nil
}

// ValidateExecutable checks if the CLI is available before execution.
func (o *CLIOracle) ValidateExecutable() error {
	if _, err := exec.LookPath(o.command); err != nil {
		return &TransportError{
			Oracle:  o.name,
			Message: fmt.Sprintf("executable '%s' not found in PATH", o.command),
			Err:     err,
		}
	}
	return nil
}

// limitedWriter wraps an io.Writer and limits total bytes written.
type limitedWriter struct {
	w       io.Writer
	n       int64
	limit   int64
	limited bool
}

func newLimitedWriter(w io.Writer, limit int64) *limitedWriter {
	return &limitedWriter{w: w, limit: limit}
}

func (l *limitedWriter) Write(p []byte) (n int, err error) {
	if l.n >= l.limit {
		l.limited = true
		return len(p), nil // discard, but don't error
	}

	remaining := l.limit - l.n
	if int64(len(p)) > remaining {
		p = p[:remaining]
		l.limited = true
	}

	n, err = l.w.Write(p)
	l.n += int64(n)
	return n, err
}

// buildArgs assembles the argument list for one call.
func (o *CLIOracle) buildArgs(req Request, mediaPath string) []string {
	args := append([]string{}, o.args...)

	model := req.Model
	if model == "" {
		model = o.model
	}
	if model != "" {
		args = append(args, "--model", model)
	}
	if mediaPath != "" {
		args = append(args, o.mediaFlag, mediaPath)
	}

	prompt := req.UserText()
	if req.System != "" {
		prompt = req.System + "\n\n" + prompt
	}
	return append(args, prompt)
}

// writeMedia stores the image in a temp file. The caller removes it.
func (o *CLIOracle) writeMedia(req Request) (string, error) {
	if req.Media == nil {
		return "", nil
	}
	if o.mediaFlag == "" {
		slog.Warn("CLI oracle has no media flag, image not sent", "oracle", o.name)
		return "", nil
	}

	ext := ".img"
	if exts := strings.SplitN(req.Media.MIMEType, "/", 2); len(exts) == 2 {
		ext = "." + strings.SplitN(exts[1], ";", 2)[0]
	}
	f, err := os.CreateTemp("", "gempt-media-*"+ext)
	if err != nil {
		return "", &TransportError{Oracle: o.name, Message: "creating media file", Err: err}
	}
	defer f.Close()

	if _, err := io.Copy(f, req.Media.Open()); err != nil {
		os.Remove(f.Name())
		return "", &TransportError{Oracle: o.name, Message: "writing media file", Err: err}
	}
	return f.Name(), nil
}

// executeOnce runs the CLI command (single attempt).
func (o *CLIOracle) executeOnce(ctx context.Context, args []string) (string, error) {
	if err := o.ValidateExecutable(); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	slog.Debug("Executing CLI oracle",
		"oracle", o.name,
		"command", o.command,
		"args", len(args),
	)

	cmd := exec.CommandContext(ctx, o.command, args...)

	var stdout, stderr bytes.Buffer
	stdoutLimited := newLimitedWriter(&stdout, MaxOutputSize)
	stderrLimited := newLimitedWriter(&stderr, MaxOutputSize)
	cmd.Stdout = stdoutLimited
	cmd.Stderr = stderrLimited

	if err := cmd.Run(); err != nil {
		slog.Error("CLI oracle failed",
			"oracle", o.name,
			"error", err,
			"stderr", truncate(stderr.String(), 500),
		)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &TransportError{Oracle: o.name, Message: "command timed out", Err: ctx.Err()}
		}
		if stderr.Len() > 0 {
			errMsg := stderr.String()
			if stderrLimited.limited {
				errMsg += "\n... (output truncated)"
			}
			return "", &TransportError{Oracle: o.name, Message: errMsg, Err: err}
		}
		return "", &TransportError{Oracle: o.name, Message: "command failed", Err: err}
	}

	result := strings.TrimSpace(stdout.String())
	if result == "" {
		return "", &TransportError{Oracle: o.name, Message: "no output", Err: ErrEmptyResponse}
	}
	if stdoutLimited.limited {
		result += "\n... (output truncated at 10MB)"
	}
	return result, nil
}

// Invoke runs the command with retry logic for transient failures.
// Retries stay inside the transport; a final failure is returned as is.
func (o *CLIOracle) Invoke(ctx context.Context, req Request) (string, error) {
	mediaPath, err := o.writeMedia(req)
	if err != nil {
		return "", err
	}
	if mediaPath != "" {
		defer os.Remove(mediaPath)
	}
	args := o.buildArgs(req, mediaPath)

	start := time.Now()
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := o.backoff(attempt)
			slog.Info("Retrying CLI oracle after backoff",
				"oracle", o.name,
				"attempt", attempt+1,
				"max_attempts", o.maxRetries+1,
				"backoff", backoff,
			)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		result, err := o.executeOnce(ctx, args)
		if err == nil {
			logCall(o.name, req.Model, req.Role, time.Since(start), len(result))
			return result, nil
		}

		if !isRetriable(err) {
			return "", err
		}
		if attempt == o.maxRetries {
			slog.Error("CLI oracle failed after all retries",
				"oracle", o.name,
				"attempts", attempt+1,
				"error", err,
			)
			return "", fmt.Errorf("failed after %d attempts: %w", attempt+1, err)
		}

		slog.Warn("CLI oracle failed, will retry",
			"oracle", o.name,
			"attempt", attempt+1,
			"error", err,
		)
	}

	return "", fmt.Errorf("unexpected retry loop exit")
}

// isRetriable checks if an error is worth retrying.
func isRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}

	msg := strings.ToLower(te.Message)
	return strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection") ||
		strings.Contains(msg, "network") ||
		strings.Contains(msg, "temporary") ||
		strings.Contains(msg, "unavailable")
}
