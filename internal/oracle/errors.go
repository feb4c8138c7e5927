package oracle

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited is returned when the remote API answers 429.
	ErrRateLimited = errors.New("rate limited")
	// ErrNoAPIKey is returned when an HTTP oracle has no credentials.
	ErrNoAPIKey = errors.New("no API key configured")
	// ErrEmptyResponse is returned when the oracle produced no text.
	ErrEmptyResponse = errors.New("empty response")
	// ErrScriptExhausted is returned by a scripted oracle with no replies left.
	ErrScriptExhausted = errors.New("scripted oracle has no replies left")
)

// TransportError represents a failed oracle call.
type TransportError struct {
	// Oracle is the name of the oracle that failed.
	Oracle string

	// Model is the model that was requested, if known.
	Model string

	// Message is a human-readable error message.
	Message string

	// Err is the underlying error (if any).
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	name := e.Oracle
	if e.Model != "" {
		name += "/" + e.Model
	}
	if e.Err != nil {
		return fmt.Sprintf("%s oracle error: %s: %v", name, e.Message, e.Err)
	}
	return fmt.Sprintf("%s oracle error: %s", name, e.Message)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err came from an oracle transport.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
