package core

import (
	"fmt"
	"strings"
)

// OracleSpec identifies an oracle transport and model.
type OracleSpec struct {
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
}

// String renders the spec back to provider[/model] form.
func (s OracleSpec) String() string {
	if s.Model == "" {
		return s.Provider
	}
	return s.Provider + "/" + s.Model
}

// ParseOracleSpec parses an oracle specification string.
// Format: provider[/model]
//
// Examples:
//   - "openai" -> {Provider: "openai", Model: ""}
//   - "gemini/gemini-2.5-pro" -> {Provider: "gemini", Model: "gemini-2.5-pro"}
//   - "cli/claude" -> {Provider: "cli", Model: "claude"}
func ParseOracleSpec(spec string) (OracleSpec, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return OracleSpec{}, fmt.Errorf("oracle spec cannot be empty")
	}

	var s OracleSpec
	parts := strings.SplitN(spec, "/", 2)
	s.Provider = strings.ToLower(strings.TrimSpace(parts[0]))
	if s.Provider == "" {
		return OracleSpec{}, fmt.Errorf("provider cannot be empty in spec: %s", spec)
	}
	if len(parts) == 2 {
		s.Model = strings.TrimSpace(parts[1])
	}

	return s, nil
}

// DefaultModelForProvider returns the default model for a provider.
var DefaultModelForProvider = map[string]string{
	"openai":   "gpt-4o",
	"gemini":   "gemini-2.5-pro",
	"scripted": "scripted-v1",
}

// WithDefaultModel fills in the provider's default model when none is set.
func (s OracleSpec) WithDefaultModel() OracleSpec {
	if s.Model == "" {
		s.Model = DefaultModelForProvider[s.Provider]
	}
	return s
}
