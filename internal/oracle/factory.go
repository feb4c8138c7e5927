package oracle

import "fmt"

// Provider names accepted by New.
const (
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
	ProviderCLI      = "cli"
	ProviderScripted = "scripted"
)

// New creates an oracle for cfg.Provider.
func New(cfg Config) (Oracle, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIOracle(cfg), nil
	case ProviderGemini:
		return NewGeminiOracle(cfg), nil
	case ProviderCLI:
		if cfg.Command == "" {
			return nil, fmt.Errorf("cli oracle %q has no command", cfg.Name)
		}
		return NewCLIOracle(cfg), nil
	case ProviderScripted:
		return NewScriptedOracle(cfg.name(ProviderScripted), cfg.Replies...).Cycle(), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider: %q", cfg.Provider)
	}
}
