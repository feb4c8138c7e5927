package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/alienxp03/gempt/internal/core"
	"github.com/alienxp03/gempt/internal/oracle"
)

// envKeys are the variables ApplyEnvOverrides understands.
var envKeys = []string{
	"OPENAI_API_KEY",
	"GOOGLE_API_KEY",
	"GEMINI_API_KEY",
	"SERPAPI_API_KEY",
	"SERVER_PORT",
	"MAX_ROUNDS",
	"DIALECT",
	"DEFAULT_PROJECT",
	"LEDGER_BACKEND",
	"LEDGER_PATH",
	"DB_PATH",
	"SOLVER",
	"VERIFIER",
}

// LoadEnv reads a .env file and returns its key-value pairs.
func LoadEnv(path string) (map[string]string, error) {
	return godotenv.Read(path)
}

// ProcessEnv returns the known variables set in the process environment.
func ProcessEnv() map[string]string {
	env := make(map[string]string)
	for _, key := range envKeys {
		if val, ok := os.LookupEnv(key); ok {
			env[key] = val
		}
	}
	return env
}

// ApplyEnvOverrides updates the configuration based on environment variables.
func ApplyEnvOverrides(cfg *Config, env map[string]string) {
	// Server
	if val, ok := env["SERVER_PORT"]; ok {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Server.Port = port
		}
	}

	// Engine and defaults
	if val, ok := env["MAX_ROUNDS"]; ok {
		if rounds, err := strconv.Atoi(val); err == nil && rounds > 0 {
			cfg.Engine.MaxRounds = rounds
		}
	}
	if val, ok := env["DIALECT"]; ok && val != "" {
		cfg.Dialect = val
	}
	if val, ok := env["DEFAULT_PROJECT"]; ok && val != "" {
		cfg.DefaultProject = val
	}

	// Storage
	if val, ok := env["LEDGER_BACKEND"]; ok && val != "" {
		cfg.Ledger.Backend = val
	}
	if val, ok := env["LEDGER_PATH"]; ok {
		cfg.Ledger.Path = val
	}
	if val, ok := env["DB_PATH"]; ok {
		cfg.Storage.Path = val
	}

	// Role assignment as provider[/model]
	if val, ok := env["SOLVER"]; ok {
		applyOracleSpec(&cfg.Oracles.Solver, val)
	}
	if val, ok := env["VERIFIER"]; ok {
		applyOracleSpec(&cfg.Oracles.Verifier, val)
	}

	// Credentials
	googleKey := env["GOOGLE_API_KEY"]
	if googleKey == "" {
		googleKey = env["GEMINI_API_KEY"]
	}
	for _, o := range []*OracleConfig{&cfg.Oracles.Solver, &cfg.Oracles.Verifier} {
		switch o.Provider {
		case oracle.ProviderOpenAI:
			if val := env["OPENAI_API_KEY"]; val != "" {
				o.APIKey = val
			}
		case oracle.ProviderGemini:
			if googleKey != "" {
				o.APIKey = googleKey
			}
		}
	}
	if val := env["SERPAPI_API_KEY"]; val != "" {
		cfg.Search.APIKey = val
	}
}

func applyOracleSpec(o *OracleConfig, spec string) {
	parsed, err := core.ParseOracleSpec(spec)
	if err != nil {
		return
	}
	if parsed.Provider != o.Provider {
		o.APIKey = ""
	}
	parsed = parsed.WithDefaultModel()
	o.Provider = parsed.Provider
	o.Model = parsed.Model
}
