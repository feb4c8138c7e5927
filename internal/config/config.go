// Package config handles application configuration.
package config

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alienxp03/gempt/internal/core"
	"github.com/alienxp03/gempt/internal/engine"
	"github.com/alienxp03/gempt/internal/knowledge"
	"github.com/alienxp03/gempt/internal/ledger"
	"github.com/alienxp03/gempt/internal/oracle"
	"github.com/alienxp03/gempt/internal/prompt"
	"github.com/alienxp03/gempt/internal/search"
	"github.com/alienxp03/gempt/internal/session"
	"github.com/alienxp03/gempt/internal/storage"
)

// Ledger backends.
const (
	LedgerFile   = "file"
	LedgerSQLite = "sqlite"
	LedgerMemory = "memory"
)

// Config represents the application configuration.
type Config struct {
	Server         ServerConfig    `yaml:"server"`
	Storage        StorageConfig   `yaml:"storage"`
	Ledger         LedgerConfig    `yaml:"ledger"`
	Engine         EngineConfig    `yaml:"engine"`
	Dialect        string          `yaml:"dialect"`
	DefaultProject string          `yaml:"default_project"`
	Oracles        OraclesConfig   `yaml:"oracles"`
	Search         SearchConfig    `yaml:"search"`
	Knowledge      KnowledgeConfig `yaml:"knowledge"`
	Summary        SummaryConfig   `yaml:"summary"`
}

// ServerConfig holds server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// StorageConfig holds session database settings.
type StorageConfig struct {
	Path string `yaml:"path,omitempty"`
}

// LedgerConfig selects where project scores live.
type LedgerConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path,omitempty"`
}

// EngineConfig holds debate settings.
type EngineConfig struct {
	MaxRounds            int           `yaml:"max_rounds"`
	MaxUnrecognizedRatio float64       `yaml:"max_unrecognized_ratio"`
	CallTimeout          time.Duration `yaml:"call_timeout"`
}

// OraclesConfig assigns an oracle to each role.
type OraclesConfig struct {
	Solver   OracleConfig `yaml:"solver"`
	Verifier OracleConfig `yaml:"verifier"`
}

// OracleConfig holds oracle-specific settings.
type OracleConfig struct {
	Provider   string        `yaml:"provider"`
	Model      string        `yaml:"model,omitempty"`
	APIKey     string        `yaml:"api_key,omitempty"`
	BaseURL    string        `yaml:"base_url,omitempty"`
	Command    string        `yaml:"command,omitempty"`
	Args       []string      `yaml:"args,omitempty"`
	MediaFlag  string        `yaml:"media_flag,omitempty"`
	Replies    []string      `yaml:"replies,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	MaxRetries int           `yaml:"max_retries,omitempty"`
}

// SearchConfig holds web search settings.
type SearchConfig struct {
	APIKey  string        `yaml:"api_key,omitempty"`
	BaseURL string        `yaml:"base_url,omitempty"`
	TopN    int           `yaml:"top_n"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// KnowledgeConfig holds knowledge pre-step settings.
type KnowledgeConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxQueries int  `yaml:"max_queries"`
	Parallel   int  `yaml:"parallel"`
}

// SummaryConfig holds post-debate report settings.
type SummaryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8182,
		},
		Ledger: LedgerConfig{
			Backend: LedgerFile,
		},
		Engine: EngineConfig{
			MaxRounds:            engine.DefaultMaxRounds,
			MaxUnrecognizedRatio: engine.DefaultMaxUnrecognizedRatio,
			CallTimeout:          oracle.DefaultTimeout,
		},
		Dialect:        prompt.Default().ID,
		DefaultProject: session.DefaultProject,
		Oracles: OraclesConfig{
			Solver: OracleConfig{
				Provider:   oracle.ProviderOpenAI,
				Model:      core.DefaultModelForProvider[oracle.ProviderOpenAI],
				MaxRetries: 2,
			},
			Verifier: OracleConfig{
				Provider:   oracle.ProviderGemini,
				Model:      core.DefaultModelForProvider[oracle.ProviderGemini],
				MaxRetries: 2,
			},
		},
		Search: SearchConfig{
			TopN:    search.DefaultTopN,
			Timeout: 30 * time.Second,
		},
		Knowledge: KnowledgeConfig{
			Enabled:    true,
			MaxQueries: knowledge.DefaultMaxQueries,
			Parallel:   knowledge.DefaultParallel,
		},
		Summary: SummaryConfig{
			Enabled: true,
		},
	}
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigPath())
}

// LoadFrom loads configuration from a specific path. Values from a .env
// file in the working directory and then from the process environment
// override the file.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file, proceed with defaults
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if env, err := LoadEnv(".env"); err == nil {
		ApplyEnvOverrides(cfg, env)
	}
	ApplyEnvOverrides(cfg, ProcessEnv())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later.
func (c *Config) Validate() error {
	if !prompt.Valid(c.Dialect) {
		return fmt.Errorf("invalid dialect %q (available: %v)", c.Dialect, prompt.List())
	}
	switch c.Ledger.Backend {
	case LedgerFile, LedgerSQLite, LedgerMemory:
	default:
		return fmt.Errorf("invalid ledger backend %q", c.Ledger.Backend)
	}
	return nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigPath())
}

// SaveTo saves the configuration to a specific path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The file may hold API keys.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// StoragePath returns the session database path.
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return storage.DefaultDBPath()
}

// EngineConfig converts the engine section.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		MaxRounds:            c.Engine.MaxRounds,
		MaxUnrecognizedRatio: c.Engine.MaxUnrecognizedRatio,
	}
}

// ToOracleConfig converts an OracleConfig to oracle.Config.
func (o OracleConfig) ToOracleConfig(name string) oracle.Config {
	return oracle.Config{
		Name:       name,
		Provider:   o.Provider,
		Model:      o.Model,
		APIKey:     o.APIKey,
		BaseURL:    o.BaseURL,
		Command:    o.Command,
		Args:       o.Args,
		MediaFlag:  o.MediaFlag,
		Replies:    o.Replies,
		Timeout:    o.Timeout,
		MaxRetries: o.MaxRetries,
	}
}

// Oracles holds the oracle assigned to each role.
type Oracles struct {
	Registry *oracle.Registry
	Solver   oracle.Oracle
	Verifier oracle.Oracle
}

// CreateOracles creates the Solver and Verifier oracles, registered under
// their role names.
func (c *Config) CreateOracles() (*Oracles, error) {
	solver, err := oracle.New(c.Oracles.Solver.ToOracleConfig("solver"))
	if err != nil {
		return nil, fmt.Errorf("failed to create solver oracle: %w", err)
	}
	verifier, err := oracle.New(c.Oracles.Verifier.ToOracleConfig("verifier"))
	if err != nil {
		return nil, fmt.Errorf("failed to create verifier oracle: %w", err)
	}

	registry := oracle.NewRegistry()
	registry.Register(solver)
	registry.Register(verifier)

	return &Oracles{Registry: registry, Solver: solver, Verifier: verifier}, nil
}

// CreateLedger creates the configured score ledger. db is used by the
// sqlite backend.
func (c *Config) CreateLedger(db *sql.DB) (ledger.Ledger, error) {
	switch c.Ledger.Backend {
	case LedgerFile, "":
		path := c.Ledger.Path
		if path == "" {
			path = ledger.DefaultFilePath()
		}
		return ledger.NewFileLedger(path), nil
	case LedgerSQLite:
		if db == nil {
			return nil, fmt.Errorf("sqlite ledger requires a database")
		}
		return ledger.NewSQLLedger(db)
	case LedgerMemory:
		return ledger.NewMemory(), nil
	default:
		return nil, fmt.Errorf("invalid ledger backend %q", c.Ledger.Backend)
	}
}

// CreateSearcher creates the web search client, or nil when no API key is
// configured.
func (c *Config) CreateSearcher() search.Searcher {
	if c.Search.APIKey == "" {
		return nil
	}
	s := search.NewSerpAPI(c.Search.APIKey, c.Search.Timeout)
	if c.Search.BaseURL != "" {
		s.BaseURL = c.Search.BaseURL
	}
	if c.Search.TopN > 0 {
		s.TopN = c.Search.TopN
	}
	return s
}

// CreateOrchestrator wires the oracles, ledger, engine and knowledge
// pre-step around store.
func (c *Config) CreateOrchestrator(store storage.Storage) (*session.Orchestrator, *Oracles, error) {
	oracles, err := c.CreateOracles()
	if err != nil {
		return nil, nil, err
	}

	l, err := c.CreateLedger(store.DB())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create ledger: %w", err)
	}

	var kb *knowledge.Builder
	if c.Knowledge.Enabled {
		if searcher := c.CreateSearcher(); searcher != nil {
			kb = knowledge.NewBuilder(oracles.Verifier, searcher, knowledge.Config{
				MaxQueries: c.Knowledge.MaxQueries,
				Parallel:   c.Knowledge.Parallel,
				Timeout:    c.Engine.CallTimeout,
			})
		}
	}

	orch := session.New(store, engine.New(l, c.EngineConfig()), oracles.Solver, oracles.Verifier, kb, session.Config{
		DefaultProject: c.DefaultProject,
		Dialect:        c.Dialect,
		Timeout:        c.Engine.CallTimeout,
		Summary:        c.Summary.Enabled,
	})
	return orch, oracles, nil
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "gempt.yaml"
	}
	return filepath.Join(home, ".gempt", "config.yaml")
}

// GenerateExample generates an example configuration file.
func GenerateExample() string {
	example := `# gempt configuration file
# Place this file at ~/.gempt/config.yaml
# API keys may also come from .env or the environment
# (OPENAI_API_KEY, GOOGLE_API_KEY, SERPAPI_API_KEY).

server:
  port: 8182

storage:
  path: ""                   # Session database (empty = ~/.gempt/gempt.db)

ledger:
  backend: file              # file, sqlite or memory
  path: ""                   # File ledger path (empty = ~/.gempt/project_db.json)

engine:
  max_rounds: 5              # Defend/re-verify rounds before the credit tie-break
  max_unrecognized_ratio: 0.5
  call_timeout: 3m           # Per oracle call

dialect: en                  # en or ko
default_project: default

oracles:
  solver:
    provider: openai         # openai, gemini, cli or scripted
    model: gpt-4o
    base_url: ""             # Any OpenAI-compatible endpoint
  verifier:
    provider: gemini
    model: gemini-2.5-pro

  # A local CLI tool can play either role:
  # verifier:
  #   provider: cli
  #   command: llm
  #   args: ["prompt"]
  #   media_flag: "-a"       # Flag that receives the image path
  #   timeout: 5m
  #   max_retries: 2         # Retry transient failures (total 3 attempts)

search:
  top_n: 3                   # Organic results kept per query
  timeout: 30s

knowledge:
  enabled: true              # Needs a SerpAPI key
  max_queries: 4
  parallel: 4

summary:
  enabled: true              # Five-part report after the debate
`
	return example
}
