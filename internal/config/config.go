// Package config loads and serves the runtime-tunable flags that drive the
// ReAct agent core (C9). Components receive these values by copy when they
// are built; a change made through Store.Set is not seen by a facade.Agent
// that already exists.
package config

import (
	"fmt"
	"sync"
)

// Config is the root configuration structure for the agent core.
type Config struct {
	Version int `yaml:"version"`

	ReAct ReActConfig `yaml:"react"`
	LLM   LLMConfig   `yaml:"llm"`
	MCP   MCPConfig   `yaml:"mcp"`
}

// ReActConfig holds the flags enumerated in spec §4.9.
type ReActConfig struct {
	UseReActAgent          bool    `yaml:"use_react_agent"`
	UseVectorSearch        bool    `yaml:"use_vector_search"`
	EnableContextBudgeting bool    `yaml:"enable_context_budgeting"`
	MaxSteps               int     `yaml:"max_react_steps"`
	CandidateThreshold     float64 `yaml:"resource_candidate_threshold"`
	FinalThreshold         float64 `yaml:"resource_final_threshold"`
	RecencyBoost           float64 `yaml:"resource_recency_boost"`
	MaxResults             int     `yaml:"resource_max_results"`
	BudgetResources        int     `yaml:"budget_resources"`
	BudgetHistory          int     `yaml:"budget_history"`
	DebugMode              bool    `yaml:"debug_mode"`
}

// DefaultReActConfig returns the §4.9 defaults.
func DefaultReActConfig() ReActConfig {
	return ReActConfig{
		UseReActAgent:          true,
		UseVectorSearch:        true,
		EnableContextBudgeting: true,
		MaxSteps:               5,
		CandidateThreshold:     0.25,
		FinalThreshold:         0.35,
		RecencyBoost:           0.30,
		MaxResults:             5,
		BudgetResources:        2048,
		BudgetHistory:          512,
		DebugMode:              false,
	}
}

// MCPConfig describes the single tool-runtime server the facade boots against.
type MCPConfig struct {
	ID        string            `yaml:"id"`
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // "stdio" | "http"
	Command   string            `yaml:"command"`
	Args      []string          `yaml:"args"`
	Env       map[string]string `yaml:"env"`
	URL       string            `yaml:"url"`
	IPCMode   bool              `yaml:"ipc_mode"`
	Headers   map[string]string `yaml:"headers"`
}

// DefaultConfig returns a Config populated with spec defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		ReAct:   DefaultReActConfig(),
		LLM:     LLMConfig{DefaultProvider: "openai"},
	}
}

// Load reads a YAML/JSON5 config file (with $include resolution) and decodes
// it into a Config, falling back to defaults for any field left unset.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	decoded, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	if decoded.Version == 0 {
		decoded.Version = CurrentVersion
	}
	if err := ValidateVersion(decoded.Version); err != nil {
		return nil, err
	}
	return decoded, nil
}

// Store is a concurrency-safe live view over a Config, allowing components to
// read the current value and callers to apply partial updates via Set. No
// component in this module reads from a Store, and facade.Agent has no
// config get/set surface.
type Store struct {
	mu  sync.RWMutex
	cfg Config
}

// NewStore creates a Store seeded with cfg. A nil cfg seeds defaults.
func NewStore(cfg *Config) *Store {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Store{cfg: *cfg}
}

// Get returns a copy of the current configuration.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set applies fn to a copy of the current config and installs the result.
// fn receives a pointer to a mutable copy; it must not retain it.
func (s *Store) Set(fn func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		return
	}
	cur := s.cfg
	fn(&cur)
	s.cfg = cur
}
