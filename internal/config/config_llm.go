package config

// LLMConfig selects and configures the LLM client adapter consumed by the
// ReAct Controller (spec §6.1). Only the fields needed to pick and
// authenticate a provider are kept; a richer LLMConfig also carries
// routing/fallback/auto-discovery knobs for a multi-channel deployment,
// which has no analogue in this single-provider core.
type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`
}

// LLMProviderConfig holds per-provider credentials and defaults.
type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
}
