package llmrouter

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider identifiers understood by the adapter registry.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
	ProviderQwen   = "qwen"
	ProviderCustom = "custom"
)

// ProviderConfig describes one concrete model endpoint.
type ProviderConfig struct {
	Provider    string   `yaml:"provider" json:"provider"`
	APIKey      string   `yaml:"api_key" json:"api_key"`
	Model       string   `yaml:"model" json:"model"`
	BaseURL     string   `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
}

// key returns the identity of the adapter this configuration resolves to.
func (c ProviderConfig) key() adapterKey {
	return adapterKey{Provider: c.Provider, Model: c.Model, BaseURL: c.BaseURL}
}

// Validate checks that the configuration names a known provider and a model.
func (c ProviderConfig) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderClaude, ProviderQwen, ProviderCustom:
	case "":
		return NewModelError(CodeInvalidRequest, "", "provider is required", nil)
	default:
		return NewModelError(CodeInvalidRequest, c.Provider, fmt.Sprintf("unknown provider %q", c.Provider), nil)
	}
	if c.Model == "" && DefaultModel(c.Provider) == "" {
		return NewModelError(CodeInvalidRequest, c.Provider, "model is required", nil)
	}
	return nil
}

// ManagerConfig configures a Manager: a default provider, an optional
// fallback used only after the default's retry budget is exhausted, an
// optional task→provider map consulted only in multi-model mode, and retry
// parameters.
type ManagerConfig struct {
	Default    ProviderConfig            `yaml:"default" json:"default"`
	Fallback   *ProviderConfig           `yaml:"fallback,omitempty" json:"fallback,omitempty"`
	MultiModel bool                      `yaml:"multi_model" json:"multi_model"`
	Tasks      map[string]ProviderConfig `yaml:"tasks,omitempty" json:"tasks,omitempty"`

	// MaxRetries is a pointer so that an explicit 0 (no retries) is
	// distinguishable from unset (default policy).
	MaxRetries     *int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	InitialDelayMs int  `yaml:"initial_delay_ms" json:"initial_delay_ms"`
	MaxDelayMs     int  `yaml:"max_delay_ms" json:"max_delay_ms"`
}

// Validate checks the full configuration, including every task override.
func (c ManagerConfig) Validate() error {
	if err := c.Default.Validate(); err != nil {
		return fmt.Errorf("default provider: %w", err)
	}
	if c.Fallback != nil {
		if err := c.Fallback.Validate(); err != nil {
			return fmt.Errorf("fallback provider: %w", err)
		}
	}
	for task, pc := range c.Tasks {
		if err := pc.Validate(); err != nil {
			return fmt.Errorf("task %q: %w", task, err)
		}
	}
	if c.MaxRetries != nil && *c.MaxRetries < 0 {
		return NewModelError(CodeInvalidRequest, "", "max_retries must not be negative", nil)
	}
	return nil
}

// retryPolicy builds the RetryPolicy from the configured parameters,
// defaulting any that are unset.
func (c ManagerConfig) retryPolicy() RetryPolicy {
	policy := DefaultRetryPolicy()
	if c.MaxRetries != nil {
		policy.MaxRetries = *c.MaxRetries
	}
	if c.InitialDelayMs > 0 {
		policy.InitialDelay = time.Duration(c.InitialDelayMs) * time.Millisecond
	}
	if c.MaxDelayMs > 0 {
		policy.MaxDelay = time.Duration(c.MaxDelayMs) * time.Millisecond
	}
	return policy
}

// LoadManagerConfig reads a ManagerConfig from a YAML file. ${VAR} references
// in the file are expanded from the environment, so API keys can stay out of
// the file itself.
func LoadManagerConfig(path string) (*ManagerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.Expand(string(data), func(name string) string {
		return os.Getenv(name)
	})

	var cfg ManagerConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
