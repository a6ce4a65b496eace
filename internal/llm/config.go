package llm

import (
	"fmt"
	"time"
)

// Config selects and tunes the language model provider.
type Config struct {
	// Provider is one of "openai", "anthropic" or "mock".
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	Retry    RetryConfig   `yaml:"retry"`
}

// EmbeddingConfig selects the embedding source.
type EmbeddingConfig struct {
	// Provider is "openai" or "hash".
	Provider   string        `yaml:"provider"`
	Model      string        `yaml:"model"`
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	Dimensions int           `yaml:"dimensions"`
	Timeout    time.Duration `yaml:"timeout"`
}

var defaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-haiku-4-5-20251001",
}

// DefaultConfig returns the settings used when the YAML omits the llm section.
func DefaultConfig() Config {
	return Config{
		Provider: "openai",
		Model:    defaultModels["openai"],
		Timeout:  30 * time.Second,
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 500 * time.Millisecond,
			MaxWait:     5 * time.Second,
			Multiplier:  2,
		},
	}
}

func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{Provider: "hash", Model: "text-embedding-3-small", Dimensions: 256, Timeout: 10 * time.Second}
}

// Validate checks the provider name and its credentials.
func (c Config) Validate() error {
	switch c.Provider {
	case "openai", "anthropic":
		if c.APIKey == "" {
			return fmt.Errorf("llm: api key is required for the %s provider", c.Provider)
		}
	case "mock":
	default:
		return fmt.Errorf("llm: unknown provider %q", c.Provider)
	}
	return nil
}

func (c EmbeddingConfig) Validate() error {
	switch c.Provider {
	case "openai":
		if c.APIKey == "" {
			return fmt.Errorf("embeddings: api key is required for the openai provider")
		}
	case "hash":
		if c.Dimensions <= 0 {
			return fmt.Errorf("embeddings: dimensions must be positive")
		}
	default:
		return fmt.Errorf("embeddings: unknown provider %q", c.Provider)
	}
	return nil
}

func (c Config) model() string {
	if c.Model != "" {
		return c.Model
	}
	return defaultModels[c.Provider]
}
