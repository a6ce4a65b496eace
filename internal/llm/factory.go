package llm

import (
	"fmt"

	"go.uber.org/zap"
)

// NewProvider builds the configured provider wrapped as
// caller -> retry -> timeout -> observation -> base, so each attempt gets
// cfg.Timeout. An attempt that times out is not retried.
func NewProvider(cfg Config, logger *zap.Logger) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var base Provider
	var err error
	switch cfg.Provider {
	case "openai":
		base, err = NewOpenAIProvider(cfg.APIKey, cfg.model(), cfg.BaseURL)
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.APIKey, cfg.model(), cfg.BaseURL)
	case "mock":
		return NewMockProvider(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("init %s provider: %w", cfg.Provider, err)
	}
	return WithRetry(WithTimeout(WithObservation(base, logger), cfg.Timeout), cfg.Retry), nil
}
