package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ibeckermayer/xpilot/internal/config"
	"github.com/ibeckermayer/xpilot/internal/generator"
)

// Models used when generation.model is empty.
var defaultModels = map[string]string{
	config.ProviderOpenAI:    "gpt-4o-mini",
	config.ProviderAnthropic: "claude-3-5-haiku-latest",
	config.ProviderGemini:    "gemini-2.5-flash",
}

// New returns the provider named by cfg.Provider.
func New(ctx context.Context, cfg config.GenerationConfig) (generator.Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("generation API key is not configured")
	}
	if cfg.Provider == "" {
		cfg.Provider = config.ProviderOpenAI
	}
	if cfg.Model == "" {
		cfg.Model = defaultModels[cfg.Provider]
	}
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.Endpoint), nil
	case config.ProviderAnthropic:
		var opts []option.RequestOption
		if cfg.Endpoint != "" {
			opts = append(opts, option.WithBaseURL(cfg.Endpoint))
		}
		return NewAnthropicProvider(cfg.APIKey, cfg.Model, opts...), nil
	case config.ProviderGemini:
		p, err := NewGeminiProvider(ctx, cfg.APIKey, cfg.Model, cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}
