package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/feedpilot/api/schemas"
	"github.com/xkilldash9x/feedpilot/internal/config"
)

// NewClient creates the LLM client described by cfg: a tier router over one
// Gemini client per model list. Both tiers share one request limiter.
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger, opts ...GeminiOption) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]", cfg.Provider, config.ProviderGemini)
	}

	fastModels, powerfulModels := cfg.FastModels, cfg.PowerfulModels
	if len(fastModels) == 0 {
		fastModels = powerfulModels
	}
	if len(powerfulModels) == 0 {
		powerfulModels = fastModels
	}

	opts = append([]GeminiOption{WithLimiter(NewLimiter(cfg.RequestsPerMinute))}, opts...)

	fast, err := NewGeminiClient(ctx, cfg, fastModels, logger.Named("fast"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create fast tier client: %w", err)
	}
	powerful, err := NewGeminiClient(ctx, cfg, powerfulModels, logger.Named("powerful"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create powerful tier client: %w", err)
	}
	return NewTierRouter(logger, fast, powerful)
}
