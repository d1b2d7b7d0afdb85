// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/varga-labs/sherpa-cli/internal/config"
)

// NewClient constructs the tiered router plus the underlying powerful-tier
// client (exposed for context caching) from configuration.
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*LLMRouter, *GeminiClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini, "":
	default:
		return nil, nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	sdk, err := NewGenAIClient(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Gen AI client: %w", err)
	}

	fast := NewGeminiClient(sdk, cfg.FastModel, cfg, logger)
	powerful := NewGeminiClient(sdk, cfg.PowerfulModel, cfg, logger)

	router, err := NewLLMRouter(logger, fast, powerful)
	if err != nil {
		return nil, nil, err
	}
	return router, powerful, nil
}
