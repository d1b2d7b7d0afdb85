// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/varga-labs/sherpa-cli/api/schemas"
	"github.com/varga-labs/sherpa-cli/internal/config"
)

// GeminiClient implements schemas.LLMClient for one Gemini model using the
// Gen AI SDK. The underlying *genai.Client is shared between tier clients.
type GeminiClient struct {
	client *genai.Client
	model  string
	cfg    config.LLMConfig
	logger *zap.Logger
}

// NewGenAIClient initializes the shared SDK client.
func NewGenAIClient(ctx context.Context, cfg config.LLMConfig) (*genai.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
}

// NewGeminiClient wraps a shared SDK client for a single model.
func NewGeminiClient(client *genai.Client, model string, cfg config.LLMConfig, logger *zap.Logger) *GeminiClient {
	return &GeminiClient{
		client: client,
		model:  model,
		cfg:    cfg,
		logger: logger.Named("llm_client.gemini").With(zap.String("model", model)),
	}
}

// Generate sends the request to the Gemini API and returns the generated text
// with retries. Transient API errors are retried with exponential backoff up
// to the configured maximum elapsed time.
func (c *GeminiClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	contents := []*genai.Content{buildContent(req.Parts)}
	genCfg := c.buildGenerateConfig(req)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.cfg.MaxRetryTime
	b.MaxInterval = 30 * time.Second

	var text string
	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.APITimeout)
		defer cancel()

		start := time.Now()
		resp, err := c.client.Models.GenerateContent(callCtx, model, contents, genCfg)
		duration := time.Since(start)

		if err != nil {
			return c.classifyError(err)
		}

		out := resp.Text()
		if out == "" {
			reason := finishReason(resp)
			if reason == "SAFETY" || reason == "BLOCKLIST" {
				return backoff.Permanent(fmt.Errorf("gemini API blocked the request (reason: %s)", reason))
			}
			return fmt.Errorf("gemini API returned empty content (reason: %s)", reason)
		}

		c.logger.Debug("LLM generation complete",
			zap.Duration("duration", duration),
			zap.String("resolved_model", model),
			zap.Int("response_chars", len(out)),
		)
		text = out
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return text, nil
}

// CacheSystemPrompt uploads the system prompt to the Gemini context cache and
// returns the cache handle. Callers fall back to sending the prompt inline
// when this returns an error; context caching is a latency/cost optimization,
// never a correctness requirement.
func (c *GeminiClient) CacheSystemPrompt(ctx context.Context, model, systemPrompt string) (string, error) {
	if model == "" {
		model = c.model
	}
	cache, err := c.client.Caches.Create(ctx, model, &genai.CreateCachedContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		TTL:               time.Hour,
	})
	if err != nil {
		return "", fmt.Errorf("context cache unavailable: %w", err)
	}
	c.logger.Info("System prompt cached",
		zap.String("cache", cache.Name),
		zap.Int("prompt_chars", len(systemPrompt)),
	)
	return cache.Name, nil
}

func buildContent(parts []schemas.Part) *genai.Content {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.Image != nil {
			out = append(out, genai.NewPartFromBytes(p.Image, "image/jpeg"))
		} else if p.Text != "" {
			out = append(out, genai.NewPartFromText(p.Text))
		}
	}
	return genai.NewContentFromParts(out, genai.RoleUser)
}

func (c *GeminiClient) buildGenerateConfig(req schemas.GenerationRequest) *genai.GenerateContentConfig {
	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Options.Temperature),
	}
	if req.Options.MaxOutputTokens > 0 {
		genCfg.MaxOutputTokens = req.Options.MaxOutputTokens
	}
	if req.Options.ForceJSONFormat {
		genCfg.ResponseMIMEType = "application/json"
	}
	switch req.Options.MediaDetail {
	case schemas.MediaDetailLow:
		genCfg.MediaResolution = genai.MediaResolutionLow
	case schemas.MediaDetailMedium:
		genCfg.MediaResolution = genai.MediaResolutionMedium
	case schemas.MediaDetailHigh:
		genCfg.MediaResolution = genai.MediaResolutionHigh
	}
	// A cached system prompt supersedes the inline one.
	if req.Options.CachedContent != "" {
		genCfg.CachedContent = req.Options.CachedContent
	} else if req.SystemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	return genCfg
}

// classifyError maps SDK errors onto the retry policy: rate limits and server
// errors are transient, everything else is permanent.
func (c *GeminiClient) classifyError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
			c.logger.Warn("Transient Gemini API error, retrying...", zap.Int("status", apiErr.Code), zap.Error(err))
			return err
		default:
			c.logger.Error("Gemini API returned permanent error", zap.Int("status", apiErr.Code), zap.Error(err))
			return backoff.Permanent(err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		c.logger.Warn("Gemini call timed out, retrying...", zap.Duration("timeout", c.cfg.APITimeout))
		return err
	}
	// Network-level failures are worth a retry.
	c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
	return err
}

func finishReason(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return "NO_CANDIDATES"
	}
	return string(resp.Candidates[0].FinishReason)
}
