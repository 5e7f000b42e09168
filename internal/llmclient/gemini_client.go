// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/xkilldash9x/feedpilot/api/schemas"
	"github.com/xkilldash9x/feedpilot/internal/config"
)

// GenerateFunc performs one content generation against a named model.
type GenerateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error)

// GeminiClient implements schemas.LLMClient for Google Gemini. It walks its
// model list in order and moves on when a model is out of quota.
type GeminiClient struct {
	models     []string
	generate   GenerateFunc
	limiter    *rate.Limiter
	apiTimeout time.Duration
	logger     *zap.Logger
}

// GeminiOption configures a GeminiClient.
type GeminiOption func(*GeminiClient)

// WithGenerateFunc replaces the genai transport. Tests use it to stay offline.
func WithGenerateFunc(fn GenerateFunc) GeminiOption {
	return func(c *GeminiClient) { c.generate = fn }
}

// WithLimiter shares a request limiter between clients.
func WithLimiter(l *rate.Limiter) GeminiOption {
	return func(c *GeminiClient) { c.limiter = l }
}

// NewLimiter paces requests at rpm per minute. Zero means unlimited.
func NewLimiter(rpm float64) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rpm/60), 1)
}

// NewGeminiClient initializes the client for the given models.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig, models []string, logger *zap.Logger, opts ...GeminiOption) (*GeminiClient, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("at least one Gemini model is required")
	}

	c := &GeminiClient{
		models:     models,
		apiTimeout: cfg.APITimeout,
		logger:     logger.Named("llm_client.gemini"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = NewLimiter(cfg.RequestsPerMinute)
	}

	if c.generate == nil {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("Gemini API key is required (set llm.api_key or GEMINI_API_KEY)")
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		c.generate = func(ctx context.Context, model string, contents []*genai.Content, gc *genai.GenerateContentConfig) (string, error) {
			res, err := client.Models.GenerateContent(ctx, model, contents, gc)
			if err != nil {
				return "", err
			}
			return res.Text(), nil
		}
	}
	return c, nil
}

// Generate sends the prompts to the first model that has quota left.
func (c *GeminiClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	contents := genai.Text(req.UserPrompt)
	gc := buildConfig(req)

	var lastErr error
	for _, model := range c.models {
		text, err := c.generateOnce(ctx, model, contents, gc)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isQuotaError(err) {
			return "", fmt.Errorf("gemini %s: %w", model, err)
		}
		c.logger.Warn("Model out of quota; trying the next one.", zap.String("model", model), zap.Error(err))
		lastErr = err
	}
	return "", fmt.Errorf("all Gemini models exhausted: %w", lastErr)
}

func (c *GeminiClient) generateOnce(ctx context.Context, model string, contents []*genai.Content, gc *genai.GenerateContentConfig) (string, error) {
	if c.apiTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.apiTimeout)
		defer cancel()
	}

	start := time.Now()
	text, err := c.generate(ctx, model, contents, gc)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errEmptyResponse
	}
	c.logger.Debug("LLM generation complete (Gemini)",
		zap.String("model", model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("response_chars", len(text)))
	return text, nil
}

// Close releases nothing; genai clients hold no long-lived resources.
func (c *GeminiClient) Close() error { return nil }

var errEmptyResponse = errors.New("gemini returned empty text")

func buildConfig(req schemas.GenerationRequest) *genai.GenerateContentConfig {
	temp := float32(req.Options.Temperature)
	gc := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(req.Options.MaxOutputTokens),
	}
	if req.SystemPrompt != "" {
		gc.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Options.TopP > 0 {
		topP := float32(req.Options.TopP)
		gc.TopP = &topP
	}
	if req.Options.TopK > 0 {
		topK := float32(req.Options.TopK)
		gc.TopK = &topK
	}
	return gc
}

// isQuotaError reports errors that should fall through to the next model.
func isQuotaError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "exhausted") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit")
}
