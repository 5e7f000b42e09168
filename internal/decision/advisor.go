package decision

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/feedpilot/api/schemas"
	"github.com/xkilldash9x/feedpilot/internal/interpreter"
)

// Advisor decides how to react to a post, consulting the cache before the model.
type Advisor struct {
	llm    schemas.LLMClient
	cache  *Cache
	logger *zap.Logger
}

// NewAdvisor wires the model client and the cache.
func NewAdvisor(llm schemas.LLMClient, cache *Cache, logger *zap.Logger) *Advisor {
	return &Advisor{
		llm:    llm,
		cache:  cache,
		logger: logger.Named("advisor"),
	}
}

// Decide returns the decision for post. It never fails.
func (a *Advisor) Decide(ctx context.Context, post schemas.Post) schemas.Decision {
	if strings.TrimSpace(post.Text) == "" {
		return schemas.NoAction("Post text is empty")
	}

	return a.cache.GetOrCompute(ctx, post.ID, func(ctx context.Context) (schemas.Decision, error) {
		req := interpreter.BuildPrompt(post.Author, post.Text)
		raw, err := a.llm.Generate(ctx, req)
		if err != nil {
			return schemas.Decision{}, fmt.Errorf("llm generation failed: %w", err)
		}
		d := interpreter.Interpret(raw)
		a.logger.Debug("Model decision interpreted.",
			zap.String("subject_id", post.ID),
			zap.Bool("should_like", d.ShouldLike),
			zap.Bool("should_comment", d.ShouldComment))
		return d, nil
	})
}
