package llmclient

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/feedpilot/api/schemas"
)

// TierRouter sends each request to the client for its tier. A failed
// powerful-tier request is retried once on the fast tier.
type TierRouter struct {
	logger   *zap.Logger
	fast     schemas.LLMClient
	powerful schemas.LLMClient
}

var _ schemas.LLMClient = (*TierRouter)(nil)

// NewTierRouter requires a client for both tiers. They may be the same client.
func NewTierRouter(logger *zap.Logger, fast, powerful schemas.LLMClient) (*TierRouter, error) {
	if fast == nil || powerful == nil {
		return nil, errors.New("both fast and powerful tier clients must be provided")
	}
	return &TierRouter{logger: logger.Named("tier_router"), fast: fast, powerful: powerful}, nil
}

// client resolves a tier. Empty means fast.
func (r *TierRouter) client(tier schemas.ModelTier) (schemas.LLMClient, error) {
	switch tier {
	case "", schemas.TierFast:
		return r.fast, nil
	case schemas.TierPowerful:
		return r.powerful, nil
	}
	return nil, fmt.Errorf("no LLM client configured for tier: %s", tier)
}

func (r *TierRouter) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	c, err := r.client(req.Tier)
	if err != nil {
		return "", err
	}
	r.logger.Debug("Routing LLM request.", zap.String("tier", string(req.Tier)))

	out, err := c.Generate(ctx, req)
	if err == nil || c == r.fast || ctx.Err() != nil {
		return out, err
	}

	r.logger.Warn("Powerful tier failed; retrying on the fast tier.", zap.Error(err))
	fallback := req
	fallback.Tier = schemas.TierFast
	out, ferr := r.fast.Generate(ctx, fallback)
	if ferr != nil {
		return "", errors.Join(err, ferr)
	}
	return out, nil
}

// Close closes each distinct client once.
func (r *TierRouter) Close() error {
	err := r.fast.Close()
	if r.powerful != r.fast {
		err = errors.Join(err, r.powerful.Close())
	}
	return err
}
