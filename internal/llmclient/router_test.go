package llmclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/feedpilot/api/schemas"
)

func newRouter(t *testing.T) (*TierRouter, *MockLLMClient, *MockLLMClient, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	fast := &MockLLMClient{Name: "fast"}
	powerful := &MockLLMClient{Name: "powerful"}
	r, err := NewTierRouter(zap.New(core), fast, powerful)
	require.NoError(t, err)
	return r, fast, powerful, logs
}

func TestNewTierRouter_RequiresBothTiers(t *testing.T) {
	c := &MockLLMClient{}
	for _, pair := range [][2]schemas.LLMClient{{nil, c}, {c, nil}, {nil, nil}} {
		r, err := NewTierRouter(zap.NewNop(), pair[0], pair[1])
		assert.Nil(t, r)
		assert.ErrorContains(t, err, "both fast and powerful tier clients must be provided")
	}
}

func TestTierRouter_Routes(t *testing.T) {
	tests := []struct {
		tier schemas.ModelTier
		want string
	}{
		{schemas.TierFast, "fast"},
		{schemas.TierPowerful, "powerful"},
		{"", "fast"},
	}
	for _, tt := range tests {
		t.Run(tt.want+"/"+string(tt.tier), func(t *testing.T) {
			r, fast, powerful, logs := newRouter(t)
			req := schemas.GenerationRequest{UserPrompt: "hello", Tier: tt.tier}

			target, other := fast, powerful
			if tt.want == "powerful" {
				target, other = powerful, fast
			}
			target.On("Generate", mock.Anything, req).Return("response", nil).Once()

			got, err := r.Generate(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, "response", got)
			target.AssertExpectations(t)
			other.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
			assert.Equal(t, 1, logs.FilterMessage("Routing LLM request.").Len())
		})
	}
}

func TestTierRouter_UnknownTier(t *testing.T) {
	r, _, _, _ := newRouter(t)
	_, err := r.Generate(context.Background(), schemas.GenerationRequest{Tier: "enormous"})
	assert.ErrorContains(t, err, "no LLM client configured for tier: enormous")
}

func TestTierRouter_FastFailureIsFinal(t *testing.T) {
	r, fast, powerful, _ := newRouter(t)
	boom := errors.New("upstream down")
	fast.On("Generate", mock.Anything, mock.Anything).Return("", boom).Once()

	_, err := r.Generate(context.Background(), schemas.GenerationRequest{Tier: schemas.TierFast})
	assert.ErrorIs(t, err, boom)
	fast.AssertExpectations(t)
	powerful.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestTierRouter_PowerfulFallsBackToFast(t *testing.T) {
	r, fast, powerful, logs := newRouter(t)
	powerful.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("overloaded")).Once()
	fast.On("Generate", mock.Anything, mock.MatchedBy(func(req schemas.GenerationRequest) bool {
		return req.Tier == schemas.TierFast && req.UserPrompt == "q"
	})).Return("quick answer", nil).Once()

	got, err := r.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "q", Tier: schemas.TierPowerful})
	require.NoError(t, err)
	assert.Equal(t, "quick answer", got)
	assert.Equal(t, 1, logs.FilterMessage("Powerful tier failed; retrying on the fast tier.").Len())

	t.Run("BothFail", func(t *testing.T) {
		r, fast, powerful, _ := newRouter(t)
		first, second := errors.New("overloaded"), errors.New("quota")
		powerful.On("Generate", mock.Anything, mock.Anything).Return("", first).Once()
		fast.On("Generate", mock.Anything, mock.Anything).Return("", second).Once()

		_, err := r.Generate(context.Background(), schemas.GenerationRequest{Tier: schemas.TierPowerful})
		assert.ErrorIs(t, err, first)
		assert.ErrorIs(t, err, second)
	})

	t.Run("NotAfterCancellation", func(t *testing.T) {
		r, fast, powerful, _ := newRouter(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		powerful.On("Generate", mock.Anything, mock.Anything).Return("", context.Canceled).Once()

		_, err := r.Generate(ctx, schemas.GenerationRequest{Tier: schemas.TierPowerful})
		assert.ErrorIs(t, err, context.Canceled)
		fast.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})
}

func TestTierRouter_Close(t *testing.T) {
	t.Run("SharedClientClosedOnce", func(t *testing.T) {
		shared := &MockLLMClient{}
		shared.On("Close").Return(nil).Once()
		r, err := NewTierRouter(zap.NewNop(), shared, shared)
		require.NoError(t, err)
		assert.NoError(t, r.Close())
		shared.AssertExpectations(t)
	})

	t.Run("JoinsErrors", func(t *testing.T) {
		r, fast, powerful, _ := newRouter(t)
		fast.On("Close").Return(errors.New("fast close")).Once()
		powerful.On("Close").Return(nil).Once()
		assert.ErrorContains(t, r.Close(), "fast close")
	})
}
