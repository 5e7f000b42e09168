// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/feedpilot/api/schemas"
	"github.com/xkilldash9x/feedpilot/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

func (m *MockConfig) Logger() config.LoggerConfig {
	return m.Called().Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Database() config.DatabaseConfig {
	return m.Called().Get(0).(config.DatabaseConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	return m.Called().Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Humanoid() config.HumanoidConfig {
	return m.Called().Get(0).(config.HumanoidConfig)
}

func (m *MockConfig) Delays() config.DelaysConfig {
	return m.Called().Get(0).(config.DelaysConfig)
}

func (m *MockConfig) Limits() config.LimitsConfig {
	return m.Called().Get(0).(config.LimitsConfig)
}

func (m *MockConfig) Timeouts() config.TimeoutsConfig {
	return m.Called().Get(0).(config.TimeoutsConfig)
}

func (m *MockConfig) Campaign() config.CampaignConfig {
	return m.Called().Get(0).(config.CampaignConfig)
}

func (m *MockConfig) Feed() config.FeedConfig {
	return m.Called().Get(0).(config.FeedConfig)
}

func (m *MockConfig) LinkedIn() config.LinkedInConfig {
	return m.Called().Get(0).(config.LinkedInConfig)
}

func (m *MockConfig) Paths() config.PathsConfig {
	return m.Called().Get(0).(config.PathsConfig)
}

func (m *MockConfig) LLM() config.LLMConfig {
	return m.Called().Get(0).(config.LLMConfig)
}

func (m *MockConfig) Decision() config.DecisionConfig {
	return m.Called().Get(0).(config.DecisionConfig)
}

func (m *MockConfig) Selectors() config.SelectorsConfig {
	return m.Called().Get(0).(config.SelectorsConfig)
}

func (m *MockConfig) Auth() config.AuthConfig {
	return m.Called().Get(0).(config.AuthConfig)
}

// -- LLM Client Mock --

// MockLLMClient mocks the schemas.LLMClient interface.
type MockLLMClient struct {
	mock.Mock
}

var _ schemas.LLMClient = (*MockLLMClient)(nil)

// Generate provides a mock function for LLM calls.
func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// Close releases nothing; it only records the call.
func (m *MockLLMClient) Close() error {
	if len(m.ExpectedCalls) == 0 {
		return nil
	}
	return m.Called().Error(0)
}

// -- Audit Sink Mock --

// MockAuditSink mocks schemas.AuditSink.
type MockAuditSink struct {
	mock.Mock
}

var _ schemas.AuditSink = (*MockAuditSink)(nil)

func (m *MockAuditSink) RecordInteraction(ctx context.Context, in schemas.Interaction) error {
	return m.Called(ctx, in).Error(0)
}

func (m *MockAuditSink) RecordRun(ctx context.Context, report schemas.CampaignReport) error {
	return m.Called(ctx, report).Error(0)
}
