package schemas

import (
	"context"
)

// -- LLM Interfaces --

// ModelTier allows for selecting a large language model based on a preference
// for speed versus advanced capabilities.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Prefers a faster, potentially less capable model.
	TierPowerful ModelTier = "powerful" // Prefers a more capable, potentially slower model.
)

// GenerationOptions controls sampling for a single generation.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"max_output_tokens"`
	TopP            float64 `json:"top_p"`
	TopK            int     `json:"top_k"`
}

// GenerationRequest encapsulates a complete request to the LLM, including the
// system and user prompts, the desired model tier, and generation options.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient defines a standard interface for interacting with a Large Language
// Model, abstracting the specifics of the underlying provider (e.g., Gemini).
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close releases any resources held by the client.
	Close() error
}

// -- Persistence Interfaces --

// Interaction is a single ledger record as seen by mirrors.
type Interaction struct {
	SubjectID string         `json:"subject_id"`
	Kind      ActionKind     `json:"kind"`
	Timestamp float64        `json:"timestamp"`
	Details   map[string]any `json:"details"`
}

// AuditSink receives copies of ledger records and campaign reports.
type AuditSink interface {
	RecordInteraction(ctx context.Context, in Interaction) error
	RecordRun(ctx context.Context, report CampaignReport) error
}
