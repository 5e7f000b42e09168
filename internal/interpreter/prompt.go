package interpreter

import (
	"fmt"

	"github.com/xkilldash9x/feedpilot/api/schemas"
)

const (
	systemPrompt = "You are an AI assistant that helps decide how to interact with LinkedIn posts."

	// DecisionTemperature and DecisionMaxTokens are the sampling settings for decisions.
	DecisionTemperature = 0.7
	DecisionMaxTokens   = 500

	// RefineMaxTokens bounds a message refinement.
	RefineMaxTokens = 150
)

const decisionTemplate = `
You are analyzing a LinkedIn post to decide if and how to interact with it.

POST AUTHOR: %s
POST CONTENT:
%s

Based on this post, please answer the following questions:

1. Should I like this post? (Yes/No)
2. Should I comment on this post? (Yes/No)
3. If I should comment, what would be a thoughtful, professional comment?
4. What's your reasoning for these decisions?

Format your response exactly like this:
LIKE: Yes/No
COMMENT: Yes/No
COMMENT_TEXT: [Your suggested comment if applicable]
REASONING: [Your reasoning for these decisions]

The comment should be professional, relevant to the post content, and add value to the conversation. It should sound natural and human-written, not generic or bot-like.
`

// BuildPrompt assembles the decision request for a post.
func BuildPrompt(author, text string) schemas.GenerationRequest {
	if author == "" {
		author = "Unknown"
	}
	return schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   fmt.Sprintf(decisionTemplate, author, text),
		Tier:         schemas.TierFast,
		Options: schemas.GenerationOptions{
			Temperature:     DecisionTemperature,
			MaxOutputTokens: DecisionMaxTokens,
		},
	}
}

// BuildRefinePrompt asks the model to polish an outreach message without
// changing who it addresses.
func BuildRefinePrompt(message string) schemas.GenerationRequest {
	return schemas.GenerationRequest{
		SystemPrompt: "You polish short professional networking messages. Reply with the message text only.",
		UserPrompt:   "Refine the following message to sound more engaging and professional: " + message,
		Tier:         schemas.TierFast,
		Options: schemas.GenerationOptions{
			Temperature:     DecisionTemperature,
			MaxOutputTokens: RefineMaxTokens,
		},
	}
}
