package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "{\"comparables\":"},
		{Type: "tool_use", Text: "ignored"},
		{Type: "text", Text: "[]}"},
	}}
	assert.Equal(t, `{"comparables":[]}`, resp.Text())
}

func TestTokenUsage_EstimateCost(t *testing.T) {
	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 500_000}

	cost := u.EstimateCost("claude-haiku-4-5-20251001")
	assert.InDelta(t, 0.80+2.00, cost, 1e-9)

	assert.Zero(t, u.EstimateCost("unknown-model"))
}

func TestTokenUsage_EstimateCost_CacheTokens(t *testing.T) {
	u := TokenUsage{
		CacheCreationInputTokens: 1_000_000,
		CacheReadInputTokens:     1_000_000,
	}

	// Cache writes bill at 1.25x input, reads at 0.1x input.
	cost := u.EstimateCost("claude-sonnet-4-5-20250929")
	assert.InDelta(t, 3.00*1.25+3.00*0.1, cost, 1e-9)
}
