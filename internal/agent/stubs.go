package agent

import (
	"context"
	"encoding/json"

	"github.com/sells-group/compare-agent/internal/model"
	"github.com/sells-group/compare-agent/pkg/anthropic"
)

// StubRecall is an offline recall provider returning a fixed candidate
// set, or a recall failure when Err is set.
type StubRecall struct {
	Candidates []RecalledCandidate
	Err        error
}

func (s *StubRecall) Name() string { return "stub" }

func (s *StubRecall) Recall(_ context.Context, _ model.ProductDigest) (*RecallResult, error) {
	if s.Err != nil {
		return nil, &RecallError{Provider: s.Name(), Err: s.Err}
	}
	return &RecallResult{
		Candidates:      s.Candidates,
		RequestPayload:  map[string]any{"stub": true},
		ResponsePayload: map[string]any{"count": len(s.Candidates)},
		Status:          "ok",
	}, nil
}

// StubOffers is an offline offer provider returning a fixed offer list.
type StubOffers struct {
	Offers []model.Offer
	Err    error
}

func (s *StubOffers) Name() string { return "stub" }

func (s *StubOffers) Recall(_ context.Context, _ model.ProductDigest) ([]model.Offer, error) {
	return s.Offers, s.Err
}

// StubLLM is an offline judge backend: it echoes the expected_output
// field of the input payload, so the deterministic scorer's result flows
// through the full judge path (including schema validation) without a
// network call.
type StubLLM struct{}

func (StubLLM) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	var input map[string]any
	if len(req.Messages) > 0 {
		_ = json.Unmarshal([]byte(req.Messages[len(req.Messages)-1].Content), &input)
	}

	out := map[string]any{"comparables": []any{}}
	if expected, ok := input["expected_output"].(map[string]any); ok {
		out = expected
	}
	text, _ := json.Marshal(out)

	return &anthropic.MessageResponse{
		ID:         "stub",
		Model:      "stub",
		StopReason: "end_turn",
		Content:    []anthropic.ContentBlock{{Type: "text", Text: string(text)}},
	}, nil
}
