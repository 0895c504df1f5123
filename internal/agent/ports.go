package agent

import (
	"context"

	"github.com/sells-group/compare-agent/internal/model"
)

// RecalledCandidate is one candidate URL with the raw signals the recall
// provider saw alongside it (title, snippet, rank).
type RecalledCandidate struct {
	URL     string         `json:"url"`
	Signals map[string]any `json:"signals,omitempty"`
}

// RecallResult is the full outcome of one recall call, including the
// request/response payloads recorded in the audit trail.
type RecallResult struct {
	Candidates      []RecalledCandidate `json:"candidates"`
	RequestPayload  map[string]any      `json:"request_payload,omitempty"`
	ResponsePayload map[string]any      `json:"response_payload,omitempty"`
	Status          string              `json:"status"`
}

// CandidateRecallProvider finds competitor product pages for a source
// digest. Failures should be returned as *RecallError so the runner can
// continue with zero candidates.
type CandidateRecallProvider interface {
	Name() string
	Recall(ctx context.Context, source model.ProductDigest) (*RecallResult, error)
}

// OfferProvider finds purchasable listings for a product. Best-effort:
// an empty result is not an error.
type OfferProvider interface {
	Name() string
	Recall(ctx context.Context, product model.ProductDigest) ([]model.Offer, error)
}
