// Package store persists compare runs, snapshots, and the append-only
// audit trail in a single relational database.
package store

import (
	"context"

	"github.com/sells-group/compare-agent/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the compare pipeline. Every
// write commits immediately as its own unit of work, so a mid-run failure
// leaves a consistent partial audit trail.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, sourceURL, agentVersion string) (*model.CompareRun, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	GetRun(ctx context.Context, runID string) (*model.CompareRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.CompareRun, error)

	// Products and candidate membership
	GetOrCreateProduct(ctx context.Context, brand, modelName, sourceURL string) (*model.Product, error)
	InsertCandidateLink(ctx context.Context, productID, candidateURL string, signals map[string]any) error

	// Snapshots: one row per (run, URL)
	FindSnapshot(ctx context.Context, runID, url string) (*model.Snapshot, error)
	InsertSnapshot(ctx context.Context, snap *model.Snapshot) error

	// Offers
	InsertOffer(ctx context.Context, productID string, offer model.Offer) error

	// Audit trail (append-only)
	AppendEvent(ctx context.Context, runID, phaseName, status, message string) error
	ListEvents(ctx context.Context, runID string) ([]model.RunEvent, error)
	GetOrCreatePrompt(ctx context.Context, name, version, content string) (*model.Prompt, error)
	AppendToolRun(ctx context.Context, tr *model.ToolRun) error
	ListToolRuns(ctx context.Context, runID string) ([]model.ToolRun, error)
	AppendLlmRun(ctx context.Context, lr *model.LlmRun) error
	ListLlmRuns(ctx context.Context, runID string) ([]model.LlmRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
