package agent

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/compare-agent/internal/model"
	"github.com/sells-group/compare-agent/internal/store"
)

// Recorder is the append-only writer of the run audit trail. It carries
// no business logic; the runner decides what gets recorded.
type Recorder struct {
	store store.Store
}

// NewRecorder wraps a store for audit writes.
func NewRecorder(st store.Store) *Recorder {
	return &Recorder{store: st}
}

// Event appends one phase-outcome record.
func (r *Recorder) Event(ctx context.Context, runID string, phase model.PhaseName, status, message string) error {
	if err := r.store.AppendEvent(ctx, runID, string(phase), status, message); err != nil {
		return eris.Wrap(err, "agent: append event")
	}
	zap.L().Debug("run event",
		zap.String("run_id", runID),
		zap.String("phase", string(phase)),
		zap.String("status", status),
		zap.String("message", message))
	return nil
}

// ToolRun appends one external-tool call record.
func (r *Recorder) ToolRun(ctx context.Context, runID, toolName, status string, input, output map[string]any) error {
	tr := &model.ToolRun{
		RunID:    runID,
		ToolName: toolName,
		Status:   status,
		Input:    input,
		Output:   output,
	}
	if err := r.store.AppendToolRun(ctx, tr); err != nil {
		return eris.Wrap(err, "agent: append tool run")
	}
	return nil
}

// Prompt registers a versioned prompt, reusing the existing row when the
// content matches.
func (r *Recorder) Prompt(ctx context.Context, name, version, content string) (*model.Prompt, error) {
	p, err := r.store.GetOrCreatePrompt(ctx, name, version, content)
	if err != nil {
		return nil, eris.Wrap(err, "agent: register prompt")
	}
	return p, nil
}

// LlmRun appends one LLM invocation record.
func (r *Recorder) LlmRun(ctx context.Context, lr *model.LlmRun) error {
	if err := r.store.AppendLlmRun(ctx, lr); err != nil {
		return eris.Wrap(err, "agent: append llm run")
	}
	return nil
}
