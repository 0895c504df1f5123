package agent

import (
	"fmt"

	"github.com/sells-group/compare-agent/internal/model"
)

// RunError wraps a pipeline failure with the run it aborted, so callers
// can fetch the audit trail for that run by id.
type RunError struct {
	RunID string
	Phase model.PhaseName
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("agent: run %s aborted in %s: %v", e.RunID, e.Phase, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// RecallError marks a candidate-recall provider failure. It is the only
// error kind the runner recovers from: the run continues with zero
// candidates.
type RecallError struct {
	Provider string
	Err      error
}

func (e *RecallError) Error() string {
	return fmt.Sprintf("recall via %s: %v", e.Provider, e.Err)
}

func (e *RecallError) Unwrap() error { return e.Err }

// ValidationError marks judge output that failed schema validation.
// Fatal: partial acceptance of invalid structured output is disallowed.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("judge output failed schema validation: %v", e.Errors)
}
