package model

import "time"

// RunStatus is the lifecycle state of a compare run.
type RunStatus string

const (
	RunStatusStarted   RunStatus = "started"
	RunStatusCompleted RunStatus = "completed"
	RunStatusError     RunStatus = "error"
)

// PhaseName identifies one stage of the fixed pipeline sequence.
type PhaseName string

const (
	PhaseSourceSnapshotCapture    PhaseName = "source_snapshot_capture"
	PhaseProductCandidatesRecall  PhaseName = "product_candidates_recall"
	PhaseCandidateSnapshotCapture PhaseName = "candidate_snapshot_capture"
	PhaseComparabilityGate        PhaseName = "comparability_gate"
	PhaseCriteriaSelection        PhaseName = "criteria_selection"
	PhaseProductComparisonBuild   PhaseName = "product_comparison_build"
	PhaseOffersRecallAndFetch     PhaseName = "offers_recall_and_fetch"
	PhaseOffersNormalizeAndDedupe PhaseName = "offers_normalize_and_dedupe"
	PhaseFinalResponseAssemble    PhaseName = "final_response_assemble"
)

// Phases lists the pipeline stages in execution order.
var Phases = []PhaseName{
	PhaseSourceSnapshotCapture,
	PhaseProductCandidatesRecall,
	PhaseCandidateSnapshotCapture,
	PhaseComparabilityGate,
	PhaseCriteriaSelection,
	PhaseProductComparisonBuild,
	PhaseOffersRecallAndFetch,
	PhaseOffersNormalizeAndDedupe,
	PhaseFinalResponseAssemble,
}

// CompareRun is one end-to-end pipeline execution.
type CompareRun struct {
	ID           string    `json:"id"`
	Status       RunStatus `json:"status"`
	SourceURL    string    `json:"source_url,omitempty"`
	AgentVersion string    `json:"agent_version,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RunEvent is one ordered, append-only phase-outcome record.
type RunEvent struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	PhaseName string    `json:"phase_name"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Prompt is a versioned prompt registered once and referenced by LLM runs.
type Prompt struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// ToolRun records one external tool call's request/response payload.
type ToolRun struct {
	ID        string         `json:"id"`
	RunID     string         `json:"run_id"`
	ToolName  string         `json:"tool_name"`
	Status    string         `json:"status"`
	Input     map[string]any `json:"input,omitempty"`
	Output    map[string]any `json:"output,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// LlmRun records one LLM invocation including the prompt, schema, raw and
// validated output, and any post-hoc validation errors.
type LlmRun struct {
	ID               string         `json:"id"`
	RunID            string         `json:"run_id"`
	PromptID         string         `json:"prompt_id,omitempty"`
	PromptContent    string         `json:"prompt_content,omitempty"`
	PromptHash       string         `json:"prompt_hash,omitempty"`
	ModelName        string         `json:"model_name"`
	Status           string         `json:"status"`
	ModelParams      map[string]any `json:"model_params,omitempty"`
	JSONSchema       map[string]any `json:"json_schema,omitempty"`
	JSONSchemaHash   string         `json:"json_schema_hash,omitempty"`
	Input            map[string]any `json:"input,omitempty"`
	Output           map[string]any `json:"output,omitempty"`
	ValidatedOutput  map[string]any `json:"validated_output,omitempty"`
	ValidationErrors []string       `json:"validation_errors,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// PhaseDiagnostics is the per-phase entry in a run's diagnostics.
type PhaseDiagnostics struct {
	Name       PhaseName `json:"name"`
	Status     string    `json:"status"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// RunDiagnostics summarizes a completed run for the caller.
type RunDiagnostics struct {
	Phases       []PhaseDiagnostics `json:"phases"`
	Fairness     *FairnessMetrics   `json:"fairness,omitempty"`
	AgentVersion string             `json:"agent_version,omitempty"`
}

// RunOutput is the success payload returned by the orchestrator.
type RunOutput struct {
	RunID         string         `json:"run_id"`
	SourceProduct ProductDigest  `json:"source_product"`
	Comparables   []Comparable   `json:"comparables"`
	Offers        []Offer        `json:"offers"`
	Diagnostics   RunDiagnostics `json:"diagnostics"`
}
