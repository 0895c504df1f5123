package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/compare-agent/internal/compare"
	"github.com/sells-group/compare-agent/internal/model"
	"github.com/sells-group/compare-agent/internal/snapshot"
	"github.com/sells-group/compare-agent/internal/store"
)

// Runner is the top-level state machine: it sequences the nine pipeline
// phases, invokes the snapshot facade, recall providers, scorer, and
// judge, and writes the audit trail through the recorder.
type Runner struct {
	store         store.Store
	recorder      *Recorder
	snapshots     *snapshot.Facade
	recall        CandidateRecallProvider
	offers        OfferProvider
	judge         *Judge
	maxCandidates int
}

// NewRunner wires an orchestrator. maxCandidates caps how many recalled
// candidates are captured and scored (0 means 10).
func NewRunner(st store.Store, snapshots *snapshot.Facade, recall CandidateRecallProvider, offers OfferProvider, judge *Judge, maxCandidates int) *Runner {
	if maxCandidates <= 0 {
		maxCandidates = 10
	}
	return &Runner{
		store:         st,
		recorder:      NewRecorder(st),
		snapshots:     snapshots,
		recall:        recall,
		offers:        offers,
		judge:         judge,
		maxCandidates: maxCandidates,
	}
}

// AgentVersion is the version string this runner's configuration hashes
// to.
func (r *Runner) AgentVersion() string {
	return Version(r.judge.ModelName(),
		[]string{hashString(gatePrompt)},
		[]string{hashString(gateSchema)})
}

// runState carries the working data handed from phase to phase.
type runState struct {
	run         *model.CompareRun
	source      model.ProductDigest
	productID   string
	recalled    []RecalledCandidate
	candidates  []model.ProductDigest
	comparables []model.Comparable
	fairness    model.FairnessMetrics
	summary     string
	offers      []model.Offer
	phases      []model.PhaseDiagnostics
}

// Run executes the full pipeline for sourceURL. Callers receive either a
// complete success payload or an error plus (via the returned run id in
// the error chain and the audit tables) the full diagnostic trail; no
// partial success payload is ever returned.
func (r *Runner) Run(ctx context.Context, sourceURL string) (*model.RunOutput, error) {
	run, err := r.store.CreateRun(ctx, sourceURL, r.AgentVersion())
	if err != nil {
		return nil, eris.Wrap(err, "agent: create run")
	}

	log := zap.L().With(zap.String("run_id", run.ID))
	log.Info("run started", zap.String("source_url", sourceURL))

	st := &runState{run: run}

	for _, phase := range model.Phases {
		start := time.Now()
		msg, phaseErr := r.execPhase(ctx, phase, sourceURL, st)
		durationMs := time.Since(start).Milliseconds()

		var recallErr *RecallError
		switch {
		case phaseErr == nil:
			if err := r.recorder.Event(ctx, run.ID, phase, "ok", msg); err != nil {
				return nil, r.abort(ctx, run.ID, phase, st, err)
			}
			st.phases = append(st.phases, model.PhaseDiagnostics{
				Name: phase, Status: "ok", DurationMs: durationMs, Message: msg,
			})

		case errors.As(phaseErr, &recallErr):
			// Recall failures are the one recoverable kind: the run
			// continues with whatever the phase left behind.
			if err := r.recorder.Event(ctx, run.ID, phase, "error", phaseErr.Error()); err != nil {
				return nil, r.abort(ctx, run.ID, phase, st, err)
			}
			st.phases = append(st.phases, model.PhaseDiagnostics{
				Name: phase, Status: "error", DurationMs: durationMs, Message: phaseErr.Error(),
			})
			log.Warn("phase recovered", zap.String("phase", string(phase)), zap.Error(phaseErr))

		default:
			st.phases = append(st.phases, model.PhaseDiagnostics{
				Name: phase, Status: "error", DurationMs: durationMs, Message: phaseErr.Error(),
			})
			return nil, r.abort(ctx, run.ID, phase, st, phaseErr)
		}
	}

	if err := r.store.UpdateRunStatus(ctx, run.ID, model.RunStatusCompleted); err != nil {
		return nil, eris.Wrap(err, "agent: complete run")
	}
	log.Info("run completed",
		zap.Int("comparables", len(st.comparables)),
		zap.Int("offers", len(st.offers)))

	return &model.RunOutput{
		RunID:         run.ID,
		SourceProduct: st.source,
		Comparables:   st.comparables,
		Offers:        st.offers,
		Diagnostics: model.RunDiagnostics{
			Phases:       st.phases,
			Fairness:     &st.fairness,
			AgentVersion: run.AgentVersion,
		},
	}, nil
}

// abort records the failing phase, flips the run to error, and re-raises.
// The audit writes here are best-effort: the original failure wins.
func (r *Runner) abort(ctx context.Context, runID string, phase model.PhaseName, st *runState, cause error) error {
	if err := r.recorder.Event(ctx, runID, phase, "error", cause.Error()); err != nil {
		zap.L().Error("failed to record abort event", zap.String("run_id", runID), zap.Error(err))
	}
	if err := r.store.UpdateRunStatus(ctx, runID, model.RunStatusError); err != nil {
		zap.L().Error("failed to mark run error", zap.String("run_id", runID), zap.Error(err))
	}
	return &RunError{RunID: runID, Phase: phase, Err: cause}
}

func (r *Runner) execPhase(ctx context.Context, phase model.PhaseName, sourceURL string, st *runState) (string, error) {
	switch phase {
	case model.PhaseSourceSnapshotCapture:
		return r.phaseSourceCapture(ctx, sourceURL, st)
	case model.PhaseProductCandidatesRecall:
		return r.phaseRecall(ctx, st)
	case model.PhaseCandidateSnapshotCapture:
		return r.phaseCandidateCapture(ctx, st)
	case model.PhaseComparabilityGate:
		return r.phaseGate(ctx, st)
	case model.PhaseOffersRecallAndFetch:
		return r.phaseOffers(ctx, st)
	case model.PhaseFinalResponseAssemble:
		return fmt.Sprintf("comparables=%d offers=%d", len(st.comparables), len(st.offers)), nil
	case model.PhaseCriteriaSelection, model.PhaseProductComparisonBuild, model.PhaseOffersNormalizeAndDedupe:
		// Reserved placeholders; always succeed.
		return "noop", nil
	default:
		return "", eris.Errorf("agent: unknown phase %s", phase)
	}
}

func (r *Runner) phaseSourceCapture(ctx context.Context, sourceURL string, st *runState) (string, error) {
	snap, err := r.captureAudited(ctx, st.run.ID, "snapshot_capture", "", sourceURL)
	if err != nil {
		return "", err
	}
	st.source = snapshot.Digest(snap)

	product, err := r.store.GetOrCreateProduct(ctx, st.source.Brand, st.source.Model, sourceURL)
	if err != nil {
		return "", err
	}
	st.productID = product.ID

	return fmt.Sprintf("method=%s status=%s digest=%s",
		snap.ExtractionMethod, snap.ExtractionStatus, snap.DigestHash), nil
}

func (r *Runner) phaseRecall(ctx context.Context, st *runState) (string, error) {
	res, err := r.recall.Recall(ctx, st.source)
	if err != nil {
		_ = r.recorder.ToolRun(ctx, st.run.ID, "candidate_recall", "error",
			map[string]any{"provider": r.recall.Name()},
			map[string]any{"error": err.Error()})
		return "", err
	}

	if err := r.recorder.ToolRun(ctx, st.run.ID, "candidate_recall", res.Status,
		res.RequestPayload, res.ResponsePayload); err != nil {
		return "", err
	}

	if len(res.Candidates) > r.maxCandidates {
		res.Candidates = res.Candidates[:r.maxCandidates]
	}
	st.recalled = res.Candidates
	for _, cand := range res.Candidates {
		if err := r.store.InsertCandidateLink(ctx, st.productID, cand.URL, cand.Signals); err != nil {
			return "", err
		}
		st.candidates = append(st.candidates, candidateDigest(st.source, cand))
	}
	return fmt.Sprintf("candidates=%d", len(st.candidates)), nil
}

func (r *Runner) phaseCandidateCapture(ctx context.Context, st *runState) (string, error) {
	for i, cand := range st.candidates {
		product, err := r.store.GetOrCreateProduct(ctx, cand.Brand, cand.Model, cand.SourceURL)
		if err != nil {
			return "", err
		}
		snap, err := r.captureAudited(ctx, st.run.ID, "candidate_snapshot_capture", product.ID, cand.SourceURL)
		if err != nil {
			return "", err
		}
		st.candidates[i] = mergeCandidate(cand, snapshot.Digest(snap))
	}
	return fmt.Sprintf("captured=%d", len(st.candidates)), nil
}

// captureAudited runs one facade capture and records it as a tool run.
// Error tool runs carry the capture error details alongside the message.
func (r *Runner) captureAudited(ctx context.Context, runID, tool, productID, url string) (*model.Snapshot, error) {
	input := map[string]any{"url": url}
	if productID != "" {
		input["product_id"] = productID
	}

	snap, err := r.snapshots.Capture(ctx, runID, productID, url)
	if err != nil {
		output := map[string]any{"error": err.Error()}
		var capErr *snapshot.CaptureError
		if errors.As(err, &capErr) && capErr.Details != nil {
			output["details"] = toJSONValue(capErr.Details)
		}
		if recErr := r.recorder.ToolRun(ctx, runID, tool, "error", input, output); recErr != nil {
			zap.L().Error("failed to record capture tool run",
				zap.String("run_id", runID), zap.Error(recErr))
		}
		return nil, err
	}

	if err := r.recorder.ToolRun(ctx, runID, tool, "ok", input, map[string]any{
		"snapshot_id":       snap.ID,
		"provider":          snap.Provider,
		"http_status":       snap.HTTPStatus,
		"extraction_method": string(snap.ExtractionMethod),
		"extraction_status": string(snap.ExtractionStatus),
		"digest_hash":       snap.DigestHash,
	}); err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *Runner) phaseGate(ctx context.Context, st *runState) (string, error) {
	comparables, fairness, summary := compare.Evaluate(st.source, st.candidates)
	if comparables == nil {
		comparables = []model.Comparable{}
	}
	st.fairness = fairness
	st.summary = summary

	expected := map[string]any{"comparables": toJSONValue(comparables)}
	if err := r.recorder.ToolRun(ctx, st.run.ID, "comparability_scoring", "ok",
		map[string]any{
			"source":     toJSONValue(st.source),
			"candidates": toJSONValue(st.candidates),
		},
		map[string]any{
			"comparables": toJSONValue(comparables),
			"fairness":    toJSONValue(fairness),
			"summary":     summary,
		}); err != nil {
		return "", err
	}

	prompt, err := r.recorder.Prompt(ctx, gatePromptName, gatePromptVersion, gatePrompt)
	if err != nil {
		return "", err
	}

	input := map[string]any{
		"source":          toJSONValue(st.source),
		"candidates":      toJSONValue(st.candidates),
		"expected_output": expected,
	}

	verdict, judgeErr := r.judge.Evaluate(ctx, input)

	lr := &model.LlmRun{
		RunID:          st.run.ID,
		PromptID:       prompt.ID,
		PromptContent:  prompt.Content,
		PromptHash:     prompt.ContentHash,
		ModelName:      r.judge.ModelName(),
		Status:         "ok",
		ModelParams:    map[string]any{"temperature": 0.0, "max_tokens": r.judge.maxTokens},
		JSONSchema:     gateSchemaMap(),
		JSONSchemaHash: hashString(gateSchema),
		Input:          input,
	}
	if verdict != nil {
		lr.Output = verdict.Output
		lr.ValidatedOutput = verdict.ValidatedOutput
		lr.ValidationErrors = verdict.ValidationErrors
		verdict.Usage.LogCost(r.judge.ModelName(), string(model.PhaseComparabilityGate))
	}
	if judgeErr != nil {
		lr.Status = "error"
	}
	if err := r.recorder.LlmRun(ctx, lr); err != nil {
		return "", err
	}
	if judgeErr != nil {
		return "", judgeErr
	}

	// The judge's validated output is authoritative from here on; the
	// deterministic result stays in the audit trail.
	st.comparables = verdict.Comparables
	return summary, nil
}

func (r *Runner) phaseOffers(ctx context.Context, st *runState) (string, error) {
	offers, err := r.offers.Recall(ctx, st.source)
	if err != nil {
		_ = r.recorder.ToolRun(ctx, st.run.ID, "offer_recall", "error",
			map[string]any{"provider": r.offers.Name()},
			map[string]any{"error": err.Error()})
		return "", &RecallError{Provider: r.offers.Name(), Err: err}
	}

	if err := r.recorder.ToolRun(ctx, st.run.ID, "offer_recall", "ok",
		map[string]any{"provider": r.offers.Name()},
		map[string]any{"offers": toJSONValue(offers)}); err != nil {
		return "", err
	}

	for _, offer := range offers {
		if err := r.store.InsertOffer(ctx, st.productID, offer); err != nil {
			return "", err
		}
	}
	st.offers = offers
	return fmt.Sprintf("offers=%d", len(offers)), nil
}

// mergeCandidate combines the provisional recall-derived identity with
// what the candidate page's own markup said. Extracted identity wins;
// recall signals fill the gaps.
func mergeCandidate(fromRecall, fromPage model.ProductDigest) model.ProductDigest {
	merged := fromPage
	if merged.Brand == model.UnknownIdentity {
		merged.Brand = fromRecall.Brand
	}
	if merged.Model == model.UnknownIdentity {
		merged.Model = fromRecall.Model
	}
	if merged.Attributes == nil {
		merged.Attributes = map[string]any{}
	}
	for k, v := range fromRecall.Attributes {
		if _, ok := merged.Attributes[k]; !ok {
			merged.Attributes[k] = v
		}
	}
	merged.SourceURL = fromRecall.SourceURL
	return merged
}

// toJSONValue converts typed values into the generic JSON shape stored in
// audit payload columns.
func toJSONValue(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Sprint(v)
	}
	return out
}
