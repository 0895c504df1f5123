package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"

	"github.com/sells-group/compare-agent/internal/model"
	"github.com/sells-group/compare-agent/pkg/anthropic"
)

// Judge invokes the LLM comparability judge and validates its raw output
// against the gate schema. The provider is never trusted to self-validate.
type Judge struct {
	llm       anthropic.Client
	modelName string
	maxTokens int64
}

// NewJudge wires a judge over an Anthropic client.
func NewJudge(llm anthropic.Client, modelName string) *Judge {
	return &Judge{llm: llm, modelName: modelName, maxTokens: 4096}
}

// ModelName reports the model the judge invokes.
func (j *Judge) ModelName() string { return j.modelName }

// Verdict is one judge invocation's full outcome, shaped for the llm_runs
// audit row.
type Verdict struct {
	RawText          string
	Output           map[string]any
	ValidatedOutput  map[string]any
	ValidationErrors []string
	Comparables      []model.Comparable
	Usage            anthropic.TokenUsage
}

// Evaluate sends the input payload to the judge and validates the reply.
// A schema violation returns a *ValidationError; the Verdict is still
// populated so the caller can record the failed attempt.
func (j *Judge) Evaluate(ctx context.Context, input map[string]any) (*Verdict, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, eris.Wrap(err, "agent: marshal judge input")
	}

	temp := 0.0
	resp, err := j.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       j.modelName,
		MaxTokens:   j.maxTokens,
		Temperature: &temp,
		System:      []anthropic.SystemBlock{{Text: gatePrompt}},
		Messages:    []anthropic.Message{{Role: "user", Content: string(payload)}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "agent: judge invocation")
	}

	v := &Verdict{RawText: resp.Text(), Usage: resp.Usage}

	raw := extractJSON(v.RawText)
	if err := json.Unmarshal([]byte(raw), &v.Output); err != nil {
		v.ValidationErrors = []string{"output is not valid JSON: " + err.Error()}
		return v, &ValidationError{Errors: v.ValidationErrors}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(gateSchema),
		gojsonschema.NewGoLoader(v.Output))
	if err != nil {
		return nil, eris.Wrap(err, "agent: run schema validation")
	}
	if !result.Valid() {
		for _, e := range result.Errors() {
			v.ValidationErrors = append(v.ValidationErrors, e.String())
		}
		return v, &ValidationError{Errors: v.ValidationErrors}
	}

	v.ValidatedOutput = v.Output
	if err := decodeComparables(v.Output, &v.Comparables); err != nil {
		v.ValidationErrors = []string{err.Error()}
		return v, &ValidationError{Errors: v.ValidationErrors}
	}
	return v, nil
}

// extractJSON strips markdown code fences and any prose around the first
// top-level JSON object in the reply.
func extractJSON(text string) string {
	s := strings.TrimSpace(text)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// decodeComparables converts the validated judge output into typed
// comparables via a JSON round trip.
func decodeComparables(output map[string]any, dst *[]model.Comparable) error {
	raw, ok := output["comparables"]
	if !ok {
		return eris.New("agent: judge output missing comparables")
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return eris.Wrap(err, "agent: remarshal comparables")
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return eris.Wrap(err, "agent: decode comparables")
	}
	return nil
}
