package agent

import "encoding/json"

const (
	gatePromptName    = "comparability_gate"
	gatePromptVersion = "v1"
)

// gatePrompt is the system prompt for the comparability judge. The
// deterministic scorer's output is supplied as expected_output in the
// input payload; the judge may adjust scores and rationale but must keep
// the response within the gate schema.
const gatePrompt = `You judge whether candidate products are comparable to a source product.

You receive a JSON payload with:
- "source": the source product identity (brand, model, source_url, attributes)
- "candidates": candidate product identities recalled from the web
- "expected_output": the output of a deterministic comparability scorer,
  including per-candidate scores, short reasons, and signals used

Review the deterministic output against the raw identities. Correct scores
only where the scorer was clearly misled (e.g. token overlap between
unrelated models, accessory pages scored as products). Keep every candidate
you consider comparable; drop candidates that are a different product
category, a different product type, or a conflicting brand under the same
model name.

Respond with JSON only, no prose, matching the provided schema exactly:
{"comparables": [{"product": {...}, "comparability_score": 0.0-1.0,
"reasons_short": [...], "signals_used": [...], "missing_critical": [...]}]}

Scores are between 0 and 1 with four decimal places. Preserve the ranking
order implied by the scores.`

// gateSchema validates the judge's raw output. Validation failure aborts
// the run.
const gateSchema = `{
  "type": "object",
  "required": ["comparables"],
  "properties": {
    "comparables": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["product", "comparability_score"],
        "properties": {
          "product": {
            "type": "object",
            "required": ["brand", "model"],
            "properties": {
              "brand": {"type": "string"},
              "model": {"type": "string"},
              "source_url": {"type": "string"},
              "attributes": {"type": "object"}
            }
          },
          "comparability_score": {"type": "number", "minimum": 0, "maximum": 1},
          "reasons_short": {"type": "array", "items": {"type": "string"}},
          "signals_used": {"type": "array", "items": {"type": "string"}},
          "missing_critical": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

// gateSchemaMap returns the gate schema as the map shape stored on llm_runs.
func gateSchemaMap() map[string]any {
	var m map[string]any
	// The schema is a compile-time constant; a parse failure is a bug.
	if err := json.Unmarshal([]byte(gateSchema), &m); err != nil {
		panic(err)
	}
	return m
}
