package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/compare-agent/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	runs := []model.CompareRun{
		{
			ID:        "0d9f8a7b-1234-5678-9abc-def012345678",
			SourceURL: "https://shop.example/a-very-long-product-page-url-indeed",
			Status:    model.RunStatusCompleted,
			CreatedAt: now,
			UpdatedAt: now.Add(42 * time.Second),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	out := buf.String()
	assert.Contains(t, out, "0d9f8a7b")
	assert.NotContains(t, out, "def012345678")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "42s")
	assert.Contains(t, out, "...")
}

func TestFormatEvents(t *testing.T) {
	events := []model.RunEvent{
		{PhaseName: "source_snapshot_capture", Status: "ok", Message: "method=jsonld status=ok"},
		{PhaseName: "comparability_gate", Status: "error", Message: "judge output failed schema validation"},
	}

	var buf bytes.Buffer
	formatEvents(&buf, events)

	out := buf.String()
	assert.Contains(t, out, "source_snapshot_capture")
	assert.Contains(t, out, "comparability_gate")
	assert.Contains(t, out, "error")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "12345678", truncateID("123456789abc"))
	assert.Equal(t, "short", truncateID("short"))
}
