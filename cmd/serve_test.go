package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compare-agent/internal/agent"
	"github.com/sells-group/compare-agent/internal/model"
	"github.com/sells-group/compare-agent/internal/snapshot"
	"github.com/sells-group/compare-agent/internal/store"
)

// fakeStore is a map-backed Store for router tests.
type fakeStore struct {
	seq       int
	runs      map[string]*model.CompareRun
	products  map[string]*model.Product
	snapshots []*model.Snapshot
	events    []model.RunEvent
	toolRuns  []model.ToolRun
	llmRuns   []model.LlmRun
	prompts   map[string]*model.Prompt
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		runs:     map[string]*model.CompareRun{},
		products: map[string]*model.Product{},
		prompts:  map[string]*model.Prompt{},
	}
}

func (f *fakeStore) id(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeStore) CreateRun(_ context.Context, sourceURL, version string) (*model.CompareRun, error) {
	run := &model.CompareRun{ID: f.id("run"), Status: model.RunStatusStarted, SourceURL: sourceURL, AgentVersion: version, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.runs[run.ID] = run
	return run, nil
}

func (f *fakeStore) UpdateRunStatus(_ context.Context, runID string, status model.RunStatus) error {
	run, ok := f.runs[runID]
	if !ok {
		return errors.New("run not found")
	}
	run.Status = status
	return nil
}

func (f *fakeStore) GetRun(_ context.Context, runID string) (*model.CompareRun, error) {
	run, ok := f.runs[runID]
	if !ok {
		return nil, errors.New("run not found")
	}
	return run, nil
}

func (f *fakeStore) ListRuns(_ context.Context, _ store.RunFilter) ([]model.CompareRun, error) {
	var out []model.CompareRun
	for _, r := range f.runs {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeStore) GetOrCreateProduct(_ context.Context, brand, modelName, sourceURL string) (*model.Product, error) {
	if p, ok := f.products[sourceURL]; ok {
		return p, nil
	}
	p := &model.Product{ID: f.id("prod"), Brand: brand, Model: modelName, SourceURL: sourceURL}
	f.products[sourceURL] = p
	return p, nil
}

func (f *fakeStore) InsertCandidateLink(_ context.Context, _, _ string, _ map[string]any) error {
	return nil
}

func (f *fakeStore) FindSnapshot(_ context.Context, runID, url string) (*model.Snapshot, error) {
	for _, s := range f.snapshots {
		if s.RunID == runID && s.URL == url {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) InsertSnapshot(_ context.Context, snap *model.Snapshot) error {
	snap.ID = f.id("snap")
	f.snapshots = append(f.snapshots, snap)
	return nil
}

func (f *fakeStore) InsertOffer(_ context.Context, _ string, _ model.Offer) error { return nil }

func (f *fakeStore) AppendEvent(_ context.Context, runID, phase, status, message string) error {
	f.events = append(f.events, model.RunEvent{ID: f.id("evt"), RunID: runID, PhaseName: phase, Status: status, Message: message})
	return nil
}

func (f *fakeStore) ListEvents(_ context.Context, runID string) ([]model.RunEvent, error) {
	var out []model.RunEvent
	for _, e := range f.events {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) GetOrCreatePrompt(_ context.Context, name, version, content string) (*model.Prompt, error) {
	key := name + "/" + version
	if p, ok := f.prompts[key]; ok {
		return p, nil
	}
	p := &model.Prompt{ID: f.id("prompt"), Name: name, Version: version, Content: content}
	f.prompts[key] = p
	return p, nil
}

func (f *fakeStore) AppendToolRun(_ context.Context, tr *model.ToolRun) error {
	tr.ID = f.id("tool")
	f.toolRuns = append(f.toolRuns, *tr)
	return nil
}

func (f *fakeStore) ListToolRuns(_ context.Context, runID string) ([]model.ToolRun, error) {
	var out []model.ToolRun
	for _, t := range f.toolRuns {
		if t.RunID == runID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) AppendLlmRun(_ context.Context, lr *model.LlmRun) error {
	lr.ID = f.id("llm")
	f.llmRuns = append(f.llmRuns, *lr)
	return nil
}

func (f *fakeStore) ListLlmRuns(_ context.Context, runID string) ([]model.LlmRun, error) {
	var out []model.LlmRun
	for _, l := range f.llmRuns {
		if l.RunID == runID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) Migrate(_ context.Context) error { return nil }
func (f *fakeStore) Close() error                    { return nil }

const testSourceURL = "https://shop.example/acme-x1"

func stubRouter(t *testing.T) (http.Handler, *fakeStore) {
	t.Helper()
	fs := newFakeStore()

	pages := map[string]string{
		testSourceURL: `<html><head><title>ACME X1</title>
<script type="application/ld+json">{"@type":"Product","name":"ACME X1","brand":"ACME","model":"X1"}</script>
</head><body></body></html>`,
	}
	facade := snapshot.NewFacade(fs, &snapshot.StaticProvider{Pages: pages}, nil, false)
	judge := agent.NewJudge(agent.StubLLM{}, "claude-haiku-4-5-20251001")
	runner := agent.NewRunner(fs, facade, &agent.StubRecall{}, &agent.StubOffers{}, judge, 10)

	return newRouter(fs, runner), fs
}

func TestRouter_Healthz(t *testing.T) {
	router, _ := stubRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_PostRun(t *testing.T) {
	router, fs := stubRouter(t)

	body, _ := json.Marshal(map[string]string{"source_url": testSourceURL})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out model.RunOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, "ACME", out.SourceProduct.Brand)
	assert.Equal(t, model.RunStatusCompleted, fs.runs[out.RunID].Status)
}

func TestRouter_PostRunValidation(t *testing.T) {
	router, _ := stubRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", bytes.NewReader([]byte("not json"))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", bytes.NewReader([]byte(`{}`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "source_url is required")
}

func TestRouter_PostRunFailureReturnsRunID(t *testing.T) {
	router, fs := stubRouter(t)

	body, _ := json.Marshal(map[string]string{"source_url": "https://shop.example/missing"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", bytes.NewReader(body)))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp struct {
		Error string `json:"error"`
		RunID string `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RunID)
	assert.Contains(t, resp.Error, "aborted")
	assert.Equal(t, model.RunStatusError, fs.runs[resp.RunID].Status)
}

func TestRouter_RunDetailAndEvents(t *testing.T) {
	router, _ := stubRouter(t)

	body, _ := json.Marshal(map[string]string{"source_url": testSourceURL})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/runs", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var out model.RunOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+out.RunID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var detail runDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, out.RunID, detail.Run.ID)
	assert.Len(t, detail.Events, len(model.Phases))
	assert.NotEmpty(t, detail.LlmRuns)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+out.RunID+"/events", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "source_snapshot_capture")
}

func TestRouter_RunNotFound(t *testing.T) {
	router, _ := stubRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
