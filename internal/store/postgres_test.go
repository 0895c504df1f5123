package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compare-agent/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO compare_runs`).
		WithArgs(pgxmock.AnyArg(), "started", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "https://shop.example/p", "v-abc")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusStarted, run.Status)
	assert.Equal(t, "https://shop.example/p", run.SourceURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE compare_runs SET status`).
		WithArgs("error", pgxmock.AnyArg(), "missing-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing-run", model.RunStatusError)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, status, source_url, agent_version, created_at, updated_at FROM compare_runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindSnapshot_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM page_snapshots WHERE run_id = \$1 AND url = \$2`).
		WithArgs("run-1", "https://shop.example/p").
		WillReturnError(pgx.ErrNoRows)

	snap, err := s.FindSnapshot(context.Background(), "run-1", "https://shop.example/p")
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindSnapshot_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	capturedAt := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "run_id", "product_id", "url", "final_url", "provider", "http_status", "captured_at",
		"extraction_method", "extraction_status", "extracted_json", "digest_hash",
		"content_ref", "content_sha256", "content_size_bytes", "content_type",
		"missing_critical", "errors_json",
	}).AddRow(
		"snap-1", "run-1", ptr("prod-1"), "https://shop.example/p", ptr("https://shop.example/p"), ptr("http"),
		ptr(200), capturedAt, model.MethodJSONLD, model.ExtractionOK,
		[]byte(`{"method":"jsonld"}`), ptr("abc123"),
		(*string)(nil), (*string)(nil), (*int)(nil), ptr("text/html"),
		[]byte(`[]`), []byte(`[]`),
	)

	mock.ExpectQuery(`FROM page_snapshots WHERE run_id = \$1 AND url = \$2`).
		WithArgs("run-1", "https://shop.example/p").
		WillReturnRows(rows)

	snap, err := s.FindSnapshot(context.Background(), "run-1", "https://shop.example/p")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "snap-1", snap.ID)
	assert.Equal(t, 200, snap.HTTPStatus)
	assert.Equal(t, model.MethodJSONLD, snap.ExtractionMethod)
	assert.Equal(t, "jsonld", snap.Extracted["method"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertCandidateLink_OnConflictDoesNothing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO comparable_candidates .* ON CONFLICT \(product_id, candidate_url\) DO NOTHING`).
		WithArgs(pgxmock.AnyArg(), "prod-1", "https://other.example/c", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err := s.InsertCandidateLink(context.Background(), "prod-1", "https://other.example/c", map[string]any{"title": "t"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetOrCreateProduct_ReusesExisting(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, brand, model, source_url, created_at, updated_at FROM products WHERE source_url = \$1`).
		WithArgs("https://shop.example/p").
		WillReturnRows(pgxmock.NewRows([]string{"id", "brand", "model", "source_url", "created_at", "updated_at"}).
			AddRow("prod-1", "ACME", "X1", ptr("https://shop.example/p"), now, now))

	p, err := s.GetOrCreateProduct(context.Background(), "ACME", "X1", "https://shop.example/p")
	require.NoError(t, err)
	assert.Equal(t, "prod-1", p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetOrCreateProduct_InsertsWhenAbsent(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, brand, model, source_url, created_at, updated_at FROM products WHERE source_url = \$1`).
		WithArgs("https://shop.example/new").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO products`).
		WithArgs(pgxmock.AnyArg(), "ACME", "X2", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	p, err := s.GetOrCreateProduct(context.Background(), "ACME", "X2", "https://shop.example/new")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetOrCreatePrompt_ContentMismatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, name, version, content, content_hash, created_at FROM prompts`).
		WithArgs("comparability_gate", "v1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "version", "content", "content_hash", "created_at"}).
			AddRow("prompt-1", "comparability_gate", "v1", "old content", ptr("hash"), now))

	_, err := s.GetOrCreatePrompt(context.Background(), "comparability_gate", "v1", "new content")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content mismatch")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendEvent(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO run_events`).
		WithArgs(pgxmock.AnyArg(), "run-1", "comparability_gate", "ok", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.AppendEvent(context.Background(), "run-1", "comparability_gate", "ok", "excluded=0")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_StatusFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, status, source_url, agent_version, created_at, updated_at FROM compare_runs WHERE true AND status = \$1`).
		WithArgs("completed", 100).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "source_url", "agent_version", "created_at", "updated_at"}).
			AddRow("run-1", "completed", ptr("https://a.example"), ptr("v1"), now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{Status: model.RunStatusCompleted})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusCompleted, runs[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func ptr[T any](v T) *T { return &v }
