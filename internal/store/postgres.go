package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/compare-agent/internal/model"
)

// Pool abstracts the pgx pool operations the store needs, so unit tests
// can substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS products (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	brand      TEXT NOT NULL,
	model      TEXT NOT NULL,
	source_url TEXT UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS compare_runs (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status        TEXT NOT NULL DEFAULT 'started',
	source_url    TEXT,
	agent_version TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS page_snapshots (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id             TEXT NOT NULL REFERENCES compare_runs(id),
	product_id         TEXT REFERENCES products(id),
	url                TEXT NOT NULL,
	final_url          TEXT,
	provider           TEXT,
	http_status        INTEGER,
	captured_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	extraction_method  TEXT,
	extraction_status  TEXT,
	extracted_json     JSONB,
	digest_hash        TEXT,
	content_ref        TEXT,
	content_sha256     TEXT,
	content_size_bytes INTEGER,
	content_type       TEXT,
	missing_critical   JSONB,
	errors_json        JSONB,
	UNIQUE (run_id, url)
);

CREATE TABLE IF NOT EXISTS comparable_candidates (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	product_id    TEXT NOT NULL REFERENCES products(id),
	candidate_url TEXT NOT NULL,
	signals_json  JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (product_id, candidate_url)
);

CREATE TABLE IF NOT EXISTS offers (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	product_id     TEXT NOT NULL REFERENCES products(id),
	offer_url      TEXT NOT NULL,
	seller         TEXT,
	price_amount   NUMERIC(12,2),
	price_currency TEXT,
	attributes_json JSONB,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_events (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id     TEXT NOT NULL REFERENCES compare_runs(id),
	phase_name TEXT NOT NULL,
	status     TEXT NOT NULL,
	message    TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS prompts (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name         TEXT NOT NULL,
	version      TEXT NOT NULL,
	content      TEXT NOT NULL,
	content_hash TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (name, version)
);

CREATE TABLE IF NOT EXISTS tool_runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id      TEXT NOT NULL REFERENCES compare_runs(id),
	tool_name   TEXT NOT NULL,
	status      TEXT NOT NULL,
	input_json  JSONB,
	output_json JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS llm_runs (
	id                    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id                TEXT NOT NULL REFERENCES compare_runs(id),
	prompt_id             TEXT REFERENCES prompts(id),
	prompt_content        TEXT,
	prompt_hash           TEXT,
	model_name            TEXT NOT NULL,
	status                TEXT NOT NULL,
	model_params          JSONB,
	json_schema           JSONB,
	json_schema_hash      TEXT,
	input_json            JSONB,
	output_json           JSONB,
	output_validated_json JSONB,
	validation_errors     JSONB,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_compare_runs_status ON compare_runs(status);
CREATE INDEX IF NOT EXISTS idx_page_snapshots_run ON page_snapshots(run_id);
CREATE INDEX IF NOT EXISTS idx_run_events_run ON run_events(run_id);
CREATE INDEX IF NOT EXISTS idx_tool_runs_run ON tool_runs(run_id);
CREATE INDEX IF NOT EXISTS idx_llm_runs_run ON llm_runs(run_id);
CREATE INDEX IF NOT EXISTS idx_offers_product ON offers(product_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, sourceURL, agentVersion string) (*model.CompareRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO compare_runs (id, status, source_url, agent_version, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, string(model.RunStatusStarted), nullable(sourceURL), nullable(agentVersion), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.CompareRun{
		ID:           id,
		Status:       model.RunStatusStarted,
		SourceURL:    sourceURL,
		AgentVersion: agentVersion,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE compare_runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.CompareRun, error) {
	var r model.CompareRun
	var sourceURL, agentVersion *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, status, source_url, agent_version, created_at, updated_at FROM compare_runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Status, &sourceURL, &agentVersion, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	r.SourceURL = deref(sourceURL)
	r.AgentVersion = deref(agentVersion)
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.CompareRun, error) {
	query := `SELECT id, status, source_url, agent_version, created_at, updated_at FROM compare_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.CompareRun
	for rows.Next() {
		var r model.CompareRun
		var sourceURL, agentVersion *string
		if err := rows.Scan(&r.ID, &r.Status, &sourceURL, &agentVersion, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.SourceURL = deref(sourceURL)
		r.AgentVersion = deref(agentVersion)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) GetOrCreateProduct(ctx context.Context, brand, modelName, sourceURL string) (*model.Product, error) {
	if sourceURL != "" {
		var p model.Product
		var srcURL *string
		err := s.pool.QueryRow(ctx,
			`SELECT id, brand, model, source_url, created_at, updated_at FROM products WHERE source_url = $1`,
			sourceURL,
		).Scan(&p.ID, &p.Brand, &p.Model, &srcURL, &p.CreatedAt, &p.UpdatedAt)
		if err == nil {
			p.SourceURL = deref(srcURL)
			return &p, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(err, "postgres: lookup product %s", sourceURL)
		}
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO products (id, brand, model, source_url, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, brand, modelName, nullable(sourceURL), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert product")
	}
	return &model.Product{
		ID:        id,
		Brand:     brand,
		Model:     modelName,
		SourceURL: sourceURL,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) InsertCandidateLink(ctx context.Context, productID, candidateURL string, signals map[string]any) error {
	signalsJSON, err := marshalJSON(signals)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal signals")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO comparable_candidates (id, product_id, candidate_url, signals_json, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (product_id, candidate_url) DO NOTHING`,
		uuid.New().String(), productID, candidateURL, signalsJSON, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: insert candidate link")
}

func (s *PostgresStore) FindSnapshot(ctx context.Context, runID, url string) (*model.Snapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, run_id, product_id, url, final_url, provider, http_status, captured_at,
		        extraction_method, extraction_status, extracted_json, digest_hash,
		        content_ref, content_sha256, content_size_bytes, content_type,
		        missing_critical, errors_json
		 FROM page_snapshots WHERE run_id = $1 AND url = $2`,
		runID, url,
	)
	snap, err := scanSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find snapshot run=%s url=%s", runID, url)
	}
	return snap, nil
}

func (s *PostgresStore) InsertSnapshot(ctx context.Context, snap *model.Snapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = time.Now().UTC()
	}
	extractedJSON, err := marshalJSON(snap.Extracted)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal extracted")
	}
	missingJSON, err := json.Marshal(snap.MissingCritical)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal missing critical")
	}
	errorsJSON, err := json.Marshal(snap.Errors)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal errors")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO page_snapshots (id, run_id, product_id, url, final_url, provider, http_status,
		        captured_at, extraction_method, extraction_status, extracted_json, digest_hash,
		        content_ref, content_sha256, content_size_bytes, content_type, missing_critical, errors_json)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		snap.ID, snap.RunID, nullable(snap.ProductID), snap.URL, nullable(snap.FinalURL), nullable(snap.Provider),
		zeroNullInt(snap.HTTPStatus), snap.CapturedAt, string(snap.ExtractionMethod), string(snap.ExtractionStatus),
		extractedJSON, nullable(snap.DigestHash), nullable(snap.ContentRef), nullable(snap.ContentSHA256),
		zeroNullInt(snap.ContentSize), nullable(snap.ContentType), missingJSON, errorsJSON,
	)
	return eris.Wrap(err, "postgres: insert snapshot")
}

func (s *PostgresStore) InsertOffer(ctx context.Context, productID string, offer model.Offer) error {
	attrsJSON, err := marshalJSON(offer.Attributes)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal offer attributes")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO offers (id, product_id, offer_url, seller, price_amount, price_currency, attributes_json, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New().String(), productID, offer.OfferURL, nullable(offer.Seller),
		offer.PriceAmount, nullable(offer.PriceCurrency), attrsJSON, time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: insert offer")
}

func (s *PostgresStore) AppendEvent(ctx context.Context, runID, phaseName, status, message string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_events (id, run_id, phase_name, status, message, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), runID, phaseName, status, nullable(message), time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: append event")
}

func (s *PostgresStore) ListEvents(ctx context.Context, runID string) ([]model.RunEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, phase_name, status, message, created_at FROM run_events WHERE run_id = $1 ORDER BY created_at, id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list events")
	}
	defer rows.Close()

	var events []model.RunEvent
	for rows.Next() {
		var e model.RunEvent
		var message *string
		if err := rows.Scan(&e.ID, &e.RunID, &e.PhaseName, &e.Status, &message, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		e.Message = deref(message)
		events = append(events, e)
	}
	return events, eris.Wrap(rows.Err(), "postgres: iterate events")
}

func (s *PostgresStore) GetOrCreatePrompt(ctx context.Context, name, version, content string) (*model.Prompt, error) {
	var p model.Prompt
	var hash *string
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, version, content, content_hash, created_at FROM prompts WHERE name = $1 AND version = $2`,
		name, version,
	).Scan(&p.ID, &p.Name, &p.Version, &p.Content, &hash, &p.CreatedAt)
	if err == nil {
		if p.Content != content {
			return nil, eris.Errorf("prompt content mismatch for %s/%s", name, version)
		}
		p.ContentHash = deref(hash)
		return &p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(err, "postgres: lookup prompt %s/%s", name, version)
	}

	p = model.Prompt{
		ID:          uuid.New().String(),
		Name:        name,
		Version:     version,
		Content:     content,
		ContentHash: hashContent(content),
		CreatedAt:   time.Now().UTC(),
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO prompts (id, name, version, content, content_hash, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Name, p.Version, p.Content, p.ContentHash, p.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert prompt")
	}
	return &p, nil
}

func (s *PostgresStore) AppendToolRun(ctx context.Context, tr *model.ToolRun) error {
	if tr.ID == "" {
		tr.ID = uuid.New().String()
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}
	inputJSON, err := marshalJSON(tr.Input)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal tool input")
	}
	outputJSON, err := marshalJSON(tr.Output)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal tool output")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO tool_runs (id, run_id, tool_name, status, input_json, output_json, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tr.ID, tr.RunID, tr.ToolName, tr.Status, inputJSON, outputJSON, tr.CreatedAt,
	)
	return eris.Wrap(err, "postgres: append tool run")
}

func (s *PostgresStore) ListToolRuns(ctx context.Context, runID string) ([]model.ToolRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, tool_name, status, input_json, output_json, created_at FROM tool_runs WHERE run_id = $1 ORDER BY created_at, id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tool runs")
	}
	defer rows.Close()

	var toolRuns []model.ToolRun
	for rows.Next() {
		var tr model.ToolRun
		var inputJSON, outputJSON []byte
		if err := rows.Scan(&tr.ID, &tr.RunID, &tr.ToolName, &tr.Status, &inputJSON, &outputJSON, &tr.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tool run")
		}
		if err := unmarshalJSON(inputJSON, &tr.Input); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal tool input")
		}
		if err := unmarshalJSON(outputJSON, &tr.Output); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal tool output")
		}
		toolRuns = append(toolRuns, tr)
	}
	return toolRuns, eris.Wrap(rows.Err(), "postgres: iterate tool runs")
}

func (s *PostgresStore) AppendLlmRun(ctx context.Context, lr *model.LlmRun) error {
	if lr.ID == "" {
		lr.ID = uuid.New().String()
	}
	if lr.CreatedAt.IsZero() {
		lr.CreatedAt = time.Now().UTC()
	}

	paramsJSON, err := marshalJSON(lr.ModelParams)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal model params")
	}
	schemaJSON, err := marshalJSON(lr.JSONSchema)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal schema")
	}
	inputJSON, err := marshalJSON(lr.Input)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal llm input")
	}
	outputJSON, err := marshalJSON(lr.Output)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal llm output")
	}
	validatedJSON, err := marshalJSON(lr.ValidatedOutput)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal validated output")
	}
	var validationJSON []byte
	if lr.ValidationErrors != nil {
		validationJSON, err = json.Marshal(lr.ValidationErrors)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal validation errors")
		}
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO llm_runs (id, run_id, prompt_id, prompt_content, prompt_hash, model_name, status,
		        model_params, json_schema, json_schema_hash, input_json, output_json,
		        output_validated_json, validation_errors, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		lr.ID, lr.RunID, nullable(lr.PromptID), nullable(lr.PromptContent), nullable(lr.PromptHash),
		lr.ModelName, lr.Status, paramsJSON, schemaJSON, nullable(lr.JSONSchemaHash),
		inputJSON, outputJSON, validatedJSON, validationJSON, lr.CreatedAt,
	)
	return eris.Wrap(err, "postgres: append llm run")
}

func (s *PostgresStore) ListLlmRuns(ctx context.Context, runID string) ([]model.LlmRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, prompt_id, prompt_content, prompt_hash, model_name, status,
		        model_params, json_schema, json_schema_hash, input_json, output_json,
		        output_validated_json, validation_errors, created_at
		 FROM llm_runs WHERE run_id = $1 ORDER BY created_at, id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list llm runs")
	}
	defer rows.Close()

	var llmRuns []model.LlmRun
	for rows.Next() {
		var lr model.LlmRun
		var promptID, promptContent, promptHash, schemaHash *string
		var paramsJSON, schemaJSON, inputJSON, outputJSON, validatedJSON, validationJSON []byte
		if err := rows.Scan(&lr.ID, &lr.RunID, &promptID, &promptContent, &promptHash, &lr.ModelName, &lr.Status,
			&paramsJSON, &schemaJSON, &schemaHash, &inputJSON, &outputJSON,
			&validatedJSON, &validationJSON, &lr.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan llm run")
		}
		lr.PromptID = deref(promptID)
		lr.PromptContent = deref(promptContent)
		lr.PromptHash = deref(promptHash)
		lr.JSONSchemaHash = deref(schemaHash)
		for _, pair := range []struct {
			raw []byte
			dst *map[string]any
		}{
			{paramsJSON, &lr.ModelParams},
			{schemaJSON, &lr.JSONSchema},
			{inputJSON, &lr.Input},
			{outputJSON, &lr.Output},
			{validatedJSON, &lr.ValidatedOutput},
		} {
			if err := unmarshalJSON(pair.raw, pair.dst); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal llm payload")
			}
		}
		if len(validationJSON) > 0 {
			if err := json.Unmarshal(validationJSON, &lr.ValidationErrors); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal validation errors")
			}
		}
		llmRuns = append(llmRuns, lr)
	}
	return llmRuns, eris.Wrap(rows.Err(), "postgres: iterate llm runs")
}

// scanSnapshot reads one page_snapshots row.
func scanSnapshot(row pgx.Row) (*model.Snapshot, error) {
	var snap model.Snapshot
	var productID, finalURL, provider, digestHash, contentRef, contentSHA, contentType *string
	var httpStatus, contentSize *int
	var extractedJSON, missingJSON, errorsJSON []byte

	err := row.Scan(&snap.ID, &snap.RunID, &productID, &snap.URL, &finalURL, &provider, &httpStatus,
		&snap.CapturedAt, &snap.ExtractionMethod, &snap.ExtractionStatus, &extractedJSON, &digestHash,
		&contentRef, &contentSHA, &contentSize, &contentType, &missingJSON, &errorsJSON)
	if err != nil {
		return nil, err
	}

	snap.ProductID = deref(productID)
	snap.FinalURL = deref(finalURL)
	snap.Provider = deref(provider)
	snap.DigestHash = deref(digestHash)
	snap.ContentRef = deref(contentRef)
	snap.ContentSHA256 = deref(contentSHA)
	snap.ContentType = deref(contentType)
	if httpStatus != nil {
		snap.HTTPStatus = *httpStatus
	}
	if contentSize != nil {
		snap.ContentSize = *contentSize
	}
	if err := unmarshalJSON(extractedJSON, &snap.Extracted); err != nil {
		return nil, err
	}
	if len(missingJSON) > 0 {
		if err := json.Unmarshal(missingJSON, &snap.MissingCritical); err != nil {
			return nil, err
		}
	}
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &snap.Errors); err != nil {
			return nil, err
		}
	}
	return &snap, nil
}

func marshalJSON(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalJSON(raw []byte, dst *map[string]any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func zeroNullInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
