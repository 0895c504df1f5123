package model

import "time"

// ExtractionMethod identifies which tier produced a snapshot's payload.
type ExtractionMethod string

const (
	MethodJSONLD  ExtractionMethod = "jsonld"
	MethodDOM     ExtractionMethod = "dom"
	MethodMinimal ExtractionMethod = "minimal"
)

// ExtractionStatus grades how complete an extraction was.
type ExtractionStatus string

const (
	ExtractionOK            ExtractionStatus = "ok"
	ExtractionPartial       ExtractionStatus = "partial"
	ExtractionIndeterminate ExtractionStatus = "indeterminate"
	ExtractionError         ExtractionStatus = "error"
)

// Snapshot is one persisted fetch-and-extract attempt. Exactly one row
// exists per (run, URL) pair; the same URL under a different run gets a
// new row.
type Snapshot struct {
	ID               string           `json:"id"`
	RunID            string           `json:"run_id"`
	ProductID        string           `json:"product_id"`
	URL              string           `json:"url"`
	FinalURL         string           `json:"final_url"`
	Provider         string           `json:"provider"`
	HTTPStatus       int              `json:"http_status,omitempty"`
	CapturedAt       time.Time        `json:"captured_at"`
	ExtractionMethod ExtractionMethod `json:"extraction_method"`
	ExtractionStatus ExtractionStatus `json:"extraction_status"`
	Extracted        map[string]any   `json:"extracted,omitempty"`
	DigestHash       string           `json:"digest_hash,omitempty"`
	ContentRef       string           `json:"content_ref,omitempty"`
	ContentSHA256    string           `json:"content_sha256,omitempty"`
	ContentSize      int              `json:"content_size_bytes,omitempty"`
	ContentType      string           `json:"content_type,omitempty"`
	MissingCritical  []string         `json:"missing_critical,omitempty"`
	Errors           []string         `json:"errors,omitempty"`
}

// Product is the persisted product identity row.
type Product struct {
	ID        string    `json:"id"`
	Brand     string    `json:"brand"`
	Model     string    `json:"model"`
	SourceURL string    `json:"source_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CandidateLink is the membership row tying a recalled candidate URL to a
// source product. Inserted once, never updated.
type CandidateLink struct {
	ID           string         `json:"id"`
	ProductID    string         `json:"product_id"`
	CandidateURL string         `json:"candidate_url"`
	Signals      map[string]any `json:"signals,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
