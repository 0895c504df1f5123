// Package snapshot coordinates a content-fetch provider, the extractor,
// an artifact store, and the snapshot repository to produce exactly one
// persisted snapshot per (run, URL).
package snapshot

import (
	"context"
	"fmt"
)

// CapturedPage is the raw result of fetching one URL.
type CapturedPage struct {
	RequestedURL string
	FinalURL     string
	HTTPStatus   int
	Content      []byte
	ContentType  string
	Metadata     map[string]any
}

// Provider fetches page content. Implementations must surface non-2xx
// status and empty bodies as-is; the facade decides what is fatal.
type Provider interface {
	Name() string
	Capture(ctx context.Context, url string) (*CapturedPage, error)
}

// CaptureError marks a fatal page-capture failure: transport error,
// non-2xx status, or an empty body. It aborts the run.
type CaptureError struct {
	URL     string
	Details map[string]any
	Err     error
}

func (e *CaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("capture %s failed", e.URL)
}

func (e *CaptureError) Unwrap() error { return e.Err }
