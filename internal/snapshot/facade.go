package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/compare-agent/internal/extract"
	"github.com/sells-group/compare-agent/internal/model"
	"github.com/sells-group/compare-agent/internal/store"
)

// Facade is the single entry point for page capture. It is idempotent per
// (run, URL): a repeat capture within the same run returns the existing
// row without refetching.
type Facade struct {
	store     store.Store
	provider  Provider
	artifacts ArtifactStore
	retainRaw bool
}

// NewFacade wires a capture facade. artifacts may be nil when retainRaw
// is false.
func NewFacade(st store.Store, provider Provider, artifacts ArtifactStore, retainRaw bool) *Facade {
	return &Facade{store: st, provider: provider, artifacts: artifacts, retainRaw: retainRaw}
}

// Capture fetches, extracts, and persists one snapshot for url under
// runID. Transport failures, non-2xx status, and empty bodies return a
// *CaptureError; extraction shortfalls do not (they are graded in the
// snapshot itself).
func (f *Facade) Capture(ctx context.Context, runID, productID, url string) (*model.Snapshot, error) {
	existing, err := f.store.FindSnapshot(ctx, runID, url)
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: lookup")
	}
	if existing != nil {
		zap.L().Debug("snapshot already captured",
			zap.String("run_id", runID),
			zap.String("url", url))
		return existing, nil
	}

	page, err := f.provider.Capture(ctx, url)
	if err != nil {
		return nil, &CaptureError{
			URL:     url,
			Details: map[string]any{"provider": f.provider.Name()},
			Err:     err,
		}
	}
	if page.HTTPStatus < 200 || page.HTTPStatus >= 300 {
		return nil, &CaptureError{
			URL: url,
			Details: map[string]any{
				"provider":    f.provider.Name(),
				"http_status": page.HTTPStatus,
			},
			Err: fmt.Errorf("unexpected status %d", page.HTTPStatus),
		}
	}
	if len(page.Content) == 0 {
		return nil, &CaptureError{
			URL: url,
			Details: map[string]any{
				"provider":    f.provider.Name(),
				"http_status": page.HTTPStatus,
			},
			Err: fmt.Errorf("empty body"),
		}
	}

	res := extract.Extract(url, page.FinalURL, page.Content, page.ContentType)

	snap := &model.Snapshot{
		RunID:            runID,
		ProductID:        productID,
		URL:              url,
		FinalURL:         page.FinalURL,
		Provider:         f.provider.Name(),
		HTTPStatus:       page.HTTPStatus,
		CapturedAt:       time.Now().UTC(),
		ExtractionMethod: res.Method,
		ExtractionStatus: res.Status,
		Extracted:        res.Extracted,
		DigestHash:       res.DigestHash,
		ContentSHA256:    contentSHA256(page.Content),
		ContentSize:      len(page.Content),
		ContentType:      page.ContentType,
		MissingCritical:  res.MissingCritical,
		Errors:           res.Errors,
	}

	if f.retainRaw && f.artifacts != nil {
		ref, err := f.artifacts.Put(snap.ContentSHA256, page.Content)
		if err != nil {
			// Raw retention is best-effort; the hash still proves what
			// was seen.
			zap.L().Warn("artifact store failed",
				zap.String("url", url),
				zap.Error(err))
		} else {
			snap.ContentRef = ref
		}
	}

	if err := f.store.InsertSnapshot(ctx, snap); err != nil {
		return nil, eris.Wrap(err, "snapshot: persist")
	}

	zap.L().Info("page captured",
		zap.String("run_id", runID),
		zap.String("url", url),
		zap.String("method", string(snap.ExtractionMethod)),
		zap.String("status", string(snap.ExtractionStatus)))

	return snap, nil
}

// Digest rebuilds the typed digest from a snapshot's extracted payload.
// Identity fields live under the payload's "product" key; null entries
// stay out of the attribute bag.
func Digest(snap *model.Snapshot) model.ProductDigest {
	d := model.ProductDigest{
		Brand:      model.UnknownIdentity,
		Model:      model.UnknownIdentity,
		SourceURL:  snap.URL,
		Attributes: map[string]any{},
	}
	product, _ := snap.Extracted["product"].(map[string]any)
	for k, v := range product {
		switch k {
		case "brand":
			if s, ok := v.(string); ok && s != "" {
				d.Brand = s
			}
		case "model":
			if s, ok := v.(string); ok && s != "" {
				d.Model = s
			}
		default:
			if v != nil {
				d.Attributes[k] = v
			}
		}
	}
	return d
}
