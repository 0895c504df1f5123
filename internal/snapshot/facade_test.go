package snapshot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compare-agent/internal/model"
	"github.com/sells-group/compare-agent/internal/store"
)

const productPage = `<!doctype html><html><head>
<title>ACME X1 Pro</title>
<script type="application/ld+json">
{"@type":"Product","name":"ACME X1 Pro","brand":{"name":"ACME"},"model":"X1 Pro","sku":"AX1P"}
</script>
</head><body></body></html>`

// fakeStore is the minimal in-memory Store used by snapshot tests. Only
// the snapshot methods do real work.
type fakeStore struct {
	store.Store
	snapshots []*model.Snapshot
	inserts   int
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
	f.inserts++
	f.snapshots = append(f.snapshots, snap)
	return nil
}

func newTestServer(t *testing.T, status int, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFacade_CaptureExtractsAndPersists(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, "text/html; charset=utf-8", productPage)
	fs := &fakeStore{}
	f := NewFacade(fs, NewHTTPProvider(0), nil, false)

	snap, err := f.Capture(context.Background(), "run-1", "prod-1", srv.URL)
	require.NoError(t, err)

	assert.Equal(t, model.MethodJSONLD, snap.ExtractionMethod)
	assert.Equal(t, model.ExtractionOK, snap.ExtractionStatus)
	product, ok := snap.Extracted["product"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ACME", product["brand"])
	assert.Equal(t, "http", snap.Provider)
	assert.Equal(t, 200, snap.HTTPStatus)
	assert.NotEmpty(t, snap.DigestHash)
	assert.NotEmpty(t, snap.ContentSHA256)
	assert.Equal(t, len(productPage), snap.ContentSize)
	assert.Empty(t, snap.ContentRef)
	assert.Equal(t, 1, fs.inserts)
}

func TestFacade_CaptureIdempotentWithinRun(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, "text/html", productPage)
	fs := &fakeStore{}
	f := NewFacade(fs, NewHTTPProvider(0), nil, false)

	first, err := f.Capture(context.Background(), "run-1", "prod-1", srv.URL)
	require.NoError(t, err)
	second, err := f.Capture(context.Background(), "run-1", "prod-1", srv.URL)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, fs.inserts)
}

func TestFacade_CaptureNewRowAcrossRuns(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, "text/html", productPage)
	fs := &fakeStore{}
	f := NewFacade(fs, NewHTTPProvider(0), nil, false)

	_, err := f.Capture(context.Background(), "run-1", "prod-1", srv.URL)
	require.NoError(t, err)
	_, err = f.Capture(context.Background(), "run-2", "prod-1", srv.URL)
	require.NoError(t, err)

	assert.Equal(t, 2, fs.inserts)
}

func TestFacade_NonOKStatusIsCaptureError(t *testing.T) {
	srv := newTestServer(t, http.StatusNotFound, "text/html", "gone")
	fs := &fakeStore{}
	f := NewFacade(fs, NewHTTPProvider(0), nil, false)

	_, err := f.Capture(context.Background(), "run-1", "prod-1", srv.URL)
	require.Error(t, err)

	var capErr *CaptureError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, srv.URL, capErr.URL)
	assert.Equal(t, 404, capErr.Details["http_status"])
	assert.Zero(t, fs.inserts)
}

func TestFacade_EmptyBodyIsCaptureError(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, "text/html", "")
	fs := &fakeStore{}
	f := NewFacade(fs, NewHTTPProvider(0), nil, false)

	_, err := f.Capture(context.Background(), "run-1", "prod-1", srv.URL)

	var capErr *CaptureError
	require.ErrorAs(t, err, &capErr)
	assert.Contains(t, capErr.Error(), "empty body")
}

func TestFacade_TransportFailureIsCaptureError(t *testing.T) {
	fs := &fakeStore{}
	f := NewFacade(fs, NewHTTPProvider(0), nil, false)

	_, err := f.Capture(context.Background(), "run-1", "prod-1", "http://127.0.0.1:1/unreachable")

	var capErr *CaptureError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "http", capErr.Details["provider"])
}

func TestFacade_RetainRawStoresArtifact(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, "text/html", productPage)
	fs := &fakeStore{}
	artifacts, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	f := NewFacade(fs, NewHTTPProvider(0), artifacts, true)

	snap, err := f.Capture(context.Background(), "run-1", "prod-1", srv.URL)
	require.NoError(t, err)
	require.NotEmpty(t, snap.ContentRef)

	raw, err := artifacts.Get(snap.ContentRef)
	require.NoError(t, err)
	assert.Equal(t, productPage, string(raw))
}

func TestDigest_RebuildsIdentityFromExtracted(t *testing.T) {
	snap := &model.Snapshot{
		URL: "https://shop.example/p",
		Extracted: map[string]any{
			"method": "jsonld",
			"product": map[string]any{
				"title": "ACME X1",
				"brand": "ACME",
				"model": "X1",
				"mpn":   nil,
			},
		},
	}

	d := Digest(snap)
	assert.Equal(t, "ACME", d.Brand)
	assert.Equal(t, "X1", d.Model)
	assert.Equal(t, "https://shop.example/p", d.SourceURL)
	assert.Equal(t, "ACME X1", d.Attributes["title"])
	assert.NotContains(t, d.Attributes, "mpn")
}

func TestDigest_UnknownWhenAbsent(t *testing.T) {
	d := Digest(&model.Snapshot{
		URL:       "https://x.example",
		Extracted: map[string]any{"product": map[string]any{"title": "Thing", "brand": nil}},
	})
	assert.Equal(t, model.UnknownIdentity, d.Brand)
	assert.Equal(t, model.UnknownIdentity, d.Model)
	assert.Equal(t, "Thing", d.Attributes["title"])
}
