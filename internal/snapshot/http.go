package snapshot

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "compare-agent/1.0 (+https://github.com/sells-group/compare-agent)"
	maxBodyBytes     = 10 << 20
)

// HTTPProvider captures pages with a plain HTTP GET. Redirects are
// followed; the landing URL is reported as FinalURL.
type HTTPProvider struct {
	client    *http.Client
	userAgent string
}

// NewHTTPProvider creates an HTTP capture provider. A zero timeout uses
// the default.
func NewHTTPProvider(timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPProvider{
		client:    &http.Client{Timeout: timeout},
		userAgent: defaultUserAgent,
	}
}

func (p *HTTPProvider) Name() string { return "http" }

// Capture fetches url and returns the page as seen over the wire. Non-2xx
// responses are returned with their body, not as errors.
func (p *HTTPProvider) Capture(ctx context.Context, url string) (*CapturedPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: create request")
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: fetch page")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: read body")
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &CapturedPage{
		RequestedURL: url,
		FinalURL:     finalURL,
		HTTPStatus:   resp.StatusCode,
		Content:      body,
		ContentType:  resp.Header.Get("Content-Type"),
		Metadata: map[string]any{
			"content_length": len(body),
		},
	}, nil
}
