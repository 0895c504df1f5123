package snapshot

import (
	"context"
	"net/http"
)

// StaticProvider serves canned pages from memory, for offline runs and
// tests. URLs not in Pages come back as 404 with an empty body.
type StaticProvider struct {
	Pages map[string]string
}

func (p *StaticProvider) Name() string { return "stub" }

func (p *StaticProvider) Capture(_ context.Context, url string) (*CapturedPage, error) {
	body, ok := p.Pages[url]
	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
	}
	return &CapturedPage{
		RequestedURL: url,
		FinalURL:     url,
		HTTPStatus:   status,
		Content:      []byte(body),
		ContentType:  "text/html",
	}, nil
}
