package agent

import (
	"context"
	"net/url"
	"strings"

	"github.com/sells-group/compare-agent/internal/compare"
	"github.com/sells-group/compare-agent/internal/model"
	"github.com/sells-group/compare-agent/pkg/search"
)

// SearchRecall recalls candidate competitor pages through a web-search
// client.
type SearchRecall struct {
	client search.Client
	limit  int
}

// NewSearchRecall wires a recall provider. limit caps the candidate count
// (0 means 10).
func NewSearchRecall(client search.Client, limit int) *SearchRecall {
	if limit <= 0 {
		limit = 10
	}
	return &SearchRecall{client: client, limit: limit}
}

func (r *SearchRecall) Name() string { return "web_search" }

// Recall queries for pages selling products comparable to source. The
// source page itself is excluded; URLs are normalized and de-duplicated.
func (r *SearchRecall) Recall(ctx context.Context, source model.ProductDigest) (*RecallResult, error) {
	query := recallQuery(source)
	request := map[string]any{"query": query, "limit": r.limit}

	resp, err := r.client.Search(ctx, query, search.WithLimit(r.limit))
	if err != nil {
		return nil, &RecallError{Provider: r.Name(), Err: err}
	}

	sourceURL := NormalizeURL(source.SourceURL)
	seen := map[string]bool{}
	var candidates []RecalledCandidate
	results := make([]map[string]any, 0, len(resp.Data))
	for rank, item := range resp.Data {
		results = append(results, map[string]any{
			"title": item.Title,
			"url":   item.URL,
			"rank":  rank,
		})

		u := NormalizeURL(item.URL)
		if u == "" || u == sourceURL || seen[u] {
			continue
		}
		seen[u] = true

		snippet := item.Description
		if snippet == "" {
			snippet = item.Content
		}
		candidates = append(candidates, RecalledCandidate{
			URL: u,
			Signals: map[string]any{
				"title":   item.Title,
				"snippet": snippet,
				"rank":    rank,
			},
		})
		if len(candidates) >= r.limit {
			break
		}
	}

	return &RecallResult{
		Candidates:      candidates,
		RequestPayload:  request,
		ResponsePayload: map[string]any{"code": resp.Code, "results": results},
		Status:          "ok",
	}, nil
}

// recallQuery assembles the search query from the known identity fields.
func recallQuery(source model.ProductDigest) string {
	var parts []string
	if source.Brand != model.UnknownIdentity && source.Brand != "" {
		parts = append(parts, source.Brand)
	}
	if source.Model != model.UnknownIdentity && source.Model != "" {
		parts = append(parts, source.Model)
	}
	if len(parts) == 0 {
		if title := source.Attr("title"); title != "" {
			parts = append(parts, title)
		}
	}
	if cat := source.Attr("category"); cat != "" {
		parts = append(parts, cat)
	}
	parts = append(parts, "buy")
	return strings.Join(parts, " ")
}

// NormalizeURL lowercases the scheme and host and trims a trailing slash,
// so candidate de-duplication is case- and slash-insensitive.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.TrimSpace(raw), "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return strings.TrimRight(u.String(), "/")
}

// candidateDigest derives a provisional identity from recall signals. The
// source brand/model are echoed only when they literally appear in the
// result's title or snippet; otherwise the identity stays UNKNOWN until
// the candidate page is captured.
func candidateDigest(source model.ProductDigest, cand RecalledCandidate) model.ProductDigest {
	title, _ := cand.Signals["title"].(string)
	snippet, _ := cand.Signals["snippet"].(string)
	haystack := compare.Normalize(title + " " + snippet)

	d := model.ProductDigest{
		Brand:      model.UnknownIdentity,
		Model:      model.UnknownIdentity,
		SourceURL:  cand.URL,
		Attributes: map[string]any{},
	}
	if title != "" {
		d.Attributes["title"] = title
	}
	if b := compare.Normalize(source.Brand); source.Brand != model.UnknownIdentity && b != "" && strings.Contains(haystack, b) {
		d.Brand = source.Brand
	}
	if m := compare.Normalize(source.Model); source.Model != model.UnknownIdentity && m != "" && strings.Contains(haystack, m) {
		d.Model = source.Model
	}
	return d
}
