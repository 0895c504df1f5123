// Package extract turns raw fetched page content into a normalized,
// hashed product digest via a tiered fallback strategy: JSON-LD first,
// then DOM meta signals, then a minimal title-only record.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/compare-agent/internal/model"
)

// Result is the outcome of one extraction attempt. Extraction is total:
// every failure mode is expressed in Status and Errors, never as a Go
// error.
type Result struct {
	Method          model.ExtractionMethod
	Status          model.ExtractionStatus
	Extracted       map[string]any
	Digest          map[string]any
	DigestHash      string
	Errors          []string
	MissingCritical []string
}

// Identity holds the product identity fields recognized by the digest.
// Empty string means absent.
type Identity struct {
	Title string
	Brand string
	Model string
	MPN   string
	GTIN  string
	SKU   string
}

// Extract parses content and produces a digest. Deterministic and free of
// I/O; contentType gates parsing (anything without "html" is rejected up
// front).
func Extract(url, finalURL string, content []byte, contentType string) Result {
	if len(content) == 0 {
		return minimalResult(url, finalURL, Identity{}, []string{"no_content"})
	}
	if !strings.Contains(strings.ToLower(contentType), "html") {
		return minimalResult(url, finalURL, Identity{}, []string{"unsupported_content_type"})
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return minimalResult(url, finalURL, Identity{}, []string{fmt.Sprintf("html_parse: %v", err)})
	}

	var errs []string

	// Tier 1: JSON-LD Product node.
	nodes, parseErrs := collectJSONLD(doc)
	errs = append(errs, parseErrs...)
	if product, ok := productNode(nodes); ok {
		id := identityFromJSONLD(product)
		if exploitable(id) {
			return buildResult(model.MethodJSONLD, url, finalURL, id, []string{"jsonld_product"}, errs)
		}
	}

	// Tier 2: DOM meta signals.
	if id, signals, ok := identityFromDOM(doc); ok {
		return buildResult(model.MethodDOM, url, finalURL, id, signals, errs)
	}

	// Tier 3: minimal.
	id := Identity{Title: pageTitle(doc)}
	return buildResult(model.MethodMinimal, url, finalURL, id, nil, errs)
}

// exploitable reports whether a JSON-LD identity carries enough signal to
// win the tier: a title plus either brand/model or a hard identifier.
func exploitable(id Identity) bool {
	if id.Title == "" {
		return false
	}
	if id.Brand != "" || id.Model != "" {
		return true
	}
	return id.MPN != "" || id.GTIN != "" || id.SKU != ""
}

// identityFromDOM reads the fallback meta signals. Accepted only when a
// title or brand was found. Brand comes exclusively from a product:brand
// meta tag.
func identityFromDOM(doc *goquery.Document) (Identity, []string, bool) {
	var id Identity
	var signals []string

	if v, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(v) != "" {
		id.Title = strings.TrimSpace(v)
		signals = append(signals, "og:title")
	} else if v, ok := doc.Find(`meta[name="twitter:title"]`).Attr("content"); ok && strings.TrimSpace(v) != "" {
		id.Title = strings.TrimSpace(v)
		signals = append(signals, "twitter:title")
	} else if t := pageTitle(doc); t != "" {
		id.Title = t
		signals = append(signals, "title")
	}

	if v, ok := doc.Find(`meta[property="product:brand"]`).Attr("content"); ok && strings.TrimSpace(v) != "" {
		id.Brand = strings.TrimSpace(v)
		signals = append(signals, "product:brand")
	}

	if id.Title == "" && id.Brand == "" {
		return Identity{}, nil, false
	}
	return id, signals, true
}

func pageTitle(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func minimalResult(url, finalURL string, id Identity, errs []string) Result {
	r := buildResult(model.MethodMinimal, url, finalURL, id, nil, errs)
	r.Status = model.ExtractionIndeterminate
	return r
}

// buildResult assembles the payload, digest, hash, and missing-critical
// list shared by all tiers.
func buildResult(method model.ExtractionMethod, url, finalURL string, id Identity, signals, errs []string) Result {
	var missing []string
	if id.Title == "" {
		missing = append(missing, "title")
	}
	if id.Brand == "" {
		missing = append(missing, "brand")
	}

	status := model.ExtractionOK
	switch {
	case id == (Identity{}):
		status = model.ExtractionIndeterminate
	case len(missing) > 0:
		status = model.ExtractionPartial
	}

	digest := digestObject(id, signals)
	hash := canonicalHash(digest)

	extracted := map[string]any{
		"method":    string(method),
		"url":       url,
		"final_url": finalURL,
		"product":   identityMap(id),
		"digest":    digest,
	}

	return Result{
		Method:          method,
		Status:          status,
		Extracted:       extracted,
		Digest:          digest,
		DigestHash:      hash,
		Errors:          errs,
		MissingCritical: missing,
	}
}

// identityMap renders the identity with explicit nulls for absent fields
// so the persisted payload is shape-stable.
func identityMap(id Identity) map[string]any {
	m := map[string]any{
		"title": nil, "brand": nil, "model": nil,
		"mpn": nil, "gtin": nil, "sku": nil,
	}
	set := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	set("title", id.Title)
	set("brand", id.Brand)
	set("model", id.Model)
	set("mpn", id.MPN)
	set("gtin", id.GTIN)
	set("sku", id.SKU)
	return m
}
