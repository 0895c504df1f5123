package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// collectJSONLD parses every <script type="application/ld+json"> block and
// flattens the parsed entries into nodes, recursing into @graph. Blocks
// that fail to parse are recorded as errors and skipped.
func collectJSONLD(doc *goquery.Document) ([]map[string]any, []string) {
	var nodes []map[string]any
	var errs []string

	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			errs = append(errs, fmt.Sprintf("jsonld_parse[%d]: %v", i, err))
			return
		}
		nodes = append(nodes, flattenEntries(parsed)...)
	})

	return nodes, errs
}

// flattenEntries normalizes a parsed JSON-LD value into a flat node list.
// Top-level arrays are expanded; entries carrying @graph contribute the
// graph members instead of themselves.
func flattenEntries(parsed any) []map[string]any {
	var out []map[string]any

	var add func(v any)
	add = func(v any) {
		switch t := v.(type) {
		case []any:
			for _, item := range t {
				add(item)
			}
		case map[string]any:
			if graph, ok := t["@graph"].([]any); ok {
				for _, node := range graph {
					if m, ok := node.(map[string]any); ok {
						out = append(out, m)
					}
				}
				return
			}
			out = append(out, t)
		}
	}
	add(parsed)
	return out
}

// productNode returns the first node typed Product.
func productNode(nodes []map[string]any) (map[string]any, bool) {
	for _, node := range nodes {
		for _, typ := range nodeTypes(node) {
			if typ == "product" {
				return node, true
			}
		}
	}
	return nil, false
}

func nodeTypes(node map[string]any) []string {
	switch t := node["@type"].(type) {
	case string:
		return []string{strings.ToLower(t)}
	case []any:
		types := make([]string, 0, len(t))
		for _, v := range t {
			types = append(types, strings.ToLower(fmt.Sprint(v)))
		}
		return types
	}
	return nil
}

// identityFromJSONLD reads the identity fields off a Product node. Brand
// may be a plain string or a nested Brand object with a name.
func identityFromJSONLD(node map[string]any) Identity {
	var id Identity

	id.Title = stringField(node, "name")
	switch b := node["brand"].(type) {
	case string:
		id.Brand = strings.TrimSpace(b)
	case map[string]any:
		id.Brand = stringField(b, "name")
	}
	id.Model = stringField(node, "model")
	id.MPN = stringField(node, "mpn")
	id.SKU = stringField(node, "sku")
	for _, key := range []string{"gtin", "gtin8", "gtin12", "gtin13", "gtin14"} {
		if v := stringField(node, key); v != "" {
			id.GTIN = v
			break
		}
	}
	return id
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
