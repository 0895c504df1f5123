package model

import (
	"fmt"
	"strconv"
)

// UnknownIdentity is the sentinel used when a brand or model cannot be
// determined. Identity fields are never empty so string comparison
// downstream is total.
const UnknownIdentity = "UNKNOWN"

// ProductDigest is the normalized identity of one product observation.
type ProductDigest struct {
	Brand      string         `json:"brand"`
	Model      string         `json:"model"`
	SourceURL  string         `json:"source_url,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Attr returns the string form of an attribute value, or "" when absent
// or nil.
func (d ProductDigest) Attr(key string) string {
	if d.Attributes == nil {
		return ""
	}
	v, ok := d.Attributes[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	default:
		return stringify(v)
	}
}

// stringify renders scalar attribute values the same way regardless of
// the JSON decoder that produced them (float64 vs int, bool, string).
func stringify(v any) string {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Comparable is a candidate product judged comparable to the source,
// with a score and rationale.
type Comparable struct {
	Product            ProductDigest `json:"product"`
	ComparabilityScore float64       `json:"comparability_score"`
	ReasonsShort       []string      `json:"reasons_short"`
	SignalsUsed        []string      `json:"signals_used"`
	MissingCritical    []string      `json:"missing_critical"`
}

// Offer is a purchasable listing for a comparable product.
type Offer struct {
	OfferURL      string         `json:"offer_url"`
	Seller        string         `json:"seller,omitempty"`
	PriceAmount   *float64       `json:"price_amount,omitempty"`
	PriceCurrency string         `json:"price_currency,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`
}

// FairnessMetrics summarizes how evenly the comparable set covers the
// candidate pool.
type FairnessMetrics struct {
	ComparabilityScore float64  `json:"comparability_score"`
	CoverageScore      float64  `json:"coverage_score"`
	DiversityScore     float64  `json:"diversity_score"`
	Notes              []string `json:"notes"`
}
