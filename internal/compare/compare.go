// Package compare implements the deterministic comparability engine:
// hard filtering, scoring, diversity penalties, and ranking of candidate
// products against a source product.
package compare

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/sells-group/compare-agent/internal/model"
)

// ScoredCandidate is the working record for one surviving candidate.
// Created per evaluation, discarded after ranking.
type ScoredCandidate struct {
	Candidate          model.ProductDigest
	ComparabilityScore float64
	CoverageScore      float64
	IdentityStrength   float64
	Domain             string
	Reasons            []string
	Signals            []string
	DiversityPenalty   float64
}

// ExcludedCandidate records a candidate removed by the hard filter.
type ExcludedCandidate struct {
	Candidate model.ProductDigest
	Reason    string
}

// Evaluate hard-filters, scores, penalizes, and ranks candidates against
// the source. Pure and order-independent in its input: any permutation of
// candidates yields the identical ranked output.
func Evaluate(source model.ProductDigest, candidates []model.ProductDigest) ([]model.Comparable, model.FairnessMetrics, string) {
	var excluded []ExcludedCandidate
	var scored []ScoredCandidate

	for _, candidate := range candidates {
		if reason := hardFilterReason(source, candidate); reason != "" {
			excluded = append(excluded, ExcludedCandidate{Candidate: candidate, Reason: reason})
			continue
		}
		scored = append(scored, scoreCandidate(source, candidate))
	}

	scored = applyDiversityPenalty(scored)
	rankCandidates(scored)

	comparables := make([]model.Comparable, 0, len(scored))
	for _, c := range scored {
		comparables = append(comparables, model.Comparable{
			Product:            c.Candidate,
			ComparabilityScore: c.ComparabilityScore,
			ReasonsShort:       c.Reasons,
			SignalsUsed:        c.Signals,
			MissingCritical:    []string{},
		})
	}

	fairness := fairnessMetrics(scored, excluded)
	summary := fmt.Sprintf("excluded=%d reasons=%s", len(excluded), formatReasonCounts(excluded))
	return comparables, fairness, summary
}

// hardFilterReason returns the first categorical exclusion that applies,
// in priority order, or "" when the candidate survives.
func hardFilterReason(source, candidate model.ProductDigest) string {
	srcCategory := Normalize(source.Attr("category"))
	candCategory := Normalize(candidate.Attr("category"))
	if srcCategory != "" && candCategory != "" && srcCategory != candCategory {
		return "category_mismatch"
	}

	srcType := Normalize(source.Attr("type"))
	candType := Normalize(candidate.Attr("type"))
	if srcType != "" && candType != "" && srcType != candType {
		return "type_mismatch"
	}

	srcModel := Normalize(source.Model)
	candModel := Normalize(candidate.Model)
	srcBrand := Normalize(source.Brand)
	candBrand := Normalize(candidate.Brand)
	if srcModel != "" && candModel != "" && srcModel == candModel {
		if srcBrand != "" && candBrand != "" && srcBrand != candBrand {
			return "brand_model_conflict"
		}
	}

	return ""
}

func scoreCandidate(source, candidate model.ProductDigest) ScoredCandidate {
	brandMatch := 0.0
	if Normalize(source.Brand) == Normalize(candidate.Brand) {
		brandMatch = 1.0
	}
	modelSimilarity := jaccard(tokens(source.Model), tokens(candidate.Model))
	identityStrength := round4(0.6*brandMatch + 0.4*modelSimilarity)

	coverageScore := round4(attributeMatchScore(source, candidate))
	categoryScore := categoryTypeScore(source, candidate)

	baseScore := 0.5*identityStrength + 0.3*coverageScore + 0.2*categoryScore
	penalty := 0.0
	if brandMatch == 0 && modelSimilarity < 0.3 {
		penalty = 0.15
	}
	comparabilityScore := clip01(round4(baseScore - penalty))

	reasons := []string{
		fmt.Sprintf("identity_strength=%v", identityStrength),
		fmt.Sprintf("coverage_score=%v", coverageScore),
		fmt.Sprintf("category_type_score=%v", round4(categoryScore)),
	}
	if penalty > 0 {
		reasons = append(reasons, fmt.Sprintf("penalty_brand_model=%v", penalty))
	}

	return ScoredCandidate{
		Candidate:          candidate,
		ComparabilityScore: comparabilityScore,
		CoverageScore:      coverageScore,
		IdentityStrength:   identityStrength,
		Domain:             registrableDomain(candidate.SourceURL),
		Reasons:            reasons,
		Signals: []string{
			"brand_match",
			"model_similarity",
			"attribute_overlap",
			"category_match",
			"type_match",
		},
	}
}

// attributeMatchScore is the fraction of the source's non-null attributes
// whose normalized value matches the candidate's value for the same key.
func attributeMatchScore(source, candidate model.ProductDigest) float64 {
	total := 0
	matches := 0
	for key, value := range source.Attributes {
		if value == nil {
			continue
		}
		total++
		candValue := candidate.Attr(key)
		if candValue == "" {
			continue
		}
		if Normalize(source.Attr(key)) == Normalize(candValue) {
			matches++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matches) / float64(total)
}

// categoryTypeScore averages agreement over the category and type
// attributes: 1 when both sides agree, 0 when both disagree, 0.5 when
// either side is silent.
func categoryTypeScore(source, candidate model.ProductDigest) float64 {
	sum := 0.0
	for _, key := range []string{"category", "type"} {
		srcVal := Normalize(source.Attr(key))
		candVal := Normalize(candidate.Attr(key))
		switch {
		case srcVal == "" || candVal == "":
			sum += 0.5
		case srcVal == candVal:
			sum += 1.0
		}
	}
	return sum / 2
}

// applyDiversityPenalty reduces the score of candidates clustered on the
// same registrable domain: min(0.2, 0.05*(N-1)) per member of a domain
// seen N>1 times.
func applyDiversityPenalty(candidates []ScoredCandidate) []ScoredCandidate {
	domainCounts := make(map[string]int)
	for _, c := range candidates {
		if c.Domain != "" {
			domainCounts[c.Domain]++
		}
	}

	adjusted := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		penalty := 0.0
		if c.Domain != "" && domainCounts[c.Domain] > 1 {
			penalty = math.Min(0.2, 0.05*float64(domainCounts[c.Domain]-1))
		}
		c.ComparabilityScore = clip01(round4(c.ComparabilityScore - penalty))
		c.DiversityPenalty = penalty
		if penalty > 0 {
			c.Reasons = append(c.Reasons, fmt.Sprintf("diversity_penalty=%v", round4(penalty)))
		}
		c.Signals = append(c.Signals, "domain_diversity")
		adjusted = append(adjusted, c)
	}
	return adjusted
}

// rankCandidates sorts in place: descending score, identity strength, and
// coverage, then ascending normalized brand and model. The tie-breakers
// make the order total, so output is reproducible for equal inputs.
func rankCandidates(candidates []ScoredCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.ComparabilityScore != b.ComparabilityScore {
			return a.ComparabilityScore > b.ComparabilityScore
		}
		if a.IdentityStrength != b.IdentityStrength {
			return a.IdentityStrength > b.IdentityStrength
		}
		if a.CoverageScore != b.CoverageScore {
			return a.CoverageScore > b.CoverageScore
		}
		aBrand, bBrand := Normalize(a.Candidate.Brand), Normalize(b.Candidate.Brand)
		if aBrand != bBrand {
			return aBrand < bBrand
		}
		return Normalize(a.Candidate.Model) < Normalize(b.Candidate.Model)
	})
}

func fairnessMetrics(scored []ScoredCandidate, excluded []ExcludedCandidate) model.FairnessMetrics {
	if len(scored) == 0 {
		return model.FairnessMetrics{Notes: []string{"no_comparables"}}
	}

	var sumComparability, sumCoverage, sumIdentity float64
	domains := make(map[string]struct{})
	for _, c := range scored {
		sumComparability += c.ComparabilityScore
		sumCoverage += c.CoverageScore
		sumIdentity += c.IdentityStrength
		if c.Domain != "" {
			domains[c.Domain] = struct{}{}
		}
	}
	n := float64(len(scored))

	notes := []string{
		fmt.Sprintf("identity_strength_avg=%v", round4(sumIdentity/n)),
		"diversity_penalty_cap=0.2",
	}
	if len(excluded) > 0 {
		notes = append(notes, fmt.Sprintf("excluded=%d:%s", len(excluded), formatReasonCounts(excluded)))
	}

	return model.FairnessMetrics{
		ComparabilityScore: round4(sumComparability / n),
		CoverageScore:      round4(sumCoverage / n),
		DiversityScore:     round4(float64(len(domains)) / n),
		Notes:              notes,
	}
}

// formatReasonCounts renders exclusion reason counts in a stable order.
func formatReasonCounts(excluded []ExcludedCandidate) string {
	counts := make(map[string]int)
	for _, e := range excluded {
		counts[e.Reason]++
	}
	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	parts := make([]string, 0, len(reasons))
	for _, reason := range reasons {
		parts = append(parts, fmt.Sprintf("%s=%d", reason, counts[reason]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// registrableDomain extracts the eTLD+1 of a candidate URL for diversity
// grouping; falls back to the bare host when the public suffix list has
// no answer.
func registrableDomain(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	if domain, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return domain
	}
	return host
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokens(value string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range strings.Fields(Normalize(value)) {
		set[token] = struct{}{}
	}
	return set
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func clip01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
