// Package classify holds the deterministic rule engine that assigns
// categories and display names to markets from their text alone.
package classify

import "github.com/alanyoungcy/marketenricher/internal/domain"

// Verdict is the combined output of both classifiers for one market.
type Verdict struct {
	Category  domain.Category
	ShortName string
	HasName   bool
}

// Classify runs both classifiers over m.
func Classify(m domain.MarketRecord) Verdict {
	name, ok := ClassifyShortName(m)
	return Verdict{
		Category:  ClassifyCategory(m),
		ShortName: name,
		HasName:   ok,
	}
}

// HasCategory reports whether a category rule matched.
func (v Verdict) HasCategory() bool {
	return v.Category.Known()
}

// Bucket returns the classification route implied by the verdict.
func (v Verdict) Bucket() domain.Bucket {
	return domain.BucketFor(v.HasCategory(), v.HasName)
}

// Fallback is the deterministic best-effort result for m: the rule category
// or the default one, and the rule name or the raw question.
func (v Verdict) Fallback(m domain.MarketRecord) domain.EnrichmentResult {
	name := v.ShortName
	if !v.HasName || name == "" {
		name = m.Question
	}
	if name == "" {
		name = m.ID
	}
	return domain.EnrichmentResult{
		Category:  v.Category.OrDefault(),
		ShortName: name,
		Source:    domain.SourceFallback,
	}
}

// Resolved returns the rule-only result for a fully deterministic verdict.
func (v Verdict) Resolved() domain.EnrichmentResult {
	return domain.EnrichmentResult{
		Category:  v.Category,
		ShortName: v.ShortName,
		Source:    domain.SourceRule,
	}
}
