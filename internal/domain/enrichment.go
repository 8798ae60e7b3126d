package domain

// Source records how an EnrichmentResult was obtained.
type Source string

const (
	SourceRule     Source = "rule"
	SourceLLM      Source = "llm"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

// EnrichmentResult is the per-market output of the classification step. In
// final output ShortName is non-empty and Category is a member of the closed
// set; partially filled values only exist transiently and in the cache.
type EnrichmentResult struct {
	Category  Category `json:"category"`
	ShortName string   `json:"shortName"`
	Source    Source   `json:"source,omitempty"`
}

// HasCategory reports whether the result carries a known category.
func (r EnrichmentResult) HasCategory() bool {
	return r.Category.Known()
}

// HasShortName reports whether the result carries a display name.
func (r EnrichmentResult) HasShortName() bool {
	return r.ShortName != ""
}

// Complete reports whether both fields are present.
func (r EnrichmentResult) Complete() bool {
	return r.HasCategory() && r.HasShortName()
}

// Bucket is the classification route a market takes, decided solely by
// which fields the deterministic classifier produced.
type Bucket string

const (
	BucketDeterministic  Bucket = "fully-deterministic"
	BucketNeedsCategory  Bucket = "needs-category"
	BucketNeedsShortName Bucket = "needs-shortname"
	BucketNeedsBoth      Bucket = "needs-both"
)

// BucketFor maps classifier presence flags onto a bucket.
func BucketFor(hasCategory, hasShortName bool) Bucket {
	switch {
	case hasCategory && hasShortName:
		return BucketDeterministic
	case hasShortName:
		return BucketNeedsCategory
	case hasCategory:
		return BucketNeedsShortName
	default:
		return BucketNeedsBoth
	}
}
