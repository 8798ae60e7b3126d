package filter

import (
	"regexp"
	"strings"

	"github.com/alanyoungcy/marketenricher/internal/domain"
)

// DefaultAlwaysInclude lists topics that are always relevant regardless of
// volume or category: central-bank decisions and major indices.
var DefaultAlwaysInclude = []string{
	"fed", "fomc", "ecb", "boe", "boj",
	"rate cut", "rate hike", "interest rate",
	"s&p 500", "nasdaq", "dow jones", "spx",
}

// Allowlist matches text against a fixed set of case-insensitive keywords
// on word boundaries. The zero value matches nothing.
type Allowlist struct {
	re *regexp.Regexp
}

// NewAllowlist compiles patterns. Blank patterns are ignored.
func NewAllowlist(patterns []string) *Allowlist {
	quoted := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			quoted = append(quoted, regexp.QuoteMeta(p))
		}
	}
	if len(quoted) == 0 {
		return &Allowlist{}
	}
	return &Allowlist{
		re: regexp.MustCompile(`(?:^|[^a-z0-9])(?:` + strings.Join(quoted, "|") + `)(?:$|[^a-z0-9])`),
	}
}

// Match reports whether any keyword occurs in text.
func (a *Allowlist) Match(text string) bool {
	if a == nil || a.re == nil {
		return false
	}
	return a.re.MatchString(strings.ToLower(text))
}

func (a *Allowlist) matchMarket(m domain.MarketRecord) bool {
	return a.Match(m.Question + " " + strings.ReplaceAll(m.Slug, "-", " ") + " " + m.EventTitle)
}

// BinaryOutcome keeps markets with exactly two outcome labels.
func BinaryOutcome() Filter[domain.MarketRecord] {
	return New("binary-outcome", "market has exactly two outcomes",
		domain.MarketRecord.IsBinary)
}

// MinVolume keeps markets whose volume is at least threshold.
func MinVolume(threshold float64) Filter[domain.MarketRecord] {
	return New("min-volume", "market volume meets the threshold",
		func(m domain.MarketRecord) bool { return m.Volume >= threshold })
}

// AlwaysInclude keeps markets whose text matches the allowlist.
func AlwaysInclude(a *Allowlist) Filter[domain.MarketRecord] {
	return New("always-include", "market matches an always-include pattern", a.matchMarket)
}

// MarketInclusion is the stage-2 rule for ungrouped markets.
func MarketInclusion(threshold float64, a *Allowlist) Filter[domain.MarketRecord] {
	return Union("market-inclusion", "volume threshold met or always-include match",
		MinVolume(threshold), AlwaysInclude(a))
}

// GroupMinVolume keeps groups where any member meets the volume threshold.
func GroupMinVolume(threshold float64) Filter[domain.EventGroup] {
	return New("group-min-volume", "a member market meets the volume threshold",
		func(g domain.EventGroup) bool {
			for _, m := range g.Markets {
				if m.Volume >= threshold {
					return true
				}
			}
			return false
		})
}

// GroupAlwaysInclude keeps groups whose title or any member matches the
// allowlist.
func GroupAlwaysInclude(a *Allowlist) Filter[domain.EventGroup] {
	return New("group-always-include", "group matches an always-include pattern",
		func(g domain.EventGroup) bool {
			if a.Match(g.Title) {
				return true
			}
			for _, m := range g.Markets {
				if a.matchMarket(m) {
					return true
				}
			}
			return false
		})
}

// GroupInclusion is the stage-2 rule for event groups.
func GroupInclusion(threshold float64, a *Allowlist) Filter[domain.EventGroup] {
	return Union("group-inclusion", "group volume threshold met or always-include match",
		GroupMinVolume(threshold), GroupAlwaysInclude(a))
}

// NonRestrictedCategory keeps enriched markets outside the restricted
// categories.
func NonRestrictedCategory(restricted []domain.Category) Filter[domain.EnrichedMarket] {
	set := make(map[domain.Category]bool, len(restricted))
	for _, c := range restricted {
		set[c] = true
	}
	return New("non-restricted-category", "market category is publishable",
		func(m domain.EnrichedMarket) bool { return !set[m.Category] })
}

// EnrichedAlwaysInclude keeps enriched markets that match the allowlist.
func EnrichedAlwaysInclude(a *Allowlist) Filter[domain.EnrichedMarket] {
	return New("always-include", "market matches an always-include pattern",
		func(m domain.EnrichedMarket) bool { return a.matchMarket(m.MarketRecord) })
}

// SubmissionInclusion is the stage-3 rule applied after enrichment.
func SubmissionInclusion(restricted []domain.Category, a *Allowlist) Filter[domain.EnrichedMarket] {
	return Union("submission-inclusion", "publishable category or always-include match",
		NonRestrictedCategory(restricted), EnrichedAlwaysInclude(a))
}
