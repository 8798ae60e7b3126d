package enrich

import (
	"encoding/json"

	"github.com/alanyoungcy/marketenricher/internal/classify"
	"github.com/alanyoungcy/marketenricher/internal/domain"
)

// pending is a market awaiting LLM classification together with the rule
// verdict that routed it.
type pending struct {
	market  domain.MarketRecord
	verdict classify.Verdict
}

// bucketSpec parametrises classifyBucket for one LLM-routed bucket.
type bucketSpec struct {
	bucket      domain.Bucket
	instruction string
	layout      Layout
	project     func(p pending) any
	merge       func(v classify.Verdict, e Entry) domain.EnrichmentResult
}

type categoryPayload struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	Slug       string `json:"slug,omitempty"`
	EventTitle string `json:"eventTitle,omitempty"`
}

type shortNamePayload struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Outcomes []string `json:"outcomes,omitempty"`
}

type bothPayload struct {
	ID         string   `json:"id"`
	Question   string   `json:"question"`
	Slug       string   `json:"slug,omitempty"`
	EventTitle string   `json:"eventTitle,omitempty"`
	Outcomes   []string `json:"outcomes,omitempty"`
}

// bucketSpecs lists the LLM buckets in dispatch order.
var bucketSpecs = []bucketSpec{
	{
		bucket:      domain.BucketNeedsCategory,
		instruction: categoryInstruction,
		layout:      Layout{Category: true},
		project: func(p pending) any {
			return categoryPayload{ID: p.market.ID, Question: p.market.Question, Slug: p.market.Slug, EventTitle: p.market.EventTitle}
		},
		merge: func(v classify.Verdict, e Entry) domain.EnrichmentResult {
			return domain.EnrichmentResult{Category: e.Category, ShortName: v.ShortName, Source: domain.SourceLLM}
		},
	},
	{
		bucket:      domain.BucketNeedsShortName,
		instruction: shortNameInstruction,
		layout:      Layout{ShortName: true},
		project: func(p pending) any {
			return shortNamePayload{ID: p.market.ID, Question: p.market.Question, Outcomes: p.market.Outcomes}
		},
		merge: func(v classify.Verdict, e Entry) domain.EnrichmentResult {
			return domain.EnrichmentResult{Category: v.Category, ShortName: e.ShortName, Source: domain.SourceLLM}
		},
	},
	{
		bucket:      domain.BucketNeedsBoth,
		instruction: bothInstruction,
		layout:      Layout{Category: true, ShortName: true},
		project: func(p pending) any {
			return bothPayload{
				ID:         p.market.ID,
				Question:   p.market.Question,
				Slug:       p.market.Slug,
				EventTitle: p.market.EventTitle,
				Outcomes:   p.market.Outcomes,
			}
		},
		merge: func(_ classify.Verdict, e Entry) domain.EnrichmentResult {
			return domain.EnrichmentResult{Category: e.Category, ShortName: e.ShortName, Source: domain.SourceLLM}
		},
	},
}

// payload renders a batch as a compact JSON array of the bucket's
// projection.
func (s bucketSpec) payload(batch []pending) (string, error) {
	rows := make([]any, len(batch))
	for i, p := range batch {
		rows[i] = s.project(p)
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
