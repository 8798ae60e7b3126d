package domain

import "time"

// MarketRecord is a single listing as delivered by the market source. It is
// read-only once produced.
type MarketRecord struct {
	ID          string
	Question    string
	Description string
	Slug        string
	EventID     string
	EventTitle  string
	EventSlug   string
	SeriesSlug  string
	Outcomes    []string // [affirmative, negative] for binary markets
	Volume      float64
	Liquidity   float64
	StartDate   time.Time
	UpdatedAt   time.Time
}

// IsBinary reports whether the market has exactly two outcome labels.
func (m MarketRecord) IsBinary() bool {
	return len(m.Outcomes) == 2
}

// Grouped reports whether the market carries an event-group tag.
func (m MarketRecord) Grouped() bool {
	return m.EventID != ""
}

// Ungroup returns a copy of m with its event-group membership cleared. The
// event title and slugs stay as classification context.
func (m MarketRecord) Ungroup() MarketRecord {
	m.EventID = ""
	return m
}

// EventGroup bundles the markets of one topical event.
type EventGroup struct {
	ID      string
	Title   string
	Slug    string
	Markets []MarketRecord
}

// Volume is the summed trading volume of the group's markets.
func (g EventGroup) Volume() float64 {
	var v float64
	for _, m := range g.Markets {
		v += m.Volume
	}
	return v
}

// EnrichedMarket is a market together with its enrichment.
type EnrichedMarket struct {
	MarketRecord
	EnrichmentResult
}

// EnrichedGroup is an event group whose members have been enriched.
type EnrichedGroup struct {
	ID      string
	Title   string
	Slug    string
	Markets []EnrichedMarket
}
