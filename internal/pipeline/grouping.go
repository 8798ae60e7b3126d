package pipeline

import "github.com/alanyoungcy/marketenricher/internal/domain"

// GroupByEvent splits markets into event groups and ungrouped records. An
// event forms a group only when at least two markets share it; a lone member
// is returned ungrouped with its event tag cleared. Groups appear in the order
// their first member was seen and members keep their input order.
func GroupByEvent(markets []domain.MarketRecord) ([]domain.EventGroup, []domain.MarketRecord) {
	counts := make(map[string]int)
	for _, m := range markets {
		if m.Grouped() {
			counts[m.EventID]++
		}
	}

	var (
		groups    []domain.EventGroup
		ungrouped []domain.MarketRecord
		index     = make(map[string]int)
	)
	for _, m := range markets {
		if !m.Grouped() || counts[m.EventID] < 2 {
			ungrouped = append(ungrouped, m.Ungroup())
			continue
		}
		i, ok := index[m.EventID]
		if !ok {
			i = len(groups)
			index[m.EventID] = i
			groups = append(groups, domain.EventGroup{
				ID:    m.EventID,
				Title: m.EventTitle,
				Slug:  m.EventSlug,
			})
		}
		groups[i].Markets = append(groups[i].Markets, m)
	}
	return groups, ungrouped
}

// CollapseSingletons turns groups left with a single member into ungrouped
// records, keeping their enrichment, and drops empty groups. Collapsed records
// are appended after the existing ungrouped ones in group order.
func CollapseSingletons(groups []domain.EnrichedGroup, ungrouped []domain.EnrichedMarket) ([]domain.EnrichedGroup, []domain.EnrichedMarket) {
	kept := make([]domain.EnrichedGroup, 0, len(groups))
	for _, g := range groups {
		switch len(g.Markets) {
		case 0:
		case 1:
			m := g.Markets[0]
			m.MarketRecord = m.Ungroup()
			ungrouped = append(ungrouped, m)
		default:
			kept = append(kept, g)
		}
	}
	return kept, ungrouped
}
