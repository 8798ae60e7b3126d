// Package export renders the final classified markets as the JSON hand-off
// document and persists it locally or to object storage.
package export

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/alanyoungcy/marketenricher/internal/domain"
)

// Market is one exported record.
type Market struct {
	ID        string   `json:"id"`
	Question  string   `json:"question"`
	ShortName string   `json:"shortName"`
	Category  string   `json:"category"`
	Source    string   `json:"source"`
	Slug      string   `json:"slug,omitempty"`
	Outcomes  []string `json:"outcomes"`
	Volume    float64  `json:"volume"`
	Liquidity float64  `json:"liquidity"`
	StartDate string   `json:"startDate,omitempty"`
}

// Group is one exported event group.
type Group struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Slug    string   `json:"slug,omitempty"`
	Volume  float64  `json:"volume"`
	Markets []Market `json:"markets"`
}

// Metadata summarises the document.
type Metadata struct {
	GeneratedAt    time.Time      `json:"generatedAt"`
	TotalMarkets   int            `json:"totalMarkets"`
	TotalGroups    int            `json:"totalGroups"`
	TotalUngrouped int            `json:"totalUngrouped"`
	Categories     map[string]int `json:"categories"`
}

// Document is the stable hand-off contract for downstream importers.
type Document struct {
	Metadata  Metadata `json:"metadata"`
	Groups    []Group  `json:"groups"`
	Ungrouped []Market `json:"ungrouped"`
}

// Build assembles a Document. Input order is preserved, so identical input
// yields an identical document apart from GeneratedAt.
func Build(groups []domain.EnrichedGroup, ungrouped []domain.EnrichedMarket, generatedAt time.Time) Document {
	doc := Document{
		Metadata: Metadata{
			GeneratedAt: generatedAt.UTC(),
			Categories:  make(map[string]int),
		},
		Groups:    make([]Group, 0, len(groups)),
		Ungrouped: make([]Market, 0, len(ungrouped)),
	}

	for _, g := range groups {
		eg := Group{ID: g.ID, Title: g.Title, Slug: g.Slug, Markets: make([]Market, 0, len(g.Markets))}
		for _, m := range g.Markets {
			eg.Markets = append(eg.Markets, toMarket(m))
			eg.Volume += m.Volume
			doc.Metadata.Categories[string(m.Category)]++
		}
		doc.Metadata.TotalMarkets += len(g.Markets)
		doc.Groups = append(doc.Groups, eg)
	}
	for _, m := range ungrouped {
		doc.Ungrouped = append(doc.Ungrouped, toMarket(m))
		doc.Metadata.Categories[string(m.Category)]++
	}

	doc.Metadata.TotalGroups = len(doc.Groups)
	doc.Metadata.TotalUngrouped = len(doc.Ungrouped)
	doc.Metadata.TotalMarkets += len(doc.Ungrouped)
	return doc
}

func toMarket(m domain.EnrichedMarket) Market {
	out := Market{
		ID:        m.ID,
		Question:  m.Question,
		ShortName: m.ShortName,
		Category:  string(m.Category),
		Source:    string(m.Source),
		Slug:      m.Slug,
		Outcomes:  m.Outcomes,
		Volume:    m.Volume,
		Liquidity: m.Liquidity,
	}
	if out.Outcomes == nil {
		out.Outcomes = []string{}
	}
	if !m.StartDate.IsZero() {
		out.StartDate = m.StartDate.UTC().Format(time.RFC3339)
	}
	return out
}

// Encode renders the document as indented JSON with a trailing newline.
// encoding/json sorts map keys, keeping category counts stable.
func (d Document) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
