package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/marketenricher/internal/domain"
)

// flexFloat unmarshals from a JSON number or a numeric string. Gamma sends
// volume and liquidity either way depending on the endpoint.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// flexStrings unmarshals from a JSON array of strings or from a string that
// itself holds a JSON-encoded array, e.g. "[\"Yes\",\"No\"]".
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		*f = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*f = nil
		return nil
	}
	if err := json.Unmarshal([]byte(s), &arr); err != nil {
		return err
	}
	*f = arr
	return nil
}

// APIEvent is the parent event embedded in a Gamma market.
type APIEvent struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Slug       string `json:"slug"`
	SeriesSlug string `json:"seriesSlug"`
}

// APIMarket represents a market as returned by the Gamma /markets endpoint.
type APIMarket struct {
	ID          string      `json:"id"`
	Question    string      `json:"question"`
	Description string      `json:"description"`
	Slug        string      `json:"slug"`
	Outcomes    flexStrings `json:"outcomes"`
	Volume      flexFloat   `json:"volume"`
	Liquidity   flexFloat   `json:"liquidity"`
	StartDate   string      `json:"startDate"`
	UpdatedAt   string      `json:"updatedAt"`
	Closed      bool        `json:"closed"`
	Events      []APIEvent  `json:"events"`
}

// ToDomainMarket converts an APIMarket to a domain.MarketRecord. Negative
// volume or liquidity is clamped to zero.
func (m *APIMarket) ToDomainMarket() domain.MarketRecord {
	dm := domain.MarketRecord{
		ID:          m.ID,
		Question:    strings.TrimSpace(m.Question),
		Description: m.Description,
		Slug:        m.Slug,
		Outcomes:    []string(m.Outcomes),
		Volume:      max(float64(m.Volume), 0),
		Liquidity:   max(float64(m.Liquidity), 0),
	}
	if len(m.Events) > 0 {
		ev := m.Events[0]
		dm.EventID = ev.ID
		dm.EventTitle = ev.Title
		dm.EventSlug = ev.Slug
		dm.SeriesSlug = ev.SeriesSlug
	}
	if t, err := time.Parse(time.RFC3339, m.StartDate); err == nil {
		dm.StartDate = t
	}
	if t, err := time.Parse(time.RFC3339, m.UpdatedAt); err == nil {
		dm.UpdatedAt = t
	}
	return dm
}
