package enrich

import (
	"regexp"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/alanyoungcy/marketenricher/internal/domain"
)

// FuzzyThreshold is the exclusive upper bound on the edit distance between a
// response ID and a submitted ID for the two to be matched.
const FuzzyThreshold = 5

// Layout describes which fields follow the ID on each response line.
type Layout struct {
	Category  bool
	ShortName bool
}

// Arity is the number of comma-separated fields on a well-formed line.
func (l Layout) Arity() int {
	n := 1
	if l.Category {
		n++
	}
	if l.ShortName {
		n++
	}
	return n
}

// Entry is one reconciled response line.
type Entry struct {
	ID        string
	Category  domain.Category
	ShortName string
	Fuzzy     bool
}

// Reconciliation is the outcome of matching a response against the IDs
// submitted in its batch.
type Reconciliation struct {
	// Entries are ordered as the IDs were submitted.
	Entries []Entry
	// Missing lists submitted IDs no line could be matched to.
	Missing []string

	FuzzyMatches      int
	MalformedLines    int
	CoercedCategories int
	DuplicateLines    int
}

type tuple struct {
	id     string
	fields []string
}

var listMarkerRe = regexp.MustCompile(`^(?:[-*•]\s+|\d+[.)]\s+)`)

// Reconcile parses a free-text response into id/field tuples and matches
// them to ids: exact matches first, then the closest still-unmatched ID by
// edit distance below FuzzyThreshold. IDs left over are reported missing.
func Reconcile(response string, ids []string, layout Layout) Reconciliation {
	var rec Reconciliation
	tuples := parseLines(response, layout, &rec)

	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	found := make(map[string]Entry, len(ids))

	var unmatched []tuple
	for _, t := range tuples {
		if !known[t.id] {
			unmatched = append(unmatched, t)
			continue
		}
		if _, dup := found[t.id]; dup {
			rec.DuplicateLines++
			continue
		}
		found[t.id] = entryFrom(t.id, t, layout, false, &rec)
	}

	for _, t := range unmatched {
		best, bestDist := "", FuzzyThreshold
		for _, id := range ids {
			if _, ok := found[id]; ok {
				continue
			}
			if d := levenshtein.Distance(t.id, id, nil); d < bestDist {
				best, bestDist = id, d
			}
		}
		if best == "" {
			continue
		}
		found[best] = entryFrom(best, t, layout, true, &rec)
		rec.FuzzyMatches++
	}

	for _, id := range ids {
		if e, ok := found[id]; ok {
			rec.Entries = append(rec.Entries, e)
		} else {
			rec.Missing = append(rec.Missing, id)
		}
	}
	return rec
}

func entryFrom(id string, t tuple, layout Layout, fuzzy bool, rec *Reconciliation) Entry {
	e := Entry{ID: id, Fuzzy: fuzzy}
	i := 0
	if layout.Category {
		e.Category = parseCategoryField(t.fields[i], rec)
		i++
	}
	if layout.ShortName {
		e.ShortName = t.fields[i]
	}
	return e
}

func parseCategoryField(s string, rec *Reconciliation) domain.Category {
	c, ok := domain.ParseCategory(s)
	if !ok {
		rec.CoercedCategories++
		return domain.DefaultCategory
	}
	return c
}

// parseLines applies the line grammar: skip blank lines, code fences,
// comments and header rows, strip list markers, then split into exactly
// layout.Arity() fields with the last field keeping any further commas.
func parseLines(response string, layout Layout, rec *Reconciliation) []tuple {
	arity := layout.Arity()
	var out []tuple
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") || strings.HasPrefix(line, "#") {
			continue
		}
		line = listMarkerRe.ReplaceAllString(line, "")

		parts := strings.SplitN(line, ",", arity)
		for i := range parts {
			parts[i] = trimField(parts[i])
		}
		if isHeader(parts[0]) {
			continue
		}
		if len(parts) < arity || parts[0] == "" || (layout.ShortName && parts[arity-1] == "") {
			rec.MalformedLines++
			continue
		}
		out = append(out, tuple{id: parts[0], fields: parts[1:]})
	}
	return out
}

func trimField(s string) string {
	return strings.Trim(strings.TrimSpace(s), "\"'`")
}

func isHeader(first string) bool {
	switch strings.ToLower(first) {
	case "id", "market_id", "marketid", "market id":
		return true
	}
	return false
}
