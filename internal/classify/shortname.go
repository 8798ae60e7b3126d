package classify

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/marketenricher/internal/domain"
)

// archetype recognises one market shape and renders its display name.
type archetype struct {
	name  string
	match func(question string, outcomes []string, ab abbreviator) (string, bool)
}

// archetypes are tried in order; the first match wins.
var archetypes = []archetype{
	{name: "player-prop", match: matchPlayerProp},
	{name: "over-under", match: matchOverUnder},
	{name: "spread", match: matchSpread},
	{name: "handicap", match: matchHandicap},
	{name: "head-to-head", match: matchHeadToHead},
	{name: "price-threshold", match: matchPriceThreshold},
	{name: "up-down", match: matchUpDown},
	{name: "rate-decision", match: matchRateDecision},
}

var (
	vsRe           = regexp.MustCompile(`(?i)\s+vs\.?\s+`)
	playerPropRe   = regexp.MustCompile(`(?i)^(.+?):\s*(.+?)\s+o/u\s+(\d+(?:\.\d+)?)$`)
	overUnderRe    = regexp.MustCompile(`(?i)^(.+?)\s+vs\.?\s+(.+?):\s*o/u\s+(\d+(?:\.\d+)?)$`)
	spreadRe       = regexp.MustCompile(`(?i)^spread:\s*(.+?)\s*\(([+-]?\d+(?:\.\d+)?)\)$`)
	handicapRe     = regexp.MustCompile(`(?i)^(?:handicap:\s*)?(.+?)\s*\(([+-]\d+(?:\.\d+)?)\)(?:\s+handicap)?$`)
	priceRe        = regexp.MustCompile(`(?i)^will\s+(?:the\s+price\s+of\s+)?(.+?)\s+(reach|hit|be above|be over|go above|close above|dip to|fall to|drop to|be below|go below|close below)\s+\$([\d,]+(?:\.\d+)?)\s*(k|m|b|thousand|million|billion)?(?:\s+(?:on|by|in|before|at)\s+(.+?))?$`)
	upDownRe       = regexp.MustCompile(`(?i)^(.+?)\s+up\s+or\s+down\s*(?:[-–:]\s*)?(.*)$`)
	rateDecisionRe = regexp.MustCompile(`(?i)^(?:will\s+(?:the\s+)?)?fed\s+(decrease|increase|cut|hike|raise|lower)s?\s+(?:interest\s+)?rates?\s+by\s+(\d+)\+?\s*(?:bps|basis\s+points)\s+after\s+(?:the\s+)?([a-z]+)(?:\s+\d{4})?\s+meeting$`)
	rateHoldRe     = regexp.MustCompile(`(?i)^(?:will\s+(?:the\s+)?)?(?:fed\s+)?(?:make\s+)?no\s+change\s+(?:in|to)\s+(?:fed\s+)?(?:interest\s+)?rates?\s+after\s+(?:the\s+)?([a-z]+)(?:\s+\d{4})?\s+meeting$`)
)

var statAbbrev = map[string]string{
	"points":          "PTS",
	"rebounds":        "REB",
	"assists":         "AST",
	"threes":          "3PM",
	"3-pointers made": "3PM",
	"steals":          "STL",
	"blocks":          "BLK",
	"pts + reb + ast": "PRA",
	"strikeouts":      "K",
	"hits":            "H",
	"home runs":       "HR",
	"total bases":     "TB",
	"passing yards":   "PASS YDS",
	"rushing yards":   "RUSH YDS",
	"receiving yards": "REC YDS",
	"receptions":      "REC",
	"touchdowns":      "TD",
	"goals":           "G",
	"shots on goal":   "SOG",
	"saves":           "SV",
}

var monthAbbrev = map[string]string{
	"january": "Jan", "february": "Feb", "march": "Mar", "april": "Apr", "may": "May",
	"june": "Jun", "july": "Jul", "august": "Aug", "september": "Sep", "october": "Oct",
	"november": "Nov", "december": "Dec",
}

// ClassifyShortName derives a concise display name for m from the first
// archetype its question matches. ok is false when no archetype applies.
func ClassifyShortName(m domain.MarketRecord) (string, bool) {
	q := cleanQuestion(m.Question)
	ab := abbreviator{league: detectLeague(m)}
	for _, a := range archetypes {
		if name, ok := a.match(q, m.Outcomes, ab); ok {
			return name, true
		}
	}
	return "", false
}

func cleanQuestion(q string) string {
	q = strings.Join(strings.Fields(q), " ")
	return strings.TrimRight(q, "?. ")
}

func matchPlayerProp(q string, _ []string, _ abbreviator) (string, bool) {
	if vsRe.MatchString(q) {
		return "", false
	}
	sm := playerPropRe.FindStringSubmatch(q)
	if sm == nil {
		return "", false
	}
	words := strings.Fields(sm[1])
	last := words[len(words)-1]
	stat := strings.ToLower(sm[2])
	abbr, ok := statAbbrev[stat]
	if !ok {
		abbr = strings.ToUpper(stat)
	}
	return last + " " + abbr + " O/U " + sm[3], true
}

func matchOverUnder(q string, _ []string, ab abbreviator) (string, bool) {
	sm := overUnderRe.FindStringSubmatch(q)
	if sm == nil {
		return "", false
	}
	return ab.abbreviate(stripLeague(sm[1])) + " vs " + ab.abbreviate(sm[2]) + " O/U " + sm[3], true
}

func matchSpread(q string, outcomes []string, ab abbreviator) (string, bool) {
	sm := spreadRe.FindStringSubmatch(q)
	if sm == nil {
		return "", false
	}
	name := ab.abbreviate(sm[1]) + " " + sm[2]
	if opp, ok := opponent(sm[1], outcomes); ok {
		name += " vs " + ab.abbreviate(opp)
	}
	return name, true
}

func matchHandicap(q string, _ []string, ab abbreviator) (string, bool) {
	if !strings.Contains(strings.ToLower(q), "handicap") {
		return "", false
	}
	sm := handicapRe.FindStringSubmatch(q)
	if sm == nil {
		return "", false
	}
	return ab.abbreviate(sm[1]) + " " + sm[2] + " HCP", true
}

// matchHeadToHead recognises "<A> vs. <B>" where the outcomes name the two
// sides. The affirmative outcome is rendered as the winner.
func matchHeadToHead(q string, outcomes []string, ab abbreviator) (string, bool) {
	if len(outcomes) != 2 || !vsRe.MatchString(q) || isYesNo(outcomes) {
		return "", false
	}
	lower := strings.ToLower(q)
	for _, o := range outcomes {
		if o == "" || !strings.Contains(lower, strings.ToLower(o)) {
			return "", false
		}
	}
	return ab.abbreviate(outcomes[0]) + " win vs " + ab.abbreviate(outcomes[1]), true
}

func matchPriceThreshold(q string, _ []string, ab abbreviator) (string, bool) {
	sm := priceRe.FindStringSubmatch(q)
	if sm == nil {
		return "", false
	}
	amount, ok := formatAmount(sm[3], sm[4])
	if !ok {
		return "", false
	}
	op := ">"
	switch strings.ToLower(sm[2]) {
	case "dip to", "fall to", "drop to", "be below", "go below", "close below":
		op = "<"
	}
	name := ab.abbreviateAsset(sm[1]) + " " + op + "$" + amount
	if d := shortDate(sm[5]); d != "" {
		name += " " + d
	}
	return name, true
}

func matchUpDown(q string, outcomes []string, ab abbreviator) (string, bool) {
	if len(outcomes) != 2 ||
		!strings.EqualFold(outcomes[0], "up") || !strings.EqualFold(outcomes[1], "down") {
		return "", false
	}
	sm := upDownRe.FindStringSubmatch(q)
	if sm == nil {
		return "", false
	}
	name := ab.abbreviateAsset(sm[1]) + " Up/Down"
	if d := shortDate(sm[2]); d != "" {
		name += " " + d
	}
	return name, true
}

func matchRateDecision(q string, _ []string, _ abbreviator) (string, bool) {
	if sm := rateDecisionRe.FindStringSubmatch(q); sm != nil {
		sign := "+"
		switch strings.ToLower(sm[1]) {
		case "decrease", "cut", "lower":
			sign = "-"
		}
		month, ok := monthAbbrev[strings.ToLower(sm[3])]
		if !ok {
			return "", false
		}
		return "Fed " + sign + sm[2] + "bps " + month, true
	}
	if sm := rateHoldRe.FindStringSubmatch(q); sm != nil {
		month, ok := monthAbbrev[strings.ToLower(sm[1])]
		if !ok {
			return "", false
		}
		return "Fed hold " + month, true
	}
	return "", false
}

// formatAmount renders a dollar figure compactly: 100000 becomes "100k" and
// 1500000 becomes "1.5M".
func formatAmount(raw, unit string) (string, bool) {
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return "", false
	}
	switch strings.ToLower(unit) {
	case "k", "thousand":
		d = d.Mul(decimal.NewFromInt(1_000))
	case "m", "million":
		d = d.Mul(decimal.NewFromInt(1_000_000))
	case "b", "billion":
		d = d.Mul(decimal.NewFromInt(1_000_000_000))
	}
	scales := []struct {
		div    int64
		suffix string
	}{
		{1_000_000_000, "B"},
		{1_000_000, "M"},
		{1_000, "k"},
	}
	for _, s := range scales {
		div := decimal.NewFromInt(s.div)
		if d.GreaterThanOrEqual(div) {
			return d.Div(div).Round(2).String() + s.suffix, true
		}
	}
	return d.Round(2).String(), true
}

// shortDate abbreviates month names and drops commas and four-digit years.
func shortDate(s string) string {
	var out []string
	for _, w := range strings.Fields(strings.ReplaceAll(s, ",", "")) {
		if m, ok := monthAbbrev[strings.ToLower(w)]; ok {
			out = append(out, m)
			continue
		}
		if len(w) == 4 && isDigits(w) {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func isYesNo(outcomes []string) bool {
	return strings.EqualFold(outcomes[0], "yes") && strings.EqualFold(outcomes[1], "no")
}

// opponent returns the outcome label that is not team.
func opponent(team string, outcomes []string) (string, bool) {
	if len(outcomes) != 2 {
		return "", false
	}
	switch {
	case strings.EqualFold(outcomes[0], team):
		return outcomes[1], true
	case strings.EqualFold(outcomes[1], team):
		return outcomes[0], true
	}
	return "", false
}

// stripLeague drops a leading "NBA: " style prefix.
func stripLeague(s string) string {
	if i := strings.LastIndex(s, ":"); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
