package domain

import "strings"

// Category is a topical tag from a closed set.
type Category string

const (
	CategorySports      Category = "sports"
	CategoryCrypto      Category = "crypto"
	CategoryWeather     Category = "weather"
	CategoryTech        Category = "tech"
	CategoryEconomy     Category = "economy"
	CategoryGeopolitics Category = "geopolitics"
	CategoryCulture     Category = "culture"

	// CategoryUnknown is an internal sentinel and never appears in output.
	CategoryUnknown Category = "unknown"
)

// DefaultCategory is substituted whenever no category could be determined.
const DefaultCategory = CategoryGeopolitics

// Categories returns the closed category set in rule-matching precedence.
func Categories() []Category {
	return []Category{
		CategorySports,
		CategoryCrypto,
		CategoryWeather,
		CategoryTech,
		CategoryEconomy,
		CategoryGeopolitics,
		CategoryCulture,
	}
}

// categoryAliases maps loose spellings an LLM tends to produce onto the
// closed set.
var categoryAliases = map[string]Category{
	"sport":           CategorySports,
	"cryptocurrency":  CategoryCrypto,
	"tech/science":    CategoryTech,
	"technology":      CategoryTech,
	"science":         CategoryTech,
	"economy/finance": CategoryEconomy,
	"finance":         CategoryEconomy,
	"economics":       CategoryEconomy,
	"politics":        CategoryGeopolitics,
	"world":           CategoryGeopolitics,
	"entertainment":   CategoryCulture,
	"pop culture":     CategoryCulture,
}

// ParseCategory maps s onto the closed set. ok is false when s names no
// known category.
func ParseCategory(s string) (Category, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories() {
		if key == string(c) {
			return c, true
		}
	}
	if c, ok := categoryAliases[key]; ok {
		return c, true
	}
	return CategoryUnknown, false
}

// Known reports whether c is a member of the closed set.
func (c Category) Known() bool {
	for _, k := range Categories() {
		if c == k {
			return true
		}
	}
	return false
}

// OrDefault returns c, or DefaultCategory when c is unknown or empty.
func (c Category) OrDefault() Category {
	if !c.Known() {
		return DefaultCategory
	}
	return c
}
