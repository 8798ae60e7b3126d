package classify

import (
	"regexp"
	"sort"
	"strings"

	"github.com/alanyoungcy/marketenricher/internal/domain"
)

type categoryRule struct {
	category domain.Category
	re       *regexp.Regexp
}

var categoryKeywords = map[domain.Category][]string{
	domain.CategorySports: {
		"nba", "nfl", "mlb", "nhl", "mls", "ufc", "wnba", "ncaa", "atp", "wta", "pga",
		"premier league", "champions league", "la liga", "serie a", "bundesliga", "ligue 1",
		"super bowl", "world series", "stanley cup", "nba finals", "world cup", "olympics",
		"grand prix", "formula 1", "f1", "wimbledon", "win the us open", "us open winner",
		"us open champion", "us open final", "us open tennis", "us open golf",
		"masters tournament", "win the masters", "masters winner", "masters champion",
		"soccer", "football", "basketball", "baseball", "hockey", "tennis", "golf", "boxing",
		"colorado avalanche", "o/u", "spread", "handicap", "mvp", "touchdown", "rebounds",
		"assists",
	},
	domain.CategoryCrypto: {
		"bitcoin", "btc", "ethereum", "eth", "solana", "xrp", "ripple", "dogecoin", "doge",
		"cardano", "crypto", "cryptocurrency", "memecoin", "stablecoin", "airdrop", "fdv",
		"altcoin", "defi", "nft", "binance", "usdt", "usdc", "token launch",
		"bnb", "avalanche", "avax", "chainlink", "litecoin", "ltc", "polkadot", "hyperliquid",
		"sui", "tron", "trx", "toncoin",
	},
	domain.CategoryWeather: {
		"weather", "hurricane", "tropical storm", "tornado", "temperature", "rainfall",
		"snowfall", "snowstorm", "blizzard", "inches of snow", "snow in", "will it snow",
		"heat wave", "heatwave", "earthquake", "wildfire", "hottest",
		"coldest", "noaa", "precipitation",
	},
	domain.CategoryTech: {
		"ai", "openai", "chatgpt", "gpt", "anthropic", "claude", "gemini", "llm", "agi",
		"nvidia", "apple", "iphone", "google", "microsoft", "meta", "spacex", "starship",
		"nasa", "rocket", "launch", "satellite", "quantum", "science", "vaccine", "fda",
		"tesla", "robotaxi", "app store",
	},
	domain.CategoryEconomy: {
		"fed", "fomc", "ecb", "boe", "boj", "interest rate", "interest rates", "rate cut",
		"rate hike", "bps", "inflation", "cpi", "pce", "gdp", "recession", "unemployment",
		"jobs report", "nonfarm", "payrolls", "s&p 500", "s&p", "nasdaq", "dow jones", "spx",
		"stock", "stocks", "earnings", "ipo", "tariff", "tariffs", "treasury", "yield",
		"market cap", "oil price", "gold price",
	},
	domain.CategoryGeopolitics: {
		"election", "elected", "president", "presidential", "prime minister", "minister",
		"parliament", "senate", "congress", "governor", "mayor", "referendum", "impeach",
		"war", "ceasefire", "invasion", "invade", "nato", "sanctions", "treaty", "summit",
		"trump", "biden", "putin", "zelensky", "netanyahu", "xi jinping", "ukraine", "russia",
		"israel", "gaza", "iran", "china", "taiwan", "north korea", "democrat", "republican",
		"supreme court", "cabinet", "embassy", "diplomatic",
	},
	domain.CategoryCulture: {
		"oscar", "oscars", "academy award", "grammy", "grammys", "emmy", "emmys", "golden globe",
		"box office", "movie", "film", "album", "song", "billboard", "spotify", "netflix",
		"youtube", "tiktok", "twitter", "eurovision", "celebrity", "taylor swift", "mrbeast",
		"time person of the year", "super bowl halftime", "tv show", "season finale",
	},
}

var categoryRules = buildCategoryRules()

func buildCategoryRules() []categoryRule {
	rules := make([]categoryRule, 0, len(categoryKeywords))
	for _, c := range domain.Categories() {
		words := append([]string(nil), categoryKeywords[c]...)
		if c == domain.CategorySports {
			words = append(words, teamKeywords()...)
		}
		rules = append(rules, categoryRule{category: c, re: keywordRegexp(words)})
	}
	return rules
}

// keywordRegexp compiles words into one alternation anchored on word
// boundaries. Longer keywords are tried first.
func keywordRegexp(words []string) *regexp.Regexp {
	sort.SliceStable(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?:^|[^a-z0-9])(?:` + strings.Join(quoted, "|") + `)(?:$|[^a-z0-9])`)
}

// searchText joins the text fields used for category matching into one
// lower-cased string. Slug hyphens become spaces so multi-word keywords
// match slugs too.
func searchText(m domain.MarketRecord) string {
	parts := []string{
		m.Question,
		strings.ReplaceAll(m.Slug, "-", " "),
		strings.ReplaceAll(m.EventSlug, "-", " "),
		strings.ReplaceAll(m.SeriesSlug, "-", " "),
		m.EventTitle,
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// ClassifyCategory returns the first category whose keywords occur in the
// market's text, checking categories in precedence order. It returns
// domain.CategoryUnknown when nothing matches.
func ClassifyCategory(m domain.MarketRecord) domain.Category {
	text := searchText(m)
	for _, r := range categoryRules {
		if r.re.MatchString(text) {
			return r.category
		}
	}
	return domain.CategoryUnknown
}
