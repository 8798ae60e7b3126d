package classify

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/alanyoungcy/marketenricher/internal/domain"
)

// League keys used by leagueTeams.
const (
	leagueNBA = "nba"
	leagueNFL = "nfl"
	leagueMLB = "mlb"
	leagueNHL = "nhl"
)

// leagueTeams maps each league's team nicknames (lower-case) to its
// abbreviations. Nicknames repeat across leagues, so a lookup needs the
// market's league or a full team name.
var leagueTeams = map[string]map[string]string{
	leagueNBA: {
		"hawks": "ATL", "celtics": "BOS", "nets": "BKN", "hornets": "CHA", "bulls": "CHI",
		"cavaliers": "CLE", "cavs": "CLE", "mavericks": "DAL", "mavs": "DAL", "nuggets": "DEN",
		"pistons": "DET", "warriors": "GSW", "rockets": "HOU", "pacers": "IND", "clippers": "LAC",
		"lakers": "LAL", "grizzlies": "MEM", "heat": "MIA", "bucks": "MIL", "timberwolves": "MIN",
		"pelicans": "NOP", "knicks": "NYK", "thunder": "OKC", "magic": "ORL", "76ers": "PHI",
		"sixers": "PHI", "suns": "PHX", "trail blazers": "POR", "blazers": "POR", "kings": "SAC",
		"spurs": "SAS", "raptors": "TOR", "jazz": "UTA", "wizards": "WAS",
	},
	leagueNFL: {
		"cardinals": "ARI", "falcons": "ATL", "ravens": "BAL", "bills": "BUF", "panthers": "CAR",
		"bears": "CHI", "bengals": "CIN", "browns": "CLE", "cowboys": "DAL", "broncos": "DEN",
		"lions": "DET", "packers": "GB", "texans": "HOU", "colts": "IND", "jaguars": "JAX",
		"chiefs": "KC", "raiders": "LV", "chargers": "LAC", "rams": "LAR", "dolphins": "MIA",
		"vikings": "MIN", "patriots": "NE", "saints": "NO", "giants": "NYG", "jets": "NYJ",
		"eagles": "PHI", "steelers": "PIT", "49ers": "SF", "niners": "SF", "seahawks": "SEA",
		"buccaneers": "TB", "bucs": "TB", "titans": "TEN", "commanders": "WAS",
	},
	leagueMLB: {
		"diamondbacks": "ARI", "braves": "ATL", "orioles": "BAL", "red sox": "BOS", "cubs": "CHC",
		"white sox": "CWS", "reds": "CIN", "guardians": "CLE", "rockies": "COL", "tigers": "DET",
		"astros": "HOU", "royals": "KC", "angels": "LAA", "dodgers": "LAD", "marlins": "MIA",
		"brewers": "MIL", "twins": "MIN", "mets": "NYM", "yankees": "NYY", "athletics": "ATH",
		"phillies": "PHI", "pirates": "PIT", "padres": "SD", "giants": "SF", "mariners": "SEA",
		"cardinals": "STL", "rays": "TB", "rangers": "TEX", "blue jays": "TOR", "nationals": "WSH",
	},
	leagueNHL: {
		"ducks": "ANA", "bruins": "BOS", "sabres": "BUF", "flames": "CGY", "hurricanes": "CAR",
		"blackhawks": "CHI", "avalanche": "COL", "blue jackets": "CBJ", "stars": "DAL",
		"red wings": "DET", "oilers": "EDM", "panthers": "FLA", "kings": "LAK", "wild": "MIN",
		"canadiens": "MTL", "predators": "NSH", "devils": "NJD", "islanders": "NYI",
		"rangers": "NYR", "senators": "OTT", "flyers": "PHI", "penguins": "PIT", "sharks": "SJ",
		"kraken": "SEA", "blues": "STL", "lightning": "TBL", "maple leafs": "TOR",
		"canucks": "VAN", "golden knights": "VGK", "capitals": "WSH", "jets": "WPG",
		"utah hockey club": "UTA", "mammoth": "UTA",
	},
}

// fullTeamNames resolves teams whose nickname is shared across leagues
// without knowing the league.
var fullTeamNames = map[string]string{
	"sacramento kings": "SAC", "los angeles kings": "LAK", "la kings": "LAK",
	"arizona cardinals": "ARI", "st louis cardinals": "STL",
	"carolina panthers": "CAR", "florida panthers": "FLA",
	"new york giants": "NYG", "ny giants": "NYG", "san francisco giants": "SF", "sf giants": "SF",
	"new york jets": "NYJ", "ny jets": "NYJ", "winnipeg jets": "WPG",
	"new york rangers": "NYR", "ny rangers": "NYR", "texas rangers": "TEX",
}

// nicknameLeagues lists, per nickname, the abbreviation in every league
// that uses it.
var nicknameLeagues = func() map[string][]string {
	idx := make(map[string][]string)
	for _, league := range []string{leagueNBA, leagueNFL, leagueMLB, leagueNHL} {
		for nick, code := range leagueTeams[league] {
			idx[nick] = append(idx[nick], code)
		}
	}
	return idx
}()

// leagueTerms maps words and phrases found in market text to a league.
var leagueTerms = []struct {
	term, league string
}{
	{"nba", leagueNBA}, {"nba finals", leagueNBA},
	{"nfl", leagueNFL}, {"super bowl", leagueNFL},
	{"mlb", leagueMLB}, {"world series", leagueMLB},
	{"nhl", leagueNHL}, {"stanley cup", leagueNHL},
}

// detectLeague picks the market's league from its slugs, then from league
// terms in its question and event title. It returns "" when none is found.
func detectLeague(m domain.MarketRecord) string {
	for _, slug := range []string{m.Slug, m.EventSlug, m.SeriesSlug} {
		for _, part := range strings.Split(strings.ToLower(slug), "-") {
			if _, ok := leagueTeams[part]; ok {
				return part
			}
		}
	}
	text := " " + strings.Join(strings.FieldsFunc(strings.ToLower(m.Question+" "+m.EventTitle), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ") + " "
	for _, lt := range leagueTerms {
		if strings.Contains(text, " "+lt.term+" ") {
			return lt.league
		}
	}
	return ""
}

// assetAbbrev maps crypto asset and index names to ticker symbols.
var assetAbbrev = map[string]string{
	"bitcoin": "BTC", "btc": "BTC", "ethereum": "ETH", "eth": "ETH", "ether": "ETH",
	"solana": "SOL", "sol": "SOL", "xrp": "XRP", "ripple": "XRP", "dogecoin": "DOGE",
	"doge": "DOGE", "cardano": "ADA", "bnb": "BNB", "binance coin": "BNB", "avalanche": "AVAX",
	"chainlink": "LINK", "litecoin": "LTC", "polkadot": "DOT", "hyperliquid": "HYPE",
	"sui": "SUI", "tron": "TRX", "toncoin": "TON",
	"s&p 500": "SPX", "spx": "SPX", "nasdaq": "NDX", "nasdaq 100": "NDX", "dow jones": "DJI",
	"gold": "GOLD", "silver": "SILVER", "crude oil": "OIL", "oil": "OIL",
	"tesla": "TSLA", "nvidia": "NVDA", "apple": "AAPL", "microsoft": "MSFT",
}

// countryAbbrev maps country names to three-letter codes.
var countryAbbrev = map[string]string{
	"united states": "USA", "usa": "USA", "united kingdom": "UK", "england": "ENG",
	"scotland": "SCO", "wales": "WAL", "ireland": "IRL", "france": "FRA", "germany": "GER",
	"spain": "ESP", "italy": "ITA", "portugal": "POR", "netherlands": "NED", "belgium": "BEL",
	"croatia": "CRO", "switzerland": "SUI", "poland": "POL", "ukraine": "UKR", "russia": "RUS",
	"china": "CHN", "japan": "JPN", "south korea": "KOR", "north korea": "PRK", "india": "IND",
	"pakistan": "PAK", "israel": "ISR", "iran": "IRN", "saudi arabia": "KSA", "turkey": "TUR",
	"brazil": "BRA", "argentina": "ARG", "mexico": "MEX", "canada": "CAN", "australia": "AUS",
	"uruguay": "URU", "colombia": "COL", "morocco": "MAR", "senegal": "SEN", "nigeria": "NGA",
	"egypt": "EGY", "venezuela": "VEN", "taiwan": "TWN",
}

// commonWordNicknames are team nicknames that are also ordinary words. They
// still abbreviate but do not mark a market as sports on their own.
var commonWordNicknames = map[string]bool{
	"heat": true, "magic": true, "thunder": true, "jazz": true, "kings": true, "suns": true,
	"nets": true, "rockets": true, "wizards": true, "bills": true, "saints": true,
	"giants": true, "jets": true, "titans": true, "chiefs": true, "eagles": true,
	"lions": true, "bears": true, "cardinals": true, "rams": true, "commanders": true,
	"reds": true, "twins": true, "rays": true, "angels": true, "athletics": true,
	"nationals": true, "stars": true, "wild": true, "blues": true, "lightning": true,
	"sharks": true, "ducks": true, "devils": true, "senators": true, "flames": true,
	"avalanche": true, "kraken": true, "capitals": true, "islanders": true, "rangers": true,
	"pirates": true, "royals": true, "tigers": true, "mariners": true, "dolphins": true,
	"panthers": true, "hurricanes": true, "raiders": true, "patriots": true, "guardians": true,
	"predators": true, "oilers": true, "texans": true, "mammoth": true,
}

func teamKeywords() []string {
	out := make([]string, 0, len(nicknameLeagues)+len(fullTeamNames))
	for k := range nicknameLeagues {
		if !commonWordNicknames[k] {
			out = append(out, k)
		}
	}
	for k := range fullTeamNames {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// abbreviator resolves entity names to abbreviations. When league is set,
// team nicknames resolve within that league.
type abbreviator struct {
	league string
}

// lookupKeys returns the lookup keys for name: the full name, then its
// trailing two words and its last word, so "Los Angeles Lakers" resolves
// through "lakers".
func lookupKeys(name string) []string {
	key := strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(name, ".", "")), " "))
	key = strings.TrimPrefix(key, "the ")
	keys := []string{key}
	if words := strings.Fields(key); len(words) > 1 {
		if len(words) > 2 {
			keys = append(keys, strings.Join(words[len(words)-2:], " "))
		}
		keys = append(keys, words[len(words)-1])
	}
	return keys
}

// team resolves key as a team. A nickname used by several leagues only
// resolves when the league is known.
func (a abbreviator) team(key string) (string, bool) {
	if v, ok := fullTeamNames[key]; ok {
		return v, true
	}
	if a.league != "" {
		if v, ok := leagueTeams[a.league][key]; ok {
			return v, true
		}
	}
	if codes := nicknameLeagues[key]; len(codes) == 1 {
		return codes[0], true
	}
	return "", false
}

func (a abbreviator) lookup(name string) (string, bool) {
	for _, k := range lookupKeys(name) {
		if v, ok := a.team(k); ok {
			return v, true
		}
		if v, ok := assetAbbrev[k]; ok {
			return v, true
		}
		if v, ok := countryAbbrev[k]; ok {
			return v, true
		}
	}
	return "", false
}

func (a abbreviator) abbreviate(name string) string {
	if v, ok := a.lookup(name); ok {
		return v
	}
	return generateAbbrev(name)
}

// abbreviateAsset prefers ticker symbols, for archetypes about prices.
func (a abbreviator) abbreviateAsset(name string) string {
	for _, k := range lookupKeys(name) {
		if v, ok := assetAbbrev[k]; ok {
			return v
		}
	}
	return a.abbreviate(name)
}

// Abbreviate returns the canonical abbreviation for a known entity, or a
// generated three-letter one otherwise. Nicknames shared by several leagues
// need a full team name here.
func Abbreviate(name string) string {
	return abbreviator{}.abbreviate(name)
}

// generateAbbrev derives an abbreviation from an unknown name. Short names
// are kept whole; names starting with a vowel use their first three letters;
// other names use their first three consonants.
func generateAbbrev(name string) string {
	letters := lettersOnly(name)
	if letters == "" {
		return strings.ToUpper(strings.TrimSpace(name))
	}
	r := []rune(strings.ToUpper(letters))
	if len(r) <= 3 {
		return string(r)
	}
	if isVowel(r[0]) {
		return string(r[:3])
	}
	consonants := make([]rune, 0, 3)
	for _, c := range r {
		if !isVowel(c) {
			consonants = append(consonants, c)
			if len(consonants) == 3 {
				return string(consonants)
			}
		}
	}
	return string(r[:3])
}

func isVowel(r rune) bool {
	switch r {
	case 'A', 'E', 'I', 'O', 'U':
		return true
	}
	return false
}

// lettersOnly strips accents and drops everything that is not a letter.
func lettersOnly(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range folded {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
