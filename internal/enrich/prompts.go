package enrich

const categoryList = "sports, crypto, weather, tech, economy, geopolitics, culture"

const categoryInstruction = `You categorise prediction markets.
Allowed categories: ` + categoryList + `.
For every market in the JSON array, output exactly one line:
id,category
Use the id exactly as given. Output no header, no numbering and no commentary.`

const shortNameInstruction = `You write short display names for prediction markets.
A short name is at most 30 characters, uses common abbreviations (team codes,
tickers, month abbreviations) and stays unambiguous next to similar markets.
Examples: "LAL win vs BOS", "BTC >$100k Dec 31", "Fed -25bps Mar".
For every market in the JSON array, output exactly one line:
id,shortName
Use the id exactly as given. Output no header, no numbering and no commentary.`

const bothInstruction = `You categorise prediction markets and write short display names for them.
Allowed categories: ` + categoryList + `.
A short name is at most 30 characters, uses common abbreviations (team codes,
tickers, month abbreviations) and stays unambiguous next to similar markets.
Examples: "LAL win vs BOS", "BTC >$100k Dec 31", "Fed -25bps Mar".
For every market in the JSON array, output exactly one line:
id,category,shortName
Use the id exactly as given. Output no header, no numbering and no commentary.`
