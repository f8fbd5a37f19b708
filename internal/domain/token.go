package domain

import "strings"

// coinIDs maps common ticker symbols to canonical CoinGecko identifiers.
var coinIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"BNB":   "binancecoin",
	"SOL":   "solana",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
	"LTC":   "litecoin",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"ATOM":  "cosmos",
	"UNI":   "uniswap",
	"TON":   "the-open-network",
}

// Token is a user-entered asset reference resolved into the identifiers
// upstream providers understand.
type Token struct {
	// Symbol is the upper-cased exchange symbol, e.g. "BTC".
	Symbol string
	// ID is the canonical market-data identifier, e.g. "bitcoin".
	ID string
}

// NewToken normalizes a user-entered ticker. Symbols absent from the
// mapping table fall back to their lower-cased form, so every input
// maps to exactly one identifier.
func NewToken(ticker string) Token {
	sym := strings.ToUpper(strings.TrimSpace(ticker))
	if id, ok := coinIDs[sym]; ok {
		return Token{Symbol: sym, ID: id}
	}
	return Token{Symbol: sym, ID: strings.ToLower(sym)}
}
