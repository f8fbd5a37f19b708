package domain

// MarketSnapshot holds the statistics the recommendation pipeline uses
// for a single token, all denominated in USD. A snapshot is produced
// from one successful provider response as a unit; there are no
// partially populated snapshots.
type MarketSnapshot struct {
	Price                    float64 `json:"price"`
	Volume24h                float64 `json:"volume24h"`
	MarketCap                float64 `json:"marketCap"`
	PriceChange24h           float64 `json:"priceChange24h"`
	PriceChangePercentage24h float64 `json:"priceChangePercentage24h"`
}
