package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vkuzmin/cryptosage/internal/domain"
)

const (
	defaultCoinGeckoURL     = "https://api.coingecko.com/api/v3"
	coinGeckoRequestTimeout = 15 * time.Second
)

// CoinGeckoClient queries the CoinGecko REST API for prices and market
// statistics. Responses are validated at this boundary: a payload
// missing an expected field is reported as an error, never passed
// through half-populated.
type CoinGeckoClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewCoinGeckoClient creates a client for the CoinGecko API. An empty
// baseURL selects the public endpoint; apiKey is optional and sent as
// the pro-tier header when present.
func NewCoinGeckoClient(baseURL, apiKey string) *CoinGeckoClient {
	if baseURL == "" {
		baseURL = defaultCoinGeckoURL
	}
	return &CoinGeckoClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: coinGeckoRequestTimeout},
	}
}

// SimplePrice returns the current USD price for one canonical coin id.
func (c *CoinGeckoClient) SimplePrice(ctx context.Context, id string) (float64, error) {
	params := url.Values{}
	params.Set("ids", id)
	params.Set("vs_currencies", "usd")

	var payload map[string]struct {
		USD *float64 `json:"usd"`
	}
	if err := c.getJSON(ctx, "/simple/price", params, &payload); err != nil {
		return 0, err
	}

	entry, ok := payload[id]
	if !ok || entry.USD == nil {
		return 0, errors.Errorf("coingecko simple/price response has no usd quote for %q", id)
	}
	return *entry.USD, nil
}

type coinResponse struct {
	MarketData *struct {
		CurrentPrice             map[string]float64 `json:"current_price"`
		TotalVolume              map[string]float64 `json:"total_volume"`
		MarketCap                map[string]float64 `json:"market_cap"`
		PriceChange24h           *float64           `json:"price_change_24h"`
		PriceChangePercentage24h *float64           `json:"price_change_percentage_24h"`
	} `json:"market_data"`
}

// CoinMarketData returns the full market snapshot for one coin id.
// The snapshot is populated from a single response or not at all.
func (c *CoinGeckoClient) CoinMarketData(ctx context.Context, id string) (domain.MarketSnapshot, error) {
	params := url.Values{}
	params.Set("localization", "false")
	params.Set("tickers", "false")
	params.Set("market_data", "true")
	params.Set("community_data", "false")
	params.Set("developer_data", "false")
	params.Set("sparkline", "false")

	var payload coinResponse
	if err := c.getJSON(ctx, "/coins/"+url.PathEscape(id), params, &payload); err != nil {
		return domain.MarketSnapshot{}, err
	}

	md := payload.MarketData
	if md == nil || md.PriceChange24h == nil || md.PriceChangePercentage24h == nil {
		return domain.MarketSnapshot{}, errors.Errorf("coingecko coin response for %q is missing market data", id)
	}
	price, okPrice := md.CurrentPrice["usd"]
	volume, okVolume := md.TotalVolume["usd"]
	marketCap, okCap := md.MarketCap["usd"]
	if !okPrice || !okVolume || !okCap {
		return domain.MarketSnapshot{}, errors.Errorf("coingecko coin response for %q is missing usd fields", id)
	}

	return domain.MarketSnapshot{
		Price:                    price,
		Volume24h:                volume,
		MarketCap:                marketCap,
		PriceChange24h:           *md.PriceChange24h,
		PriceChangePercentage24h: *md.PriceChangePercentage24h,
	}, nil
}

type marketsEntry struct {
	ID                       string   `json:"id"`
	CurrentPrice             *float64 `json:"current_price"`
	TotalVolume              *float64 `json:"total_volume"`
	MarketCap                *float64 `json:"market_cap"`
	PriceChange24h           *float64 `json:"price_change_24h"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
}

// MarketsBatch returns snapshots for every requested coin id present in
// the provider response. Ids the provider omits are simply absent from
// the result; entries with missing fields are dropped the same way.
func (c *CoinGeckoClient) MarketsBatch(ctx context.Context, ids []string) (map[string]domain.MarketSnapshot, error) {
	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("ids", strings.Join(ids, ","))
	params.Set("order", "market_cap_desc")
	params.Set("per_page", "250")
	params.Set("page", "1")
	params.Set("sparkline", "false")

	var payload []marketsEntry
	if err := c.getJSON(ctx, "/coins/markets", params, &payload); err != nil {
		return nil, err
	}

	snapshots := make(map[string]domain.MarketSnapshot, len(payload))
	for _, coin := range payload {
		if coin.ID == "" || coin.CurrentPrice == nil || coin.TotalVolume == nil ||
			coin.MarketCap == nil || coin.PriceChange24h == nil || coin.PriceChangePercentage24h == nil {
			continue
		}
		snapshots[coin.ID] = domain.MarketSnapshot{
			Price:                    *coin.CurrentPrice,
			Volume24h:                *coin.TotalVolume,
			MarketCap:                *coin.MarketCap,
			PriceChange24h:           *coin.PriceChange24h,
			PriceChangePercentage24h: *coin.PriceChangePercentage24h,
		}
	}
	return snapshots, nil
}

func (c *CoinGeckoClient) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "create coingecko request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-CG-Pro-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "coingecko request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read coingecko response")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coingecko API returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "decode coingecko response")
	}
	return nil
}
