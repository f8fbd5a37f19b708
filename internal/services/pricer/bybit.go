package pricer

import (
	"context"
	"fmt"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/shopspring/decimal"
	"github.com/vkuzmin/cryptosage/internal/domain"
)

// BybitSource quotes prices from the Bybit spot ticker, using the USDT
// pair as a USD proxy.
type BybitSource struct {
	client *bybit.Client
}

func NewBybitSource(client *bybit.Client) *BybitSource {
	return &BybitSource{client: client}
}

func (s *BybitSource) Name() string { return "bybit" }

func (s *BybitSource) GetPrice(ctx context.Context, token domain.Token) (decimal.Decimal, error) {
	symbol := bybit.SymbolV5(token.Symbol + "USDT")

	result, err := s.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
		Category: bybit.CategoryV5Spot,
		Symbol:   &symbol,
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	if len(result.Result.Spot.List) == 0 {
		return decimal.Decimal{}, fmt.Errorf("bybit API returned empty prices for %s", symbol)
	}

	return decimal.NewFromString(result.Result.Spot.List[0].LastPrice)
}
