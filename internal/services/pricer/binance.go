package pricer

import (
	"context"
	"fmt"

	binance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/vkuzmin/cryptosage/internal/domain"
)

// BinanceSource quotes prices from the Binance spot ticker, using the
// USDT pair as a USD proxy.
type BinanceSource struct {
	client *binance.Client
}

func NewBinanceSource(client *binance.Client) *BinanceSource {
	return &BinanceSource{client: client}
}

func (s *BinanceSource) Name() string { return "binance" }

func (s *BinanceSource) GetPrice(ctx context.Context, token domain.Token) (decimal.Decimal, error) {
	symbol := token.Symbol + "USDT"

	prices, err := s.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if len(prices) == 0 {
		return decimal.Decimal{}, fmt.Errorf("binance API returned empty prices for %s", symbol)
	}

	return decimal.NewFromString(prices[0].Price)
}
