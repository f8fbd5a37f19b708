package pricer

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vkuzmin/cryptosage/internal/domain"
)

type simplePriceClient interface {
	SimplePrice(ctx context.Context, id string) (float64, error)
}

// CoinGeckoSource quotes prices from the CoinGecko simple/price endpoint.
type CoinGeckoSource struct {
	client simplePriceClient
}

func NewCoinGeckoSource(client simplePriceClient) *CoinGeckoSource {
	return &CoinGeckoSource{client: client}
}

func (s *CoinGeckoSource) Name() string { return "coingecko" }

func (s *CoinGeckoSource) GetPrice(ctx context.Context, token domain.Token) (decimal.Decimal, error) {
	price, err := s.client.SimplePrice(ctx, token.ID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return decimal.Decimal{}, errors.Errorf("coingecko returned non-finite price for %s", token.ID)
	}
	return decimal.NewFromFloat(price), nil
}
