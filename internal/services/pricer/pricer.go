// Package pricer resolves user-entered tickers to USD quotes by
// querying a fixed priority order of upstream sources.
package pricer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vkuzmin/cryptosage/internal/domain"
	"go.uber.org/zap"
)

// ErrPriceNotFound is returned when every configured source has been
// exhausted without producing a usable quote.
var ErrPriceNotFound = errors.New("no source has a price for token")

// Source provides a USD quote for a token from one upstream provider.
type Source interface {
	Name() string
	GetPrice(ctx context.Context, token domain.Token) (decimal.Decimal, error)
}

// Resolver queries sources in priority order and returns the first
// non-negative quote. Source errors and malformed payloads are logged
// and skipped, never surfaced to the caller.
type Resolver struct {
	sources []Source
	logger  *zap.Logger
}

func NewResolver(logger *zap.Logger, sources ...Source) *Resolver {
	return &Resolver{sources: sources, logger: logger}
}

// Resolve normalizes the ticker and returns the first successful quote.
func (r *Resolver) Resolve(ctx context.Context, ticker string) (decimal.Decimal, error) {
	token := domain.NewToken(ticker)

	for _, src := range r.sources {
		price, err := src.GetPrice(ctx, token)
		if err != nil {
			r.logger.Warn("price source failed, falling through",
				zap.String("source", src.Name()),
				zap.String("token", token.ID),
				zap.Error(err))
			continue
		}
		if price.IsNegative() {
			r.logger.Warn("price source returned negative quote, falling through",
				zap.String("source", src.Name()),
				zap.String("token", token.ID),
				zap.String("price", price.String()))
			continue
		}
		return price, nil
	}

	r.logger.Error("failed to resolve price from any source", zap.String("token", token.ID))
	return decimal.Decimal{}, ErrPriceNotFound
}
