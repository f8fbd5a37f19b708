package pricer

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"github.com/vkuzmin/cryptosage/internal/domain"
)

// HyperliquidSource quotes mid prices from the Hyperliquid public Info API.
//
// The Info client is built on first use: the SDK eagerly fetches exchange
// metadata in its constructor and panics when the API is unreachable, so
// construction must not happen at wiring time and the panic is converted
// into an error the resolver can fall through on.
type HyperliquidSource struct {
	baseURL string

	mu   sync.Mutex
	info *hyperliquid.Info
}

func NewHyperliquidSource(baseURL string) *HyperliquidSource {
	return &HyperliquidSource{baseURL: baseURL}
}

func (s *HyperliquidSource) Name() string { return "hyperliquid" }

func (s *HyperliquidSource) GetPrice(ctx context.Context, token domain.Token) (decimal.Decimal, error) {
	info, err := s.getInfo(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}

	mids, err := info.AllMids(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}

	// Hyperliquid mids are keyed by base coin (e.g., "BTC").
	mid, ok := mids[token.Symbol]
	if !ok || mid == "" {
		return decimal.Decimal{}, fmt.Errorf("hyperliquid API returned empty mid price for %s", token.Symbol)
	}
	return decimal.NewFromString(mid)
}

func (s *HyperliquidSource) getInfo(ctx context.Context) (_ *hyperliquid.Info, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.info == nil {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("hyperliquid metadata fetch failed: %v", r)
			}
		}()
		s.info = hyperliquid.NewInfo(ctx, s.baseURL, true, nil, nil)
	}
	return s.info, nil
}
