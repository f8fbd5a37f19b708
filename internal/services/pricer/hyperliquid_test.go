package pricer

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vkuzmin/cryptosage/internal/domain"
)

func TestHyperliquidSourceConstructionIsOffline(t *testing.T) {
	require.NotPanics(t, func() {
		src := NewHyperliquidSource("http://127.0.0.1:1")
		require.Equal(t, "hyperliquid", src.Name())
	})
}

func TestHyperliquidSourceUnreachableAPIReturnsError(t *testing.T) {
	src := NewHyperliquidSource("http://127.0.0.1:1")

	require.NotPanics(t, func() {
		_, err := src.GetPrice(context.Background(), domain.NewToken("BTC"))
		require.Error(t, err)
	})
}

// A dead hyperliquid backend must not sink the whole resolver: the next
// source in priority order still answers.
func TestResolverFallsThroughDeadHyperliquid(t *testing.T) {
	dead := NewHyperliquidSource("http://127.0.0.1:1")
	backup := &fakeSource{name: "backup", price: decimal.NewFromInt(42)}

	r := NewResolver(zap.NewNop(), dead, backup)

	price, err := r.Resolve(context.Background(), "BTC")
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.NewFromInt(42)))
	require.Equal(t, 1, backup.calls)
}
