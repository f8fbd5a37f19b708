package pricer

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkuzmin/cryptosage/internal/domain"
	"go.uber.org/zap"
)

type fakeSource struct {
	name  string
	price decimal.Decimal
	err   error
	calls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) GetPrice(ctx context.Context, token domain.Token) (decimal.Decimal, error) {
	f.calls++
	return f.price, f.err
}

func TestResolveFallsThroughToNextSource(t *testing.T) {
	broken := &fakeSource{name: "first", err: errors.New("malformed payload")}
	working := &fakeSource{name: "second", price: decimal.NewFromInt(60000)}

	resolver := NewResolver(zap.NewNop(), broken, working)

	price, err := resolver.Resolve(context.Background(), "BTC")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(60000).Equal(price))
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, 1, working.calls)
}

func TestResolveReturnsFirstSuccessWithoutQueryingRest(t *testing.T) {
	first := &fakeSource{name: "first", price: decimal.NewFromFloat(42.5)}
	second := &fakeSource{name: "second", price: decimal.NewFromInt(999)}

	resolver := NewResolver(zap.NewNop(), first, second)

	price, err := resolver.Resolve(context.Background(), "eth")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromFloat(42.5).Equal(price))
	assert.Equal(t, 0, second.calls)
}

func TestResolveRejectsNegativeQuotes(t *testing.T) {
	negative := &fakeSource{name: "first", price: decimal.NewFromInt(-1)}
	working := &fakeSource{name: "second", price: decimal.NewFromInt(10)}

	resolver := NewResolver(zap.NewNop(), negative, working)

	price, err := resolver.Resolve(context.Background(), "BTC")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(price))
}

func TestResolveNotFoundWhenAllSourcesExhausted(t *testing.T) {
	first := &fakeSource{name: "first", err: errors.New("rate limited")}
	second := &fakeSource{name: "second", err: errors.New("timeout")}

	resolver := NewResolver(zap.NewNop(), first, second)

	_, err := resolver.Resolve(context.Background(), "BTC")
	require.ErrorIs(t, err, ErrPriceNotFound)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}

func TestResolveZeroPriceIsValid(t *testing.T) {
	src := &fakeSource{name: "only", price: decimal.Zero}

	resolver := NewResolver(zap.NewNop(), src)

	price, err := resolver.Resolve(context.Background(), "WORTHLESS")
	require.NoError(t, err)
	assert.True(t, price.IsZero())
}
