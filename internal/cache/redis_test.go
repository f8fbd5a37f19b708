package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestGateway(t *testing.T) (*Gateway, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	gateway, err := New(context.Background(), mr.Addr(), "", 0, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gateway.Close() })

	return gateway, mr
}

func TestGatewaySetGetRoundTrip(t *testing.T) {
	gateway, _ := newTestGateway(t)
	ctx := context.Background()

	require.NoError(t, gateway.Set(ctx, "marketData:bitcoin", `{"price":60000}`, time.Minute))

	val, err := gateway.Get(ctx, "marketData:bitcoin")
	require.NoError(t, err)
	assert.Equal(t, `{"price":60000}`, val)
}

func TestGatewayGetAbsentKeyIsCacheMiss(t *testing.T) {
	gateway, _ := newTestGateway(t)

	_, err := gateway.Get(context.Background(), "no-such-key")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCacheMiss))
	assert.False(t, errors.Is(err, ErrStoreUnavailable))
}

func TestGatewayTTLExpiry(t *testing.T) {
	gateway, mr := newTestGateway(t)
	ctx := context.Background()

	require.NoError(t, gateway.Set(ctx, "analysis:bitcoin:60000:65000", "hold", time.Second))

	_, err := gateway.Get(ctx, "analysis:bitcoin:60000:65000")
	require.NoError(t, err)

	mr.FastForward(1100 * time.Millisecond)

	_, err = gateway.Get(ctx, "analysis:bitcoin:60000:65000")
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestGatewaySetWithoutTTLPersists(t *testing.T) {
	gateway, mr := newTestGateway(t)
	ctx := context.Background()

	require.NoError(t, gateway.Set(ctx, "key", "value", 0))
	assert.Zero(t, mr.TTL("key"))

	mr.FastForward(24 * time.Hour)

	val, err := gateway.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "value", val)
}

func TestGatewayTransportFailureIsStoreUnavailable(t *testing.T) {
	gateway, mr := newTestGateway(t)
	ctx := context.Background()

	require.NoError(t, gateway.Set(ctx, "key", "value", 0))

	mr.Close()

	_, err := gateway.Get(ctx, "key")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.False(t, errors.Is(err, ErrCacheMiss), "transport failure must be distinguishable from a miss")

	err = gateway.Set(ctx, "key", "value", 0)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
}

func TestGatewayDeleteAndExists(t *testing.T) {
	gateway, _ := newTestGateway(t)
	ctx := context.Background()

	require.NoError(t, gateway.Set(ctx, "key", "value", 0))

	present, err := gateway.Exists(ctx, "key")
	require.NoError(t, err)
	assert.True(t, present)

	require.NoError(t, gateway.Delete(ctx, "key"))

	present, err = gateway.Exists(ctx, "key")
	require.NoError(t, err)
	assert.False(t, present)

	// deleting an absent key is not an error
	require.NoError(t, gateway.Delete(ctx, "key"))
}

func TestGatewayNewFailsWhenServerUnreachable(t *testing.T) {
	_, err := New(context.Background(), "127.0.0.1:1", "", 0, zap.NewNop())
	require.Error(t, err)
}
