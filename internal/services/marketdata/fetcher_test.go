package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkuzmin/cryptosage/internal/cache"
	"github.com/vkuzmin/cryptosage/internal/domain"
	"go.uber.org/zap"
)

type fakeEntry struct {
	value     string
	expiresAt time.Time
}

// fakeStore is an in-memory store with a manually advanced clock.
type fakeStore struct {
	now     time.Time
	entries map[string]fakeEntry
	getErr  error
	setErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{now: time.Now(), entries: make(map[string]fakeEntry)}
}

func (s *fakeStore) Get(ctx context.Context, key string) (string, error) {
	if s.getErr != nil {
		return "", s.getErr
	}
	e, ok := s.entries[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	if !e.expiresAt.IsZero() && s.now.After(e.expiresAt) {
		delete(s.entries, key)
		return "", cache.ErrCacheMiss
	}
	return e.value, nil
}

func (s *fakeStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if s.setErr != nil {
		return s.setErr
	}
	e := fakeEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now.Add(ttl)
	}
	s.entries[key] = e
	return nil
}

type fakeProvider struct {
	snapshot   domain.MarketSnapshot
	batch      map[string]domain.MarketSnapshot
	err        error
	coinCalls  int
	batchCalls int
	batchIDs   []string
}

func (p *fakeProvider) CoinMarketData(ctx context.Context, id string) (domain.MarketSnapshot, error) {
	p.coinCalls++
	return p.snapshot, p.err
}

func (p *fakeProvider) MarketsBatch(ctx context.Context, ids []string) (map[string]domain.MarketSnapshot, error) {
	p.batchCalls++
	p.batchIDs = ids
	return p.batch, p.err
}

var testSnapshot = domain.MarketSnapshot{
	Price:                    60000,
	Volume24h:                1_000_000,
	MarketCap:                1_200_000_000,
	PriceChange24h:           -500,
	PriceChangePercentage24h: -0.82,
}

func TestGetSnapshotIssuesOneUpstreamCallWithinTTL(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{snapshot: testSnapshot}
	fetcher := NewFetcher(store, provider, zap.NewNop())

	first, err := fetcher.GetSnapshot(context.Background(), "bitcoin")
	require.NoError(t, err)

	second, err := fetcher.GetSnapshot(context.Background(), "bitcoin")
	require.NoError(t, err)

	assert.Equal(t, 1, provider.coinCalls)
	assert.Equal(t, first, second)
}

func TestGetSnapshotRefetchesAfterTTLExpiry(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{snapshot: testSnapshot}
	fetcher := NewFetcher(store, provider, zap.NewNop())

	_, err := fetcher.GetSnapshot(context.Background(), "bitcoin")
	require.NoError(t, err)

	store.now = store.now.Add(snapshotTTL + 100*time.Millisecond)

	_, err = fetcher.GetSnapshot(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.coinCalls)
}

func TestGetSnapshotNormalizesTicker(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{snapshot: testSnapshot}
	fetcher := NewFetcher(store, provider, zap.NewNop())

	_, err := fetcher.GetSnapshot(context.Background(), "BTC")
	require.NoError(t, err)

	_, ok := store.entries["marketData:bitcoin"]
	assert.True(t, ok)
}

func TestGetSnapshotUpstreamFailurePropagatesAndIsNotCached(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{err: errors.New("rate limited")}
	fetcher := NewFetcher(store, provider, zap.NewNop())

	_, err := fetcher.GetSnapshot(context.Background(), "bitcoin")
	require.ErrorIs(t, err, ErrMarketDataUnavailable)
	assert.Empty(t, store.entries)
}

func TestGetSnapshotStoreUnavailableTreatedAsMiss(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.Wrap(cache.ErrStoreUnavailable, "connection refused")
	store.setErr = errors.Wrap(cache.ErrStoreUnavailable, "connection refused")
	provider := &fakeProvider{snapshot: testSnapshot}
	fetcher := NewFetcher(store, provider, zap.NewNop())

	snapshot, err := fetcher.GetSnapshot(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, testSnapshot, snapshot)
	assert.Equal(t, 1, provider.coinCalls)
}

func TestGetBatchSnapshotsKeyIsOrderIndependent(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{batch: map[string]domain.MarketSnapshot{
		"bitcoin":  testSnapshot,
		"ethereum": {Price: 3000},
	}}
	fetcher := NewFetcher(store, provider, zap.NewNop())

	first, err := fetcher.GetBatchSnapshots(context.Background(), []string{"eth", "btc"})
	require.NoError(t, err)

	second, err := fetcher.GetBatchSnapshots(context.Background(), []string{"btc", "eth"})
	require.NoError(t, err)

	assert.Equal(t, 1, provider.batchCalls)
	assert.Equal(t, first, second)

	_, ok := store.entries["batchMarketData:bitcoin,ethereum"]
	assert.True(t, ok)
}

func TestGetBatchSnapshotsOmittedTokenIsAbsentNotError(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{batch: map[string]domain.MarketSnapshot{
		"bitcoin": testSnapshot,
	}}
	fetcher := NewFetcher(store, provider, zap.NewNop())

	snapshots, err := fetcher.GetBatchSnapshots(context.Background(), []string{"btc", "eth"})
	require.NoError(t, err)
	assert.Contains(t, snapshots, "bitcoin")
	assert.NotContains(t, snapshots, "ethereum")
}

func TestGetBatchSnapshotsDeduplicatesTickers(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{batch: map[string]domain.MarketSnapshot{"bitcoin": testSnapshot}}
	fetcher := NewFetcher(store, provider, zap.NewNop())

	_, err := fetcher.GetBatchSnapshots(context.Background(), []string{"BTC", "btc", "bitcoin"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bitcoin"}, provider.batchIDs)
}

func TestGetBatchSnapshotsEmptySetSkipsProviderAndCache(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{batch: map[string]domain.MarketSnapshot{"bitcoin": testSnapshot}}
	fetcher := NewFetcher(store, provider, zap.NewNop())

	snapshots, err := fetcher.GetBatchSnapshots(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, snapshots)
	assert.Zero(t, provider.batchCalls)
	assert.Empty(t, store.entries, "empty set must not create a degenerate cache entry")
}
