// Package marketdata fetches market statistics snapshots through a
// cache-aside protocol over the shared key-value store.
package marketdata

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vkuzmin/cryptosage/internal/cache"
	"github.com/vkuzmin/cryptosage/internal/domain"
	"go.uber.org/zap"
)

const snapshotTTL = 5 * time.Minute

// ErrMarketDataUnavailable is returned when the upstream provider fails.
// Failures are never cached and never yield partial snapshots.
var ErrMarketDataUnavailable = errors.New("market data unavailable")

type store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type provider interface {
	CoinMarketData(ctx context.Context, id string) (domain.MarketSnapshot, error)
	MarketsBatch(ctx context.Context, ids []string) (map[string]domain.MarketSnapshot, error)
}

// Fetcher serves market snapshots, consulting the cache before the
// upstream provider. A store outage downgrades to a cache miss; a
// failed cache write never fails the request.
type Fetcher struct {
	cache    store
	provider provider
	logger   *zap.Logger
}

func NewFetcher(cache store, provider provider, logger *zap.Logger) *Fetcher {
	return &Fetcher{cache: cache, provider: provider, logger: logger}
}

func snapshotKey(token string) string {
	return "marketData:" + token
}

// batchKey is derived from the sorted token set so that permutations of
// the same set share one cache entry.
func batchKey(tokens []string) string {
	sorted := append([]string(nil), tokens...)
	sort.Strings(sorted)
	return "batchMarketData:" + strings.Join(sorted, ",")
}

// GetSnapshot returns the statistics snapshot for one token.
func (f *Fetcher) GetSnapshot(ctx context.Context, ticker string) (domain.MarketSnapshot, error) {
	token := domain.NewToken(ticker).ID
	key := snapshotKey(token)

	var cached domain.MarketSnapshot
	if f.readCached(ctx, key, &cached) {
		f.logger.Debug("returning cached market data", zap.String("token", token))
		return cached, nil
	}

	snapshot, err := f.provider.CoinMarketData(ctx, token)
	if err != nil {
		f.logger.Error("market data fetch failed", zap.String("token", token), zap.Error(err))
		return domain.MarketSnapshot{}, errors.Wrap(ErrMarketDataUnavailable, err.Error())
	}

	f.writeCached(ctx, key, snapshot)
	f.logger.Info("fetched new market data", zap.String("token", token))
	return snapshot, nil
}

// GetBatchSnapshots returns snapshots for a set of tokens with a single
// upstream call. Tokens the provider omits are absent from the result,
// which is not an error for the batch as a whole.
func (f *Fetcher) GetBatchSnapshots(ctx context.Context, tickers []string) (map[string]domain.MarketSnapshot, error) {
	ids := normalizeSet(tickers)
	// an empty set would otherwise query the provider's unfiltered
	// listing and cache it under a degenerate key
	if len(ids) == 0 {
		return map[string]domain.MarketSnapshot{}, nil
	}
	key := batchKey(ids)

	var cached map[string]domain.MarketSnapshot
	if f.readCached(ctx, key, &cached) {
		f.logger.Debug("returning cached batch market data", zap.Strings("tokens", ids))
		return cached, nil
	}

	snapshots, err := f.provider.MarketsBatch(ctx, ids)
	if err != nil {
		f.logger.Error("batch market data fetch failed", zap.Strings("tokens", ids), zap.Error(err))
		return nil, errors.Wrap(ErrMarketDataUnavailable, err.Error())
	}

	f.writeCached(ctx, key, snapshots)
	f.logger.Info("fetched new batch market data", zap.Strings("tokens", ids))
	return snapshots, nil
}

// readCached reports whether key held a decodable value. Store outages
// and undecodable entries count as misses.
func (f *Fetcher) readCached(ctx context.Context, key string, out any) bool {
	raw, err := f.cache.Get(ctx, key)
	switch {
	case err == nil:
		if jerr := json.Unmarshal([]byte(raw), out); jerr == nil {
			return true
		}
		f.logger.Warn("dropping undecodable cache entry", zap.String("key", key))
	case errors.Is(err, cache.ErrCacheMiss):
	default:
		f.logger.Warn("cache read failed, treating as miss", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (f *Fetcher) writeCached(ctx context.Context, key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		f.logger.Warn("failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := f.cache.Set(ctx, key, string(payload), snapshotTTL); err != nil {
		f.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// normalizeSet maps tickers to canonical ids, dropping duplicates while
// keeping first-seen order.
func normalizeSet(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	ids := make([]string, 0, len(tickers))
	for _, ticker := range tickers {
		id := domain.NewToken(ticker).ID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
