// Package analysis orchestrates the recommendation pipeline: cache
// lookup, market snapshot, context retrieval, narrative generation, and
// write-back.
package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vkuzmin/cryptosage/internal/cache"
	"github.com/vkuzmin/cryptosage/internal/domain"
	"github.com/vkuzmin/cryptosage/internal/services/promptbuilder"
	"go.uber.org/zap"
)

const (
	analysisTTL = 5 * time.Minute
	contextTopK = 3

	generationMaxTokens   = 150
	generationTemperature = 0.7

	// FallbackText is returned to the user when narrative generation
	// fails; generation errors never propagate to the caller.
	FallbackText = "Unable to generate analysis at this time. Please try again later."

	emptyGenerationText = "No analysis generated."
)

type store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type snapshotFetcher interface {
	GetSnapshot(ctx context.Context, ticker string) (domain.MarketSnapshot, error)
}

type contextStore interface {
	Query(ctx context.Context, token string, topK int) ([]string, error)
	Add(ctx context.Context, token, text string) error
}

type generator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float32) (string, error)
}

type journal interface {
	Save(event domain.AnalysisEvent) error
}

// Assembler produces buy/sell/hold narratives. Results are cached under
// a key derived from (token, current price, target price); hits return
// immediately without touching any collaborator.
//
// Two concurrent requests for the same key are not deduplicated: both
// may compute and both will write the cache, last write wins.
type Assembler struct {
	cache     store
	market    snapshotFetcher
	contexts  contextStore
	generator generator
	prompts   *promptbuilder.PromptBuilder
	journal   journal
	logger    *zap.Logger
	now       func() time.Time
}

func NewAssembler(cache store, market snapshotFetcher, contexts contextStore, generator generator, journal journal, logger *zap.Logger) *Assembler {
	return &Assembler{
		cache:     cache,
		market:    market,
		contexts:  contexts,
		generator: generator,
		prompts:   promptbuilder.New(),
		journal:   journal,
		logger:    logger,
		now:       time.Now,
	}
}

// analysisKey renders prices with decimal formatting, which is stable
// for a given value; the same inputs always address the same entry.
func analysisKey(token string, currentPrice, targetPrice decimal.Decimal) string {
	return fmt.Sprintf("analysis:%s:%s:%s", token, currentPrice.String(), targetPrice.String())
}

// GetRecommendation returns the cached narrative when present, and
// otherwise assembles one from a fresh market snapshot and retrieved
// context. Snapshot and context retrieval failures propagate; a failed
// generation yields FallbackText instead of an error.
func (a *Assembler) GetRecommendation(ctx context.Context, ticker string, currentPrice, targetPrice decimal.Decimal) (string, error) {
	token := domain.NewToken(ticker).ID
	key := analysisKey(token, currentPrice, targetPrice)

	cached, err := a.cache.Get(ctx, key)
	if err == nil {
		a.logger.Debug("returning cached analysis", zap.String("key", key))
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		a.logger.Warn("analysis cache read failed, recomputing", zap.String("key", key), zap.Error(err))
	}

	snapshot, err := a.market.GetSnapshot(ctx, token)
	if err != nil {
		return "", err
	}

	prior, err := a.contexts.Query(ctx, token, contextTopK)
	if err != nil {
		return "", errors.Wrap(err, "retrieve analysis context")
	}

	text := a.generate(ctx, promptbuilder.AnalysisContext{
		Token:         token,
		CurrentPrice:  currentPrice,
		TargetPrice:   targetPrice,
		Snapshot:      snapshot,
		PriorAnalyses: prior,
	})

	// Write-backs are best-effort: the narrative already exists, losing
	// a cache entry or context document must not fail the request.
	if err := a.cache.Set(ctx, key, text, analysisTTL); err != nil {
		a.logger.Warn("analysis cache write failed", zap.String("key", key), zap.Error(err))
	}
	if err := a.contexts.Add(ctx, token, text); err != nil {
		a.logger.Warn("failed to append analysis to context index", zap.String("token", token), zap.Error(err))
	}
	a.recordEvent(token, currentPrice, targetPrice, text)

	return text, nil
}

func (a *Assembler) generate(ctx context.Context, analysisCtx promptbuilder.AnalysisContext) string {
	userPrompt := a.prompts.BuildUserPrompt(analysisCtx)

	text, err := a.generator.Complete(ctx, promptbuilder.SystemPrompt, userPrompt, generationMaxTokens, generationTemperature)
	if err != nil {
		a.logger.Error("narrative generation failed", zap.String("token", analysisCtx.Token), zap.Error(err))
		return FallbackText
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return emptyGenerationText
	}
	return text
}

func (a *Assembler) recordEvent(token string, currentPrice, targetPrice decimal.Decimal, text string) {
	if a.journal == nil {
		return
	}
	event := domain.AnalysisEvent{
		Token:        token,
		CurrentPrice: currentPrice,
		TargetPrice:  targetPrice,
		Text:         text,
		Timestamp:    a.now().UnixMilli(),
	}
	if err := a.journal.Save(event); err != nil {
		a.logger.Warn("failed to journal analysis event", zap.String("token", token), zap.Error(err))
	}
}
