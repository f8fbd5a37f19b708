// Package internal wires the pipeline together: cache gateway, upstream
// clients, price resolver, market data fetcher, context store, and the
// recommendation assembler.
package internal

import (
	"context"
	"fmt"
	"strings"

	"github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vkuzmin/cryptosage/config"
	"github.com/vkuzmin/cryptosage/internal/cache"
	"github.com/vkuzmin/cryptosage/internal/clients"
	"github.com/vkuzmin/cryptosage/internal/domain"
	"github.com/vkuzmin/cryptosage/internal/services/analysis"
	"github.com/vkuzmin/cryptosage/internal/services/marketdata"
	"github.com/vkuzmin/cryptosage/internal/services/pricer"
	"github.com/vkuzmin/cryptosage/internal/services/vectorstore"
	"github.com/vkuzmin/cryptosage/internal/storage/analyses"
)

const hyperliquidAPIURL = "https://api.hyperliquid.xyz"

// Advisor is the application facade behind the chat front-end and the
// dashboard.
type Advisor struct {
	cache     *cache.Gateway
	resolver  *pricer.Resolver
	market    *marketdata.Fetcher
	contexts  *vectorstore.Store
	assembler *analysis.Assembler
	journal   *analyses.WALStore
	logger    *zap.Logger
}

func NewAdvisor(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Advisor, error) {
	gateway, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	openaiClient, err := clients.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}

	geckoClient := clients.NewCoinGeckoClient(cfg.CoinGeckoURL, cfg.CoinGeckoAPIKey)

	pineconeClient, err := clients.NewPineconeClient(cfg.PineconeHost, cfg.PineconeAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create pinecone client: %w", err)
	}

	sources, err := buildPriceSources(cfg.PriceSources, geckoClient)
	if err != nil {
		return nil, err
	}

	journal, err := analyses.NewWALStore(cfg.JournalDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open analysis journal: %w", err)
	}

	market := marketdata.NewFetcher(gateway, geckoClient, logger)
	contexts := vectorstore.NewStore(openaiClient, pineconeClient, logger)
	assembler := analysis.NewAssembler(gateway, market, contexts, openaiClient, journal, logger)

	return &Advisor{
		cache:     gateway,
		resolver:  pricer.NewResolver(logger, sources...),
		market:    market,
		contexts:  contexts,
		assembler: assembler,
		journal:   journal,
		logger:    logger,
	}, nil
}

// buildPriceSources instantiates resolvers in the configured priority
// order. Exchange clients run unauthenticated, public market data needs
// no keys.
func buildPriceSources(names []string, gecko *clients.CoinGeckoClient) ([]pricer.Source, error) {
	sources := make([]pricer.Source, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(name) {
		case "coingecko":
			sources = append(sources, pricer.NewCoinGeckoSource(gecko))
		case "binance":
			sources = append(sources, pricer.NewBinanceSource(binance.NewClient("", "")))
		case "bybit":
			sources = append(sources, pricer.NewBybitSource(bybit.NewClient()))
		case "hyperliquid":
			sources = append(sources, pricer.NewHyperliquidSource(hyperliquidAPIURL))
		default:
			return nil, fmt.Errorf("unknown price source %q", name)
		}
	}
	return sources, nil
}

// ResolvePrice returns the current USD price for a ticker from the first
// source that answers.
func (a *Advisor) ResolvePrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	return a.resolver.Resolve(ctx, ticker)
}

// GetMarketSnapshot returns cached-or-fresh market statistics for one token.
func (a *Advisor) GetMarketSnapshot(ctx context.Context, ticker string) (domain.MarketSnapshot, error) {
	return a.market.GetSnapshot(ctx, ticker)
}

// GetBatchMarketSnapshots returns statistics for a set of tokens keyed by
// canonical token ID. Tokens the provider does not know are absent from
// the result.
func (a *Advisor) GetBatchMarketSnapshots(ctx context.Context, tickers []string) (map[string]domain.MarketSnapshot, error) {
	return a.market.GetBatchSnapshots(ctx, tickers)
}

// GetRecommendation returns a buy/sell/hold narrative for the token at the
// given prices.
func (a *Advisor) GetRecommendation(ctx context.Context, ticker string, currentPrice, targetPrice decimal.Decimal) (string, error) {
	return a.assembler.GetRecommendation(ctx, ticker, currentPrice, targetPrice)
}

// PruneContexts deletes stored analyses for a token older than the given
// number of days.
func (a *Advisor) PruneContexts(ctx context.Context, ticker string, ageDays int) error {
	token := domain.NewToken(ticker).ID
	return a.contexts.DeleteOlderThan(ctx, token, ageDays)
}

// Journal exposes the analysis event log for the dashboard.
func (a *Advisor) Journal() *analyses.WALStore {
	return a.journal
}

func (a *Advisor) Close() {
	if err := a.journal.Close(); err != nil {
		a.logger.Warn("failed to close analysis journal", zap.Error(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("failed to close redis connection", zap.Error(err))
	}
}
