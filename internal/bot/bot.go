// Package bot implements the Telegram front-end. It translates chat
// commands into advisor calls and keeps a short-lived session per chat for
// commands that need a follow-up message from the user.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vkuzmin/cryptosage/internal/domain"
)

const (
	helpText = `Available commands:
/price - get the current price of a token
/analysis TOKEN TARGETPRICE - get a recommendation for a token
/manual TOKEN TARGETPRICE - same as /analysis
/faq - frequently asked questions
/about - about this bot
/help - show this message`

	aboutText = "CryptoSage is a crypto market assistant. It fetches live prices and market statistics and generates buy/sell/hold recommendations using an AI model enriched with prior analyses."

	faqText = `Q: Where do prices come from?
A: CoinGecko and major exchanges, first source that answers wins.

Q: Is this financial advice?
A: No. Recommendations are generated by an AI model and are for information only.

Q: Which tokens are supported?
A: Any token with a USD market on the configured sources. Use the ticker, e.g. BTC or ETH.`

	askTickerText   = "Which token? Send me the ticker, e.g. BTC."
	askAnalysisText = "Send me the token and your target price, e.g. BTC 65000."
	expiredText     = "I stopped waiting for your reply. Send the command again when you are ready."
)

// Advisor is the pipeline surface the bot needs.
type Advisor interface {
	ResolvePrice(ctx context.Context, ticker string) (decimal.Decimal, error)
	GetMarketSnapshot(ctx context.Context, ticker string) (domain.MarketSnapshot, error)
	GetRecommendation(ctx context.Context, ticker string, currentPrice, targetPrice decimal.Decimal) (string, error)
}

// Bot polls Telegram for updates and dispatches them.
type Bot struct {
	api      *tgbotapi.BotAPI
	advisor  Advisor
	sessions *sessionManager
	logger   *zap.Logger
}

func New(token string, advisor Advisor, sessionTimeout time.Duration, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram api client: %w", err)
	}

	b := &Bot{
		api:     api,
		advisor: advisor,
		logger:  logger,
	}
	b.sessions = newSessionManager(sessionTimeout, func(chatID int64) {
		b.send(chatID, expiredText)
	})

	logger.Info("telegram bot authorized", zap.String("username", api.Self.UserName))
	return b, nil
}

// Run polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.sessions.close()
			return
		case update, ok := <-updates:
			if !ok {
				b.sessions.close()
				return
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		b.handleCommand(ctx, chatID, msg.Command(), strings.TrimSpace(msg.CommandArguments()))
		return
	}

	switch b.sessions.take(chatID) {
	case pendingTicker:
		b.replyPrice(ctx, chatID, strings.TrimSpace(msg.Text))
	case pendingAnalysisArgs:
		b.replyAnalysis(ctx, chatID, strings.TrimSpace(msg.Text))
	default:
		b.send(chatID, "I did not understand that. Try /help.")
	}
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, command, args string) {
	switch command {
	case "start":
		b.send(chatID, "Welcome to CryptoSage! "+helpText)
	case "help":
		b.send(chatID, helpText)
	case "about":
		b.send(chatID, aboutText)
	case "faq":
		b.send(chatID, faqText)
	case "price":
		if args != "" {
			b.replyPrice(ctx, chatID, args)
			return
		}
		b.sessions.begin(chatID, pendingTicker)
		b.send(chatID, askTickerText)
	case "analysis", "manual":
		if args != "" {
			b.replyAnalysis(ctx, chatID, args)
			return
		}
		b.sessions.begin(chatID, pendingAnalysisArgs)
		b.send(chatID, askAnalysisText)
	default:
		b.send(chatID, "Unknown command. Try /help.")
	}
}

func (b *Bot) replyPrice(ctx context.Context, chatID int64, ticker string) {
	if ticker == "" {
		b.send(chatID, askTickerText)
		return
	}

	price, err := b.advisor.ResolvePrice(ctx, ticker)
	if err != nil {
		b.logger.Warn("price lookup failed", zap.String("ticker", ticker), zap.Error(err))
		b.send(chatID, fmt.Sprintf("Sorry, I could not find a price for %s right now.", strings.ToUpper(ticker)))
		return
	}

	reply := fmt.Sprintf("%s is trading at $%s.", strings.ToUpper(ticker), price.String())
	if snapshot, err := b.advisor.GetMarketSnapshot(ctx, ticker); err == nil {
		reply += fmt.Sprintf(" 24h change: %.2f%%.", snapshot.PriceChangePercentage24h)
	}
	b.send(chatID, reply)
}

func (b *Bot) replyAnalysis(ctx context.Context, chatID int64, args string) {
	ticker, target, err := parseAnalysisArgs(args)
	if err != nil {
		b.send(chatID, askAnalysisText)
		return
	}

	price, err := b.advisor.ResolvePrice(ctx, ticker)
	if err != nil {
		b.logger.Warn("price lookup failed", zap.String("ticker", ticker), zap.Error(err))
		b.send(chatID, fmt.Sprintf("Sorry, I could not find a price for %s right now.", strings.ToUpper(ticker)))
		return
	}

	b.send(chatID, fmt.Sprintf("%s is at $%s. Working on your analysis...", strings.ToUpper(ticker), price.String()))

	text, err := b.advisor.GetRecommendation(ctx, ticker, price, target)
	if err != nil {
		b.logger.Error("recommendation failed", zap.String("ticker", ticker), zap.Error(err))
		b.send(chatID, "Sorry, market data is unavailable right now. Please try again later.")
		return
	}
	b.send(chatID, text)
}

// parseAnalysisArgs parses "TICKER TARGETPRICE". The target must be a
// positive number.
func parseAnalysisArgs(args string) (string, decimal.Decimal, error) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return "", decimal.Decimal{}, fmt.Errorf("expected 2 arguments, got %d", len(fields))
	}

	target, err := decimal.NewFromString(fields[1])
	if err != nil {
		return "", decimal.Decimal{}, fmt.Errorf("failed to parse target price: %w", err)
	}
	if !target.IsPositive() {
		return "", decimal.Decimal{}, fmt.Errorf("target price must be positive")
	}
	return fields[0], target, nil
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn("failed to send telegram message", zap.Int64("chat", chatID), zap.Error(err))
	}
}
