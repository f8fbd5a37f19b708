// Command cryptosage runs the crypto market assistant Telegram bot.
// Prices come from CoinGecko and exchange public APIs, recommendations
// from an OpenAI model enriched with prior analyses stored in Pinecone.
//
// Usage:
//
//	cryptosage --config config.yaml
//	cryptosage setup   (interactive configuration wizard)
//
// Required environment variables:
//
//	TELEGRAM_BOT_TOKEN, OPENAI_API_KEY, PINECONE_HOST, PINECONE_API_KEY
//
// Optional: COINGECKO_API_KEY, REDIS_PASSWORD
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vkuzmin/cryptosage/config"
	"github.com/vkuzmin/cryptosage/dashboard"
	"github.com/vkuzmin/cryptosage/internal"
	"github.com/vkuzmin/cryptosage/internal/bot"
	"github.com/vkuzmin/cryptosage/internal/setup"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		os.Args = []string{os.Args[0], "--config", "config.gen.yaml"}
	}

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	advisor, err := internal.NewAdvisor(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build advisor", zap.Error(err))
	}
	defer advisor.Close()

	if cfg.Dashboard.Enabled {
		srv := dashboard.NewServer(cfg.Dashboard.Addr, advisor.Journal())
		go func() {
			var err error
			if len(cfg.Dashboard.Domains) > 0 {
				err = srv.StartWithAutoTLS(ctx, cfg.Dashboard.Domains, cfg.Dashboard.TLSCacheDir)
			} else {
				err = srv.Start(ctx)
			}
			if err != nil {
				logger.Error("dashboard stopped", zap.Error(err))
			}
		}()
		logger.Info("dashboard enabled", zap.String("addr", cfg.Dashboard.Addr))
	}

	tgbot, err := bot.New(cfg.TelegramToken, advisor, cfg.SessionTimeout, logger)
	if err != nil {
		logger.Fatal("failed to start telegram bot", zap.Error(err))
	}

	logger.Info("cryptosage started")
	tgbot.Run(ctx)
	logger.Info("cryptosage stopped")
}
