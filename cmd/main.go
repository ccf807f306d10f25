// Command botwatch serves a browser dashboard for an automated trading
// bot. It polls the bot's state API, derives per-account equity charts,
// trade event feeds and health statuses, and proxies control commands
// back to the bot.
//
// Usage:
//
//	botwatch --config config.yaml
//	botwatch --endpoint http://127.0.0.1:9000 --listen :8080
//	botwatch --init    (interactive configuration wizard)
//
// Optional environment variables (reference price cross-check):
//
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
//	For Hyperliquid: HYPERLIQUID_PRIVATE_KEY, HYPERLIQUID_API_URL
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/vadiminshakov/botwatch/config"
	"github.com/vadiminshakov/botwatch/internal"
	"github.com/vadiminshakov/botwatch/internal/logger"
	"github.com/vadiminshakov/botwatch/internal/setup"
)

func main() {
	// .env is optional, exchange API keys usually live there
	_ = godotenv.Load()

	for _, arg := range os.Args[1:] {
		if arg == "--init" || arg == "-init" {
			if err := setup.RunTUI(); err != nil {
				log.Fatal(err)
			}
			os.Args = []string{os.Args[0], "--config", "config.gen.yaml"}
			break
		}
	}

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer zlog.Sync()

	watcher, err := internal.NewWatcher(cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to build watcher", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := watcher.Run(ctx); err != nil {
		zlog.Fatal("watcher stopped", zap.Error(err))
	}
	zlog.Info("watcher stopped cleanly")
}
