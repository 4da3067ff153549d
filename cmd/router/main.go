// Signal router - decision core of the prediction-market trading agent.
//
// Consumes directional trading signals from the upstream stream, runs
// them through the layered risk-admission pipeline, prices against live
// market data, sizes the position and dispatches to the execution
// gateway (or records the decision in dry-run mode).
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/signalrouter/bot"
	"github.com/web3guy0/signalrouter/exec"
	"github.com/web3guy0/signalrouter/feeds"
	"github.com/web3guy0/signalrouter/internal/config"
	"github.com/web3guy0/signalrouter/metrics"
	"github.com/web3guy0/signalrouter/predictor"
	"github.com/web3guy0/signalrouter/risk"
	"github.com/web3guy0/signalrouter/storage"
)

const version = "1.2.0"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	routerCfg := config.RouterFromEnv()

	log.Info().
		Str("version", version).
		Bool("enabled", routerCfg.Enabled).
		Bool("dry_run", routerCfg.DryRun).
		Msg("⚡ Signal router starting...")

	// ====== CORE COMPONENTS ======

	// 1. Feature cache + signal bus, fed by the upstream WebSocket stream
	cache := feeds.NewFeatureCache()
	bus := feeds.NewSignalBus(routerCfg.QueueCapacity)
	feed := feeds.NewWSFeed(cfg.FeedWSURL, cache, bus)

	// 2. Router core
	router := risk.NewRouter(routerCfg, cache)

	// 3. Confidence model (advisory)
	router.SetModel(predictor.NewScoreModel())

	// 4. Execution backend, live mode only
	if !routerCfg.DryRun {
		router.SetBackend(exec.NewClient(cfg.ExecBaseURL, cfg.ExecAPIKey, cfg.ExecPassphrase))
	}

	// 5. Persistence (optional)
	if cfg.DatabasePath != "" {
		db, err := storage.New(cfg.DatabasePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		router.SetStore(db)
	}

	// 6. Telegram notifier (optional)
	var tg *bot.TelegramBot
	if cfg.TelegramToken != "" {
		tg, err = bot.NewTelegramBot(cfg.TelegramToken, cfg.TelegramChatID, router)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Telegram disabled")
		} else {
			router.SetNotifier(tg)
			tg.Start()
		}
	}

	// 7. Prometheus
	metrics.Serve(cfg.MetricsAddr)
	log.Info().Str("addr", cfg.MetricsAddr).Msg("📊 Metrics server started")

	// ====== START ======

	bus.Start()
	feed.Start()
	router.Start(bus)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("Shutting down...")

	router.Stop()
	feed.Stop()
	bus.Stop()
	if tg != nil {
		tg.Stop()
	}

	log.Info().Msg("Goodbye 👋")
}
