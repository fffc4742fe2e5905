package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"binance-trading-bot/config"
	"binance-trading-bot/internal/advisor"
	"binance-trading-bot/internal/ai/ml"
	"binance-trading-bot/internal/ai/sentiment"
	"binance-trading-bot/internal/api"
	"binance-trading-bot/internal/auth"
	"binance-trading-bot/internal/bot"
	"binance-trading-bot/internal/database"
	"binance-trading-bot/internal/events"
	"binance-trading-bot/internal/exchange"
	"binance-trading-bot/internal/logging"
	"binance-trading-bot/internal/market"
	"binance-trading-bot/internal/notification"
	"binance-trading-bot/internal/order"
	"binance-trading-bot/internal/portfolio"
	"binance-trading-bot/internal/pump"
	"binance-trading-bot/internal/risk"
	"binance-trading-bot/internal/signal"
	"binance-trading-bot/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LoggingConfig)
	logger.Info().Float64("deposit_usd", cfg.TradingConfig.DepositUSD).
		Str("strategy", cfg.Strategy.Name).Bool("dry_run", cfg.TradingConfig.DryRun).
		Msg("configuration loaded")

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Exchange credentials come from Vault when enabled, the environment
	// otherwise.
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("vault client init failed")
	}
	creds, err := vaultClient.Credentials(ctx, vault.Credentials{
		APIKey:    cfg.BinanceConfig.APIKey,
		SecretKey: cfg.BinanceConfig.SecretKey,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load exchange credentials")
	}

	var client exchange.Client
	if cfg.BinanceConfig.MockMode {
		client = exchange.NewMockClient()
		logger.Warn().Msg("mock exchange enabled, no real market data")
	} else {
		baseURL := cfg.BinanceConfig.BaseURL
		if cfg.BinanceConfig.TestNet {
			baseURL = "https://testnet.binance.vision"
		}
		client = exchange.NewBinanceClient(creds.APIKey, creds.SecretKey, baseURL)
	}

	bus := events.NewBus()

	// Optional persistence.
	var db *database.DB
	if cfg.DatabaseConfig.Enabled {
		db, err = database.New(cfg.DatabaseConfig, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("database init failed")
		}
		defer db.Close()
		if err := db.RunMigrations(ctx); err != nil {
			logger.Fatal().Err(err).Msg("migrations failed")
		}
	}
	positions := database.NewPositionStore(cfg.RedisConfig, logger)
	defer positions.Close()

	// The trading pipeline.
	tracker := portfolio.NewTracker(logger)
	book := order.NewPositionBook()
	executor := order.NewExecutor(client, book, tracker, cfg.Strategy, cfg.TradingConfig, logger)
	snapshots := market.NewBuilder(client, cfg.IndicatorConfig, logger)
	analyzer := advisor.NewAnalyzer(llmClient(cfg), cfg.IndicatorConfig.CacheTTL, logger)
	signals := signal.NewBuilder(cfg.TradingConfig, cfg.IndicatorConfig, logger)
	riskManager := risk.NewManager(cfg.RiskConfig, cfg.TradingConfig, logger)
	kelly := risk.NewKellyRefiner(cfg.RiskConfig, logger)
	pumps := pump.NewDetector(cfg.PumpConfig, cfg.Strategy, client, logger)
	predictor := ml.NewPredictor(ml.DefaultWeights())
	sentimentAnalyzer := sentiment.NewAnalyzer(15*time.Minute, logger)

	notifier := notification.NewManager(cfg.NotificationConfig, logger)
	notifier.AttachBus(bus)

	trader := bot.New(bot.Deps{
		Config:    cfg,
		Client:    client,
		Snapshots: snapshots,
		Analyzer:  analyzer,
		Signals:   signals,
		Risk:      riskManager,
		Kelly:     kelly,
		Pumps:     pumps,
		Predictor: predictor,
		Sentiment: sentimentAnalyzer,
		Book:      book,
		Executor:  executor,
		Tracker:   tracker,
		Bus:       bus,
		Notifier:  notifier,
		Database:  db,
		Positions: positions,
	}, logger)

	trader.Start(ctx)

	if cfg.ServerConfig.Enabled {
		authService := auth.NewService(cfg.AuthConfig, logger)
		server := api.NewServer(cfg.ServerConfig, api.Deps{
			Bot:       trader,
			Book:      book,
			Executor:  executor,
			Tracker:   tracker,
			Pumps:     pumps,
			Predictor: predictor,
			Sentiment: sentimentAnalyzer,
			Auth:      authService,
			Bus:       bus,
		}, logger)

		go func() {
			if err := server.Start(ctx); err != nil {
				logger.Error().Err(err).Msg("api server failed")
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	trader.Stop()
}

// llmClient builds the advisory-model client for the configured provider.
func llmClient(cfg *config.Config) advisor.LLMClient {
	clientCfg := advisor.DefaultClientConfig()
	clientCfg.Timeout = cfg.AIConfig.RequestTimeout
	if cfg.AIConfig.LLMModel != "" {
		clientCfg.Model = cfg.AIConfig.LLMModel
	}

	switch cfg.AIConfig.LLMProvider {
	case "claude":
		clientCfg.Provider = advisor.ProviderClaude
		clientCfg.APIKey = cfg.AIConfig.ClaudeAPIKey
	case "openai":
		clientCfg.Provider = advisor.ProviderOpenAI
		clientCfg.APIKey = cfg.AIConfig.OpenAIAPIKey
	default:
		clientCfg.Provider = advisor.ProviderDeepSeek
		clientCfg.APIKey = cfg.AIConfig.DeepSeekAPIKey
	}

	return advisor.NewClient(clientCfg)
}
