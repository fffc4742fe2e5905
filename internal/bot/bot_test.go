package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"binance-trading-bot/config"
	"binance-trading-bot/internal/advisor"
	"binance-trading-bot/internal/ai/ml"
	"binance-trading-bot/internal/database"
	"binance-trading-bot/internal/events"
	"binance-trading-bot/internal/exchange"
	"binance-trading-bot/internal/market"
	"binance-trading-bot/internal/order"
	"binance-trading-bot/internal/portfolio"
	"binance-trading-bot/internal/pump"
	"binance-trading-bot/internal/risk"
	"binance-trading-bot/internal/signal"
)

// stubLLM fails every call, pushing the analyzer onto its neutral
// fallback so cycles run without advisory trades.
type stubLLM struct{}

func (stubLLM) Complete(systemPrompt, userPrompt string) (string, error) {
	return "", errors.New("advisory unavailable")
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.TradingConfig.Symbols = []string{"BTCUSDT"}
	cfg.TradingConfig.CycleSeconds = 180
	cfg.TradingConfig.DryRun = true
	cfg.TradingConfig.MinConfidence = 0.6
	cfg.TradingConfig.MinRiskReward = 1.5
	cfg.TradingConfig.DepositUSD = 1000
	cfg.IndicatorConfig = config.IndicatorConfig{
		RSIPeriod: 14, RSIOverbought: 70, RSIOversold: 30,
		MACDFast: 12, MACDSlow: 26, MACDSignal: 9,
		BBPeriod: 20, BBStdDev: 2, CacheTTL: time.Minute,
	}
	cfg.RiskConfig = config.RiskConfig{
		MaxPositionSize: 0.1, MinPositionSize: 0.01,
		MaxExposure: 0.5, MaxDrawdown: 0.9, EmergencyStopDrawdown: 0.5,
		MaxCorrelationExposure: 0.3, VolatilityThreshold: 0.1,
		MinFreeBalanceRatio: 0.1, MinBalanceUSD: 10,
		KellyFraction: 0.5, KellyMin: 0.05, KellyMax: 0.25, KellyMinTrades: 10,
	}
	cfg.Strategy = config.StrategyForDeposit(1000)
	cfg.Strategy.UsePumpDetector = false
	return cfg
}

func testBot(t *testing.T, cfg *config.Config) *Bot {
	t.Helper()
	logger := zerolog.Nop()
	client := exchange.NewMockClient()
	tracker := portfolio.NewTracker(logger)
	book := order.NewPositionBook()
	executor := order.NewExecutor(client, book, tracker, cfg.Strategy, cfg.TradingConfig, logger)

	return New(Deps{
		Config:    cfg,
		Client:    client,
		Snapshots: market.NewBuilder(client, cfg.IndicatorConfig, logger),
		Analyzer:  advisor.NewAnalyzer(stubLLM{}, cfg.IndicatorConfig.CacheTTL, logger),
		Signals:   signal.NewBuilder(cfg.TradingConfig, cfg.IndicatorConfig, logger),
		Risk:      risk.NewManager(cfg.RiskConfig, cfg.TradingConfig, logger),
		Kelly:     risk.NewKellyRefiner(cfg.RiskConfig, logger),
		Pumps:     pump.NewDetector(cfg.PumpConfig, cfg.Strategy, client, logger),
		Predictor: ml.NewPredictor(ml.DefaultWeights()),
		Book:      book,
		Executor:  executor,
		Tracker:   tracker,
		Bus:       events.NewBus(),
		Positions: database.NewPositionStore(config.RedisConfig{}, logger),
	}, logger)
}

func TestCycleCompletesWithoutAdvisoryTrades(t *testing.T) {
	b := testBot(t, testConfig())

	b.runCycle(context.Background())

	if got := b.Status().Cycles; got != 1 {
		t.Errorf("cycles = %d, want 1", got)
	}
	if b.deps.Book.Count() != 0 {
		t.Errorf("expected no positions from neutral fallback, got %d", b.deps.Book.Count())
	}
}

func TestPauseCommandSkipsEntries(t *testing.T) {
	b := testBot(t, testConfig())

	if !b.Enqueue(Command{Kind: CommandPause, Reason: "maintenance"}) {
		t.Fatal("enqueue failed")
	}
	b.runCycle(context.Background())

	status := b.Status()
	if !status.Paused {
		t.Error("expected paused state")
	}
	if status.PauseCause != "maintenance" {
		t.Errorf("pause cause = %q", status.PauseCause)
	}
	if status.Cycles != 1 {
		t.Errorf("paused cycles still count, got %d", status.Cycles)
	}
}

func TestResumeCommand(t *testing.T) {
	b := testBot(t, testConfig())

	b.Enqueue(Command{Kind: CommandPause})
	b.runCycle(context.Background())
	b.Enqueue(Command{Kind: CommandResume})
	b.runCycle(context.Background())

	if b.Status().Paused {
		t.Error("expected resumed state")
	}
}

func TestEmergencyStopLiquidatesAndPauses(t *testing.T) {
	cfg := testConfig()
	b := testBot(t, cfg)

	// Drawdown 0.8: peak 100, trough 20, against a 0.5 limit.
	open := b.deps.Tracker.Record(portfolio.Trade{Symbol: "ETHUSDT", Side: "BUY", Source: "advisor", Quantity: 1, EntryPrice: 100})
	b.deps.Tracker.Close(open.ID, 200, 100)
	lose := b.deps.Tracker.Record(portfolio.Trade{Symbol: "ETHUSDT", Side: "BUY", Source: "advisor", Quantity: 1, EntryPrice: 100})
	b.deps.Tracker.Close(lose.ID, 20, -80)

	// Leave one position open so the stop has something to liquidate.
	trade := b.deps.Tracker.Record(portfolio.Trade{Symbol: "BTCUSDT", Side: "BUY", Source: "advisor", Quantity: 0.01, EntryPrice: 40000})
	b.deps.Book.Open(order.Position{
		Symbol: "BTCUSDT", Kind: "long", Quantity: 0.01, EntryPrice: 40000,
		StopLoss: 1, TakeProfit: 1e9, TradeID: trade.ID,
	})

	b.runCycle(context.Background())

	status := b.Status()
	if !status.Paused || status.PauseCause != "emergency stop" {
		t.Fatalf("expected emergency pause, got %+v", status)
	}
	if b.deps.Book.Count() != 0 {
		t.Errorf("expected all positions liquidated, %d remain", b.deps.Book.Count())
	}

	// The stop latches: further cycles stay halted.
	b.runCycle(context.Background())
	if !b.Status().Paused {
		t.Error("expected stop to persist across cycles")
	}
}

func TestStartRestoresPersistedPositions(t *testing.T) {
	b := testBot(t, testConfig())

	saved := &order.Position{
		Symbol: "ETHUSDT", Kind: "long", Quantity: 1, EntryPrice: 2500,
		StopLoss: 1, TakeProfit: 1e9, OpenedAt: time.Now(),
	}
	if err := b.deps.Positions.Save(context.Background(), saved); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := b.deps.Book.Get("ETHUSDT"); ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("restored position never appeared in the book")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestUnknownCommandIgnored(t *testing.T) {
	b := testBot(t, testConfig())
	b.Enqueue(Command{Kind: "reboot"})
	b.runCycle(context.Background())

	if b.Status().Paused {
		t.Error("unknown command must not change state")
	}
}
