// Package bot runs the trading loop: every cycle it syncs open positions,
// rebuilds the portfolio state, scans for pumps, and walks each configured
// symbol through the advisory pipeline. Control commands from the API are
// applied between cycles, never mid-pipeline.
package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"binance-trading-bot/config"
	"binance-trading-bot/internal/advisor"
	"binance-trading-bot/internal/ai/ml"
	"binance-trading-bot/internal/ai/sentiment"
	"binance-trading-bot/internal/database"
	"binance-trading-bot/internal/events"
	"binance-trading-bot/internal/exchange"
	"binance-trading-bot/internal/market"
	"binance-trading-bot/internal/notification"
	"binance-trading-bot/internal/order"
	"binance-trading-bot/internal/portfolio"
	"binance-trading-bot/internal/pump"
	"binance-trading-bot/internal/risk"
	"binance-trading-bot/internal/signal"
)

// Command kinds accepted between cycles.
const (
	CommandPause        = "pause"
	CommandResume       = "resume"
	CommandLiquidate    = "liquidate"
	CommandLiquidateAll = "liquidate_all"
)

// Command is a control request queued by the API and applied at the next
// cycle boundary.
type Command struct {
	Kind   string `json:"kind"`
	Symbol string `json:"symbol,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Status is the operator-facing bot state.
type Status struct {
	Running    bool      `json:"running"`
	Paused     bool      `json:"paused"`
	DryRun     bool      `json:"dry_run"`
	Symbols    []string  `json:"symbols"`
	Cycles     int64     `json:"cycles"`
	StartedAt  time.Time `json:"started_at"`
	LastCycle  time.Time `json:"last_cycle"`
	PauseCause string    `json:"pause_cause,omitempty"`
}

// Deps carries everything the bot orchestrates. Database and Positions
// are optional; nil disables persistence.
type Deps struct {
	Config    *config.Config
	Client    exchange.Client
	Snapshots *market.Builder
	Analyzer  *advisor.Analyzer
	Signals   *signal.Builder
	Risk      *risk.Manager
	Kelly     *risk.KellyRefiner
	Pumps     *pump.Detector
	Predictor *ml.Predictor
	Sentiment *sentiment.Analyzer
	Book      *order.PositionBook
	Executor  *order.Executor
	Tracker   *portfolio.Tracker
	Bus       *events.Bus
	Notifier  *notification.Manager
	Database  *database.DB
	Positions *database.PositionStore
}

// Bot is the trading loop orchestrator.
type Bot struct {
	deps   Deps
	cfg    *config.Config
	logger zerolog.Logger

	commands chan Command

	mu         sync.RWMutex
	running    bool
	paused     bool
	pauseCause string
	cycles     int64
	startedAt  time.Time
	lastCycle  time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func New(deps Deps, logger zerolog.Logger) *Bot {
	b := &Bot{
		deps:     deps,
		cfg:      deps.Config,
		logger:   logger.With().Str("component", "bot").Logger(),
		commands: make(chan Command, 16),
	}

	// Exits settle inside the executor; observe them here for events
	// and persisted-state cleanup.
	deps.Executor.SetOnClose(func(symbol string, exitPrice, pnl float64, reason string) {
		deps.Bus.PublishTradeClosed(symbol, exitPrice, pnl, reason)
		if deps.Positions != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := deps.Positions.Delete(ctx, symbol); err != nil {
				b.logger.Warn().Err(err).Str("symbol", symbol).Msg("failed to drop persisted position")
			}
		}
	})
	return b
}

// Start launches the trading loop. It returns immediately; Stop shuts the
// loop down and waits for the in-flight cycle to finish.
func (b *Bot) Start(ctx context.Context) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	b.running = true
	b.startedAt = time.Now()
	b.cancel = cancel
	b.done = make(chan struct{})
	b.mu.Unlock()

	if b.cfg.AIConfig.SentimentEnabled && b.deps.Sentiment != nil {
		b.deps.Sentiment.Start(loopCtx)
	}
	b.restorePositions(loopCtx)

	b.deps.Bus.Publish(events.Event{Type: events.EventBotStarted, Data: map[string]interface{}{
		"dry_run": b.cfg.TradingConfig.DryRun,
		"symbols": strings.Join(b.cfg.TradingConfig.Symbols, ","),
	}})
	b.logger.Info().Bool("dry_run", b.cfg.TradingConfig.DryRun).
		Strs("symbols", b.cfg.TradingConfig.Symbols).
		Int("cycle_seconds", b.cfg.TradingConfig.CycleSeconds).
		Msg("trading bot started")

	go b.loop(loopCtx)
}

// Stop halts the loop and waits for it to exit.
func (b *Bot) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	cancel, done := b.cancel, b.done
	b.mu.Unlock()

	cancel()
	<-done

	b.mu.Lock()
	b.running = false
	b.mu.Unlock()

	b.deps.Bus.Publish(events.Event{Type: events.EventBotStopped})
	b.logger.Info().Msg("trading bot stopped")
}

// Enqueue queues a control command for the next cycle boundary. Returns
// false when the queue is full.
func (b *Bot) Enqueue(cmd Command) bool {
	select {
	case b.commands <- cmd:
		return true
	default:
		return false
	}
}

// Status returns the current bot state.
func (b *Bot) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Status{
		Running:    b.running,
		Paused:     b.paused,
		DryRun:     b.cfg.TradingConfig.DryRun,
		Symbols:    b.cfg.TradingConfig.Symbols,
		Cycles:     b.cycles,
		StartedAt:  b.startedAt,
		LastCycle:  b.lastCycle,
		PauseCause: b.pauseCause,
	}
}

func (b *Bot) loop(ctx context.Context) {
	defer close(b.done)

	cycle := time.NewTicker(time.Duration(b.cfg.TradingConfig.CycleSeconds) * time.Second)
	defer cycle.Stop()
	snapshots := time.NewTicker(time.Hour)
	defer snapshots.Stop()
	reports := time.NewTicker(24 * time.Hour)
	defer reports.Stop()

	b.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-cycle.C:
			b.runCycle(ctx)
		case <-snapshots.C:
			b.takeSnapshot(ctx)
		case <-reports.C:
			b.sendDailyReport()
		}
	}
}

// runCycle is one full pass: commands, position sync, state build, pump
// scan, then the advisory pipeline per symbol.
func (b *Bot) runCycle(ctx context.Context) {
	b.drainCommands()

	b.deps.Executor.Sync()
	b.persistPositions(ctx)

	state := b.buildState()

	if b.emergencyStop(state) {
		return
	}

	if !b.entriesAllowed() {
		b.finishCycle(state)
		return
	}

	if b.cfg.Strategy.UsePumpDetector {
		b.pumpPass(ctx, state)
	}
	b.advisorPass(ctx, state)

	b.finishCycle(state)
}

func (b *Bot) finishCycle(state *risk.State) {
	b.mu.Lock()
	b.cycles++
	b.lastCycle = time.Now()
	cycles := b.cycles
	b.mu.Unlock()

	b.deps.Bus.Publish(events.Event{Type: events.EventCycleCompleted, Data: map[string]interface{}{
		"cycle":           cycles,
		"portfolio_value": state.PortfolioValue,
		"open_positions":  state.OpenPositions,
		"drawdown":        state.Drawdown,
	}})
	b.logger.Debug().Int64("cycle", cycles).Float64("portfolio_value", state.PortfolioValue).
		Int("open_positions", state.OpenPositions).Msg("cycle completed")
}

// entriesAllowed checks pause state and market-wide sentiment extremes.
// Position syncing continues regardless; only new entries stop.
func (b *Bot) entriesAllowed() bool {
	b.mu.RLock()
	paused := b.paused
	b.mu.RUnlock()
	if paused {
		return false
	}

	if b.cfg.AIConfig.SentimentEnabled && b.deps.Sentiment != nil {
		if pause, reason := b.deps.Sentiment.ShouldPause(); pause {
			b.logger.Warn().Str("reason", reason).Msg("entries paused on sentiment extreme")
			return false
		}
	}
	return true
}

// buildState assembles the portfolio snapshot every signal in this cycle
// is evaluated against.
func (b *Bot) buildState() *risk.State {
	free, err := b.deps.Client.GetFreeBalance("USDT")
	if err != nil {
		b.logger.Warn().Err(err).Msg("balance fetch failed, using deposit baseline")
		free = b.cfg.TradingConfig.DepositUSD
	}

	exposure, btcExposure := b.deps.Book.Exposure(func(symbol string) float64 {
		price, err := b.deps.Client.GetCurrentPrice(symbol)
		if err != nil {
			return 0
		}
		return price
	})

	return b.deps.Tracker.BuildState(free+exposure, free, exposure, btcExposure, b.deps.Book.Count())
}

// emergencyStop liquidates everything and pauses when drawdown breaches
// the hard limit. Resuming requires an operator command.
func (b *Bot) emergencyStop(state *risk.State) bool {
	limit := b.cfg.RiskConfig.EmergencyStopDrawdown
	if limit <= 0 || state.Drawdown < limit {
		return false
	}

	b.mu.Lock()
	if b.paused && b.pauseCause == "emergency stop" {
		b.mu.Unlock()
		return true
	}
	b.paused = true
	b.pauseCause = "emergency stop"
	b.mu.Unlock()

	b.logger.Error().Float64("drawdown", state.Drawdown).Float64("limit", limit).
		Msg("emergency stop: liquidating all positions")
	if err := b.deps.Executor.LiquidateAll("emergency stop"); err != nil {
		b.logger.Error().Err(err).Msg("emergency liquidation failed")
	}
	b.deps.Bus.PublishEmergencyStop(state.Drawdown, "max drawdown breached")
	return true
}

// pumpPass scans all symbols for pumps and trades the validated ones.
func (b *Bot) pumpPass(ctx context.Context, state *risk.State) {
	for _, detected := range b.deps.Pumps.Scan(b.cfg.TradingConfig.Symbols) {
		if ctx.Err() != nil {
			return
		}
		b.deps.Bus.PublishPumpDetected(detected.Symbol, detected.PriceChangePercent,
			detected.VolumeChange, detected.Confidence)
		if !detected.IsValid {
			continue
		}

		if b.cfg.AIConfig.MLEnabled && !b.confirmPump(detected.Symbol) {
			b.logger.Info().Str("symbol", detected.Symbol).Msg("pump not confirmed by predictor")
			b.deps.Bus.PublishSignalRejected(detected.Symbol, string(signal.SourcePump), "predictor disagrees")
			continue
		}

		sig := b.deps.Pumps.ToTradingSignal(detected)
		b.evaluateAndExecute(ctx, sig, state.ForSymbol(detected.Change24h))
	}
}

// confirmPump asks the predictor whether recent candles support the move.
func (b *Bot) confirmPump(symbol string) bool {
	klines, err := b.deps.Client.GetKlines(symbol, "5m", 100)
	if err != nil {
		b.logger.Warn().Err(err).Str("symbol", symbol).Msg("kline fetch failed, skipping pump confirmation")
		return true
	}
	price, err := b.deps.Client.GetCurrentPrice(symbol)
	if err != nil {
		return true
	}
	pred := b.deps.Predictor.Predict(symbol, klines, price)
	if pred == nil {
		return true
	}
	return b.deps.Predictor.ConfirmPump(pred)
}

// advisorPass runs the snapshot -> recommendation -> signal pipeline for
// every configured symbol.
func (b *Bot) advisorPass(ctx context.Context, state *risk.State) {
	for _, symbol := range b.cfg.TradingConfig.Symbols {
		if ctx.Err() != nil {
			return
		}

		snapshot, err := b.deps.Snapshots.Build(symbol)
		if err != nil {
			b.logger.Warn().Err(err).Str("symbol", symbol).Msg("snapshot build failed")
			b.deps.Bus.PublishError("market", "snapshot build failed", err)
			continue
		}

		rec := b.deps.Analyzer.Analyze(snapshot)
		sig := b.deps.Signals.Build(snapshot, rec)
		if sig == nil {
			continue
		}

		if b.cfg.AIConfig.MLEnabled {
			b.applyPrediction(symbol, snapshot.Price, rec, sig)
		}
		if b.cfg.AIConfig.SentimentEnabled && b.deps.Sentiment != nil {
			b.deps.Sentiment.AdjustSignal(sig)
		}

		sig = b.deps.Signals.Finalize(sig, snapshot)
		if sig == nil {
			continue
		}

		b.evaluateAndExecute(ctx, sig, state.ForSymbol(snapshot.Change24hPct))
	}
}

// applyPrediction blends the predictor's directional call into the
// signal's confidence.
func (b *Bot) applyPrediction(symbol string, price float64, rec *advisor.Recommendation, sig *signal.TradingSignal) {
	klines, err := b.deps.Client.GetKlines(symbol, "5m", 100)
	if err != nil {
		b.logger.Warn().Err(err).Str("symbol", symbol).Msg("kline fetch failed, skipping prediction")
		return
	}
	pred := b.deps.Predictor.Predict(symbol, klines, price)
	sig.Confidence = b.deps.Predictor.AdjustConfidence(rec.Direction, sig.Confidence, pred)
}

// evaluateAndExecute pushes a signal through the risk gate and the Kelly
// refiner, then fills it when it survives.
func (b *Bot) evaluateAndExecute(ctx context.Context, sig *signal.TradingSignal, state *risk.State) {
	sig = b.deps.Risk.Evaluate(sig, state)
	sig = b.deps.Kelly.Refine(sig, state)

	if !sig.Ready() {
		b.deps.Bus.PublishSignalRejected(sig.Symbol, string(sig.Source), sig.InvalidReason)
		b.saveSignal(ctx, sig, false)
		return
	}

	b.deps.Bus.PublishSignal(sig.Symbol, string(sig.Side), string(sig.Source), sig.Confidence, sig.Quantity)

	pos, err := b.deps.Executor.Execute(sig)
	if err != nil {
		b.logger.Error().Err(err).Str("symbol", sig.Symbol).Msg("execution failed")
		b.deps.Bus.PublishError("executor", "execution failed", err)
		b.saveSignal(ctx, sig, false)
		return
	}

	b.deps.Bus.PublishTradeOpened(pos.Symbol, string(sig.Side), pos.Source, pos.EntryPrice, pos.Quantity)
	b.saveSignal(ctx, sig, true)
	b.persistPosition(ctx, pos)
	b.saveTrade(ctx, pos.TradeID)
}

func (b *Bot) drainCommands() {
	for {
		select {
		case cmd := <-b.commands:
			b.applyCommand(cmd)
		default:
			return
		}
	}
}

func (b *Bot) applyCommand(cmd Command) {
	switch cmd.Kind {
	case CommandPause:
		b.mu.Lock()
		b.paused = true
		b.pauseCause = cmd.Reason
		b.mu.Unlock()
		b.deps.Bus.Publish(events.Event{Type: events.EventBotPaused, Data: map[string]interface{}{"reason": cmd.Reason}})
		b.logger.Info().Str("reason", cmd.Reason).Msg("bot paused")
	case CommandResume:
		b.mu.Lock()
		b.paused = false
		b.pauseCause = ""
		b.mu.Unlock()
		b.deps.Bus.Publish(events.Event{Type: events.EventBotResumed})
		b.logger.Info().Msg("bot resumed")
	case CommandLiquidate:
		if err := b.deps.Executor.Liquidate(cmd.Symbol, "operator request"); err != nil {
			b.logger.Error().Err(err).Str("symbol", cmd.Symbol).Msg("liquidation failed")
		}
	case CommandLiquidateAll:
		if err := b.deps.Executor.LiquidateAll("operator request"); err != nil {
			b.logger.Error().Err(err).Msg("liquidation failed")
		}
	default:
		b.logger.Warn().Str("kind", cmd.Kind).Msg("unknown command")
	}
}

// restorePositions reloads persisted positions into the book on startup.
func (b *Bot) restorePositions(ctx context.Context) {
	if b.deps.Positions == nil {
		return
	}
	saved, err := b.deps.Positions.LoadAll(ctx)
	if err != nil {
		b.logger.Warn().Err(err).Msg("failed to load persisted positions")
		return
	}
	for symbol, pos := range saved {
		if _, ok := b.deps.Book.Get(symbol); ok {
			continue
		}
		b.deps.Book.Open(*pos)
		b.logger.Info().Str("symbol", symbol).Float64("entry", pos.EntryPrice).
			Msg("restored position from store")
	}
}

func (b *Bot) persistPositions(ctx context.Context) {
	if b.deps.Positions == nil {
		return
	}
	for _, pos := range b.deps.Book.All() {
		b.persistPosition(ctx, pos)
	}
}

func (b *Bot) persistPosition(ctx context.Context, pos order.Position) {
	if b.deps.Positions == nil {
		return
	}
	if err := b.deps.Positions.Save(ctx, &pos); err != nil {
		b.logger.Warn().Err(err).Str("symbol", pos.Symbol).Msg("failed to persist position")
	}
}

func (b *Bot) saveSignal(ctx context.Context, sig *signal.TradingSignal, executed bool) {
	if b.deps.Database == nil {
		return
	}
	if err := b.deps.Database.SaveSignal(ctx, sig, executed); err != nil {
		b.logger.Warn().Err(err).Str("symbol", sig.Symbol).Msg("failed to save signal")
	}
}

func (b *Bot) saveTrade(ctx context.Context, tradeID string) {
	if b.deps.Database == nil {
		return
	}
	for _, trade := range b.deps.Tracker.Trades() {
		if trade.ID == tradeID {
			if err := b.deps.Database.SaveTrade(ctx, trade); err != nil {
				b.logger.Warn().Err(err).Str("trade_id", tradeID).Msg("failed to save trade")
			}
			return
		}
	}
}

// takeSnapshot records an hourly account valuation.
func (b *Bot) takeSnapshot(ctx context.Context) {
	state := b.buildState()
	b.deps.Tracker.Snapshot(state.PortfolioValue, state.FreeBalance)
	if b.deps.Database != nil {
		snap := portfolio.ValueSnapshot{
			Value:       state.PortfolioValue,
			FreeBalance: state.FreeBalance,
			Timestamp:   time.Now(),
		}
		if err := b.deps.Database.SaveSnapshot(ctx, snap); err != nil {
			b.logger.Warn().Err(err).Msg("failed to save snapshot")
		}
	}
}

func (b *Bot) sendDailyReport() {
	if b.deps.Notifier == nil {
		return
	}
	metrics := b.deps.Tracker.Metrics()
	if err := b.deps.Notifier.SendDailyReport(metrics.TotalPnL, metrics.ClosedTrades, metrics.WinRate); err != nil {
		b.logger.Warn().Err(err).Msg("daily report failed")
	}
}
