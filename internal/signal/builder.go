package signal

import (
	"math"
	"time"

	"binance-trading-bot/config"
	"binance-trading-bot/internal/advisor"
	"binance-trading-bot/internal/market"

	"github.com/rs/zerolog"
)

// Builder turns a market snapshot plus an advisory recommendation into a
// candidate trading signal. Build rejects hopeless candidates outright;
// Finalize runs the validity checklist and is called only after all
// confidence adjustments (ML blending, sentiment) are done, so an adjusted
// confidence can still sink a candidate but never resurrect one.
type Builder struct {
	trading    config.TradingConfig
	indicators config.IndicatorConfig
	history    *History
	logger     zerolog.Logger
}

func NewBuilder(trading config.TradingConfig, indicators config.IndicatorConfig, logger zerolog.Logger) *Builder {
	return &Builder{
		trading:    trading,
		indicators: indicators,
		history:    NewHistory(),
		logger:     logger.With().Str("component", "signal").Logger(),
	}
}

// History exposes the emission history for frequency checks elsewhere.
func (b *Builder) History() *History {
	return b.history
}

// Build constructs a candidate signal, or nil when the recommendation is
// invalid, under-confident, or neutral, or when the trade's reward does not
// justify its risk.
func (b *Builder) Build(snapshot *market.Snapshot, rec *advisor.Recommendation) *TradingSignal {
	if rec == nil || !rec.IsValid {
		return nil
	}
	if rec.Confidence < b.trading.MinConfidence {
		b.logger.Debug().Str("symbol", snapshot.Symbol).Float64("confidence", rec.Confidence).
			Msg("confidence below minimum")
		return nil
	}
	if rec.Direction == advisor.DirectionNeutral {
		return nil
	}

	kind := KindLong
	side := SideBuy
	if rec.Direction == advisor.DirectionBearish {
		kind = KindShort
		side = SideSell
	}

	entry := snapshot.Price
	stopLoss := b.stopLoss(entry, kind, rec.StopLoss)
	takeProfit := b.takeProfit(entry, kind, rec.TargetPrice)

	riskReward := riskRewardRatio(entry, stopLoss, takeProfit, kind)
	if riskReward < b.trading.MinRiskReward {
		b.logger.Debug().Str("symbol", snapshot.Symbol).Float64("risk_reward", riskReward).
			Msg("risk/reward below minimum")
		return nil
	}

	return &TradingSignal{
		Symbol:         snapshot.Symbol,
		Side:           side,
		Kind:           kind,
		Source:         SourceAdvisor,
		Confidence:     rec.Confidence,
		Price:          entry,
		Quantity:       rec.PositionSize, // Placeholder fraction, resized by the risk gate
		StopLoss:       stopLoss,
		TakeProfit:     takeProfit,
		RiskReward:     riskReward,
		Leverage:       1.0,
		Reasoning:      rec.Reasoning,
		IsValid:        true,
		Recommendation: rec,
		Timestamp:      time.Now(),
	}
}

// Finalize runs the validity checklist. Every check must pass; a single
// failure invalidates the signal. Valid signals are recorded in the
// emission history.
func (b *Builder) Finalize(sig *TradingSignal, snapshot *market.Snapshot) *TradingSignal {
	if sig == nil {
		return nil
	}
	if sig.Confidence < b.trading.MinConfidence {
		sig.Invalidate("confidence below minimum after adjustments")
		return sig
	}

	type check struct {
		name string
		pass bool
	}

	// Against the model-suggested entry when there is one; pump signals
	// always enter at market.
	refEntry := sig.Price
	if sig.Recommendation != nil && sig.Recommendation.EntryPrice > 0 {
		refEntry = sig.Recommendation.EntryPrice
	}
	entryDiff := math.Abs(refEntry-snapshot.Price) / snapshot.Price
	rsi := snapshot.Indicator("rsi_5m", 50)
	volumeRatio := snapshot.Indicator("volume_ratio", 1.0)

	checks := []check{
		{"entry price", entryDiff < 0.02},
	}
	if sig.Kind == KindLong {
		checks = append(checks,
			check{"stop loss", sig.StopLoss < sig.Price},
			check{"take profit", sig.TakeProfit > sig.Price},
			check{"rsi overbought", rsi < b.indicators.RSIOverbought},
		)
	} else {
		checks = append(checks,
			check{"stop loss", sig.StopLoss > sig.Price},
			check{"take profit", sig.TakeProfit < sig.Price},
			check{"rsi oversold", rsi > b.indicators.RSIOversold},
		)
	}
	checks = append(checks,
		check{"volume", volumeRatio >= 0.8},
		check{"signal frequency", b.history.RecentCount(sig.Symbol, time.Hour) < b.trading.MaxTradesPerHour},
	)

	for _, c := range checks {
		if !c.pass {
			b.logger.Debug().Str("symbol", sig.Symbol).Str("check", c.name).Msg("validity check failed")
			sig.Invalidate("failed check: " + c.name)
			return sig
		}
	}

	b.history.Record(sig.Symbol, sig.Timestamp)
	b.logger.Info().Str("symbol", sig.Symbol).Str("side", string(sig.Side)).
		Float64("price", sig.Price).Float64("stop_loss", sig.StopLoss).
		Float64("take_profit", sig.TakeProfit).Float64("risk_reward", sig.RiskReward).
		Msg("signal generated")
	return sig
}

// stopLoss picks the tighter of the suggested level and the default
// percentage stop.
func (b *Builder) stopLoss(entry float64, kind PositionKind, suggested float64) float64 {
	if kind == KindLong {
		def := entry * (1 - b.trading.DefaultStopLoss)
		if suggested > 0 {
			return math.Min(suggested, def)
		}
		return def
	}
	def := entry * (1 + b.trading.DefaultStopLoss)
	if suggested > 0 {
		return math.Max(suggested, def)
	}
	return def
}

// takeProfit picks the more ambitious of the suggested level and the
// default percentage target.
func (b *Builder) takeProfit(entry float64, kind PositionKind, suggested float64) float64 {
	if kind == KindLong {
		def := entry * (1 + b.trading.DefaultTakeProfit)
		if suggested > 0 {
			return math.Max(suggested, def)
		}
		return def
	}
	def := entry * (1 - b.trading.DefaultTakeProfit)
	if suggested > 0 {
		return math.Min(suggested, def)
	}
	return def
}

func riskRewardRatio(entry, stopLoss, takeProfit float64, kind PositionKind) float64 {
	var risk, reward float64
	if kind == KindLong {
		risk = entry - stopLoss
		reward = takeProfit - entry
	} else {
		risk = stopLoss - entry
		reward = entry - takeProfit
	}
	if risk <= 0 {
		return 0
	}
	return reward / risk
}
