package risk

import (
	"binance-trading-bot/config"
	"binance-trading-bot/internal/signal"

	"github.com/rs/zerolog"
)

// KellyRefiner recomputes the final traded quantity as a fractional-Kelly
// bound on the portfolio. It runs after the risk gate and, like the gate's
// stages, only ever tightens the signal.
type KellyRefiner struct {
	cfg    config.RiskConfig
	logger zerolog.Logger
}

func NewKellyRefiner(cfg config.RiskConfig, logger zerolog.Logger) *KellyRefiner {
	return &KellyRefiner{
		cfg:    cfg,
		logger: logger.With().Str("component", "kelly").Logger(),
	}
}

// Refine applies fractional Kelly sizing. With fewer closed trades than
// the configured minimum the incoming quantity passes through unchanged,
// since insufficient data is never an error.
func (k *KellyRefiner) Refine(sig *signal.TradingSignal, st *State) *signal.TradingSignal {
	if sig == nil || !sig.IsValid {
		return sig
	}
	if st.ClosedTrades < k.cfg.KellyMinTrades {
		return sig
	}

	fraction := k.Fraction(st.WinRate, st.AvgWin, st.AvgLoss)
	fraction *= sig.Confidence

	if st.PortfolioValue <= 0 || sig.Price <= 0 {
		return sig
	}
	quantity := st.PortfolioValue * fraction / sig.Price
	sig.ShrinkQuantity(quantity)

	k.logger.Debug().Str("symbol", sig.Symbol).Float64("kelly_fraction", fraction).
		Float64("quantity", sig.Quantity).Msg("kelly sizing applied")
	return sig
}

// Fraction computes the clamped fractional-Kelly portfolio share for the
// given statistics. Output is always within [KellyMin, KellyMax], whatever
// the raw formula yields.
func (k *KellyRefiner) Fraction(winRate, avgWin, avgLoss float64) float64 {
	payoff := 2.0 // Assume a healthy payoff when no losses are recorded yet
	if avgLoss > 0 {
		payoff = avgWin / avgLoss
	}

	p := winRate
	q := 1 - p
	kelly := 0.0
	if payoff > 0 {
		kelly = (payoff*p - q) / payoff
	}

	fraction := kelly * k.cfg.KellyFraction
	if fraction < k.cfg.KellyMin {
		fraction = k.cfg.KellyMin
	}
	if fraction > k.cfg.KellyMax {
		fraction = k.cfg.KellyMax
	}
	return fraction
}
