package risk

import (
	"math"
	"strings"

	"binance-trading-bot/config"
	"binance-trading-bot/internal/signal"

	"github.com/rs/zerolog"
)

// Stage is one risk check or adjustment. Stages are pure with respect to
// the state and monotone on the signal: quantity only shrinks, validity
// only flips to false. The sizing stage is the one exception on quantity
// (it converts the placeholder fraction into a real quantity); every stage
// after it only tightens.
type Stage struct {
	Name  string
	Apply func(sig *signal.TradingSignal, st *State)
}

// Manager folds a signal through the ordered stage list. A signal
// invalidated at any stage short-circuits the rest.
type Manager struct {
	cfg     config.RiskConfig
	trading config.TradingConfig
	stages  []Stage
	logger  zerolog.Logger
}

// NewManager builds the gate with its fixed stage order.
func NewManager(cfg config.RiskConfig, trading config.TradingConfig, logger zerolog.Logger) *Manager {
	m := &Manager{
		cfg:     cfg,
		trading: trading,
		logger:  logger.With().Str("component", "risk").Logger(),
	}
	m.stages = []Stage{
		{"exposure", m.checkExposure},
		{"position_sizing", m.sizePosition},
		{"drawdown", m.checkDrawdown},
		{"correlation", m.checkCorrelation},
		{"volatility", m.adjustForVolatility},
		{"balance", m.checkBalance},
		{"frequency", m.checkFrequency},
	}
	return m
}

// Stages exposes the ordered stage list, mainly for tests.
func (m *Manager) Stages() []Stage {
	return m.stages
}

// Evaluate runs the signal through every stage in order. Rejection is the
// expected, successful outcome of a risk violation, surfaced only in logs.
func (m *Manager) Evaluate(sig *signal.TradingSignal, st *State) *signal.TradingSignal {
	if sig == nil || !sig.IsValid {
		return sig
	}

	for _, stage := range m.stages {
		stage.Apply(sig, st)
		if !sig.IsValid {
			m.logger.Info().Str("symbol", sig.Symbol).Str("stage", stage.Name).
				Str("reason", sig.InvalidReason).Msg("signal rejected")
			return sig
		}
	}

	m.logger.Info().Str("symbol", sig.Symbol).Float64("quantity", sig.Quantity).
		Msg("risk checks passed")
	return sig
}

// checkExposure caps total position value at the configured share of the
// portfolio, shrinking the new position into the remaining headroom.
func (m *Manager) checkExposure(sig *signal.TradingSignal, st *State) {
	if st.PortfolioValue <= 0 {
		sig.Invalidate("portfolio value unknown")
		return
	}

	signalValue := sig.Quantity * sig.Price
	exposureRatio := (st.CurrentExposure + signalValue) / st.PortfolioValue
	if exposureRatio <= m.cfg.MaxExposure {
		return
	}

	headroom := m.cfg.MaxExposure*st.PortfolioValue - st.CurrentExposure
	if headroom <= 0 {
		sig.Invalidate("no exposure headroom")
		return
	}
	sig.ShrinkQuantity(headroom / sig.Price)
}

// sizePosition recomputes the traded quantity from the suggested fraction,
// scaled by confidence, volatility and recent performance, then clamped
// into the strategy's size band. A free-balance shortfall against the
// minimum-free rule scales the size down proportionally.
func (m *Manager) sizePosition(sig *signal.TradingSignal, st *State) {
	if st.PortfolioValue <= 0 || sig.Price <= 0 {
		sig.Invalidate("cannot size position without portfolio value")
		return
	}

	baseSize := sig.Quantity // Placeholder fraction from the recommendation
	confidenceMultiplier := sig.Confidence * sig.Confidence

	volatility := math.Abs(st.Change24hPct) / 100
	if volatility == 0 {
		volatility = 0.02
	}
	volatilityAdjustment := math.Min(1.0, 0.02/volatility)

	adjusted := baseSize * confidenceMultiplier * volatilityAdjustment * st.performanceMultiplier()
	adjusted = math.Max(m.cfg.MinPositionSize, math.Min(adjusted, m.cfg.MaxPositionSize))

	minFree := st.PortfolioValue * m.cfg.MinFreeBalanceRatio
	if st.FreeBalance < minFree && minFree > 0 {
		adjusted *= st.FreeBalance / minFree
	}

	sig.Quantity = st.PortfolioValue * adjusted / sig.Price
	if sig.Quantity <= 0 {
		sig.Invalidate("sized to zero")
	}
}

// checkDrawdown is the circuit breaker. The emergency threshold halts all
// new trades; approaching the max-drawdown limit halves the position;
// reaching it invalidates.
func (m *Manager) checkDrawdown(sig *signal.TradingSignal, st *State) {
	if st.Drawdown >= m.cfg.EmergencyStopDrawdown {
		sig.Invalidate("emergency drawdown stop")
		return
	}
	if st.Drawdown >= m.cfg.MaxDrawdown {
		sig.Invalidate("max drawdown reached")
		return
	}
	if st.Drawdown >= m.cfg.MaxDrawdown*0.80 {
		sig.ShrinkQuantity(sig.Quantity * 0.5)
	}
}

// checkCorrelation shrinks new BTC-cluster positions proportionally once
// the cluster holds more than its share of the portfolio.
func (m *Manager) checkCorrelation(sig *signal.TradingSignal, st *State) {
	if st.PortfolioValue <= 0 || !strings.Contains(sig.Symbol, "BTC") {
		return
	}
	btcRatio := st.BTCExposure / st.PortfolioValue
	if btcRatio > m.cfg.MaxCorrelationExposure {
		sig.ShrinkQuantity(sig.Quantity * m.cfg.MaxCorrelationExposure / btcRatio)
	}
}

// adjustForVolatility damps positions in instruments that moved more than
// the daily threshold.
func (m *Manager) adjustForVolatility(sig *signal.TradingSignal, st *State) {
	dailyChange := math.Abs(st.Change24hPct) / 100
	if dailyChange > m.cfg.VolatilityThreshold {
		sig.ShrinkQuantity(sig.Quantity * m.cfg.VolatilityThreshold / dailyChange)
	}
}

// checkBalance enforces the absolute balance floor and caps the position
// at the available free balance.
func (m *Manager) checkBalance(sig *signal.TradingSignal, st *State) {
	if st.FreeBalance < m.cfg.MinBalanceUSD {
		sig.Invalidate("free balance below minimum")
		return
	}
	if positionValue := sig.Quantity * sig.Price; positionValue > st.FreeBalance {
		sig.ShrinkQuantity(st.FreeBalance / sig.Price)
	}
}

// checkFrequency blocks trading past the concurrent-position and hourly
// trade caps.
func (m *Manager) checkFrequency(sig *signal.TradingSignal, st *State) {
	if st.OpenPositions >= m.trading.MaxOpenPositions {
		sig.Invalidate("max concurrent positions reached")
		return
	}
	if st.TradesLastHour >= m.trading.MaxTradesPerHour {
		sig.Invalidate("hourly trade cap reached")
	}
}
