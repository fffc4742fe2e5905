// Package portfolio keeps the trading ledger: executed trades, periodic
// value snapshots, and the performance statistics derived from them.
package portfolio

import (
	"math"
	"sync"
	"time"

	"binance-trading-bot/internal/risk"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Trade is one round trip (or its open half) as recorded by the executor.
type Trade struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Source     string    `json:"source"`
	Quantity   float64   `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price,omitempty"`
	PnL        float64   `json:"pnl"`
	Closed     bool      `json:"closed"`
	OpenedAt   time.Time `json:"opened_at"`
	ClosedAt   time.Time `json:"closed_at,omitempty"`
}

// ValueSnapshot is a point-in-time account valuation.
type ValueSnapshot struct {
	Value       float64   `json:"value"`
	FreeBalance float64   `json:"free_balance"`
	Timestamp   time.Time `json:"timestamp"`
}

// Metrics is the aggregate performance report.
type Metrics struct {
	TotalTrades   int     `json:"total_trades"`
	ClosedTrades  int     `json:"closed_trades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"win_rate"`
	TotalPnL      float64 `json:"total_pnl"`
	AvgWin        float64 `json:"avg_win"`
	AvgLoss       float64 `json:"avg_loss"`
	ProfitFactor  float64 `json:"profit_factor"`
	BestTrade     float64 `json:"best_trade"`
	WorstTrade    float64 `json:"worst_trade"`
	CurrentStreak int     `json:"current_streak"` // Positive = wins, negative = losses
	Sharpe        float64 `json:"sharpe"`
	MaxDrawdown   float64 `json:"max_drawdown"`
}

// Tracker is the single source of truth for trade history and account
// valuation over time. Safe for concurrent use.
type Tracker struct {
	mu        sync.RWMutex
	trades    []Trade
	snapshots []ValueSnapshot
	logger    zerolog.Logger
}

func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{logger: logger.With().Str("component", "portfolio").Logger()}
}

// Record appends a trade, assigning an ID and open timestamp when the
// caller left them empty, and returns the stored copy.
func (t *Tracker) Record(trade Trade) Trade {
	if trade.ID == "" {
		trade.ID = uuid.New().String()
	}
	if trade.OpenedAt.IsZero() {
		trade.OpenedAt = time.Now()
	}
	if trade.Closed && trade.ClosedAt.IsZero() {
		trade.ClosedAt = time.Now()
	}

	t.mu.Lock()
	t.trades = append(t.trades, trade)
	t.mu.Unlock()

	t.logger.Debug().Str("trade_id", trade.ID).Str("symbol", trade.Symbol).
		Str("side", trade.Side).Float64("pnl", trade.PnL).Bool("closed", trade.Closed).
		Msg("trade recorded")
	return trade
}

// Close marks an open trade closed with its realized result.
func (t *Tracker) Close(id string, exitPrice, pnl float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.trades {
		if t.trades[i].ID == id && !t.trades[i].Closed {
			t.trades[i].ExitPrice = exitPrice
			t.trades[i].PnL = pnl
			t.trades[i].Closed = true
			t.trades[i].ClosedAt = time.Now()
			return true
		}
	}
	return false
}

// Snapshot records a point-in-time account valuation.
func (t *Tracker) Snapshot(value, freeBalance float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshots = append(t.snapshots, ValueSnapshot{
		Value:       value,
		FreeBalance: freeBalance,
		Timestamp:   time.Now(),
	})
}

// Snapshots returns a copy of the valuation history.
func (t *Tracker) Snapshots() []ValueSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]ValueSnapshot, len(t.snapshots))
	copy(out, t.snapshots)
	return out
}

// Trades returns a copy of the trade ledger, oldest first.
func (t *Tracker) Trades() []Trade {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Trade, len(t.trades))
	copy(out, t.trades)
	return out
}

// ClosedPnLs returns realized results in close order.
func (t *Tracker) ClosedPnLs() []float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closedPnLsLocked()
}

func (t *Tracker) closedPnLsLocked() []float64 {
	var pnls []float64
	for _, trade := range t.trades {
		if trade.Closed {
			pnls = append(pnls, trade.PnL)
		}
	}
	return pnls
}

// TradesLastHour counts trades opened within the trailing hour.
func (t *Tracker) TradesLastHour() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cutoff := time.Now().Add(-time.Hour)
	count := 0
	for _, trade := range t.trades {
		if trade.OpenedAt.After(cutoff) {
			count++
		}
	}
	return count
}

// Metrics computes the aggregate performance report from the ledger.
func (t *Tracker) Metrics() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m := Metrics{TotalTrades: len(t.trades)}
	var winSum, lossSum float64
	for _, trade := range t.trades {
		if !trade.Closed {
			continue
		}
		m.ClosedTrades++
		m.TotalPnL += trade.PnL
		if trade.PnL > 0 {
			m.Wins++
			winSum += trade.PnL
		} else {
			m.Losses++
			lossSum += -trade.PnL
		}
		if trade.PnL > m.BestTrade {
			m.BestTrade = trade.PnL
		}
		if trade.PnL < m.WorstTrade {
			m.WorstTrade = trade.PnL
		}
	}
	if m.ClosedTrades > 0 {
		m.WinRate = float64(m.Wins) / float64(m.ClosedTrades)
	}
	if m.Wins > 0 {
		m.AvgWin = winSum / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AvgLoss = lossSum / float64(m.Losses)
	}
	if lossSum > 0 {
		m.ProfitFactor = winSum / lossSum
	} else if winSum > 0 {
		m.ProfitFactor = math.Inf(1)
	}
	m.CurrentStreak = t.streakLocked()
	m.Sharpe = t.sharpeLocked()
	m.MaxDrawdown = maxDrawdown(t.closedPnLsLocked())
	return m
}

// streakLocked is the run length of the latest result sign; positive for
// consecutive wins, negative for consecutive losses.
func (t *Tracker) streakLocked() int {
	streak := 0
	for i := len(t.trades) - 1; i >= 0; i-- {
		trade := t.trades[i]
		if !trade.Closed {
			continue
		}
		winning := trade.PnL > 0
		if streak == 0 {
			if winning {
				streak = 1
			} else {
				streak = -1
			}
			continue
		}
		if winning == (streak > 0) {
			if winning {
				streak++
			} else {
				streak--
			}
		} else {
			break
		}
	}
	return streak
}

// sharpeLocked is the mean over standard deviation of snapshot-to-snapshot
// returns. No annualization; the value is only compared against itself.
func (t *Tracker) sharpeLocked() float64 {
	if len(t.snapshots) < 3 {
		return 0
	}
	var returns []float64
	for i := 1; i < len(t.snapshots); i++ {
		prev := t.snapshots[i-1].Value
		if prev == 0 {
			continue
		}
		returns = append(returns, (t.snapshots[i].Value-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance)
}

// maxDrawdown is the worst peak-to-trough decline of cumulative realized
// PnL, as a fraction of the peak.
func maxDrawdown(pnls []float64) float64 {
	cumulative, peak, worst := 0.0, 0.0, 0.0
	for _, pnl := range pnls {
		cumulative += pnl
		if cumulative > peak {
			peak = cumulative
		}
		if peak > 0 {
			dd := (peak - cumulative) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// BuildState assembles the per-cycle risk snapshot. Exposure and position
// counts come from the position book; everything trade-derived comes from
// the ledger. Built once per cycle and shared across symbols.
func (t *Tracker) BuildState(portfolioValue, freeBalance, currentExposure, btcExposure float64, openPositions int) *risk.State {
	pnls := t.ClosedPnLs()
	m := t.Metrics()
	return &risk.State{
		PortfolioValue:  portfolioValue,
		FreeBalance:     freeBalance,
		CurrentExposure: currentExposure,
		BTCExposure:     btcExposure,
		OpenPositions:   openPositions,
		TradesLastHour:  t.TradesLastHour(),
		Drawdown:        risk.DrawdownFromPnL(pnls),
		RecentPnL:       pnls,
		ClosedTrades:    m.ClosedTrades,
		WinRate:         m.WinRate,
		AvgWin:          m.AvgWin,
		AvgLoss:         m.AvgLoss,
	}
}
