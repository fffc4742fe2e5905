package portfolio

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func closedTrade(symbol string, pnl float64) Trade {
	return Trade{Symbol: symbol, Side: "BUY", Quantity: 1, EntryPrice: 100, ExitPrice: 100 + pnl, PnL: pnl, Closed: true}
}

func TestRecordAssignsIdentity(t *testing.T) {
	tr := NewTracker(zerolog.Nop())
	stored := tr.Record(Trade{Symbol: "BTCUSDT", Side: "BUY", Quantity: 0.1, EntryPrice: 50000})

	if stored.ID == "" {
		t.Error("expected an assigned trade ID")
	}
	if stored.OpenedAt.IsZero() {
		t.Error("expected an assigned open timestamp")
	}
	if got := len(tr.Trades()); got != 1 {
		t.Errorf("ledger size = %d, want 1", got)
	}
}

func TestCloseRealizesResult(t *testing.T) {
	tr := NewTracker(zerolog.Nop())
	stored := tr.Record(Trade{Symbol: "BTCUSDT", Side: "BUY", Quantity: 0.1, EntryPrice: 50000})

	if !tr.Close(stored.ID, 51000, 100) {
		t.Fatal("expected close to find the open trade")
	}
	if tr.Close(stored.ID, 51000, 100) {
		t.Error("closing twice should fail")
	}

	trades := tr.Trades()
	if !trades[0].Closed || trades[0].PnL != 100 {
		t.Errorf("trade not closed correctly: %+v", trades[0])
	}
	if pnls := tr.ClosedPnLs(); len(pnls) != 1 || pnls[0] != 100 {
		t.Errorf("closed pnls = %v, want [100]", pnls)
	}
}

func TestMetrics(t *testing.T) {
	tr := NewTracker(zerolog.Nop())
	for _, pnl := range []float64{100, -50, 200, -50, 80} {
		tr.Record(closedTrade("ETHUSDT", pnl))
	}
	tr.Record(Trade{Symbol: "BTCUSDT", Side: "BUY", Quantity: 0.1, EntryPrice: 50000}) // still open

	m := tr.Metrics()
	if m.TotalTrades != 6 || m.ClosedTrades != 5 {
		t.Errorf("trade counts = %d/%d, want 6/5", m.TotalTrades, m.ClosedTrades)
	}
	if m.Wins != 3 || m.Losses != 2 {
		t.Errorf("wins/losses = %d/%d, want 3/2", m.Wins, m.Losses)
	}
	if math.Abs(m.WinRate-0.6) > 1e-9 {
		t.Errorf("win rate = %.4f, want 0.6", m.WinRate)
	}
	if math.Abs(m.AvgWin-380.0/3) > 1e-9 {
		t.Errorf("avg win = %.4f, want %.4f", m.AvgWin, 380.0/3)
	}
	if math.Abs(m.AvgLoss-50) > 1e-9 {
		t.Errorf("avg loss = %.4f, want 50", m.AvgLoss)
	}
	if math.Abs(m.ProfitFactor-3.8) > 1e-9 {
		t.Errorf("profit factor = %.4f, want 3.8", m.ProfitFactor)
	}
	if m.BestTrade != 200 || m.WorstTrade != -50 {
		t.Errorf("best/worst = %.0f/%.0f, want 200/-50", m.BestTrade, m.WorstTrade)
	}
	if m.CurrentStreak != 1 {
		t.Errorf("streak = %d, want 1", m.CurrentStreak)
	}
}

func TestMetricsLosingStreak(t *testing.T) {
	tr := NewTracker(zerolog.Nop())
	for _, pnl := range []float64{100, -10, -20, -30} {
		tr.Record(closedTrade("ETHUSDT", pnl))
	}
	if m := tr.Metrics(); m.CurrentStreak != -3 {
		t.Errorf("streak = %d, want -3", m.CurrentStreak)
	}
}

func TestMaxDrawdown(t *testing.T) {
	// Cumulative: 100, 300, 150, 60, 200 -> worst decline 240/300 = 0.8
	got := maxDrawdown([]float64{100, 200, -150, -90, 140})
	if math.Abs(got-0.8) > 1e-9 {
		t.Errorf("max drawdown = %.4f, want 0.8", got)
	}
	if maxDrawdown(nil) != 0 {
		t.Error("empty series should have zero drawdown")
	}
}

func TestSharpeNeedsHistory(t *testing.T) {
	tr := NewTracker(zerolog.Nop())
	tr.Snapshot(10000, 5000)
	tr.Snapshot(10100, 5000)
	if m := tr.Metrics(); m.Sharpe != 0 {
		t.Errorf("sharpe with two snapshots = %.4f, want 0", m.Sharpe)
	}

	tr.Snapshot(10200, 5000)
	tr.Snapshot(10150, 5000)
	if m := tr.Metrics(); m.Sharpe == 0 {
		t.Error("expected a nonzero sharpe with varied returns")
	}
}

func TestTradesLastHour(t *testing.T) {
	tr := NewTracker(zerolog.Nop())
	tr.Record(Trade{Symbol: "BTCUSDT", OpenedAt: time.Now().Add(-2 * time.Hour)})
	tr.Record(Trade{Symbol: "BTCUSDT", OpenedAt: time.Now().Add(-10 * time.Minute)})
	tr.Record(Trade{Symbol: "ETHUSDT"})

	if got := tr.TradesLastHour(); got != 2 {
		t.Errorf("trades last hour = %d, want 2", got)
	}
}

func TestBuildState(t *testing.T) {
	tr := NewTracker(zerolog.Nop())
	for _, pnl := range []float64{100, -50, 200} {
		tr.Record(closedTrade("ETHUSDT", pnl))
	}

	state := tr.BuildState(10000, 5000, 2000, 500, 2)
	if state.PortfolioValue != 10000 || state.FreeBalance != 5000 {
		t.Errorf("value/free = %.0f/%.0f, want 10000/5000", state.PortfolioValue, state.FreeBalance)
	}
	if state.CurrentExposure != 2000 || state.BTCExposure != 500 || state.OpenPositions != 2 {
		t.Errorf("exposure fields wrong: %+v", state)
	}
	if state.ClosedTrades != 3 {
		t.Errorf("closed trades = %d, want 3", state.ClosedTrades)
	}
	if math.Abs(state.WinRate-2.0/3) > 1e-9 {
		t.Errorf("win rate = %.4f, want %.4f", state.WinRate, 2.0/3)
	}
	if len(state.RecentPnL) != 3 {
		t.Errorf("recent pnl length = %d, want 3", len(state.RecentPnL))
	}
	if state.TradesLastHour != 3 {
		t.Errorf("trades last hour = %d, want 3", state.TradesLastHour)
	}
	// Cumulative 100, 50, 250: the series ends on its peak.
	if state.Drawdown != 0 {
		t.Errorf("drawdown = %.4f, want 0", state.Drawdown)
	}
}
