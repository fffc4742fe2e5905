package risk

// State is the portfolio snapshot one trading cycle evaluates every signal
// against. It is assembled exactly once per cycle so all stages see the
// same numbers; re-querying balances mid-pipeline would double-count
// exposure.
type State struct {
	PortfolioValue  float64   // Total portfolio value in quote currency
	FreeBalance     float64   // Uncommitted quote balance
	CurrentExposure float64   // Value of all open positions
	BTCExposure     float64   // Value of positions in the BTC cluster
	OpenPositions   int       // Count of open positions
	TradesLastHour  int       // Trades placed in the trailing hour
	Drawdown        float64   // Current peak-to-trough drawdown, fraction
	RecentPnL       []float64 // Most recent closed-trade P&Ls, oldest first
	ClosedTrades    int       // Lifetime closed trade count
	WinRate         float64   // Fraction of closed trades that won
	AvgWin          float64   // Average winning P&L, positive
	AvgLoss         float64   // Average losing P&L, positive magnitude

	// Change24hPct is the 24h price change (percent) of the instrument
	// under evaluation; the only per-symbol field.
	Change24hPct float64
}

// ForSymbol returns a copy of the state carrying the instrument's 24h
// change, leaving the shared cycle state untouched.
func (s *State) ForSymbol(change24hPct float64) *State {
	copied := *s
	copied.Change24hPct = change24hPct
	return &copied
}

// performanceMultiplier rewards a hot streak and damps a cold one, judged
// over the last ten closed trades. Neutral with less history than that.
func (s *State) performanceMultiplier() float64 {
	if len(s.RecentPnL) < 10 {
		return 1.0
	}
	recent := s.RecentPnL[len(s.RecentPnL)-10:]
	wins := 0
	for _, pnl := range recent {
		if pnl > 0 {
			wins++
		}
	}
	winRate := float64(wins) / float64(len(recent))
	switch {
	case winRate > 0.70:
		return 1.2
	case winRate < 0.30:
		return 0.6
	default:
		return 1.0
	}
}

// DrawdownFromPnL computes the current peak-to-trough drawdown of a
// cumulative P&L series.
func DrawdownFromPnL(pnls []float64) float64 {
	if len(pnls) == 0 {
		return 0
	}

	cumulative := 0.0
	peak := 0.0
	drawdown := 0.0
	first := true
	for _, pnl := range pnls {
		cumulative += pnl
		if first || cumulative > peak {
			peak = cumulative
			first = false
		}
		drawdown = cumulative - peak
	}
	if peak == 0 {
		return 0
	}
	dd := drawdown / abs(peak)
	return abs(dd)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
