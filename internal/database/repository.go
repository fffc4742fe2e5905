package database

import (
	"context"
	"fmt"
	"time"

	"binance-trading-bot/internal/portfolio"
	"binance-trading-bot/internal/signal"
)

// SaveTrade inserts a newly opened trade.
func (db *DB) SaveTrade(ctx context.Context, t portfolio.Trade) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO trades (id, symbol, side, source, quantity, entry_price, exit_price, pnl, closed, opened_at, closed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, '0001-01-01T00:00:00Z'::timestamptz))`,
		t.ID, t.Symbol, t.Side, t.Source, t.Quantity, t.EntryPrice,
		t.ExitPrice, t.PnL, t.Closed, t.OpenedAt, t.ClosedAt)
	if err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	return nil
}

// CloseTrade records the exit of an open trade.
func (db *DB) CloseTrade(ctx context.Context, tradeID string, exitPrice, pnl float64, closedAt time.Time) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE trades SET exit_price = $2, pnl = $3, closed = TRUE, closed_at = $4 WHERE id = $1`,
		tradeID, exitPrice, pnl, closedAt)
	if err != nil {
		return fmt.Errorf("failed to close trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("trade %s not found", tradeID)
	}
	return nil
}

// RecentTrades returns the newest trades first, up to limit.
func (db *DB) RecentTrades(ctx context.Context, limit int) ([]portfolio.Trade, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, symbol, side, source, quantity, entry_price, exit_price, pnl, closed, opened_at, COALESCE(closed_at, '0001-01-01T00:00:00Z'::timestamptz)
		 FROM trades ORDER BY opened_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []portfolio.Trade
	for rows.Next() {
		var t portfolio.Trade
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Side, &t.Source, &t.Quantity,
			&t.EntryPrice, &t.ExitPrice, &t.PnL, &t.Closed, &t.OpenedAt, &t.ClosedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// LoadOpenTrades returns trades that never closed, oldest first. Used to
// rebuild the in-memory ledger after a restart.
func (db *DB) LoadOpenTrades(ctx context.Context) ([]portfolio.Trade, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, symbol, side, source, quantity, entry_price, exit_price, pnl, closed, opened_at, COALESCE(closed_at, '0001-01-01T00:00:00Z'::timestamptz)
		 FROM trades WHERE closed = FALSE ORDER BY opened_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query open trades: %w", err)
	}
	defer rows.Close()

	var trades []portfolio.Trade
	for rows.Next() {
		var t portfolio.Trade
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Side, &t.Source, &t.Quantity,
			&t.EntryPrice, &t.ExitPrice, &t.PnL, &t.Closed, &t.OpenedAt, &t.ClosedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// SaveSnapshot records a point-in-time account valuation.
func (db *DB) SaveSnapshot(ctx context.Context, s portfolio.ValueSnapshot) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO value_snapshots (value, free_balance, taken_at) VALUES ($1, $2, $3)`,
		s.Value, s.FreeBalance, s.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// RecentSnapshots returns valuations taken since the cutoff, oldest first.
func (db *DB) RecentSnapshots(ctx context.Context, since time.Time) ([]portfolio.ValueSnapshot, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT value, free_balance, taken_at FROM value_snapshots WHERE taken_at >= $1 ORDER BY taken_at ASC`,
		since)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []portfolio.ValueSnapshot
	for rows.Next() {
		var s portfolio.ValueSnapshot
		if err := rows.Scan(&s.Value, &s.FreeBalance, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// SaveSignal records a signal outcome: executed, or rejected with the
// first recorded reason.
func (db *DB) SaveSignal(ctx context.Context, sig *signal.TradingSignal, executed bool) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO signals (symbol, side, source, confidence, price, quantity, stop_loss, take_profit, executed, reject_reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sig.Symbol, string(sig.Side), string(sig.Source), sig.Confidence, sig.Price,
		sig.Quantity, sig.StopLoss, sig.TakeProfit, executed, sig.InvalidReason, sig.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save signal: %w", err)
	}
	return nil
}
