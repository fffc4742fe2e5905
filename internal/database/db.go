// Package database persists the trading ledger to PostgreSQL and mirrors
// open position state through Redis so a restart resumes where it left off.
// Both stores are optional; the bot runs fully in-memory without them.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"binance-trading-bot/config"
)

// DB wraps the pgx connection pool.
type DB struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// New connects to PostgreSQL using the configured URL and verifies the
// connection with a ping.
func New(cfg config.DatabaseConfig, logger zerolog.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolCfg.MaxConns = 25
	poolCfg.MinConns = 5
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		pool:   pool,
		logger: logger.With().Str("component", "database").Logger(),
	}
	db.logger.Info().Msg("connected to PostgreSQL")
	return db, nil
}

// Close releases the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// migrations run in order at startup. Each statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS trades (
		id UUID PRIMARY KEY,
		symbol VARCHAR(20) NOT NULL,
		side VARCHAR(10) NOT NULL,
		source VARCHAR(20) NOT NULL,
		quantity DOUBLE PRECISION NOT NULL,
		entry_price DOUBLE PRECISION NOT NULL,
		exit_price DOUBLE PRECISION NOT NULL DEFAULT 0,
		pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
		closed BOOLEAN NOT NULL DEFAULT FALSE,
		opened_at TIMESTAMPTZ NOT NULL,
		closed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_opened_at ON trades(opened_at DESC)`,
	`CREATE TABLE IF NOT EXISTS value_snapshots (
		id BIGSERIAL PRIMARY KEY,
		value DOUBLE PRECISION NOT NULL,
		free_balance DOUBLE PRECISION NOT NULL,
		taken_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_value_snapshots_taken_at ON value_snapshots(taken_at DESC)`,
	`CREATE TABLE IF NOT EXISTS signals (
		id BIGSERIAL PRIMARY KEY,
		symbol VARCHAR(20) NOT NULL,
		side VARCHAR(10) NOT NULL,
		source VARCHAR(20) NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		quantity DOUBLE PRECISION NOT NULL,
		stop_loss DOUBLE PRECISION NOT NULL,
		take_profit DOUBLE PRECISION NOT NULL,
		executed BOOLEAN NOT NULL,
		reject_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_created_at ON signals(created_at DESC)`,
}

// RunMigrations applies the schema. Safe to run on every startup.
func (db *DB) RunMigrations(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	db.logger.Info().Int("count", len(migrations)).Msg("migrations applied")
	return nil
}
