// Package order executes approved trading signals against the exchange and
// tracks the resulting positions and protective orders.
package order

import (
	"errors"
	"time"
)

// Order status constants. Orders move pending -> open -> filled, cancelled
// or failed; records are never deleted.
const (
	StatusPending   = "PENDING"
	StatusOpen      = "OPEN"
	StatusFilled    = "FILLED"
	StatusCancelled = "CANCELLED"
	StatusFailed    = "FAILED"
)

var (
	ErrPositionNotFound = errors.New("position not found")
	ErrSignalNotReady   = errors.New("signal is not executable")
	ErrAveragingLimit   = errors.New("averaging limit reached")
)

// Order is one exchange order as tracked locally.
type Order struct {
	ID        int64     `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Type      string    `json:"type"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Position is the single open position for a symbol. Adding to it averages
// the entry price by size; reducing realizes profit against that average.
type Position struct {
	Symbol     string    `json:"symbol"`
	Kind       string    `json:"kind"` // long or short
	Quantity   float64   `json:"quantity"`
	EntryPrice float64   `json:"entry_price"` // Size-weighted average
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Source     string    `json:"source"`
	Averages   int       `json:"averages"` // Times averaged into
	TradeID    string    `json:"trade_id"` // Ledger reference
	OpenedAt   time.Time `json:"opened_at"`

	// Protective order handles, zero when none placed (dry run).
	StopOrderID       int64 `json:"stop_order_id,omitempty"`
	TakeProfitOrderID int64 `json:"take_profit_order_id,omitempty"`

	// Trailing stop state: best price seen since entry.
	HighWaterMark float64 `json:"high_water_mark,omitempty"`
}

// UnrealizedPnL values the position at the given price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	if p.Kind == "short" {
		return (p.EntryPrice - price) * p.Quantity
	}
	return (price - p.EntryPrice) * p.Quantity
}
