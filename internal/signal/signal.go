package signal

import (
	"time"

	"binance-trading-bot/internal/advisor"
)

// Side is the exchange order side
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// PositionKind distinguishes long from short exposure
type PositionKind string

const (
	KindLong  PositionKind = "long"
	KindShort PositionKind = "short"
)

// Source identifies which pipeline produced a signal.
type Source string

const (
	SourceAdvisor Source = "advisor"
	SourcePump    Source = "pump"
)

// TradingSignal is a candidate trade. The builder creates it with an
// initial quantity; the risk gate and the Kelly refiner only ever shrink
// Quantity or flip IsValid to false; once invalid a signal is never
// revalidated. Terminal state is either ready for execution (valid with
// positive quantity) or discarded.
type TradingSignal struct {
	Symbol         string                  `json:"symbol"`
	Side           Side                    `json:"side"`
	Kind           PositionKind            `json:"kind"`
	Source         Source                  `json:"source"`
	Confidence     float64                 `json:"confidence"`
	Price          float64                 `json:"price"`
	Quantity       float64                 `json:"quantity"`
	StopLoss       float64                 `json:"stop_loss"`
	TakeProfit     float64                 `json:"take_profit"`
	RiskReward     float64                 `json:"risk_reward"`
	Leverage       float64                 `json:"leverage"`
	Reasoning      string                  `json:"reasoning"`
	IsValid        bool                    `json:"is_valid"`
	InvalidReason  string                  `json:"invalid_reason,omitempty"`
	Recommendation *advisor.Recommendation `json:"recommendation,omitempty"`
	Timestamp      time.Time               `json:"timestamp"`
}

// Invalidate marks the signal invalid, keeping the first recorded reason.
func (s *TradingSignal) Invalidate(reason string) {
	if s.IsValid {
		s.IsValid = false
		s.InvalidReason = reason
	}
}

// ShrinkQuantity lowers the quantity, never raises it.
func (s *TradingSignal) ShrinkQuantity(quantity float64) {
	if quantity < s.Quantity {
		s.Quantity = quantity
	}
	if s.Quantity <= 0 {
		s.Invalidate("quantity reduced to zero")
	}
}

// Ready reports whether the signal is executable.
func (s *TradingSignal) Ready() bool {
	return s.IsValid && s.Quantity > 0
}
