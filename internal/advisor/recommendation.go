package advisor

import "time"

// Direction is the advisory model's directional call
type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
	DirectionNeutral Direction = "neutral"
)

// Recommendation is the structured output of one advisory call. Created
// once per analysis, immutable afterwards. Direction, confidence and risk
// score are always clamped into their legal ranges before the value is
// handed to the signal builder.
type Recommendation struct {
	Symbol       string    `json:"symbol"`
	Direction    Direction `json:"direction"`
	Confidence   float64   `json:"confidence"`    // 0..1
	EntryPrice   float64   `json:"entry_price"`
	TargetPrice  float64   `json:"target_price"`
	StopLoss     float64   `json:"stop_loss"`
	PositionSize float64   `json:"position_size"` // Fraction of portfolio, 0..1
	RiskScore    int       `json:"risk_score"`    // 1..10
	Timeframe    string    `json:"timeframe"`
	Reasoning    string    `json:"reasoning"`
	IsValid      bool      `json:"is_valid"`
	Timestamp    time.Time `json:"timestamp"`
}

// ParseOutcome tags how a Recommendation was obtained.
type ParseOutcome int

const (
	// OutcomeParsed means the model response decoded cleanly.
	OutcomeParsed ParseOutcome = iota
	// OutcomeFallback means the response was missing or malformed and the
	// neutral fallback was substituted.
	OutcomeFallback
)

// NeutralFallback is the recommendation used whenever the advisory call
// fails, times out, or returns unparseable content. It never trades: zero
// size, maximum risk, invalid.
func NeutralFallback(symbol string, currentPrice float64) *Recommendation {
	return &Recommendation{
		Symbol:       symbol,
		Direction:    DirectionNeutral,
		Confidence:   0.1,
		EntryPrice:   currentPrice,
		TargetPrice:  currentPrice,
		StopLoss:     currentPrice * 0.97,
		PositionSize: 0,
		RiskScore:    10,
		Timeframe:    "1h",
		Reasoning:    "analysis unavailable",
		IsValid:      false,
		Timestamp:    time.Now(),
	}
}
