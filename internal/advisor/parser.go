package advisor

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// stripMarkdownCodeBlock removes a surrounding markdown fence if present
func stripMarkdownCodeBlock(text string) string {
	if match := codeBlockRe.FindStringSubmatch(text); len(match) > 1 {
		return strings.TrimSpace(match[1])
	}
	return strings.TrimSpace(text)
}

// rawRecommendation is the loose JSON contract the model is prompted to
// follow. Missing fields decode to zero values and are clamped afterwards.
type rawRecommendation struct {
	Direction    string  `json:"direction"`
	Confidence   float64 `json:"confidence"`
	EntryPrice   float64 `json:"entry_price"`
	TargetPrice  float64 `json:"target_price"`
	StopLoss     float64 `json:"stop_loss"`
	PositionSize float64 `json:"position_size"`
	RiskScore    float64 `json:"risk_score"`
	Timeframe    string  `json:"timeframe"`
	Reasoning    string  `json:"reasoning"`
}

// ParseResponse turns a free-text model response into a Recommendation. It
// is total: any input, including empty or malformed text, yields a
// structurally valid Recommendation, with the neutral fallback substituted
// on failure and the outcome tagged accordingly.
func ParseResponse(symbol string, currentPrice float64, response string) (*Recommendation, ParseOutcome) {
	cleaned := stripMarkdownCodeBlock(response)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return NeutralFallback(symbol, currentPrice), OutcomeFallback
	}

	var raw rawRecommendation
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &raw); err != nil {
		return NeutralFallback(symbol, currentPrice), OutcomeFallback
	}

	rec := &Recommendation{
		Symbol:       symbol,
		Direction:    clampDirection(raw.Direction),
		Confidence:   clampConfidence(raw.Confidence),
		EntryPrice:   raw.EntryPrice,
		TargetPrice:  raw.TargetPrice,
		StopLoss:     raw.StopLoss,
		PositionSize: clampFraction(raw.PositionSize),
		RiskScore:    clampRiskScore(raw.RiskScore),
		Timeframe:    raw.Timeframe,
		Reasoning:    raw.Reasoning,
		IsValid:      true,
		Timestamp:    time.Now(),
	}
	if rec.EntryPrice <= 0 {
		rec.EntryPrice = currentPrice
	}
	if rec.Timeframe == "" {
		rec.Timeframe = "1h"
	}
	return rec, OutcomeParsed
}

func clampDirection(s string) Direction {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionBullish:
		return DirectionBullish
	case DirectionBearish:
		return DirectionBearish
	default:
		return DirectionNeutral
	}
}

func clampConfidence(v float64) float64 {
	if v < 0 || v > 1 {
		return 0.5
	}
	return v
}

func clampRiskScore(v float64) int {
	score := int(v)
	if score < 1 || score > 10 {
		return 5
	}
	return score
}

func clampFraction(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
