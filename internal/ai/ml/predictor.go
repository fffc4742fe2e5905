// Package ml provides a lightweight heuristic price predictor used as a
// second opinion next to the LLM advisor: four weighted signal families
// (momentum, mean reversion, volume, trend) vote on short-term direction.
package ml

import (
	"math"
	"sync"
	"time"

	"binance-trading-bot/internal/advisor"
	"binance-trading-bot/internal/exchange"
	"binance-trading-bot/internal/market"
)

// Direction constants for predictions.
const (
	DirectionUp       = "up"
	DirectionDown     = "down"
	DirectionSideways = "sideways"
)

const minKlines = 30

// Prediction is the combined verdict for one symbol.
type Prediction struct {
	Symbol       string             `json:"symbol"`
	Direction    string             `json:"direction"`
	Score        float64            `json:"score"`      // Combined signal, -1 to 1
	Confidence   float64            `json:"confidence"` // 0 to 1
	CurrentPrice float64            `json:"current_price"`
	Signals      map[string]float64 `json:"signals"` // Per-family contributions
	Timestamp    time.Time          `json:"timestamp"`
}

// Weights control how much each signal family contributes.
type Weights struct {
	Momentum      float64
	MeanReversion float64
	Volume        float64
	Trend         float64
}

func DefaultWeights() Weights {
	return Weights{Momentum: 0.3, MeanReversion: 0.2, Volume: 0.25, Trend: 0.25}
}

type stats struct {
	total   int
	correct int
	avgErr  float64
}

// Predictor scores symbols from kline history. Safe for concurrent use.
type Predictor struct {
	weights Weights

	mu     sync.Mutex
	recent map[string]*Prediction
	stats  stats
}

func NewPredictor(weights Weights) *Predictor {
	return &Predictor{weights: weights, recent: make(map[string]*Prediction)}
}

// Predict scores one symbol. Returns nil when history is too short to say
// anything useful.
func (p *Predictor) Predict(symbol string, klines []exchange.Kline, currentPrice float64) *Prediction {
	if len(klines) < minKlines {
		return nil
	}

	f := extractFeatures(klines)
	signals := map[string]float64{
		"momentum":       momentumSignal(f),
		"mean_reversion": meanReversionSignal(f),
		"volume":         volumeSignal(f),
		"trend":          trendSignal(f),
	}

	score := signals["momentum"]*p.weights.Momentum +
		signals["mean_reversion"]*p.weights.MeanReversion +
		signals["volume"]*p.weights.Volume +
		signals["trend"]*p.weights.Trend

	direction := DirectionSideways
	if score > 0.1 {
		direction = DirectionUp
	} else if score < -0.1 {
		direction = DirectionDown
	}

	pred := &Prediction{
		Symbol:       symbol,
		Direction:    direction,
		Score:        clamp(score, -1, 1),
		Confidence:   agreementConfidence(signals),
		CurrentPrice: currentPrice,
		Signals:      signals,
		Timestamp:    time.Now(),
	}

	p.mu.Lock()
	p.recent[symbol] = pred
	p.mu.Unlock()
	return pred
}

// AdjustConfidence blends the advisor's confidence with the predictor's
// verdict: agreement averages the two, disagreement keeps the lower of
// them. A nil or sideways prediction leaves the confidence untouched.
func (p *Predictor) AdjustConfidence(recDirection advisor.Direction, confidence float64, pred *Prediction) float64 {
	if pred == nil || pred.Direction == DirectionSideways {
		return confidence
	}

	agrees := (recDirection == advisor.DirectionBullish && pred.Direction == DirectionUp) ||
		(recDirection == advisor.DirectionBearish && pred.Direction == DirectionDown)
	if agrees {
		return clamp((confidence+pred.Confidence)/2, 0, 1)
	}
	return math.Min(confidence, pred.Confidence)
}

// ConfirmPump reports whether the predictor supports acting on a detected
// pump: an upward verdict with at least even confidence.
func (p *Predictor) ConfirmPump(pred *Prediction) bool {
	return pred != nil && pred.Direction == DirectionUp && pred.Confidence >= 0.5
}

// RecordOutcome feeds the realized move back for accuracy tracking.
func (p *Predictor) RecordOutcome(symbol string, actualMovePct float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pred, ok := p.recent[symbol]
	if !ok {
		return
	}
	delete(p.recent, symbol)

	p.stats.total++
	predictedUp := pred.Score > 0
	if predictedUp == (actualMovePct > 0) {
		p.stats.correct++
	}
	err := math.Abs(pred.Score - actualMovePct)
	p.stats.avgErr = (p.stats.avgErr*float64(p.stats.total-1) + err) / float64(p.stats.total)
}

// Statistics reports accuracy for the status API.
func (p *Predictor) Statistics() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	accuracy := 0.0
	if p.stats.total > 0 {
		accuracy = float64(p.stats.correct) / float64(p.stats.total)
	}
	return map[string]interface{}{
		"total_predictions":   p.stats.total,
		"correct_predictions": p.stats.correct,
		"accuracy":            accuracy,
		"average_error":       p.stats.avgErr,
	}
}

// features are the raw inputs to the signal families.
type features struct {
	volatility    float64
	velocity      float64 // Mean of the last 5 returns
	acceleration  float64 // Velocity change between the last two 5-candle spans
	rsi           float64
	macdHistogram float64
	bbPosition    float64 // 0 at the lower band, 1 at the upper
	volumeRatio   float64
	buyPressure   float64 // Close position within the last candle's range
	volumeAccel   float64
	trendStrength float64 // EMA20 vs EMA50 spread, percent
	trendBias     float64 // Share of bullish candles in the last 10, -1 to 1
}

func extractFeatures(klines []exchange.Kline) *features {
	f := &features{}

	returns := make([]float64, 0, len(klines)-1)
	for i := 1; i < len(klines); i++ {
		prev := klines[i-1].Close
		if prev == 0 {
			continue
		}
		returns = append(returns, (klines[i].Close-prev)/prev*100)
	}
	f.volatility = stdDev(returns)

	if n := len(returns); n >= 5 {
		f.velocity = mean(returns[n-5:])
	}
	if n := len(returns); n >= 10 {
		f.acceleration = mean(returns[n-5:]) - mean(returns[n-10:n-5])
	}

	f.rsi = market.CalculateRSI(klines, 14)
	f.macdHistogram = market.CalculateMACD(klines, 12, 26, 9).Histogram
	f.bbPosition = market.CalculateBollinger(klines, 20, 2.0).Position
	f.volumeRatio = market.CalculateVolumeRatio(klines, 20)

	last := klines[len(klines)-1]
	if span := last.High - last.Low; span > 0 {
		f.buyPressure = (last.Close - last.Low) / span
	}

	if len(klines) >= 10 {
		recent, prev := 0.0, 0.0
		for _, k := range klines[len(klines)-5:] {
			recent += k.Volume
		}
		for _, k := range klines[len(klines)-10 : len(klines)-5] {
			prev += k.Volume
		}
		if prev > 0 {
			f.volumeAccel = (recent - prev) / prev
		}
	}

	ema20 := market.CalculateEMA(klines, 20)
	ema50 := market.CalculateEMA(klines, 50)
	if ema50 > 0 {
		f.trendStrength = (ema20 - ema50) / ema50 * 100
	}

	bullish := 0
	for _, k := range klines[len(klines)-10:] {
		if k.Close > k.Open {
			bullish++
		}
	}
	f.trendBias = float64(bullish-5) / 5

	return f
}

func momentumSignal(f *features) float64 {
	s := clamp(f.velocity/0.5, -1, 1)*0.4 +
		clamp(f.acceleration/0.2, -1, 1)*0.3 +
		clamp(f.macdHistogram/0.01, -1, 1)*0.3
	return clamp(s, -1, 1)
}

func meanReversionSignal(f *features) float64 {
	s := 0.0
	if f.rsi > 70 {
		s -= (f.rsi - 70) / 30
	} else if f.rsi < 30 {
		s += (30 - f.rsi) / 30
	}
	// Outside the bands: position above 1 is overbought, below 0 oversold.
	if f.bbPosition > 1 {
		s -= (f.bbPosition - 1) * 0.5
	} else if f.bbPosition < 0 {
		s += -f.bbPosition * 0.5
	}
	return clamp(s, -1, 1)
}

func volumeSignal(f *features) float64 {
	s := 0.0
	if f.volumeRatio > 1.5 {
		s += (f.buyPressure - 0.5) * (f.volumeRatio - 1) * 0.5
	}
	s += clamp(f.volumeAccel*0.5, -0.5, 0.5)
	return clamp(s, -1, 1)
}

func trendSignal(f *features) float64 {
	s := clamp(f.trendStrength/2, -1, 1)*0.6 + f.trendBias*0.4
	return clamp(s, -1, 1)
}

// agreementConfidence scores how many signal families point the same way,
// blended with their average strength.
func agreementConfidence(signals map[string]float64) float64 {
	positive, negative := 0, 0
	strength := 0.0
	for _, s := range signals {
		if s > 0.1 {
			positive++
		} else if s < -0.1 {
			negative++
		}
		strength += math.Abs(s)
	}
	strength /= float64(len(signals))

	agree := positive
	if negative > agree {
		agree = negative
	}
	base := float64(agree) / float64(len(signals))
	if agree == len(signals) {
		base = 0.9
	}
	return clamp(base*0.6+strength*0.4, 0, 1)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	variance := 0.0
	for _, v := range values {
		variance += (v - m) * (v - m)
	}
	return math.Sqrt(variance / float64(len(values)))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
