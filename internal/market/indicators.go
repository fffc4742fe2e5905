package market

import (
	"math"

	"binance-trading-bot/internal/exchange"
)

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// CalculateSMA calculates Simple Moving Average over closes
func CalculateSMA(klines []exchange.Kline, period int) float64 {
	if period <= 0 || len(klines) < period {
		return 0
	}

	sum := 0.0
	for i := len(klines) - period; i < len(klines); i++ {
		sum += klines[i].Close
	}
	return sum / float64(period)
}

// CalculateEMA calculates Exponential Moving Average over closes
func CalculateEMA(klines []exchange.Kline, period int) float64 {
	if period <= 0 || len(klines) < period {
		return 0
	}

	closes := make([]float64, len(klines))
	for i, k := range klines {
		closes[i] = k.Close
	}
	return emaSeries(closes, period)
}

// emaSeries returns the final EMA value of the series, seeded with the SMA of
// the first period values.
func emaSeries(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}

	sma := 0.0
	for i := 0; i < period; i++ {
		sma += values[i]
	}
	ema := sma / float64(period)

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		ema = (values[i] * multiplier) + (ema * (1 - multiplier))
	}
	return ema
}

// ============================================================================
// RSI (Relative Strength Index)
// ============================================================================

// CalculateRSI calculates the Relative Strength Index. Returns the neutral
// value 50 when there is not enough history.
func CalculateRSI(klines []exchange.Kline, period int) float64 {
	if period <= 0 || len(klines) < period+1 {
		return 50.0 // Neutral RSI
	}

	gains := 0.0
	losses := 0.0
	for i := len(klines) - period; i < len(klines); i++ {
		change := klines[i].Close - klines[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100.0
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ============================================================================
// MACD (Moving Average Convergence Divergence)
// ============================================================================

// MACDResult holds MACD indicator values
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// CalculateMACD calculates the MACD line, its signal-line EMA and their
// difference. The signal line is a real EMA over the MACD series, so the
// kline slice must cover slowPeriod+signalPeriod candles; shorter series
// return all zeros.
func CalculateMACD(klines []exchange.Kline, fastPeriod, slowPeriod, signalPeriod int) *MACDResult {
	if len(klines) < slowPeriod+signalPeriod {
		return &MACDResult{}
	}

	closes := make([]float64, len(klines))
	for i, k := range klines {
		closes[i] = k.Close
	}

	// MACD value at every candle from slowPeriod onward.
	macdSeries := make([]float64, 0, len(closes)-slowPeriod+1)
	for end := slowPeriod; end <= len(closes); end++ {
		fast := emaSeries(closes[:end], fastPeriod)
		slow := emaSeries(closes[:end], slowPeriod)
		macdSeries = append(macdSeries, fast-slow)
	}

	macdLine := macdSeries[len(macdSeries)-1]
	signalLine := emaSeries(macdSeries, signalPeriod)

	return &MACDResult{
		MACD:      macdLine,
		Signal:    signalLine,
		Histogram: macdLine - signalLine,
	}
}

// ============================================================================
// BOLLINGER BANDS
// ============================================================================

// BollingerResult holds Bollinger Band values
type BollingerResult struct {
	Upper    float64
	Middle   float64
	Lower    float64
	Position float64 // Price position within the band, 0 at lower, 1 at upper
}

// CalculateBollinger calculates Bollinger Bands around an SMA. With
// insufficient history the bands default to ±2% around the last close and
// position to 0.5; a zero-width band also reports position 0.5.
func CalculateBollinger(klines []exchange.Kline, period int, stdDevs float64) *BollingerResult {
	if len(klines) == 0 {
		return &BollingerResult{Position: 0.5}
	}

	price := klines[len(klines)-1].Close
	if len(klines) < period {
		return &BollingerResult{
			Upper:    price * 1.02,
			Middle:   price,
			Lower:    price * 0.98,
			Position: 0.5,
		}
	}

	middle := CalculateSMA(klines, period)

	variance := 0.0
	for i := len(klines) - period; i < len(klines); i++ {
		diff := klines[i].Close - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	upper := middle + stdDevs*stdDev
	lower := middle - stdDevs*stdDev

	position := 0.5
	if width := upper - lower; width > 0 {
		position = (price - lower) / width
	}

	return &BollingerResult{
		Upper:    upper,
		Middle:   middle,
		Lower:    lower,
		Position: position,
	}
}

// ============================================================================
// VOLUME
// ============================================================================

// CalculateVolumeRatio compares the latest candle's volume against the
// rolling average of the preceding candles. Defaults to 1.0 with
// insufficient history or a zero average.
func CalculateVolumeRatio(klines []exchange.Kline, period int) float64 {
	if len(klines) < 2 {
		return 1.0
	}

	lookback := period
	if lookback > len(klines)-1 {
		lookback = len(klines) - 1
	}

	sum := 0.0
	for i := len(klines) - 1 - lookback; i < len(klines)-1; i++ {
		sum += klines[i].Volume
	}
	avg := sum / float64(lookback)
	if avg == 0 {
		return 1.0
	}
	return klines[len(klines)-1].Volume / avg
}
