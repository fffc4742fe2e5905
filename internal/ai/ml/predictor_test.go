package ml

import (
	"math"
	"testing"
	"time"

	"binance-trading-bot/internal/advisor"
	"binance-trading-bot/internal/exchange"
)

// klinesTrending builds candles whose closes follow the given step per
// candle, with volume growing when volumeRamp is set.
func klinesTrending(n int, start, step float64, volumeRamp bool) []exchange.Kline {
	klines := make([]exchange.Kline, n)
	now := time.Now()
	price := start
	for i := 0; i < n; i++ {
		open := price
		price += step
		volume := 1000.0
		if volumeRamp {
			volume = 1000 + float64(i)*100
		}
		klines[i] = exchange.Kline{
			OpenTime:  now.Add(time.Duration(i-n) * time.Minute).UnixMilli(),
			Open:      open,
			High:      math.Max(open, price) * 1.001,
			Low:       math.Min(open, price) * 0.999,
			Close:     price,
			Volume:    volume,
			CloseTime: now.Add(time.Duration(i-n+1) * time.Minute).UnixMilli(),
		}
	}
	return klines
}

func TestPredictNeedsHistory(t *testing.T) {
	p := NewPredictor(DefaultWeights())
	if got := p.Predict("BTCUSDT", klinesTrending(20, 100, 0.5, false), 110); got != nil {
		t.Errorf("expected nil with short history, got %+v", got)
	}
}

func TestPredictUptrend(t *testing.T) {
	p := NewPredictor(DefaultWeights())
	klines := klinesTrending(60, 100, 0.5, true)
	pred := p.Predict("BTCUSDT", klines, klines[len(klines)-1].Close)
	if pred == nil {
		t.Fatal("expected a prediction")
	}
	if pred.Direction != DirectionUp {
		t.Errorf("direction = %s (score %.3f), want up", pred.Direction, pred.Score)
	}
	if pred.Confidence <= 0 || pred.Confidence > 1 {
		t.Errorf("confidence = %.3f, want (0,1]", pred.Confidence)
	}
	if len(pred.Signals) != 4 {
		t.Errorf("signal families = %d, want 4", len(pred.Signals))
	}
}

func TestPredictDowntrend(t *testing.T) {
	p := NewPredictor(DefaultWeights())
	klines := klinesTrending(60, 200, -0.5, false)
	pred := p.Predict("BTCUSDT", klines, klines[len(klines)-1].Close)
	if pred == nil {
		t.Fatal("expected a prediction")
	}
	if pred.Direction != DirectionDown {
		t.Errorf("direction = %s (score %.3f), want down", pred.Direction, pred.Score)
	}
}

func TestAdjustConfidence(t *testing.T) {
	p := NewPredictor(DefaultWeights())
	up := &Prediction{Direction: DirectionUp, Confidence: 0.9}
	down := &Prediction{Direction: DirectionDown, Confidence: 0.3}
	flat := &Prediction{Direction: DirectionSideways, Confidence: 0.9}

	if got := p.AdjustConfidence(advisor.DirectionBullish, 0.7, up); math.Abs(got-0.8) > 1e-9 {
		t.Errorf("agreement blend = %.3f, want 0.8", got)
	}
	if got := p.AdjustConfidence(advisor.DirectionBullish, 0.7, down); math.Abs(got-0.3) > 1e-9 {
		t.Errorf("disagreement = %.3f, want the lower 0.3", got)
	}
	if got := p.AdjustConfidence(advisor.DirectionBullish, 0.7, flat); got != 0.7 {
		t.Errorf("sideways prediction should not move confidence, got %.3f", got)
	}
	if got := p.AdjustConfidence(advisor.DirectionBullish, 0.7, nil); got != 0.7 {
		t.Errorf("nil prediction should not move confidence, got %.3f", got)
	}
}

func TestConfirmPump(t *testing.T) {
	p := NewPredictor(DefaultWeights())
	if !p.ConfirmPump(&Prediction{Direction: DirectionUp, Confidence: 0.5}) {
		t.Error("even confidence upward verdict should confirm")
	}
	if p.ConfirmPump(&Prediction{Direction: DirectionUp, Confidence: 0.4}) {
		t.Error("low confidence should not confirm")
	}
	if p.ConfirmPump(&Prediction{Direction: DirectionDown, Confidence: 0.9}) {
		t.Error("downward verdict should not confirm")
	}
	if p.ConfirmPump(nil) {
		t.Error("nil prediction should not confirm")
	}
}

func TestRecordOutcome(t *testing.T) {
	p := NewPredictor(DefaultWeights())
	klines := klinesTrending(60, 100, 0.5, true)
	p.Predict("BTCUSDT", klines, klines[len(klines)-1].Close)

	p.RecordOutcome("BTCUSDT", 0.4)
	stats := p.Statistics()
	if stats["total_predictions"].(int) != 1 {
		t.Errorf("total = %v, want 1", stats["total_predictions"])
	}
	if stats["correct_predictions"].(int) != 1 {
		t.Errorf("correct = %v, want 1 for an up call on an up move", stats["correct_predictions"])
	}

	// No pending prediction left, so this is a no-op.
	p.RecordOutcome("BTCUSDT", -1)
	if got := p.Statistics()["total_predictions"].(int); got != 1 {
		t.Errorf("total after no-op = %v, want 1", got)
	}
}
