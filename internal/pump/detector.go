// Package pump implements the fast-path anomaly detector: a rolling
// price/volume watch per symbol that flags rapid, high-volume,
// buy-dominated spikes and converts them into candidate long signals.
package pump

import (
	"fmt"
	"sync"
	"time"

	"binance-trading-bot/config"
	"binance-trading-bot/internal/exchange"
	"binance-trading-bot/internal/signal"

	"github.com/rs/zerolog"
)

// Signal is one detected pump candidate.
type Signal struct {
	Symbol             string    `json:"symbol"`
	TriggerPrice       float64   `json:"trigger_price"`
	CurrentPrice       float64   `json:"current_price"`
	PriceChangePercent float64   `json:"price_change_percent"`
	Change24h          float64   `json:"change_24h"`
	VolumeChange       float64   `json:"volume_change"`
	OrderBookImbalance float64   `json:"order_book_imbalance"`
	Confidence         float64   `json:"confidence"`
	IsValid            bool      `json:"is_valid"`
	Timestamp          time.Time `json:"timestamp"`
}

type samplePoint struct {
	price     float64
	volume    float64
	timestamp time.Time
}

// pumpRetention bounds how long validated pumps stay in the detector's
// history; the per-symbol repeat throttle looks back this far.
const pumpRetention = 30 * time.Minute

// Detector watches rolling windows per symbol. All state belongs to the
// single processing loop; the mutex only guards the API status readers.
type Detector struct {
	cfg      config.PumpConfig
	strategy config.Strategy
	client   exchange.Client
	logger   zerolog.Logger

	mu          sync.Mutex
	history     map[string][]samplePoint
	pumpHistory []Signal
	detected    int
}

func NewDetector(cfg config.PumpConfig, strategy config.Strategy, client exchange.Client, logger zerolog.Logger) *Detector {
	return &Detector{
		cfg:      cfg,
		strategy: strategy,
		client:   client,
		logger:   logger.With().Str("component", "pump").Logger(),
		history:  make(map[string][]samplePoint),
	}
}

// Scan samples every symbol once and returns the validated pumps.
func (d *Detector) Scan(symbols []string) []*Signal {
	var pumps []*Signal
	for _, symbol := range symbols {
		pump := d.Detect(symbol)
		if pump != nil && pump.IsValid {
			pumps = append(pumps, pump)
		}
	}
	return pumps
}

// Detect samples one symbol, updates its rolling window, and emits a pump
// signal when all three thresholds are met. Exchange failures mean "no
// data this cycle" and return nil.
func (d *Detector) Detect(symbol string) *Signal {
	ticker, err := d.client.GetTicker24hr(symbol)
	if err != nil {
		d.logger.Debug().Err(err).Str("symbol", symbol).Msg("ticker fetch failed")
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	d.recordSample(symbol, ticker.LastPrice, ticker.Volume, now)

	history := d.history[symbol]
	if len(history) < d.cfg.MinDataPoints {
		return nil
	}

	priceChange := priceChange(history)
	if priceChange < d.cfg.PriceThreshold {
		return nil
	}

	volumeChange := volumeChange(history)
	if volumeChange < d.cfg.VolumeMultiplier {
		return nil
	}

	imbalance := d.orderBookImbalance(symbol)
	if imbalance < d.cfg.ImbalanceThreshold {
		return nil
	}

	pump := &Signal{
		Symbol:             symbol,
		TriggerPrice:       history[len(history)-2].price,
		CurrentPrice:       ticker.LastPrice,
		PriceChangePercent: priceChange * 100,
		Change24h:          ticker.PriceChangePercent,
		VolumeChange:       volumeChange,
		OrderBookImbalance: imbalance,
		Confidence:         confidence(priceChange, volumeChange, imbalance),
		Timestamp:          now,
	}
	pump.IsValid = d.validate(pump)

	if pump.IsValid {
		d.recordPump(*pump, now)
		d.detected++
		d.logger.Info().Str("symbol", symbol).
			Float64("price_change_pct", pump.PriceChangePercent).
			Float64("volume_x", pump.VolumeChange).
			Float64("confidence", pump.Confidence).
			Msg("pump detected")
	}
	return pump
}

// recordSample appends a point and prunes the window by age.
func (d *Detector) recordSample(symbol string, price, volume float64, now time.Time) {
	cutoff := now.Add(-time.Duration(d.cfg.WindowSeconds) * time.Second)
	kept := d.history[symbol][:0]
	for _, p := range d.history[symbol] {
		if p.timestamp.After(cutoff) {
			kept = append(kept, p)
		}
	}
	d.history[symbol] = append(kept, samplePoint{price: price, volume: volume, timestamp: now})
}

// recordPump appends a validated pump and prunes the history past the
// retention window, so the slice stays bounded however long the bot runs.
func (d *Detector) recordPump(pump Signal, now time.Time) {
	cutoff := now.Add(-pumpRetention)
	kept := d.pumpHistory[:0]
	for _, p := range d.pumpHistory {
		if p.Timestamp.After(cutoff) {
			kept = append(kept, p)
		}
	}
	d.pumpHistory = append(kept, pump)
}

// priceChange is the instantaneous change versus the previous sample.
func priceChange(history []samplePoint) float64 {
	if len(history) < 2 {
		return 0
	}
	previous := history[len(history)-2].price
	if previous == 0 {
		return 0
	}
	return (history[len(history)-1].price - previous) / previous
}

// volumeChange compares the latest volume against the trailing average,
// excluding the latest sample itself.
func volumeChange(history []samplePoint) float64 {
	if len(history) < 3 {
		return 0
	}
	sum := 0.0
	for _, p := range history[:len(history)-1] {
		sum += p.volume
	}
	avg := sum / float64(len(history)-1)
	if avg == 0 {
		return 0
	}
	return history[len(history)-1].volume / avg
}

// orderBookImbalance returns the bid share of total depth; 0.5 (neutral)
// when the book is unreadable or empty.
func (d *Detector) orderBookImbalance(symbol string) float64 {
	book, err := d.client.GetOrderBook(symbol, d.cfg.OrderBookDepth)
	if err != nil {
		d.logger.Debug().Err(err).Str("symbol", symbol).Msg("order book fetch failed")
		return 0.5
	}

	bidVolume := book.BidVolume()
	total := bidVolume + book.AskVolume()
	if total == 0 {
		return 0.5
	}
	return bidVolume / total
}

// confidence is a weighted blend of each metric normalized against its cap:
// price maxes at 10%, volume at x5, the book share is already 0..1.
func confidence(priceChange, volumeChange, imbalance float64) float64 {
	priceScore := min(priceChange/0.10, 1.0)
	volumeScore := min(volumeChange/5.0, 1.0)
	return priceScore*0.4 + volumeScore*0.35 + imbalance*0.25
}

// validate applies the anti-noise checks: confidence floor, per-symbol
// repeat throttle, global concurrent-pump cap, and a sanity bound treating
// implausible jumps as bad data.
func (d *Detector) validate(pump *Signal) bool {
	if pump.Confidence < d.cfg.MinConfidence {
		return false
	}

	recent := 0
	cutoff := time.Now().Add(-pumpRetention)
	for _, p := range d.pumpHistory {
		if p.Symbol == pump.Symbol && p.Timestamp.After(cutoff) {
			recent++
		}
	}
	if recent >= d.cfg.MaxPerSymbol {
		return false
	}

	if d.activePumpCount() >= d.strategy.MaxPumpPairs {
		return false
	}

	return pump.PriceChangePercent < d.cfg.SanityJumpLimit*100
}

// activePumpCount counts pumps seen in the last ten minutes.
func (d *Detector) activePumpCount() int {
	cutoff := time.Now().Add(-10 * time.Minute)
	count := 0
	for _, p := range d.pumpHistory {
		if p.Timestamp.After(cutoff) {
			count++
		}
	}
	return count
}

// ToTradingSignal converts a validated pump into a long trading signal
// routed through the same risk gate as advisory signals.
func (d *Detector) ToTradingSignal(pump *Signal) *signal.TradingSignal {
	target := pump.CurrentPrice * (1 + d.strategy.PumpUpPercent/100)
	stop := pump.CurrentPrice * 0.97

	return &signal.TradingSignal{
		Symbol:     pump.Symbol,
		Side:       signal.SideBuy,
		Kind:       signal.KindLong,
		Source:     signal.SourcePump,
		Confidence: pump.Confidence,
		Price:      pump.CurrentPrice,
		Quantity:   d.strategy.PumpOrderMultiplier * 0.1, // Placeholder fraction for the sizing stage
		StopLoss:   stop,
		TakeProfit: target,
		Leverage:   1.0,
		Reasoning: fmt.Sprintf("pump detected: +%.2f%%, volume x%.1f, bid share %.0f%%",
			pump.PriceChangePercent, pump.VolumeChange, pump.OrderBookImbalance*100),
		IsValid:   true,
		Timestamp: time.Now(),
	}
}

// Statistics summarizes detector activity for the status API.
func (d *Detector) Statistics() map[string]interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return map[string]interface{}{
		"total_detected":  d.detected,
		"active_now":      d.activePumpCount(),
		"symbols_tracked": len(d.history),
	}
}
