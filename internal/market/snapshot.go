package market

import (
	"fmt"
	"time"

	"binance-trading-bot/config"
	"binance-trading-bot/internal/cache"
	"binance-trading-bot/internal/exchange"

	"github.com/rs/zerolog"
)

// Snapshot is an immutable per-cycle read of one instrument. It is created
// fresh every polling cycle and discarded after use.
type Snapshot struct {
	Symbol       string             `json:"symbol"`
	Price        float64            `json:"price"`
	High24h      float64            `json:"high_24h"`
	Low24h       float64            `json:"low_24h"`
	Volume24h    float64            `json:"volume_24h"`
	Change24hPct float64            `json:"change_24h_pct"`
	Bid          float64            `json:"bid"`
	Ask          float64            `json:"ask"`
	Indicators   map[string]float64 `json:"indicators"`
	Timestamp    time.Time          `json:"timestamp"`
}

// Indicator returns a named indicator value, or the given default when the
// snapshot does not carry it.
func (s *Snapshot) Indicator(name string, def float64) float64 {
	if v, ok := s.Indicators[name]; ok {
		return v
	}
	return def
}

// klineKey identifies one cached candle series.
type klineKey struct {
	symbol   string
	interval string
	limit    int
}

// timeframe pairs a candle interval with how much history to request.
type timeframe struct {
	interval string
	limit    int
}

// The three granularities every snapshot is computed from.
var timeframes = []timeframe{
	{"5m", 100},
	{"1h", 48},
	{"1d", 30},
}

// Builder assembles snapshots from exchange data, caching candle series for
// a short TTL to avoid redundant calls within one window.
type Builder struct {
	client     exchange.Client
	cfg        config.IndicatorConfig
	klineCache *cache.TTL[klineKey, []exchange.Kline]
	logger     zerolog.Logger
}

// NewBuilder creates a snapshot builder
func NewBuilder(client exchange.Client, cfg config.IndicatorConfig, logger zerolog.Logger) *Builder {
	return &Builder{
		client:     client,
		cfg:        cfg,
		klineCache: cache.NewTTL[klineKey, []exchange.Kline](cfg.CacheTTL),
		logger:     logger.With().Str("component", "market").Logger(),
	}
}

// Build produces a snapshot for one symbol. Any exchange failure is returned
// to the caller, which treats it as "no data this cycle".
func (b *Builder) Build(symbol string) (*Snapshot, error) {
	ticker, err := b.client.GetTicker24hr(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticker for %s: %w", symbol, err)
	}

	snapshot := &Snapshot{
		Symbol:       symbol,
		Price:        ticker.LastPrice,
		High24h:      ticker.HighPrice,
		Low24h:       ticker.LowPrice,
		Volume24h:    ticker.Volume,
		Change24hPct: ticker.PriceChangePercent,
		Bid:          ticker.BidPrice,
		Ask:          ticker.AskPrice,
		Indicators:   make(map[string]float64),
		Timestamp:    time.Now(),
	}

	for _, tf := range timeframes {
		klines, err := b.klines(symbol, tf.interval, tf.limit)
		if err != nil {
			// Indicator defaults cover the gap; log and keep going.
			b.logger.Warn().Err(err).Str("symbol", symbol).Str("interval", tf.interval).
				Msg("candle fetch failed, indicator defaults apply")
			klines = nil
		}

		snapshot.Indicators["rsi_"+tf.interval] = CalculateRSI(klines, b.cfg.RSIPeriod)

		if tf.interval == "5m" {
			macd := CalculateMACD(klines, b.cfg.MACDFast, b.cfg.MACDSlow, b.cfg.MACDSignal)
			snapshot.Indicators["macd"] = macd.MACD
			snapshot.Indicators["macd_signal"] = macd.Signal
			snapshot.Indicators["macd_histogram"] = macd.Histogram

			bb := CalculateBollinger(klines, b.cfg.BBPeriod, b.cfg.BBStdDev)
			snapshot.Indicators["bb_upper"] = bb.Upper
			snapshot.Indicators["bb_middle"] = bb.Middle
			snapshot.Indicators["bb_lower"] = bb.Lower
			snapshot.Indicators["bb_position"] = bb.Position

			snapshot.Indicators["volume_ratio"] = CalculateVolumeRatio(klines, b.cfg.BBPeriod)
		}
	}

	return snapshot, nil
}

func (b *Builder) klines(symbol, interval string, limit int) ([]exchange.Kline, error) {
	key := klineKey{symbol: symbol, interval: interval, limit: limit}
	if cached, ok := b.klineCache.Get(key); ok {
		return cached, nil
	}

	klines, err := b.client.GetKlines(symbol, interval, limit)
	if err != nil {
		return nil, err
	}
	b.klineCache.Set(key, klines)
	return klines, nil
}
