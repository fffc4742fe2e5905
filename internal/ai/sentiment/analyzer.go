// Package sentiment tracks broad market mood via the Fear & Greed index
// and nudges signal confidence with it: fear shrinks long conviction,
// greed lifts it slightly.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"binance-trading-bot/internal/signal"

	"github.com/rs/zerolog"
)

const defaultEndpoint = "https://api.alternative.me/fng/?limit=1"

// Bias constants returned by TradingBias.
const (
	BiasBullish = "bullish"
	BiasBearish = "bearish"
	BiasNeutral = "neutral"
)

// Score is one observation of overall market mood.
type Score struct {
	Overall        float64   `json:"overall"`          // -1 (extreme fear) to +1 (extreme greed)
	FearGreedIndex int       `json:"fear_greed_index"` // 0-100
	Label          string    `json:"label"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type fearGreedResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
	} `json:"data"`
}

// Analyzer polls the index in the background and answers bias queries from
// the latest observation. A missing observation is neutral.
type Analyzer struct {
	endpoint string
	interval time.Duration
	client   *http.Client
	logger   zerolog.Logger

	mu   sync.RWMutex
	last *Score
}

func NewAnalyzer(interval time.Duration, logger zerolog.Logger) *Analyzer {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Analyzer{
		endpoint: defaultEndpoint,
		interval: interval,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger.With().Str("component", "sentiment").Logger(),
	}
}

// Start refreshes immediately, then on the configured interval until the
// context is cancelled.
func (a *Analyzer) Start(ctx context.Context) {
	a.Refresh()
	go func() {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.Refresh()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Refresh fetches the current index. Failures keep the previous score.
func (a *Analyzer) Refresh() {
	score, err := a.fetch()
	if err != nil {
		a.logger.Warn().Err(err).Msg("sentiment refresh failed")
		return
	}
	a.mu.Lock()
	a.last = score
	a.mu.Unlock()
	a.logger.Debug().Int("fear_greed", score.FearGreedIndex).Str("label", score.Label).Msg("sentiment updated")
}

func (a *Analyzer) fetch() (*Score, error) {
	resp, err := a.client.Get(a.endpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch fear/greed index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fear/greed index returned status %d", resp.StatusCode)
	}

	var parsed fearGreedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode fear/greed response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("fear/greed response has no data")
	}

	value, err := strconv.Atoi(parsed.Data[0].Value)
	if err != nil {
		return nil, fmt.Errorf("parse fear/greed value %q: %w", parsed.Data[0].Value, err)
	}

	return &Score{
		Overall:        (float64(value) - 50) / 50,
		FearGreedIndex: value,
		Label:          parsed.Data[0].ValueClassification,
		UpdatedAt:      time.Now(),
	}, nil
}

// Current returns the latest observation, nil before the first fetch.
func (a *Analyzer) Current() *Score {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last
}

// TradingBias maps the score to a coarse bias with its strength. Scores
// within 0.3 of neutral carry no bias.
func (a *Analyzer) TradingBias() (string, float64) {
	score := a.Current()
	if score == nil {
		return BiasNeutral, 0
	}
	switch {
	case score.Overall > 0.3:
		return BiasBullish, score.Overall
	case score.Overall < -0.3:
		return BiasBearish, -score.Overall
	default:
		return BiasNeutral, 0
	}
}

// ShouldPause reports whether mood is extreme enough to stand aside.
func (a *Analyzer) ShouldPause() (bool, string) {
	score := a.Current()
	if score == nil {
		return false, ""
	}
	if score.FearGreedIndex <= 10 {
		return true, "extreme fear, market panic"
	}
	if score.FearGreedIndex >= 90 {
		return true, "extreme greed, possible bubble"
	}
	return false, ""
}

// AdjustSignal nudges a candidate signal's confidence by the current bias:
// a bias against the trade direction multiplies confidence by 0.8, a bias
// with it by 1.1 (capped at 1.0).
func (a *Analyzer) AdjustSignal(sig *signal.TradingSignal) {
	bias, _ := a.TradingBias()
	if bias == BiasNeutral {
		return
	}

	long := sig.Kind == signal.KindLong
	aligned := (long && bias == BiasBullish) || (!long && bias == BiasBearish)
	if aligned {
		sig.Confidence *= 1.1
		if sig.Confidence > 1.0 {
			sig.Confidence = 1.0
		}
	} else {
		sig.Confidence *= 0.8
	}
}
