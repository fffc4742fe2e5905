package advisor

import (
	"time"

	"binance-trading-bot/internal/cache"
	"binance-trading-bot/internal/market"

	"github.com/rs/zerolog"
)

// Analyzer wraps the LLM client with the parse-with-fallback step and a
// short recommendation cache. It never returns an error: every failure path
// funnels into the neutral fallback so a bad advisory call degrades to "no
// trade" instead of breaking the cycle.
type Analyzer struct {
	client LLMClient
	cache  *cache.TTL[string, *Recommendation]
	logger zerolog.Logger
}

// NewAnalyzer creates an analyzer around an LLM client
func NewAnalyzer(client LLMClient, cacheTTL time.Duration, logger zerolog.Logger) *Analyzer {
	return &Analyzer{
		client: client,
		cache:  cache.NewTTL[string, *Recommendation](cacheTTL),
		logger: logger.With().Str("component", "advisor").Logger(),
	}
}

// Analyze produces a Recommendation for the snapshot.
func (a *Analyzer) Analyze(snapshot *market.Snapshot) *Recommendation {
	if cached, ok := a.cache.Get(snapshot.Symbol); ok {
		return cached
	}

	response, err := a.client.Complete(systemPrompt, BuildPrompt(snapshot))
	if err != nil {
		a.logger.Warn().Err(err).Str("symbol", snapshot.Symbol).Msg("advisory call failed, using neutral fallback")
		return NeutralFallback(snapshot.Symbol, snapshot.Price)
	}

	rec, outcome := ParseResponse(snapshot.Symbol, snapshot.Price, response)
	if outcome == OutcomeFallback {
		a.logger.Warn().Str("symbol", snapshot.Symbol).Msg("unparseable advisory response, using neutral fallback")
	} else {
		a.cache.Set(snapshot.Symbol, rec)
	}
	return rec
}
