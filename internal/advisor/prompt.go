package advisor

import (
	"fmt"

	"binance-trading-bot/internal/market"
)

const systemPrompt = `You are a professional cryptocurrency trading analyst.
You receive a technical snapshot of one instrument and respond with a single
JSON object, no prose, matching exactly this schema:
{
  "direction": "bullish" | "bearish" | "neutral",
  "confidence": <0.0-1.0>,
  "entry_price": <number>,
  "target_price": <number>,
  "stop_loss": <number>,
  "position_size": <0.0-1.0 fraction of portfolio>,
  "risk_score": <1-10>,
  "timeframe": "<suggested holding period, e.g. 1h, 4h, 1d>",
  "reasoning": "<one or two sentences>"
}
Be conservative: prefer "neutral" with low confidence over a forced call.`

// BuildPrompt renders the per-symbol user prompt from a market snapshot.
func BuildPrompt(s *market.Snapshot) string {
	return fmt.Sprintf(`Analyze %s for a spot trade.

Market data:
- Current price: %.8f
- 24h change: %.2f%%
- 24h high/low: %.8f / %.8f
- 24h volume: %.2f
- Bid/ask: %.8f / %.8f

Technical indicators:
- RSI (5m): %.2f
- RSI (1h): %.2f
- RSI (1d): %.2f
- MACD: %.6f (signal %.6f, histogram %.6f)
- Bollinger: upper %.8f, middle %.8f, lower %.8f, position %.2f
- Volume ratio vs average: %.2f

Respond with the JSON object only.`,
		s.Symbol,
		s.Price,
		s.Change24hPct,
		s.High24h, s.Low24h,
		s.Volume24h,
		s.Bid, s.Ask,
		s.Indicator("rsi_5m", 50),
		s.Indicator("rsi_1h", 50),
		s.Indicator("rsi_1d", 50),
		s.Indicator("macd", 0), s.Indicator("macd_signal", 0), s.Indicator("macd_histogram", 0),
		s.Indicator("bb_upper", 0), s.Indicator("bb_middle", 0), s.Indicator("bb_lower", 0),
		s.Indicator("bb_position", 0.5),
		s.Indicator("volume_ratio", 1),
	)
}
