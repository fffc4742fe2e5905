package advisor

import (
	"errors"
	"testing"
	"time"

	"binance-trading-bot/internal/market"

	"github.com/rs/zerolog"
)

func TestParseResponseWellFormed(t *testing.T) {
	response := `{"direction":"bullish","confidence":0.8,"entry_price":100,"target_price":106,"stop_loss":97,"position_size":0.15,"risk_score":4,"timeframe":"4h","reasoning":"ok"}`

	rec, outcome := ParseResponse("BTCUSDT", 100, response)
	if outcome != OutcomeParsed {
		t.Fatal("expected parsed outcome")
	}
	if rec.Direction != DirectionBullish {
		t.Errorf("expected bullish, got %s", rec.Direction)
	}
	if rec.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %.2f", rec.Confidence)
	}
	if rec.TargetPrice != 106 || rec.StopLoss != 97 {
		t.Errorf("unexpected levels: target %.2f stop %.2f", rec.TargetPrice, rec.StopLoss)
	}
	if rec.RiskScore != 4 {
		t.Errorf("expected risk 4, got %d", rec.RiskScore)
	}
	if !rec.IsValid {
		t.Error("expected valid recommendation")
	}
}

func TestParseResponseMarkdownFence(t *testing.T) {
	response := "Here is my analysis:\n```json\n{\"direction\":\"bearish\",\"confidence\":0.7,\"entry_price\":50,\"target_price\":47,\"stop_loss\":51.5,\"risk_score\":6}\n```\nGood luck!"

	rec, outcome := ParseResponse("ETHUSDT", 50, response)
	if outcome != OutcomeParsed {
		t.Fatal("expected parsed outcome")
	}
	if rec.Direction != DirectionBearish {
		t.Errorf("expected bearish, got %s", rec.Direction)
	}
}

func TestParseResponseTotality(t *testing.T) {
	// Any input must yield a structurally valid recommendation.
	inputs := []string{
		"",
		"no json here",
		"{broken",
		"{\"direction\": }",
		"}{",
		"``````",
	}
	for _, input := range inputs {
		rec, outcome := ParseResponse("BTCUSDT", 200, input)
		if outcome != OutcomeFallback {
			t.Errorf("input %q: expected fallback", input)
		}
		if rec.Direction != DirectionNeutral {
			t.Errorf("input %q: expected neutral direction, got %s", input, rec.Direction)
		}
		if rec.Confidence < 0 || rec.Confidence > 1 {
			t.Errorf("input %q: confidence out of range: %.2f", input, rec.Confidence)
		}
		if rec.RiskScore < 1 || rec.RiskScore > 10 {
			t.Errorf("input %q: risk out of range: %d", input, rec.RiskScore)
		}
		if rec.IsValid {
			t.Errorf("input %q: fallback must be invalid", input)
		}
	}
}

func TestNeutralFallbackShape(t *testing.T) {
	rec := NeutralFallback("BTCUSDT", 200)
	if rec.Confidence != 0.1 {
		t.Errorf("expected confidence 0.1, got %.2f", rec.Confidence)
	}
	if rec.EntryPrice != 200 || rec.TargetPrice != 200 {
		t.Errorf("expected entry=target=200, got %.2f/%.2f", rec.EntryPrice, rec.TargetPrice)
	}
	if rec.StopLoss != 200*0.97 {
		t.Errorf("expected stop 194, got %.2f", rec.StopLoss)
	}
	if rec.PositionSize != 0 || rec.RiskScore != 10 {
		t.Errorf("expected zero size and risk 10, got %.2f/%d", rec.PositionSize, rec.RiskScore)
	}
}

func TestParseResponseClamps(t *testing.T) {
	response := `{"direction":"sideways","confidence":1.7,"entry_price":100,"risk_score":42}`

	rec, outcome := ParseResponse("BTCUSDT", 100, response)
	if outcome != OutcomeParsed {
		t.Fatal("expected parsed outcome")
	}
	if rec.Direction != DirectionNeutral {
		t.Errorf("unknown direction should clamp to neutral, got %s", rec.Direction)
	}
	if rec.Confidence != 0.5 {
		t.Errorf("out-of-range confidence should clamp to 0.5, got %.2f", rec.Confidence)
	}
	if rec.RiskScore != 5 {
		t.Errorf("out-of-range risk should clamp to 5, got %d", rec.RiskScore)
	}
}

// stubLLM returns a canned response or error.
type stubLLM struct {
	response string
	err      error
	calls    int
}

func (s *stubLLM) Complete(systemPrompt, userPrompt string) (string, error) {
	s.calls++
	return s.response, s.err
}

func testSnapshot(symbol string, price float64) *market.Snapshot {
	return &market.Snapshot{
		Symbol:     symbol,
		Price:      price,
		Indicators: map[string]float64{"rsi_5m": 55, "volume_ratio": 1.2},
		Timestamp:  time.Now(),
	}
}

func TestAnalyzerFallsBackOnError(t *testing.T) {
	stub := &stubLLM{err: errors.New("timeout")}
	analyzer := NewAnalyzer(stub, time.Minute, zerolog.Nop())

	rec := analyzer.Analyze(testSnapshot("BTCUSDT", 100))
	if rec.IsValid || rec.Direction != DirectionNeutral {
		t.Error("expected neutral fallback on client error")
	}
}

func TestAnalyzerCachesParsedResults(t *testing.T) {
	stub := &stubLLM{response: `{"direction":"bullish","confidence":0.8,"entry_price":100,"target_price":106,"stop_loss":97,"risk_score":4}`}
	analyzer := NewAnalyzer(stub, time.Minute, zerolog.Nop())

	analyzer.Analyze(testSnapshot("BTCUSDT", 100))
	analyzer.Analyze(testSnapshot("BTCUSDT", 100))

	if stub.calls != 1 {
		t.Errorf("expected one upstream call, got %d", stub.calls)
	}
}

func TestAnalyzerDoesNotCacheFallbacks(t *testing.T) {
	stub := &stubLLM{response: "garbage"}
	analyzer := NewAnalyzer(stub, time.Minute, zerolog.Nop())

	analyzer.Analyze(testSnapshot("BTCUSDT", 100))
	analyzer.Analyze(testSnapshot("BTCUSDT", 100))

	if stub.calls != 2 {
		t.Errorf("fallbacks must not be cached; expected two calls, got %d", stub.calls)
	}
}
