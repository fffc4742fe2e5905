package sentiment

import (
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"binance-trading-bot/internal/signal"

	"github.com/rs/zerolog"
)

func analyzerWithIndex(t *testing.T, value int, label string) *Analyzer {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":[{"value":"%d","value_classification":"%s"}]}`, value, label)
	}))
	t.Cleanup(server.Close)

	a := NewAnalyzer(time.Minute, zerolog.Nop())
	a.endpoint = server.URL
	a.Refresh()
	return a
}

func TestRefreshParsesIndex(t *testing.T) {
	a := analyzerWithIndex(t, 75, "Greed")

	score := a.Current()
	if score == nil {
		t.Fatal("expected a score after refresh")
	}
	if score.FearGreedIndex != 75 || score.Label != "Greed" {
		t.Errorf("score = %+v", score)
	}
	if math.Abs(score.Overall-0.5) > 1e-9 {
		t.Errorf("overall = %.2f, want 0.5", score.Overall)
	}
}

func TestRefreshKeepsLastOnFailure(t *testing.T) {
	a := analyzerWithIndex(t, 60, "Greed")

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	a.endpoint = failing.URL
	a.Refresh()

	if score := a.Current(); score == nil || score.FearGreedIndex != 60 {
		t.Errorf("expected previous score retained, got %+v", score)
	}
}

func TestTradingBias(t *testing.T) {
	cases := []struct {
		index int
		bias  string
	}{
		{90, BiasBullish},
		{10, BiasBearish},
		{50, BiasNeutral},
		{60, BiasNeutral}, // 0.2 overall is inside the dead zone
	}
	for _, tc := range cases {
		a := analyzerWithIndex(t, tc.index, "x")
		if bias, _ := a.TradingBias(); bias != tc.bias {
			t.Errorf("index %d: bias = %s, want %s", tc.index, bias, tc.bias)
		}
	}

	fresh := NewAnalyzer(time.Minute, zerolog.Nop())
	if bias, strength := fresh.TradingBias(); bias != BiasNeutral || strength != 0 {
		t.Errorf("no data: bias = %s/%.2f, want neutral/0", bias, strength)
	}
}

func TestShouldPauseOnExtremes(t *testing.T) {
	if pause, _ := analyzerWithIndex(t, 5, "Extreme Fear").ShouldPause(); !pause {
		t.Error("extreme fear should pause trading")
	}
	if pause, _ := analyzerWithIndex(t, 95, "Extreme Greed").ShouldPause(); !pause {
		t.Error("extreme greed should pause trading")
	}
	if pause, _ := analyzerWithIndex(t, 50, "Neutral").ShouldPause(); pause {
		t.Error("neutral mood should not pause trading")
	}
}

func TestAdjustSignal(t *testing.T) {
	long := func() *signal.TradingSignal {
		return &signal.TradingSignal{Kind: signal.KindLong, Confidence: 0.7, IsValid: true}
	}

	bearish := analyzerWithIndex(t, 10, "Fear")
	sig := long()
	bearish.AdjustSignal(sig)
	if math.Abs(sig.Confidence-0.56) > 1e-9 {
		t.Errorf("bearish long confidence = %.3f, want 0.56", sig.Confidence)
	}

	bullish := analyzerWithIndex(t, 90, "Greed")
	sig = long()
	bullish.AdjustSignal(sig)
	if math.Abs(sig.Confidence-0.77) > 1e-9 {
		t.Errorf("bullish long confidence = %.3f, want 0.77", sig.Confidence)
	}

	sig = long()
	sig.Confidence = 0.95
	bullish.AdjustSignal(sig)
	if sig.Confidence != 1.0 {
		t.Errorf("boost should cap at 1.0, got %.3f", sig.Confidence)
	}

	short := &signal.TradingSignal{Kind: signal.KindShort, Confidence: 0.7, IsValid: true}
	bullish.AdjustSignal(short)
	if math.Abs(short.Confidence-0.56) > 1e-9 {
		t.Errorf("bullish short confidence = %.3f, want 0.56", short.Confidence)
	}

	neutral := analyzerWithIndex(t, 50, "Neutral")
	sig = long()
	neutral.AdjustSignal(sig)
	if sig.Confidence != 0.7 {
		t.Errorf("neutral bias should not move confidence, got %.3f", sig.Confidence)
	}
}
