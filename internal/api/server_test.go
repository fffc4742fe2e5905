package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"binance-trading-bot/config"
	"binance-trading-bot/internal/auth"
	"binance-trading-bot/internal/bot"
	"binance-trading-bot/internal/events"
	"binance-trading-bot/internal/exchange"
	"binance-trading-bot/internal/order"
	"binance-trading-bot/internal/portfolio"
)

func testServer(t *testing.T, authSvc *auth.Service) *Server {
	t.Helper()

	cfg := &config.Config{}
	cfg.TradingConfig.Symbols = []string{"BTCUSDT"}
	cfg.TradingConfig.CycleSeconds = 180
	cfg.TradingConfig.DryRun = true
	cfg.Strategy = config.StrategyForDeposit(1000)

	client := exchange.NewMockClient()
	book := order.NewPositionBook()
	tracker := portfolio.NewTracker(zerolog.Nop())
	executor := order.NewExecutor(client, book, tracker, cfg.Strategy, cfg.TradingConfig, zerolog.Nop())
	bus := events.NewBus()

	trader := bot.New(bot.Deps{
		Config:   cfg,
		Client:   client,
		Book:     book,
		Executor: executor,
		Tracker:  tracker,
		Bus:      bus,
	}, zerolog.Nop())

	return NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 0}, Deps{
		Bot:      trader,
		Book:     book,
		Executor: executor,
		Tracker:  tracker,
		Auth:     authSvc,
		Bus:      bus,
	}, zerolog.Nop())
}

func doRequest(s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := testServer(t, nil)
	w := doRequest(s, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := testServer(t, nil)
	w := doRequest(s, http.MethodGet, "/api/status", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := resp["bot"]; !ok {
		t.Error("expected bot status in response")
	}
	if _, ok := resp["summary"]; !ok {
		t.Error("expected summary in response")
	}
}

func TestLoginDisabled(t *testing.T) {
	s := testServer(t, nil)
	w := doRequest(s, http.MethodPost, "/api/auth/login", `{"username":"a","password":"b"}`, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when auth disabled", w.Code)
	}
}

func TestAuthFlow(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	authSvc := auth.NewService(config.AuthConfig{
		Enabled:             true,
		JWTSecret:           "test-secret",
		AccessTokenDuration: time.Hour,
		AdminUsername:       "admin",
		AdminPasswordHash:   string(hash),
	}, zerolog.Nop())
	s := testServer(t, authSvc)

	// Without a token the API refuses.
	w := doRequest(s, http.MethodGet, "/api/status", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without token", w.Code)
	}

	// Bad credentials refuse.
	w = doRequest(s, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"wrong"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for bad credentials", w.Code)
	}

	// Good credentials yield a token that opens the API.
	w = doRequest(s, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"hunter22"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for login", w.Code)
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	w = doRequest(s, http.MethodGet, "/api/status", "", map[string]string{
		"Authorization": "Bearer " + resp.AccessToken,
	})
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with token", w.Code)
	}
}

func TestPositionsEmpty(t *testing.T) {
	s := testServer(t, nil)
	w := doRequest(s, http.MethodGet, "/api/positions", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "positions") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestPauseCommandAccepted(t *testing.T) {
	s := testServer(t, nil)
	w := doRequest(s, http.MethodPost, "/api/bot/pause", "", nil)
	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", w.Code)
	}
}

func TestLiquidateRequiresSymbol(t *testing.T) {
	s := testServer(t, nil)
	w := doRequest(s, http.MethodPost, "/api/bot/liquidate", `{}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 without symbol", w.Code)
	}
}

func TestOptionalStatsDisabled(t *testing.T) {
	s := testServer(t, nil)
	for _, path := range []string{"/api/pump/stats", "/api/ml/stats", "/api/sentiment"} {
		w := doRequest(s, http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, w.Code)
			continue
		}
		if !strings.Contains(w.Body.String(), `"enabled":false`) {
			t.Errorf("%s: expected disabled marker, got %s", path, w.Body.String())
		}
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	if !limiter.Allow("x") || !limiter.Allow("x") {
		t.Fatal("first two requests should pass")
	}
	if limiter.Allow("x") {
		t.Error("third request should be limited")
	}
	if !limiter.Allow("y") {
		t.Error("other keys unaffected")
	}
}
