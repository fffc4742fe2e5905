package order

import (
	"errors"
	"math"
	"testing"

	"binance-trading-bot/config"
	"binance-trading-bot/internal/exchange"
	"binance-trading-bot/internal/portfolio"
	"binance-trading-bot/internal/signal"

	"github.com/rs/zerolog"
)

func newTestExecutor(t *testing.T, dryRun bool) (*Executor, *exchange.MockClient, *PositionBook, *portfolio.Tracker) {
	t.Helper()
	client := exchange.NewMockClient()
	book := NewPositionBook()
	tracker := portfolio.NewTracker(zerolog.Nop())
	strategy := config.StrategyForDeposit(1000)
	trading := config.TradingConfig{DryRun: dryRun}
	e := NewExecutor(client, book, tracker, strategy, trading, zerolog.Nop())
	return e, client, book, tracker
}

func buySignal(symbol string, quantity float64) *signal.TradingSignal {
	return &signal.TradingSignal{
		Symbol:     symbol,
		Side:       signal.SideBuy,
		Kind:       signal.KindLong,
		Source:     signal.SourceAdvisor,
		Confidence: 0.8,
		Price:      100,
		Quantity:   quantity,
		StopLoss:   97,
		TakeProfit: 106,
		IsValid:    true,
	}
}

func TestExecuteOpensPosition(t *testing.T) {
	e, client, book, tracker := newTestExecutor(t, false)
	client.SetPrice("ETHUSDT", 100)

	pos, err := e.Execute(buySignal("ETHUSDT", 2))
	if err != nil {
		t.Fatal(err)
	}
	if pos.Quantity != 2 || pos.Kind != "long" {
		t.Errorf("position = %+v", pos)
	}
	if math.Abs(pos.EntryPrice-100) > 1e-9 {
		t.Errorf("entry = %.2f, want 100", pos.EntryPrice)
	}
	if pos.StopOrderID == 0 || pos.TakeProfitOrderID == 0 {
		t.Error("expected protective orders on the exchange")
	}
	if book.Count() != 1 {
		t.Errorf("book count = %d, want 1", book.Count())
	}
	// Market fill plus two protective orders
	if got := len(e.Orders()); got != 3 {
		t.Errorf("tracked orders = %d, want 3", got)
	}
	trades := tracker.Trades()
	if len(trades) != 1 || trades[0].Closed {
		t.Errorf("expected one open trade, got %+v", trades)
	}
}

func TestExecuteDryRunPlacesNothing(t *testing.T) {
	e, client, _, _ := newTestExecutor(t, true)
	client.SetPrice("ETHUSDT", 100)

	pos, err := e.Execute(buySignal("ETHUSDT", 2))
	if err != nil {
		t.Fatal(err)
	}
	if pos.StopOrderID != 0 || pos.TakeProfitOrderID != 0 {
		t.Error("dry run should not place protective orders")
	}
	orders := e.Orders()
	if len(orders) != 1 {
		t.Fatalf("tracked orders = %d, want 1 simulated fill", len(orders))
	}
	if orders[0].ID >= 0 {
		t.Errorf("simulated order ID = %d, want negative", orders[0].ID)
	}
}

func TestExecuteRejectsUnreadySignal(t *testing.T) {
	e, _, _, _ := newTestExecutor(t, true)
	sig := buySignal("ETHUSDT", 2)
	sig.Invalidate("rejected upstream")

	if _, err := e.Execute(sig); !errors.Is(err, ErrSignalNotReady) {
		t.Errorf("err = %v, want ErrSignalNotReady", err)
	}
}

func TestExecuteAveragesIntoExisting(t *testing.T) {
	e, client, book, _ := newTestExecutor(t, true)
	e.strategy.MaxAveraging = 1
	client.SetPrice("ETHUSDT", 100)

	if _, err := e.Execute(buySignal("ETHUSDT", 2)); err != nil {
		t.Fatal(err)
	}

	client.SetPrice("ETHUSDT", 100)
	pos, err := e.Execute(buySignal("ETHUSDT", 2))
	if err != nil {
		t.Fatal(err)
	}
	wantQty := 2 + 2*e.strategy.QuantityAverMultiplier
	if math.Abs(pos.Quantity-wantQty) > 1e-9 {
		t.Errorf("quantity = %.2f, want %.2f", pos.Quantity, wantQty)
	}
	if pos.Averages != 1 {
		t.Errorf("averages = %d, want 1", pos.Averages)
	}

	if _, err := e.Execute(buySignal("ETHUSDT", 2)); !errors.Is(err, ErrAveragingLimit) {
		t.Errorf("err = %v, want ErrAveragingLimit", err)
	}
	if book.Count() != 1 {
		t.Errorf("book count = %d, want 1", book.Count())
	}
}

func TestExecuteRejectsConflictingDirection(t *testing.T) {
	e, client, _, _ := newTestExecutor(t, true)
	client.SetPrice("ETHUSDT", 100)
	if _, err := e.Execute(buySignal("ETHUSDT", 2)); err != nil {
		t.Fatal(err)
	}

	short := buySignal("ETHUSDT", 2)
	short.Side = signal.SideSell
	short.Kind = signal.KindShort
	if _, err := e.Execute(short); err == nil {
		t.Error("expected conflict error for opposite-direction signal")
	}
}

func TestDryRunStopLossExit(t *testing.T) {
	e, client, book, tracker := newTestExecutor(t, true)
	e.strategy.UseTrailingStop = false
	client.SetPrice("ETHUSDT", 100)
	if _, err := e.Execute(buySignal("ETHUSDT", 2)); err != nil {
		t.Fatal(err)
	}

	client.SetPrice("ETHUSDT", 96)
	e.Sync()

	if book.Count() != 0 {
		t.Fatal("expected position closed after stop hit")
	}
	pnls := tracker.ClosedPnLs()
	if len(pnls) != 1 {
		t.Fatalf("closed pnls = %v, want one entry", pnls)
	}
	// Exit at the stop: (97 - 100) * 2
	if math.Abs(pnls[0]-(-6)) > 1e-9 {
		t.Errorf("pnl = %.2f, want -6", pnls[0])
	}
}

func TestDryRunTakeProfitExit(t *testing.T) {
	e, client, book, tracker := newTestExecutor(t, true)
	e.strategy.UseTrailingStop = false
	client.SetPrice("ETHUSDT", 100)
	if _, err := e.Execute(buySignal("ETHUSDT", 2)); err != nil {
		t.Fatal(err)
	}

	client.SetPrice("ETHUSDT", 107)
	e.Sync()

	if book.Count() != 0 {
		t.Fatal("expected position closed after target hit")
	}
	pnls := tracker.ClosedPnLs()
	if len(pnls) != 1 || math.Abs(pnls[0]-12) > 1e-9 {
		t.Errorf("pnl = %v, want [12]", pnls)
	}
}

func TestTrailingStopRatchets(t *testing.T) {
	e, client, book, _ := newTestExecutor(t, true)
	e.strategy.UseTrailingStop = true
	e.strategy.TrailingPercent = 1.0
	client.SetPrice("ETHUSDT", 100)
	if _, err := e.Execute(buySignal("ETHUSDT", 2)); err != nil {
		t.Fatal(err)
	}

	client.SetPrice("ETHUSDT", 105)
	e.Sync()

	pos, ok := book.Get("ETHUSDT")
	if !ok {
		t.Fatal("position should survive a favorable move")
	}
	if math.Abs(pos.StopLoss-105*0.99) > 1e-9 {
		t.Errorf("stop = %.4f, want %.4f", pos.StopLoss, 105*0.99)
	}
	if pos.HighWaterMark != 105 {
		t.Errorf("hwm = %.2f, want 105", pos.HighWaterMark)
	}

	// A pullback must not loosen the stop.
	client.SetPrice("ETHUSDT", 104.5)
	e.Sync()
	pos, ok = book.Get("ETHUSDT")
	if !ok {
		t.Fatal("pullback above the stop should not close the position")
	}
	if math.Abs(pos.StopLoss-105*0.99) > 1e-9 {
		t.Errorf("stop after pullback = %.4f, want %.4f", pos.StopLoss, 105*0.99)
	}
}

func TestLiquidate(t *testing.T) {
	e, client, book, tracker := newTestExecutor(t, false)
	client.SetPrice("ETHUSDT", 100)
	if _, err := e.Execute(buySignal("ETHUSDT", 2)); err != nil {
		t.Fatal(err)
	}

	client.SetPrice("ETHUSDT", 103)
	if err := e.Liquidate("ETHUSDT", "manual close"); err != nil {
		t.Fatal(err)
	}
	if book.Count() != 0 {
		t.Error("expected empty book after liquidation")
	}
	pnls := tracker.ClosedPnLs()
	if len(pnls) != 1 || math.Abs(pnls[0]-6) > 1e-9 {
		t.Errorf("pnl = %v, want [6]", pnls)
	}

	cancelled := 0
	for _, o := range e.Orders() {
		if o.Status == StatusCancelled {
			cancelled++
		}
	}
	if cancelled != 2 {
		t.Errorf("cancelled protective orders = %d, want 2", cancelled)
	}

	if err := e.Liquidate("ETHUSDT", "again"); !errors.Is(err, ErrPositionNotFound) {
		t.Errorf("err = %v, want ErrPositionNotFound", err)
	}
}
