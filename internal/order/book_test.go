package order

import (
	"math"
	"testing"
)

func TestBookOpenGetCount(t *testing.T) {
	b := NewPositionBook()
	b.Open(Position{Symbol: "BTCUSDT", Kind: "long", Quantity: 0.1, EntryPrice: 50000})

	if b.Count() != 1 {
		t.Fatalf("count = %d, want 1", b.Count())
	}
	pos, ok := b.Get("BTCUSDT")
	if !ok {
		t.Fatal("expected position")
	}
	if pos.HighWaterMark != 50000 {
		t.Errorf("high water mark = %.0f, want entry price", pos.HighWaterMark)
	}
	if _, ok := b.Get("ETHUSDT"); ok {
		t.Error("unexpected position for ETHUSDT")
	}
}

func TestBookAddAveragesEntry(t *testing.T) {
	b := NewPositionBook()
	b.Open(Position{Symbol: "ETHUSDT", Kind: "long", Quantity: 1, EntryPrice: 100})

	pos, err := b.Add("ETHUSDT", 1, 110)
	if err != nil {
		t.Fatal(err)
	}
	if pos.Quantity != 2 {
		t.Errorf("quantity = %.2f, want 2", pos.Quantity)
	}
	if math.Abs(pos.EntryPrice-105) > 1e-9 {
		t.Errorf("entry = %.2f, want 105", pos.EntryPrice)
	}
	if pos.Averages != 1 {
		t.Errorf("averages = %d, want 1", pos.Averages)
	}

	if _, err := b.Add("BTCUSDT", 1, 50000); err != ErrPositionNotFound {
		t.Errorf("err = %v, want ErrPositionNotFound", err)
	}
}

func TestBookReduceRealizes(t *testing.T) {
	b := NewPositionBook()
	b.Open(Position{Symbol: "ETHUSDT", Kind: "long", Quantity: 2, EntryPrice: 105})

	pnl, closed, err := b.Reduce("ETHUSDT", 1, 120)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(pnl-15) > 1e-9 || closed {
		t.Errorf("pnl=%.2f closed=%v, want 15/false", pnl, closed)
	}

	pnl, closed, err = b.Reduce("ETHUSDT", 5, 90) // over-reduce clamps
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(pnl-(-15)) > 1e-9 || !closed {
		t.Errorf("pnl=%.2f closed=%v, want -15/true", pnl, closed)
	}
	if b.Count() != 0 {
		t.Error("closed position should leave the book")
	}
}

func TestBookReduceShort(t *testing.T) {
	b := NewPositionBook()
	b.Open(Position{Symbol: "SOLUSDT", Kind: "short", Quantity: 10, EntryPrice: 200})

	pnl, _, err := b.Reduce("SOLUSDT", 10, 190)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(pnl-100) > 1e-9 {
		t.Errorf("short pnl = %.2f, want 100", pnl)
	}
}

func TestBookExposure(t *testing.T) {
	b := NewPositionBook()
	b.Open(Position{Symbol: "BTCUSDT", Kind: "long", Quantity: 0.1, EntryPrice: 50000})
	b.Open(Position{Symbol: "ETHUSDT", Kind: "long", Quantity: 2, EntryPrice: 3000})

	prices := map[string]float64{"BTCUSDT": 52000, "ETHUSDT": 3100}
	total, btc := b.Exposure(func(symbol string) float64 { return prices[symbol] })

	if math.Abs(total-(5200+6200)) > 1e-9 {
		t.Errorf("total exposure = %.0f, want 11400", total)
	}
	if math.Abs(btc-5200) > 1e-9 {
		t.Errorf("btc exposure = %.0f, want 5200", btc)
	}
}

func TestHighWaterMarkDirection(t *testing.T) {
	b := NewPositionBook()
	b.Open(Position{Symbol: "BTCUSDT", Kind: "long", Quantity: 1, EntryPrice: 100})

	pos, _ := b.RaiseHighWaterMark("BTCUSDT", 110)
	if pos.HighWaterMark != 110 {
		t.Errorf("hwm = %.0f, want 110", pos.HighWaterMark)
	}
	pos, _ = b.RaiseHighWaterMark("BTCUSDT", 90) // never lowers for longs
	if pos.HighWaterMark != 110 {
		t.Errorf("hwm = %.0f, want 110", pos.HighWaterMark)
	}
}
