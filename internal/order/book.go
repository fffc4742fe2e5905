package order

import (
	"strings"
	"sync"
	"time"
)

// PositionBook holds the open positions, one per symbol. Safe for
// concurrent use; the API layer reads it while the bot loop writes.
type PositionBook struct {
	mu        sync.RWMutex
	positions map[string]*Position
}

func NewPositionBook() *PositionBook {
	return &PositionBook{positions: make(map[string]*Position)}
}

// Get returns a copy of the position for the symbol, if any.
func (b *PositionBook) Get(symbol string) (Position, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// All returns copies of every open position.
func (b *PositionBook) All() []Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, *p)
	}
	return out
}

// Count returns the number of open positions.
func (b *PositionBook) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.positions)
}

// Open records a new position. An existing position for the symbol is
// replaced; callers use Add for averaging instead.
func (b *PositionBook) Open(p Position) {
	if p.OpenedAt.IsZero() {
		p.OpenedAt = time.Now()
	}
	if p.HighWaterMark == 0 {
		p.HighWaterMark = p.EntryPrice
	}
	b.mu.Lock()
	b.positions[p.Symbol] = &p
	b.mu.Unlock()
}

// Add grows an existing position, averaging the entry price by size.
func (b *PositionBook) Add(symbol string, quantity, price float64) (Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.positions[symbol]
	if !ok {
		return Position{}, ErrPositionNotFound
	}
	total := p.Quantity + quantity
	p.EntryPrice = (p.EntryPrice*p.Quantity + price*quantity) / total
	p.Quantity = total
	p.Averages++
	return *p, nil
}

// Reduce shrinks a position at the given price and returns the realized
// profit. Reducing to zero (or past it) removes the position.
func (b *PositionBook) Reduce(symbol string, quantity, price float64) (float64, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.positions[symbol]
	if !ok {
		return 0, false, ErrPositionNotFound
	}
	if quantity > p.Quantity {
		quantity = p.Quantity
	}

	pnl := (price - p.EntryPrice) * quantity
	if p.Kind == "short" {
		pnl = (p.EntryPrice - price) * quantity
	}

	p.Quantity -= quantity
	closed := p.Quantity <= 1e-12
	if closed {
		delete(b.positions, symbol)
	}
	return pnl, closed, nil
}

// SetProtective updates the protective levels and order handles.
func (b *PositionBook) SetProtective(symbol string, stopLoss, takeProfit float64, stopOrderID, takeProfitOrderID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.positions[symbol]
	if !ok {
		return ErrPositionNotFound
	}
	p.StopLoss = stopLoss
	p.TakeProfit = takeProfit
	p.StopOrderID = stopOrderID
	p.TakeProfitOrderID = takeProfitOrderID
	return nil
}

// RaiseHighWaterMark records a new best price and returns the updated copy.
func (b *PositionBook) RaiseHighWaterMark(symbol string, price float64) (Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.positions[symbol]
	if !ok {
		return Position{}, ErrPositionNotFound
	}
	if (p.Kind == "long" && price > p.HighWaterMark) || (p.Kind == "short" && price < p.HighWaterMark) {
		p.HighWaterMark = price
	}
	return *p, nil
}

// Exposure values all positions at current prices and returns the total
// alongside the slice held in BTC pairs.
func (b *PositionBook) Exposure(priceOf func(symbol string) float64) (total, btc float64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for symbol, p := range b.positions {
		value := p.Quantity * priceOf(symbol)
		total += value
		if strings.Contains(symbol, "BTC") {
			btc += value
		}
	}
	return total, btc
}
