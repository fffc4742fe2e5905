package order

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"binance-trading-bot/config"
	"binance-trading-bot/internal/exchange"
	"binance-trading-bot/internal/portfolio"
	"binance-trading-bot/internal/signal"

	"github.com/rs/zerolog"
)

// Executor turns approved signals into exchange orders and keeps the
// resulting positions in sync with their protective orders. In dry-run
// mode fills are simulated at signal price and nothing reaches the
// exchange.
type Executor struct {
	client   exchange.Client
	book     *PositionBook
	tracker  *portfolio.Tracker
	strategy config.Strategy
	trading  config.TradingConfig
	logger   zerolog.Logger

	mu     sync.Mutex
	orders map[int64]*Order // all orders ever placed, by exchange ID
	nextID int64            // simulated order IDs for dry runs

	// onClose, when set, observes every realized exit.
	onClose func(symbol string, exitPrice, pnl float64, reason string)
}

func NewExecutor(client exchange.Client, book *PositionBook, tracker *portfolio.Tracker, strategy config.Strategy, trading config.TradingConfig, logger zerolog.Logger) *Executor {
	return &Executor{
		client:   client,
		book:     book,
		tracker:  tracker,
		strategy: strategy,
		trading:  trading,
		logger:   logger.With().Str("component", "executor").Logger(),
		orders:   make(map[int64]*Order),
		nextID:   -1, // Simulated IDs count down to stay clear of exchange IDs
	}
}

// SetOnClose registers a callback invoked after every position close.
// Must be called before the executor starts handling signals.
func (e *Executor) SetOnClose(fn func(symbol string, exitPrice, pnl float64, reason string)) {
	e.onClose = fn
}

// Execute fills the signal and opens (or averages into) the position.
func (e *Executor) Execute(sig *signal.TradingSignal) (Position, error) {
	if !sig.Ready() {
		return Position{}, ErrSignalNotReady
	}

	if existing, ok := e.book.Get(sig.Symbol); ok {
		return e.averageIn(existing, sig)
	}

	fillPrice, err := e.fillMarket(sig.Symbol, strings.ToUpper(string(sig.Side)), sig.Quantity)
	if err != nil {
		return Position{}, fmt.Errorf("market order for %s: %w", sig.Symbol, err)
	}

	trade := e.tracker.Record(portfolio.Trade{
		Symbol:     sig.Symbol,
		Side:       strings.ToUpper(string(sig.Side)),
		Source:     string(sig.Source),
		Quantity:   sig.Quantity,
		EntryPrice: fillPrice,
	})

	pos := Position{
		Symbol:     sig.Symbol,
		Kind:       string(sig.Kind),
		Quantity:   sig.Quantity,
		EntryPrice: fillPrice,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		Source:     string(sig.Source),
		TradeID:    trade.ID,
	}
	e.book.Open(pos)

	stopID, takeProfitID, err := e.placeProtective(pos)
	if err != nil {
		e.logger.Error().Err(err).Str("symbol", sig.Symbol).Msg("protective order placement failed")
	} else if err := e.book.SetProtective(sig.Symbol, pos.StopLoss, pos.TakeProfit, stopID, takeProfitID); err != nil {
		return Position{}, err
	}

	e.logger.Info().Str("symbol", sig.Symbol).Str("side", string(sig.Side)).
		Str("source", string(sig.Source)).Float64("quantity", sig.Quantity).
		Float64("fill_price", fillPrice).Bool("dry_run", e.trading.DryRun).
		Msg("position opened")

	out, _ := e.book.Get(sig.Symbol)
	return out, nil
}

// averageIn grows an existing same-direction position, within the
// strategy's averaging limit. Opposite-direction signals are refused; the
// open position's protective orders own the exit.
func (e *Executor) averageIn(existing Position, sig *signal.TradingSignal) (Position, error) {
	if existing.Kind != string(sig.Kind) {
		return Position{}, fmt.Errorf("%s: open %s position conflicts with %s signal", sig.Symbol, existing.Kind, sig.Kind)
	}
	if existing.Averages >= e.strategy.MaxAveraging {
		return Position{}, ErrAveragingLimit
	}

	quantity := sig.Quantity * e.strategy.QuantityAverMultiplier
	fillPrice, err := e.fillMarket(sig.Symbol, strings.ToUpper(string(sig.Side)), quantity)
	if err != nil {
		return Position{}, fmt.Errorf("averaging order for %s: %w", sig.Symbol, err)
	}

	e.tracker.Record(portfolio.Trade{
		Symbol:     sig.Symbol,
		Side:       strings.ToUpper(string(sig.Side)),
		Source:     string(sig.Source),
		Quantity:   quantity,
		EntryPrice: fillPrice,
	})

	pos, err := e.book.Add(sig.Symbol, quantity, fillPrice)
	if err != nil {
		return Position{}, err
	}

	e.logger.Info().Str("symbol", sig.Symbol).Int("averages", pos.Averages).
		Float64("quantity", quantity).Float64("avg_entry", pos.EntryPrice).
		Msg("averaged into position")
	return pos, nil
}

// fillMarket executes a market order and returns the realized fill price.
func (e *Executor) fillMarket(symbol, side string, quantity float64) (float64, error) {
	if e.trading.DryRun {
		price, err := e.client.GetCurrentPrice(symbol)
		if err != nil {
			return 0, err
		}
		e.recordOrder(e.simulatedID(), symbol, side, "MARKET", price, quantity, StatusFilled)
		return price, nil
	}

	resp, err := e.client.PlaceMarketOrder(symbol, side, quantity)
	if err != nil {
		return 0, err
	}
	fillPrice := resp.AvgFillPrice()
	if fillPrice == 0 {
		fillPrice = resp.Price
	}
	e.recordOrder(resp.OrderId, symbol, side, "MARKET", fillPrice, quantity, StatusFilled)
	return fillPrice, nil
}

// placeProtective places the stop-loss and take-profit orders guarding a
// position. Dry runs track the levels without exchange orders.
func (e *Executor) placeProtective(pos Position) (stopID, takeProfitID int64, err error) {
	if e.trading.DryRun {
		return 0, 0, nil
	}

	exitSide := "SELL"
	if pos.Kind == "short" {
		exitSide = "BUY"
	}

	stop, err := e.client.PlaceStopLossOrder(pos.Symbol, exitSide, pos.Quantity, pos.StopLoss)
	if err != nil {
		return 0, 0, fmt.Errorf("stop loss: %w", err)
	}
	e.recordOrder(stop.OrderId, pos.Symbol, exitSide, stop.Type, pos.StopLoss, pos.Quantity, StatusOpen)

	takeProfit, err := e.client.PlaceTakeProfitOrder(pos.Symbol, exitSide, pos.Quantity, pos.TakeProfit)
	if err != nil {
		return stop.OrderId, 0, fmt.Errorf("take profit: %w", err)
	}
	e.recordOrder(takeProfit.OrderId, pos.Symbol, exitSide, takeProfit.Type, pos.TakeProfit, pos.Quantity, StatusOpen)

	return stop.OrderId, takeProfit.OrderId, nil
}

// Sync reconciles every open position against the market: protective-order
// fills close positions, and trailing stops ratchet with the price.
func (e *Executor) Sync() {
	for _, pos := range e.book.All() {
		price, err := e.client.GetCurrentPrice(pos.Symbol)
		if err != nil {
			e.logger.Warn().Err(err).Str("symbol", pos.Symbol).Msg("price fetch failed during sync")
			continue
		}
		if err := e.syncPosition(pos, price); err != nil {
			e.logger.Error().Err(err).Str("symbol", pos.Symbol).Msg("position sync failed")
		}
	}
}

func (e *Executor) syncPosition(pos Position, price float64) error {
	if e.trading.DryRun {
		return e.simulateExits(pos, price)
	}

	if pos.StopOrderID != 0 {
		filled, err := e.orderFilled(pos.Symbol, pos.StopOrderID)
		if err != nil {
			return err
		}
		if filled {
			return e.closePosition(pos, pos.StopLoss, "stop loss hit", pos.TakeProfitOrderID)
		}
	}
	if pos.TakeProfitOrderID != 0 {
		filled, err := e.orderFilled(pos.Symbol, pos.TakeProfitOrderID)
		if err != nil {
			return err
		}
		if filled {
			return e.closePosition(pos, pos.TakeProfit, "take profit hit", pos.StopOrderID)
		}
	}

	return e.updateTrailingStop(pos, price)
}

// simulateExits applies protective levels locally when dry running.
func (e *Executor) simulateExits(pos Position, price float64) error {
	hitStop := (pos.Kind == "long" && price <= pos.StopLoss) || (pos.Kind == "short" && price >= pos.StopLoss)
	hitTarget := (pos.Kind == "long" && price >= pos.TakeProfit) || (pos.Kind == "short" && price <= pos.TakeProfit)

	switch {
	case hitStop:
		return e.closePosition(pos, pos.StopLoss, "stop loss hit", 0)
	case hitTarget:
		return e.closePosition(pos, pos.TakeProfit, "take profit hit", 0)
	}
	return e.updateTrailingStop(pos, price)
}

// updateTrailingStop ratchets the stop behind a favorable move. The stop
// only ever tightens.
func (e *Executor) updateTrailingStop(pos Position, price float64) error {
	if !e.strategy.UseTrailingStop {
		return nil
	}
	if pos.Source == string(signal.SourcePump) && !e.strategy.TrailingPump {
		return nil
	}

	updated, err := e.book.RaiseHighWaterMark(pos.Symbol, price)
	if err != nil {
		return err
	}

	trail := e.strategy.TrailingPercent / 100
	var newStop float64
	if updated.Kind == "long" {
		newStop = updated.HighWaterMark * (1 - trail)
		if newStop <= updated.StopLoss {
			return nil
		}
	} else {
		newStop = updated.HighWaterMark * (1 + trail)
		if newStop >= updated.StopLoss {
			return nil
		}
	}

	stopID := updated.StopOrderID
	if !e.trading.DryRun && stopID != 0 {
		if err := e.client.CancelOrder(updated.Symbol, stopID); err != nil && !exchange.IsOrderNotFound(err) {
			return fmt.Errorf("cancel trailing stop: %w", err)
		}
		e.setOrderStatus(stopID, StatusCancelled)

		exitSide := "SELL"
		if updated.Kind == "short" {
			exitSide = "BUY"
		}
		resp, err := e.client.PlaceStopLossOrder(updated.Symbol, exitSide, updated.Quantity, newStop)
		if err != nil {
			return fmt.Errorf("replace trailing stop: %w", err)
		}
		e.recordOrder(resp.OrderId, updated.Symbol, exitSide, resp.Type, newStop, updated.Quantity, StatusOpen)
		stopID = resp.OrderId
	}

	e.logger.Debug().Str("symbol", updated.Symbol).Float64("new_stop", newStop).
		Float64("high_water_mark", updated.HighWaterMark).Msg("trailing stop raised")
	return e.book.SetProtective(updated.Symbol, newStop, updated.TakeProfit, stopID, updated.TakeProfitOrderID)
}

// closePosition realizes the exit, settles the ledger, and cancels the
// surviving protective order.
func (e *Executor) closePosition(pos Position, exitPrice float64, reason string, siblingOrderID int64) error {
	pnl, _, err := e.book.Reduce(pos.Symbol, pos.Quantity, exitPrice)
	if err != nil {
		return err
	}
	e.tracker.Close(pos.TradeID, exitPrice, pnl)

	if siblingOrderID != 0 && !e.trading.DryRun {
		if err := e.client.CancelOrder(pos.Symbol, siblingOrderID); err != nil && !exchange.IsOrderNotFound(err) {
			e.logger.Warn().Err(err).Str("symbol", pos.Symbol).Int64("order_id", siblingOrderID).
				Msg("failed to cancel sibling protective order")
		} else {
			e.setOrderStatus(siblingOrderID, StatusCancelled)
		}
	}

	e.logger.Info().Str("symbol", pos.Symbol).Float64("exit_price", exitPrice).
		Float64("pnl", pnl).Str("reason", reason).Msg("position closed")
	if e.onClose != nil {
		e.onClose(pos.Symbol, exitPrice, pnl, reason)
	}
	return nil
}

// Liquidate closes one position at market, cancelling its protective
// orders first.
func (e *Executor) Liquidate(symbol, reason string) error {
	pos, ok := e.book.Get(symbol)
	if !ok {
		return ErrPositionNotFound
	}

	for _, id := range []int64{pos.StopOrderID, pos.TakeProfitOrderID} {
		if id == 0 || e.trading.DryRun {
			continue
		}
		if err := e.client.CancelOrder(symbol, id); err != nil && !exchange.IsOrderNotFound(err) {
			e.logger.Warn().Err(err).Str("symbol", symbol).Int64("order_id", id).Msg("cancel before liquidation failed")
		} else {
			e.setOrderStatus(id, StatusCancelled)
		}
	}

	exitSide := "SELL"
	if pos.Kind == "short" {
		exitSide = "BUY"
	}
	exitPrice, err := e.fillMarket(symbol, exitSide, pos.Quantity)
	if err != nil {
		return fmt.Errorf("liquidate %s: %w", symbol, err)
	}
	return e.closePosition(pos, exitPrice, reason, 0)
}

// LiquidateAll closes every open position, returning the first error.
func (e *Executor) LiquidateAll(reason string) error {
	var firstErr error
	for _, pos := range e.book.All() {
		if err := e.Liquidate(pos.Symbol, reason); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *Executor) orderFilled(symbol string, orderID int64) (bool, error) {
	resp, err := e.client.GetOrder(symbol, orderID)
	if err != nil {
		if exchange.IsOrderNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if resp.Status == "FILLED" {
		e.setOrderStatus(orderID, StatusFilled)
		return true, nil
	}
	return false, nil
}

// Orders returns copies of every tracked order, newest last.
func (e *Executor) Orders() []Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Order, 0, len(e.orders))
	for _, o := range e.orders {
		out = append(out, *o)
	}
	return out
}

func (e *Executor) recordOrder(id int64, symbol, side, orderType string, price, quantity float64, status string) {
	now := time.Now()
	e.mu.Lock()
	e.orders[id] = &Order{
		ID:        id,
		Symbol:    symbol,
		Side:      side,
		Type:      orderType,
		Price:     price,
		Quantity:  quantity,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	e.mu.Unlock()
}

func (e *Executor) setOrderStatus(id int64, status string) {
	e.mu.Lock()
	if o, ok := e.orders[id]; ok {
		o.Status = status
		o.UpdatedAt = time.Now()
	}
	e.mu.Unlock()
}

func (e *Executor) simulatedID() int64 {
	e.mu.Lock()
	id := e.nextID
	e.nextID--
	e.mu.Unlock()
	return id
}
