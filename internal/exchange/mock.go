package exchange

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// MockClient provides simulated market data for development/testing
type MockClient struct {
	prices      map[string]float64
	freeBalance map[string]float64
	orders      map[int64]*OrderResponse
	nextOrderId int64
	lastUpdate  time.Time
	mu          sync.RWMutex // Protects all fields
}

// NewMockClient creates a new mock client
func NewMockClient() *MockClient {
	mc := &MockClient{
		prices: map[string]float64{
			"BTCUSDT":  104500.00,
			"ETHUSDT":  3900.00,
			"BNBUSDT":  710.00,
			"SOLUSDT":  220.00,
			"XRPUSDT":  2.35,
			"ADAUSDT":  1.05,
			"DOGEUSDT": 0.40,
			"AVAXUSDT": 50.00,
			"DOTUSDT":  9.50,
			"LINKUSDT": 28.00,
		},
		freeBalance: map[string]float64{"USDT": 10000.0},
		orders:      make(map[int64]*OrderResponse),
		nextOrderId: 1,
		lastUpdate:  time.Now(),
	}
	return mc
}

// SetPrice pins a symbol's price, useful in tests
func (mc *MockClient) SetPrice(symbol string, price float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.prices[symbol] = price
}

// SetFreeBalance pins an asset's free balance
func (mc *MockClient) SetFreeBalance(asset string, amount float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.freeBalance[asset] = amount
}

// updatePrices adds small random variations to simulate market movement
func (mc *MockClient) updatePrices() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if time.Since(mc.lastUpdate) < time.Second {
		return
	}
	for symbol, price := range mc.prices {
		// Random walk: -0.5% to +0.5% change
		change := (rand.Float64() - 0.5) * 0.01
		mc.prices[symbol] = price * (1 + change)
	}
	mc.lastUpdate = time.Now()
}

func (mc *MockClient) price(symbol string) float64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	if price, ok := mc.prices[symbol]; ok {
		return price
	}
	return 100.0
}

// GetKlines returns simulated candlestick data
func (mc *MockClient) GetKlines(symbol, interval string, limit int) ([]Kline, error) {
	mc.updatePrices()
	basePrice := mc.price(symbol)

	var intervalDuration time.Duration
	switch interval {
	case "1m":
		intervalDuration = time.Minute
	case "5m":
		intervalDuration = 5 * time.Minute
	case "15m":
		intervalDuration = 15 * time.Minute
	case "1h":
		intervalDuration = time.Hour
	case "1d":
		intervalDuration = 24 * time.Hour
	default:
		intervalDuration = time.Minute
	}

	klines := make([]Kline, limit)
	now := time.Now()
	currentPrice := basePrice

	for i := limit - 1; i >= 0; i-- {
		openTime := now.Add(-time.Duration(limit-i) * intervalDuration)
		closeTime := openTime.Add(intervalDuration)

		volatility := 0.02
		open := currentPrice
		change := (rand.Float64() - 0.5) * volatility * 2
		close := open * (1 + change)
		high := math.Max(open, close) * (1 + rand.Float64()*volatility*0.5)
		low := math.Min(open, close) * (1 - rand.Float64()*volatility*0.5)
		volume := 1000 + rand.Float64()*5000

		klines[i] = Kline{
			OpenTime:         openTime.UnixMilli(),
			Open:             open,
			High:             high,
			Low:              low,
			Close:            close,
			Volume:           volume,
			CloseTime:        closeTime.UnixMilli(),
			QuoteAssetVolume: volume * close,
			NumberOfTrades:   int(100 + rand.Float64()*900),
		}
		currentPrice = close
	}
	return klines, nil
}

// GetTicker24hr returns simulated 24hr statistics
func (mc *MockClient) GetTicker24hr(symbol string) (*Ticker24hr, error) {
	mc.updatePrices()
	price := mc.price(symbol)
	changePct := (rand.Float64() - 0.5) * 8

	return &Ticker24hr{
		Symbol:             symbol,
		PriceChange:        price * changePct / 100,
		PriceChangePercent: changePct,
		LastPrice:          price,
		BidPrice:           price * 0.9995,
		AskPrice:           price * 1.0005,
		HighPrice:          price * 1.03,
		LowPrice:           price * 0.97,
		Volume:             10000 + rand.Float64()*50000,
		QuoteVolume:        (10000 + rand.Float64()*50000) * price,
	}, nil
}

// GetCurrentPrice returns the simulated price
func (mc *MockClient) GetCurrentPrice(symbol string) (float64, error) {
	mc.updatePrices()
	return mc.price(symbol), nil
}

// GetOrderBook returns a simulated depth snapshot
func (mc *MockClient) GetOrderBook(symbol string, depth int) (*OrderBook, error) {
	price := mc.price(symbol)
	book := &OrderBook{Symbol: symbol}
	for i := 0; i < depth; i++ {
		step := float64(i+1) * 0.0005
		book.Bids = append(book.Bids, BookLevel{Price: price * (1 - step), Quantity: 1 + rand.Float64()*10})
		book.Asks = append(book.Asks, BookLevel{Price: price * (1 + step), Quantity: 1 + rand.Float64()*10})
	}
	return book, nil
}

// GetFreeBalance returns the simulated free balance
func (mc *MockClient) GetFreeBalance(asset string) (float64, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.freeBalance[asset], nil
}

// PlaceMarketOrder fills instantly at the current simulated price
func (mc *MockClient) PlaceMarketOrder(symbol, side string, quantity float64) (*OrderResponse, error) {
	price := mc.price(symbol)

	mc.mu.Lock()
	defer mc.mu.Unlock()
	order := &OrderResponse{
		Symbol:              symbol,
		OrderId:             mc.nextOrderId,
		TransactTime:        time.Now().UnixMilli(),
		Price:               price,
		OrigQty:             quantity,
		ExecutedQty:         quantity,
		CummulativeQuoteQty: quantity * price,
		Status:              "FILLED",
		Type:                "MARKET",
		Side:                side,
	}
	mc.orders[mc.nextOrderId] = order
	mc.nextOrderId++
	return order, nil
}

// PlaceStopLossOrder records a resting protective order
func (mc *MockClient) PlaceStopLossOrder(symbol, side string, quantity, stopPrice float64) (*OrderResponse, error) {
	return mc.placeResting(symbol, side, "STOP_LOSS_LIMIT", quantity, stopPrice)
}

// PlaceTakeProfitOrder records a resting protective order
func (mc *MockClient) PlaceTakeProfitOrder(symbol, side string, quantity, price float64) (*OrderResponse, error) {
	return mc.placeResting(symbol, side, "TAKE_PROFIT_LIMIT", quantity, price)
}

func (mc *MockClient) placeResting(symbol, side, orderType string, quantity, price float64) (*OrderResponse, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	order := &OrderResponse{
		Symbol:       symbol,
		OrderId:      mc.nextOrderId,
		TransactTime: time.Now().UnixMilli(),
		Price:        price,
		OrigQty:      quantity,
		Status:       "NEW",
		Type:         orderType,
		Side:         side,
	}
	mc.orders[mc.nextOrderId] = order
	mc.nextOrderId++
	return order, nil
}

// GetOrder returns the recorded order state
func (mc *MockClient) GetOrder(symbol string, orderId int64) (*OrderResponse, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	if order, ok := mc.orders[orderId]; ok {
		return order, nil
	}
	return nil, errOrderNotFound
}

// CancelOrder marks a recorded order as cancelled
func (mc *MockClient) CancelOrder(symbol string, orderId int64) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if order, ok := mc.orders[orderId]; ok {
		order.Status = "CANCELED"
		return nil
	}
	return errOrderNotFound
}
