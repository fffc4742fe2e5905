package exchange

// Client defines the interface for exchange operations used by the bot.
// All calls may fail transiently; callers treat failures as "no data this
// cycle" rather than fatal errors.
type Client interface {
	GetKlines(symbol, interval string, limit int) ([]Kline, error)
	GetTicker24hr(symbol string) (*Ticker24hr, error)
	GetCurrentPrice(symbol string) (float64, error)
	GetOrderBook(symbol string, depth int) (*OrderBook, error)
	GetFreeBalance(asset string) (float64, error)
	PlaceMarketOrder(symbol, side string, quantity float64) (*OrderResponse, error)
	PlaceStopLossOrder(symbol, side string, quantity, stopPrice float64) (*OrderResponse, error)
	PlaceTakeProfitOrder(symbol, side string, quantity, price float64) (*OrderResponse, error)
	GetOrder(symbol string, orderId int64) (*OrderResponse, error)
	CancelOrder(symbol string, orderId int64) error
}

// Ensure both BinanceClient and MockClient implement Client
var _ Client = (*BinanceClient)(nil)
var _ Client = (*MockClient)(nil)
