package exchange

// Kline represents a candlestick
type Kline struct {
	OpenTime         int64   `json:"openTime"`
	Open             float64 `json:"open,string"`
	High             float64 `json:"high,string"`
	Low              float64 `json:"low,string"`
	Close            float64 `json:"close,string"`
	Volume           float64 `json:"volume,string"`
	CloseTime        int64   `json:"closeTime"`
	QuoteAssetVolume float64 `json:"quoteAssetVolume,string"`
	NumberOfTrades   int     `json:"numberOfTrades"`
}

// Ticker24hr represents 24hr ticker price change statistics
type Ticker24hr struct {
	Symbol             string  `json:"symbol"`
	PriceChange        float64 `json:"priceChange,string"`
	PriceChangePercent float64 `json:"priceChangePercent,string"`
	LastPrice          float64 `json:"lastPrice,string"`
	BidPrice           float64 `json:"bidPrice,string"`
	AskPrice           float64 `json:"askPrice,string"`
	HighPrice          float64 `json:"highPrice,string"`
	LowPrice           float64 `json:"lowPrice,string"`
	Volume             float64 `json:"volume,string"`
	QuoteVolume        float64 `json:"quoteVolume,string"`
}

// BookLevel is a single price level of the order book.
type BookLevel struct {
	Price    float64
	Quantity float64
}

// OrderBook is a depth snapshot for one symbol.
type OrderBook struct {
	Symbol string
	Bids   []BookLevel
	Asks   []BookLevel
}

// BidVolume returns the total bid quantity across all levels.
func (ob *OrderBook) BidVolume() float64 {
	var total float64
	for _, level := range ob.Bids {
		total += level.Quantity
	}
	return total
}

// AskVolume returns the total ask quantity across all levels.
func (ob *OrderBook) AskVolume() float64 {
	var total float64
	for _, level := range ob.Asks {
		total += level.Quantity
	}
	return total
}

// OrderResponse represents a response from placing an order
type OrderResponse struct {
	Symbol              string  `json:"symbol"`
	OrderId             int64   `json:"orderId"`
	ClientOrderId       string  `json:"clientOrderId"`
	TransactTime        int64   `json:"transactTime"`
	Price               float64 `json:"price,string"`
	OrigQty             float64 `json:"origQty,string"`
	ExecutedQty         float64 `json:"executedQty,string"`
	CummulativeQuoteQty float64 `json:"cummulativeQuoteQty,string"`
	Status              string  `json:"status"`
	Type                string  `json:"type"`
	Side                string  `json:"side"`
}

// AvgFillPrice returns the average fill price of an executed order, or
// zero when nothing filled.
func (o *OrderResponse) AvgFillPrice() float64 {
	if o.ExecutedQty == 0 {
		return 0
	}
	return o.CummulativeQuoteQty / o.ExecutedQty
}

// AccountInfo represents spot account information
type AccountInfo struct {
	CanTrade    bool           `json:"canTrade"`
	UpdateTime  int64          `json:"updateTime"`
	AccountType string         `json:"accountType"`
	Balances    []AssetBalance `json:"balances"`
}

// AssetBalance represents a single asset balance
type AssetBalance struct {
	Asset  string  `json:"asset"`
	Free   float64 `json:"free,string"`
	Locked float64 `json:"locked,string"`
}
