package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// BinanceClient talks to the Binance spot REST API.
type BinanceClient struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

func NewBinanceClient(apiKey, secretKey, baseURL string) *BinanceClient {
	return &BinanceClient{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// GetKlines fetches candlestick data
func (c *BinanceClient) GetKlines(symbol, interval string, limit int) ([]Kline, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(fmt.Sprintf("/api/v3/klines?%s", params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("error fetching klines: %w", err)
	}

	var rawKlines [][]interface{}
	if err := json.Unmarshal(body, &rawKlines); err != nil {
		return nil, fmt.Errorf("error parsing klines: %w", err)
	}

	klines := make([]Kline, len(rawKlines))
	for i, raw := range rawKlines {
		if len(raw) < 9 {
			continue
		}
		klines[i] = Kline{
			OpenTime:         int64(raw[0].(float64)),
			Open:             parseFloat(raw[1]),
			High:             parseFloat(raw[2]),
			Low:              parseFloat(raw[3]),
			Close:            parseFloat(raw[4]),
			Volume:           parseFloat(raw[5]),
			CloseTime:        int64(raw[6].(float64)),
			QuoteAssetVolume: parseFloat(raw[7]),
			NumberOfTrades:   int(raw[8].(float64)),
		}
	}

	return klines, nil
}

// GetTicker24hr fetches 24hr statistics for one symbol
func (c *BinanceClient) GetTicker24hr(symbol string) (*Ticker24hr, error) {
	body, err := c.get(fmt.Sprintf("/api/v3/ticker/24hr?symbol=%s", symbol))
	if err != nil {
		return nil, fmt.Errorf("error fetching ticker: %w", err)
	}

	var ticker Ticker24hr
	if err := json.Unmarshal(body, &ticker); err != nil {
		return nil, fmt.Errorf("error parsing ticker: %w", err)
	}
	return &ticker, nil
}

// GetCurrentPrice fetches the current price for a symbol
func (c *BinanceClient) GetCurrentPrice(symbol string) (float64, error) {
	body, err := c.get(fmt.Sprintf("/api/v3/ticker/price?symbol=%s", symbol))
	if err != nil {
		return 0, fmt.Errorf("error fetching price: %w", err)
	}

	var priceResp struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price,string"`
	}
	if err := json.Unmarshal(body, &priceResp); err != nil {
		return 0, fmt.Errorf("error parsing price: %w", err)
	}
	return priceResp.Price, nil
}

// GetOrderBook fetches a depth snapshot for a symbol
func (c *BinanceClient) GetOrderBook(symbol string, depth int) (*OrderBook, error) {
	body, err := c.get(fmt.Sprintf("/api/v3/depth?symbol=%s&limit=%d", symbol, depth))
	if err != nil {
		return nil, fmt.Errorf("error fetching order book: %w", err)
	}

	var raw struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("error parsing order book: %w", err)
	}

	book := &OrderBook{Symbol: symbol}
	for _, level := range raw.Bids {
		if len(level) < 2 {
			continue
		}
		book.Bids = append(book.Bids, BookLevel{Price: parseFloat(level[0]), Quantity: parseFloat(level[1])})
	}
	for _, level := range raw.Asks {
		if len(level) < 2 {
			continue
		}
		book.Asks = append(book.Asks, BookLevel{Price: parseFloat(level[0]), Quantity: parseFloat(level[1])})
	}
	return book, nil
}

// GetFreeBalance returns the free balance for one asset
func (c *BinanceClient) GetFreeBalance(asset string) (float64, error) {
	info, err := c.getAccountInfo()
	if err != nil {
		return 0, err
	}
	for _, balance := range info.Balances {
		if balance.Asset == asset {
			return balance.Free, nil
		}
	}
	return 0, nil
}

func (c *BinanceClient) getAccountInfo() (*AccountInfo, error) {
	params := map[string]string{
		"timestamp": strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	params["signature"] = c.sign(params)

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}

	req, err := http.NewRequest("GET", fmt.Sprintf("%s/api/v3/account", c.baseURL), nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = values.Encode()
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching account info: %w", err)
	}

	var info AccountInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("error parsing account info: %w", err)
	}
	return &info, nil
}

// PlaceMarketOrder places a market order for the given base quantity
func (c *BinanceClient) PlaceMarketOrder(symbol, side string, quantity float64) (*OrderResponse, error) {
	return c.placeOrder(map[string]string{
		"symbol":   symbol,
		"side":     side,
		"type":     "MARKET",
		"quantity": strconv.FormatFloat(quantity, 'f', -1, 64),
	})
}

// PlaceStopLossOrder places a protective stop-loss-limit order
func (c *BinanceClient) PlaceStopLossOrder(symbol, side string, quantity, stopPrice float64) (*OrderResponse, error) {
	return c.placeOrder(map[string]string{
		"symbol":      symbol,
		"side":        side,
		"type":        "STOP_LOSS_LIMIT",
		"timeInForce": "GTC",
		"quantity":    strconv.FormatFloat(quantity, 'f', -1, 64),
		"stopPrice":   strconv.FormatFloat(stopPrice, 'f', -1, 64),
		"price":       strconv.FormatFloat(stopPrice, 'f', -1, 64),
	})
}

// PlaceTakeProfitOrder places a protective take-profit-limit order
func (c *BinanceClient) PlaceTakeProfitOrder(symbol, side string, quantity, price float64) (*OrderResponse, error) {
	return c.placeOrder(map[string]string{
		"symbol":      symbol,
		"side":        side,
		"type":        "TAKE_PROFIT_LIMIT",
		"timeInForce": "GTC",
		"quantity":    strconv.FormatFloat(quantity, 'f', -1, 64),
		"stopPrice":   strconv.FormatFloat(price, 'f', -1, 64),
		"price":       strconv.FormatFloat(price, 'f', -1, 64),
	})
}

func (c *BinanceClient) placeOrder(params map[string]string) (*OrderResponse, error) {
	params["timestamp"] = strconv.FormatInt(time.Now().UnixMilli(), 10)
	params["signature"] = c.sign(params)

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}

	req, err := http.NewRequest("POST", fmt.Sprintf("%s/api/v3/order", c.baseURL), nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = values.Encode()
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("error placing order: %w", err)
	}

	var orderResp OrderResponse
	if err := json.Unmarshal(body, &orderResp); err != nil {
		return nil, fmt.Errorf("error parsing order response: %w", err)
	}
	return &orderResp, nil
}

// GetOrder queries the current state of an order
func (c *BinanceClient) GetOrder(symbol string, orderId int64) (*OrderResponse, error) {
	params := map[string]string{
		"symbol":    symbol,
		"orderId":   strconv.FormatInt(orderId, 10),
		"timestamp": strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	params["signature"] = c.sign(params)

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}

	req, err := http.NewRequest("GET", fmt.Sprintf("%s/api/v3/order", c.baseURL), nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = values.Encode()
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("error querying order: %w", err)
	}

	var orderResp OrderResponse
	if err := json.Unmarshal(body, &orderResp); err != nil {
		return nil, fmt.Errorf("error parsing order response: %w", err)
	}
	return &orderResp, nil
}

// CancelOrder cancels an existing order
func (c *BinanceClient) CancelOrder(symbol string, orderId int64) error {
	params := map[string]string{
		"symbol":    symbol,
		"orderId":   strconv.FormatInt(orderId, 10),
		"timestamp": strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	params["signature"] = c.sign(params)

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}

	req, err := http.NewRequest("DELETE", fmt.Sprintf("%s/api/v3/order", c.baseURL), nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = values.Encode()
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	if _, err := c.do(req); err != nil {
		return fmt.Errorf("error canceling order: %w", err)
	}
	return nil
}

func (c *BinanceClient) get(path string) ([]byte, error) {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s", string(body))
	}
	return body, nil
}

func (c *BinanceClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: %s", string(body))
	}
	return body, nil
}

// sign creates a signature for authenticated requests
func (c *BinanceClient) sign(params map[string]string) string {
	query := ""
	for k, v := range params {
		if k != "signature" {
			if query != "" {
				query += "&"
			}
			query += k + "=" + v
		}
	}

	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseFloat(val interface{}) float64 {
	switch v := val.(type) {
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case float64:
		return v
	default:
		return 0
	}
}
