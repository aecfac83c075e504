package binance

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"keyprobe/internal/adapters/venues"
	"keyprobe/pkg/errors"
	"keyprobe/pkg/logger"
)

const (
	spotBaseURL        = "https://api.binance.com"
	spotTestnetBaseURL = "https://testnet.binance.vision"
	defaultRecvWindow  = 5000
	defaultHTTPTimeout = 30 * time.Second
)

// Config configures the Binance spot adapter.
type Config struct {
	Credential venues.Credential

	HTTPClient *http.Client
	RecvWindow int64
	BaseURL    string
}

// NewClient creates a Binance spot adapter bound to one credential.
func NewClient(cfg Config) (venues.Venue, error) {
	if cfg.Credential.KeyID == "" || cfg.Credential.Secret == "" {
		return nil, errors.Wrap(errors.ErrConfig, "binance: api key and secret required")
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = defaultRecvWindow
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = spotBaseURL
		if cfg.Credential.Simulated {
			baseURL = spotTestnetBaseURL
		}
	}

	return &client{
		cfg:        cfg,
		baseURL:    baseURL,
		httpClient: httpClient,
		signer: &Signer{
			APIKey:     cfg.Credential.KeyID,
			Secret:     cfg.Credential.Secret,
			RecvWindow: cfg.RecvWindow,
		},
	}, nil
}

type client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	signer     *Signer
}

func (c *client) Name() venues.VenueName {
	return venues.VenueBinance
}

func (c *client) GetBalance(ctx context.Context) (*venues.Balance, error) {
	data, err := c.signed(ctx, http.MethodGet, "/api/v3/account", nil)
	if err != nil {
		return nil, err
	}

	var res struct {
		Balances []struct {
			Asset  string `json:"asset"`
			Free   string `json:"free"`
			Locked string `json:"locked"`
		} `json:"balances"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, venues.Unmapped(venues.VenueBinance, http.StatusOK, data)
	}

	balance := &venues.Balance{Currency: "USDT"}
	for _, b := range res.Balances {
		free := parseDecimal(b.Free)
		locked := parseDecimal(b.Locked)
		total := free.Add(locked)
		if total.IsZero() {
			continue
		}
		balance.Details = append(balance.Details, venues.BalanceDetail{
			Currency:  b.Asset,
			Total:     total,
			Available: free,
		})
		if b.Asset == "USDT" {
			balance.Total = total
			balance.Available = free
		}
	}

	return balance, nil
}

// GetPositions returns an empty set: spot accounts carry no derivative
// positions, and the probe sequence treats that as a clean read.
func (c *client) GetPositions(ctx context.Context) ([]venues.Position, error) {
	return []venues.Position{}, nil
}

func (c *client) GetOpenOrders(ctx context.Context, symbol string) ([]venues.Order, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", normalizeSymbol(symbol))
	}

	data, err := c.signed(ctx, http.MethodGet, "/api/v3/openOrders", params)
	if err != nil {
		return nil, err
	}

	var raw []binanceOrder
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, venues.Unmapped(venues.VenueBinance, http.StatusOK, data)
	}

	orders := make([]venues.Order, 0, len(raw))
	for _, o := range raw {
		orders = append(orders, o.normalize(venues.MarketTypeSpot))
	}
	return orders, nil
}

func (c *client) GetMarketConfig(ctx context.Context, symbol string) (*venues.MarketConfig, error) {
	native := normalizeSymbol(symbol)
	params := url.Values{"symbol": []string{native}}

	data, err := c.public(ctx, "/api/v3/exchangeInfo", params)
	if err != nil {
		return nil, err
	}

	var res struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType string `json:"filterType"`
				TickSize   string `json:"tickSize"`
				StepSize   string `json:"stepSize"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(data, &res); err != nil || len(res.Symbols) == 0 {
		return nil, venues.Unmapped(venues.VenueBinance, http.StatusOK, data)
	}

	cfg := &venues.MarketConfig{
		Symbol:       symbol,
		NativeSymbol: res.Symbols[0].Symbol,
		Market:       venues.MarketTypeSpot,
	}

	for _, f := range res.Symbols[0].Filters {
		switch f.FilterType {
		case "PRICE_FILTER":
			places, err := venues.DecimalPlacesFromTick(parseDecimal(f.TickSize))
			if err != nil {
				return nil, err
			}
			cfg.PricePrecision = places
		case "LOT_SIZE":
			places, err := venues.DecimalPlacesFromTick(parseDecimal(f.StepSize))
			if err != nil {
				return nil, err
			}
			cfg.QuantityPrecision = places
		}
	}

	return cfg, nil
}

func (c *client) GetCommissionRate(ctx context.Context, symbol string) (*venues.CommissionRate, error) {
	params := url.Values{"symbol": []string{normalizeSymbol(symbol)}}
	data, err := c.signed(ctx, http.MethodGet, "/api/v3/account/commission", params)
	if err != nil {
		return nil, err
	}

	var res struct {
		Symbol             string `json:"symbol"`
		StandardCommission struct {
			Maker string `json:"maker"`
			Taker string `json:"taker"`
		} `json:"standardCommission"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, venues.Unmapped(venues.VenueBinance, http.StatusOK, data)
	}

	return &venues.CommissionRate{
		Symbol: res.Symbol,
		Maker:  parseDecimal(res.StandardCommission.Maker),
		Taker:  parseDecimal(res.StandardCommission.Taker),
	}, nil
}

func (c *client) GetTicker(ctx context.Context, symbol string) (*venues.Ticker, error) {
	params := url.Values{"symbol": []string{normalizeSymbol(symbol)}}
	data, err := c.public(ctx, "/api/v3/ticker/price", params)
	if err != nil {
		return nil, err
	}

	var res struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, venues.Unmapped(venues.VenueBinance, http.StatusOK, data)
	}

	return &venues.Ticker{
		Symbol:    res.Symbol,
		LastPrice: parseDecimal(res.Price),
		Timestamp: time.Now(),
	}, nil
}

func (c *client) PlaceOrder(ctx context.Context, intent *venues.OrderIntent) (*venues.OrderResult, error) {
	cfg, err := c.GetMarketConfig(ctx, intent.Symbol)
	if err != nil {
		return nil, err
	}

	translated, err := venues.Translate(ctx, intent, cfg, c.lastPrice, venues.TranslateOptions{
		QuoteSizedMarketBuy: true,
	})
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"symbol": []string{translated.Symbol},
		"side":   []string{strings.ToUpper(string(translated.Side))},
		"type":   []string{strings.ToUpper(string(translated.Type))},
	}
	if !translated.QuoteQuantity.IsZero() {
		params.Set("quoteOrderQty", translated.QuoteQuantity.String())
	} else {
		params.Set("quantity", translated.Quantity.String())
	}
	if translated.Type == venues.OrderTypeLimit {
		params.Set("price", translated.Price.String())
		params.Set("timeInForce", string(translated.TimeInForce))
	}
	if translated.ClientOrderID != "" {
		params.Set("newClientOrderId", translated.ClientOrderID)
	}

	data, err := c.signed(ctx, http.MethodPost, "/api/v3/order", params)
	if err != nil {
		return nil, err
	}

	var res struct {
		OrderID       int64  `json:"orderId"`
		ClientOrderID string `json:"clientOrderId"`
		Status        string `json:"status"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, venues.Unmapped(venues.VenueBinance, http.StatusOK, data)
	}

	return &venues.OrderResult{
		VenueOrderID:  strconv.FormatInt(res.OrderID, 10),
		ClientOrderID: res.ClientOrderID,
		RawStatus:     res.Status,
		Raw:           string(data),
	}, nil
}

func (c *client) CancelAllOpenOrders(ctx context.Context, symbol string) error {
	params := url.Values{"symbol": []string{normalizeSymbol(symbol)}}
	_, err := c.signed(ctx, http.MethodDelete, "/api/v3/openOrders", params)
	return err
}

func (c *client) GetTradeHistory(ctx context.Context, symbol string, limit int) ([]venues.TradeFill, error) {
	if limit <= 0 {
		limit = 50
	}
	params := url.Values{
		"symbol": []string{normalizeSymbol(symbol)},
		"limit":  []string{strconv.Itoa(limit)},
	}

	data, err := c.signed(ctx, http.MethodGet, "/api/v3/myTrades", params)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		ID              int64  `json:"id"`
		OrderID         int64  `json:"orderId"`
		Symbol          string `json:"symbol"`
		Price           string `json:"price"`
		Qty             string `json:"qty"`
		Commission      string `json:"commission"`
		CommissionAsset string `json:"commissionAsset"`
		Time            int64  `json:"time"`
		IsBuyer         bool   `json:"isBuyer"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, venues.Unmapped(venues.VenueBinance, http.StatusOK, data)
	}

	fills := make([]venues.TradeFill, 0, len(raw))
	for _, t := range raw {
		side := venues.OrderSideSell
		if t.IsBuyer {
			side = venues.OrderSideBuy
		}
		fills = append(fills, venues.TradeFill{
			ID:        strconv.FormatInt(t.ID, 10),
			OrderID:   strconv.FormatInt(t.OrderID, 10),
			Symbol:    t.Symbol,
			Side:      side,
			Price:     parseDecimal(t.Price),
			Quantity:  parseDecimal(t.Qty),
			Fee:       parseDecimal(t.Commission),
			FeeAsset:  t.CommissionAsset,
			Timestamp: time.UnixMilli(t.Time),
		})
	}
	return fills, nil
}

// lastPrice is the QuoteFn for quote-sized market buys.
func (c *client) lastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	ticker, err := c.GetTicker(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return ticker.LastPrice, nil
}

func (c *client) public(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.doRequest(ctx, http.MethodGet, path, params, false)
}

func (c *client) signed(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	return c.doRequest(ctx, method, path, params, true)
}

func (c *client) doRequest(ctx context.Context, method, path string, params url.Values, signed bool) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}

	query := params.Encode()
	if signed {
		var err error
		query, err = c.signer.SignQuery(params)
		if err != nil {
			return nil, err
		}
	}

	var body io.Reader
	reqURL := c.baseURL + path

	switch method {
	case http.MethodGet, http.MethodDelete:
		if query != "" {
			reqURL = reqURL + "?" + query
		}
	default:
		body = strings.NewReader(query)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrSigning, err.Error())
	}
	if signed {
		c.signer.Apply(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, venues.ClassifyTransport(venues.VenueBinance, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, venues.ClassifyTransport(venues.VenueBinance, err)
	}

	if resp.StatusCode >= 400 {
		logger.Get().Debugw("binance error response", "path", path, "status", resp.StatusCode)
		return nil, ParseAPIError(venues.VenueBinance, resp.StatusCode, payload)
	}

	return payload, nil
}

// ParseAPIError classifies a Binance-family {code, msg} error payload.
// Shared with the Portfolio-Margin adapter, which speaks the same shapes.
func ParseAPIError(venue venues.VenueName, status int, payload []byte) error {
	var apiErr struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(payload, &apiErr); err != nil || apiErr.Code == 0 {
		return venues.Unmapped(venue, status, payload)
	}

	code := strconv.Itoa(apiErr.Code)
	kind := classifyCode(apiErr.Code, status)
	return errors.NewVenueError(kind, string(venue), code, apiErr.Msg, string(payload))
}

func classifyCode(code, status int) error {
	switch code {
	case -1021:
		// timestamp outside recvWindow
		return errors.ErrClockSkew
	case -1022:
		return errors.ErrSigning
	case -1002, -2014:
		return errors.ErrAuth
	case -2015:
		// invalid API-key, IP, or permissions for action
		return errors.ErrPermission
	case -1013, -2010, -2011, -2013, -3045, -4046, -4059:
		return errors.ErrVenueBusiness
	}

	switch status {
	case http.StatusUnauthorized:
		return errors.ErrAuth
	case http.StatusForbidden:
		return errors.ErrPermission
	}
	return errors.ErrUnmappedVenue
}

type binanceOrder struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Price         string `json:"price"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	Status        string `json:"status"`
	Type          string `json:"type"`
	Side          string `json:"side"`
	TimeInForce   string `json:"timeInForce"`
	Time          int64  `json:"time"`
}

func (o binanceOrder) normalize(market venues.MarketType) venues.Order {
	return venues.Order{
		ID:            strconv.FormatInt(o.OrderID, 10),
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Market:        market,
		Type:          orderTypeFromString(o.Type),
		Side:          orderSideFromString(o.Side),
		Status:        orderStatusFromString(o.Status),
		Price:         parseDecimal(o.Price),
		Quantity:      parseDecimal(o.OrigQty),
		Filled:        parseDecimal(o.ExecutedQty),
		TimeInForce:   timeInForceFromString(o.TimeInForce),
		CreatedAt:     time.UnixMilli(o.Time),
	}
}

func parseDecimal(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func orderTypeFromString(s string) venues.OrderType {
	if strings.ToUpper(s) == "MARKET" {
		return venues.OrderTypeMarket
	}
	return venues.OrderTypeLimit
}

func orderSideFromString(s string) venues.OrderSide {
	if strings.ToUpper(s) == "SELL" {
		return venues.OrderSideSell
	}
	return venues.OrderSideBuy
}

func timeInForceFromString(s string) venues.TimeInForce {
	switch strings.ToUpper(s) {
	case "IOC":
		return venues.TimeInForceIOC
	case "FOK":
		return venues.TimeInForceFOK
	default:
		return venues.TimeInForceGTC
	}
}

func orderStatusFromString(s string) venues.OrderStatus {
	switch strings.ToUpper(s) {
	case "NEW":
		return venues.OrderStatusNew
	case "PARTIALLY_FILLED":
		return venues.OrderStatusPartial
	case "FILLED":
		return venues.OrderStatusFilled
	case "CANCELED":
		return venues.OrderStatusCanceled
	case "REJECTED":
		return venues.OrderStatusRejected
	case "EXPIRED":
		return venues.OrderStatusExpired
	default:
		return venues.OrderStatusUnknown
	}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "-", ""))
}
