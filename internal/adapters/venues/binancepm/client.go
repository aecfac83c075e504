package binancepm

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
	"keyprobe/internal/adapters/venues/binance"
	"keyprobe/pkg/errors"
	"keyprobe/pkg/logger"
)

// Portfolio-Margin API lives on its own host; market metadata still comes
// from the spot/futures hosts because papi has no exchangeInfo endpoint.
const (
	papiBaseURL        = "https://papi.binance.com"
	spotMetaBaseURL    = "https://api.binance.com"
	futuresMetaBaseURL = "https://fapi.binance.com"
	defaultRecvWindow  = 5000
	defaultHTTPTimeout = 30 * time.Second
)

// Config configures the Binance Portfolio-Margin adapter. Market selects
// the margin (spot-like) or UM (USDT-margined futures) path family for
// symbol-scoped operations; the two families must never be conflated.
type Config struct {
	Credential venues.Credential
	Market     venues.MarketType

	HTTPClient  *http.Client
	RecvWindow  int64
	BaseURL     string
	MetaBaseURL string
}

// NewClient creates a Portfolio-Margin adapter bound to one credential.
func NewClient(cfg Config) (venues.Venue, error) {
	if cfg.Credential.KeyID == "" || cfg.Credential.Secret == "" {
		return nil, errors.Wrap(errors.ErrConfig, "binance_pm: api key and secret required")
	}
	if cfg.Market == "" {
		cfg.Market = venues.MarketTypeLinearPerp
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = defaultRecvWindow
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = papiBaseURL
	}
	if cfg.MetaBaseURL == "" {
		if cfg.Market == venues.MarketTypeSpot {
			cfg.MetaBaseURL = spotMetaBaseURL
		} else {
			cfg.MetaBaseURL = futuresMetaBaseURL
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &client{
		cfg:        cfg,
		httpClient: httpClient,
		signer: &binance.Signer{
			APIKey:     cfg.Credential.KeyID,
			Secret:     cfg.Credential.Secret,
			RecvWindow: cfg.RecvWindow,
		},
	}, nil
}

type client struct {
	cfg        Config
	httpClient *http.Client
	signer     *binance.Signer
}

func (c *client) Name() venues.VenueName {
	return venues.VenueBinancePM
}

func (c *client) um() bool {
	return c.cfg.Market != venues.MarketTypeSpot
}

// umPath picks the UM or margin member of a papi path pair.
func (c *client) umPath(marginPath, umPath string) string {
	if c.um() {
		return umPath
	}
	return marginPath
}

func (c *client) GetBalance(ctx context.Context) (*venues.Balance, error) {
	data, err := c.signed(ctx, http.MethodGet, "/papi/v1/balance", nil)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		Asset               string `json:"asset"`
		TotalWalletBalance  string `json:"totalWalletBalance"`
		CrossMarginFree     string `json:"crossMarginFree"`
		CrossMarginBorrowed string `json:"crossMarginBorrowed"`
		UmWalletBalance     string `json:"umWalletBalance"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, venues.Unmapped(venues.VenueBinancePM, http.StatusOK, data)
	}

	balance := &venues.Balance{Currency: "USDT"}
	for _, b := range raw {
		total := parseDecimal(b.TotalWalletBalance)
		if total.IsZero() {
			continue
		}
		free := parseDecimal(b.CrossMarginFree)
		balance.Details = append(balance.Details, venues.BalanceDetail{
			Currency:  b.Asset,
			Total:     total,
			Available: free,
			Borrowed:  parseDecimal(b.CrossMarginBorrowed),
		})
		if b.Asset == "USDT" {
			balance.Total = total
			balance.Available = free
		}
	}
	return balance, nil
}

func (c *client) GetPositions(ctx context.Context) ([]venues.Position, error) {
	data, err := c.signed(ctx, http.MethodGet, "/papi/v1/um/positionRisk", nil)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		Symbol           string `json:"symbol"`
		PositionSide     string `json:"positionSide"`
		PositionAmt      string `json:"positionAmt"`
		EntryPrice       string `json:"entryPrice"`
		MarkPrice        string `json:"markPrice"`
		Leverage         string `json:"leverage"`
		UnrealizedProfit string `json:"unRealizedProfit"`
		UpdateTime       int64  `json:"updateTime"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, venues.Unmapped(venues.VenueBinancePM, http.StatusOK, data)
	}

	positions := make([]venues.Position, 0, len(raw))
	for _, p := range raw {
		size := parseDecimal(p.PositionAmt)
		if size.IsZero() {
			continue
		}
		positions = append(positions, venues.Position{
			Symbol:        p.Symbol,
			Market:        venues.MarketTypeLinearPerp,
			Side:          positionSideFromString(p.PositionSide, size),
			Size:          size.Abs(),
			EntryPrice:    parseDecimal(p.EntryPrice),
			MarkPrice:     parseDecimal(p.MarkPrice),
			Leverage:      parseDecimal(p.Leverage),
			UnrealizedPnL: parseDecimal(p.UnrealizedProfit),
			UpdatedAt:     time.UnixMilli(p.UpdateTime),
		})
	}
	return positions, nil
}

func (c *client) GetOpenOrders(ctx context.Context, symbol string) ([]venues.Order, error) {
	path := c.umPath("/papi/v1/margin/openOrders", "/papi/v1/um/openOrders")
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", normalizeSymbol(symbol))
	}

	data, err := c.signed(ctx, http.MethodGet, path, params)
	if err != nil {
		return nil, err
	}

	var raw []pmOrder
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, venues.Unmapped(venues.VenueBinancePM, http.StatusOK, data)
	}

	orders := make([]venues.Order, 0, len(raw))
	for _, o := range raw {
		orders = append(orders, o.normalize(c.cfg.Market))
	}
	return orders, nil
}

func (c *client) GetMarketConfig(ctx context.Context, symbol string) (*venues.MarketConfig, error) {
	native := normalizeSymbol(symbol)
	metaPath := "/api/v3/exchangeInfo"
	if c.um() {
		metaPath = "/fapi/v1/exchangeInfo"
	}

	data, err := c.meta(ctx, metaPath, url.Values{"symbol": []string{native}})
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
		return nil, venues.Unmapped(venues.VenueBinancePM, http.StatusOK, data)
	}

	cfg := &venues.MarketConfig{
		Symbol:       symbol,
		NativeSymbol: res.Symbols[0].Symbol,
		Market:       c.cfg.Market,
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
	data, err := c.signed(ctx, http.MethodGet, "/papi/v1/um/commissionRate", params)
	if err != nil {
		return nil, err
	}

	var res struct {
		Symbol              string `json:"symbol"`
		MakerCommissionRate string `json:"makerCommissionRate"`
		TakerCommissionRate string `json:"takerCommissionRate"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, venues.Unmapped(venues.VenueBinancePM, http.StatusOK, data)
	}

	return &venues.CommissionRate{
		Symbol: res.Symbol,
		Maker:  parseDecimal(res.MakerCommissionRate),
		Taker:  parseDecimal(res.TakerCommissionRate),
	}, nil
}

func (c *client) GetTicker(ctx context.Context, symbol string) (*venues.Ticker, error) {
	tickerPath := "/api/v3/ticker/price"
	if c.um() {
		tickerPath = "/fapi/v1/ticker/price"
	}

	data, err := c.meta(ctx, tickerPath, url.Values{"symbol": []string{normalizeSymbol(symbol)}})
	if err != nil {
		return nil, err
	}

	var res struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, venues.Unmapped(venues.VenueBinancePM, http.StatusOK, data)
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
		// UM runs hedge mode and addresses positions explicitly; the
		// margin side is spot-like one-way.
		UsePositionSide:     c.um(),
		QuoteSizedMarketBuy: !c.um(),
	})
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"symbol": []string{translated.Symbol},
		"side":   []string{strings.ToUpper(string(translated.Side))},
		"type":   []string{strings.ToUpper(string(translated.Type))},
	}
	if translated.PositionSide != "" {
		params.Set("positionSide", strings.ToUpper(string(translated.PositionSide)))
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

	path := c.umPath("/papi/v1/margin/order", "/papi/v1/um/order")
	data, err := c.signed(ctx, http.MethodPost, path, params)
	if err != nil {
		return nil, err
	}

	var res struct {
		OrderID       int64  `json:"orderId"`
		ClientOrderID string `json:"clientOrderId"`
		Status        string `json:"status"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, venues.Unmapped(venues.VenueBinancePM, http.StatusOK, data)
	}

	return &venues.OrderResult{
		VenueOrderID:  strconv.FormatInt(res.OrderID, 10),
		ClientOrderID: res.ClientOrderID,
		RawStatus:     res.Status,
		Raw:           string(data),
	}, nil
}

func (c *client) CancelAllOpenOrders(ctx context.Context, symbol string) error {
	path := c.umPath("/papi/v1/margin/openOrders", "/papi/v1/um/allOpenOrders")
	params := url.Values{"symbol": []string{normalizeSymbol(symbol)}}
	_, err := c.signed(ctx, http.MethodDelete, path, params)
	return err
}

func (c *client) GetTradeHistory(ctx context.Context, symbol string, limit int) ([]venues.TradeFill, error) {
	if limit <= 0 {
		limit = 50
	}
	path := c.umPath("/papi/v1/margin/myTrades", "/papi/v1/um/userTrades")
	params := url.Values{
		"symbol": []string{normalizeSymbol(symbol)},
		"limit":  []string{strconv.Itoa(limit)},
	}

	data, err := c.signed(ctx, http.MethodGet, path, params)
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
		Buyer           bool   `json:"buyer"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, venues.Unmapped(venues.VenueBinancePM, http.StatusOK, data)
	}

	fills := make([]venues.TradeFill, 0, len(raw))
	for _, t := range raw {
		side := venues.OrderSideSell
		if t.Buyer {
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

// TransferFunds moves BNB between the UM wallet and the margin wallet.
func (c *client) TransferFunds(ctx context.Context, req *venues.TransferRequest) error {
	side := "TO_UM"
	if strings.EqualFold(req.To, "margin") {
		side = "FROM_UM"
	}
	params := url.Values{
		"amount":       []string{req.Amount.String()},
		"transferSide": []string{side},
	}
	_, err := c.signed(ctx, http.MethodPost, "/papi/v1/bnb-transfer", params)
	return err
}

// CollectFunds sweeps stranded wallet balances into the margin account.
func (c *client) CollectFunds(ctx context.Context) error {
	_, err := c.signed(ctx, http.MethodPost, "/papi/v1/auto-collection", nil)
	return err
}

// GetAccountConfig returns the portfolio-margin account snapshot. The papi
// account endpoint reports status and tier but no position mode.
func (c *client) GetAccountConfig(ctx context.Context) (*venues.AccountConfig, error) {
	data, err := c.signed(ctx, http.MethodGet, "/papi/v1/account", nil)
	if err != nil {
		return nil, err
	}

	var res struct {
		AccountStatus string `json:"accountStatus"`
		AccountType   string `json:"accountType"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, venues.Unmapped(venues.VenueBinancePM, http.StatusOK, data)
	}

	return &venues.AccountConfig{
		AccountLevel: res.AccountType,
		Status:       res.AccountStatus,
		Raw:          string(data),
	}, nil
}

func (c *client) lastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	ticker, err := c.GetTicker(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return ticker.LastPrice, nil
}

// meta hits the public metadata host (spot or futures, never papi).
func (c *client) meta(ctx context.Context, path string, params url.Values) ([]byte, error) {
	reqURL := c.cfg.MetaBaseURL + path
	if len(params) > 0 {
		reqURL = reqURL + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrSigning, err.Error())
	}

	return c.execute(req, path)
}

func (c *client) signed(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	query, err := c.signer.SignQuery(params)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	reqURL := c.cfg.BaseURL + path
	switch method {
	case http.MethodGet, http.MethodDelete:
		reqURL = reqURL + "?" + query
	default:
		body = strings.NewReader(query)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrSigning, err.Error())
	}
	c.signer.Apply(req)

	return c.execute(req, path)
}

func (c *client) execute(req *http.Request, path string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, venues.ClassifyTransport(venues.VenueBinancePM, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, venues.ClassifyTransport(venues.VenueBinancePM, err)
	}

	if resp.StatusCode >= 400 {
		logger.Get().Debugw("binance_pm error response", "path", path, "status", resp.StatusCode)
		return nil, binance.ParseAPIError(venues.VenueBinancePM, resp.StatusCode, payload)
	}
	return payload, nil
}

type pmOrder struct {
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

func (o pmOrder) normalize(market venues.MarketType) venues.Order {
	order := venues.Order{
		ID:            strconv.FormatInt(o.OrderID, 10),
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Market:        market,
		Price:         parseDecimal(o.Price),
		Quantity:      parseDecimal(o.OrigQty),
		Filled:        parseDecimal(o.ExecutedQty),
		CreatedAt:     time.UnixMilli(o.Time),
	}

	if strings.ToUpper(o.Type) == "MARKET" {
		order.Type = venues.OrderTypeMarket
	} else {
		order.Type = venues.OrderTypeLimit
	}
	if strings.ToUpper(o.Side) == "SELL" {
		order.Side = venues.OrderSideSell
	} else {
		order.Side = venues.OrderSideBuy
	}
	switch strings.ToUpper(o.Status) {
	case "NEW":
		order.Status = venues.OrderStatusNew
	case "PARTIALLY_FILLED":
		order.Status = venues.OrderStatusPartial
	case "FILLED":
		order.Status = venues.OrderStatusFilled
	case "CANCELED":
		order.Status = venues.OrderStatusCanceled
	default:
		order.Status = venues.OrderStatusUnknown
	}
	switch strings.ToUpper(o.TimeInForce) {
	case "IOC":
		order.TimeInForce = venues.TimeInForceIOC
	case "FOK":
		order.TimeInForce = venues.TimeInForceFOK
	default:
		order.TimeInForce = venues.TimeInForceGTC
	}
	return order
}

func positionSideFromString(s string, size decimal.Decimal) venues.PositionSide {
	switch strings.ToUpper(s) {
	case "LONG":
		return venues.PositionSideLong
	case "SHORT":
		return venues.PositionSideShort
	default:
		if size.Sign() < 0 {
			return venues.PositionSideShort
		}
		return venues.PositionSideLong
	}
}

func parseDecimal(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "-", ""))
}
