package tastytrade

import (
	"bytes"
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
)

const (
	liveBaseURL    = "https://api.tastyworks.com"
	sandboxBaseURL = "https://api.cert.tastyworks.com"

	defaultHTTPTimeout = 30 * time.Second
)

// Config configures the Tastytrade adapter. AccountID may be left empty;
// the adapter resolves the first account of the authenticated customer on
// first use.
type Config struct {
	Credential venues.Credential
	AccountID  string

	HTTPClient *http.Client
	BaseURL    string
}

// NewClient constructs a Tastytrade adapter bound to one credential.
func NewClient(cfg Config) (venues.Venue, error) {
	if cfg.Credential.KeyID == "" || cfg.Credential.Secret == "" {
		return nil, errors.Wrap(errors.ErrConfig, "tastytrade: client id and secret required")
	}
	if cfg.BaseURL == "" {
		if cfg.Credential.Simulated {
			cfg.BaseURL = sandboxBaseURL
		} else {
			cfg.BaseURL = liveBaseURL
		}
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &client{
		cfg: cfg,
		tokens: &TokenSource{
			ClientID:     cfg.Credential.KeyID,
			ClientSecret: cfg.Credential.Secret,
			BaseURL:      cfg.BaseURL,
			HTTPClient:   cfg.HTTPClient,
		},
		accountID: cfg.AccountID,
	}, nil
}

type client struct {
	cfg    Config
	tokens *TokenSource

	accountID string
}

func (c *client) Name() venues.VenueName {
	return venues.VenueTasty
}

// account resolves the trading account number, preferring the configured
// one and otherwise taking the customer's first account.
func (c *client) account(ctx context.Context) (string, error) {
	if c.accountID != "" {
		return c.accountID, nil
	}

	var res struct {
		Items []struct {
			Account struct {
				AccountNumber string `json:"account-number"`
			} `json:"account"`
		} `json:"items"`
	}
	if err := c.request(ctx, http.MethodGet, "/customers/me/accounts", nil, nil, &res); err != nil {
		return "", err
	}
	if len(res.Items) == 0 {
		return "", errors.NewVenueError(errors.ErrPermission, string(venues.VenueTasty), "", "credential has no accounts", "")
	}

	c.accountID = res.Items[0].Account.AccountNumber
	return c.accountID, nil
}

func (c *client) GetBalance(ctx context.Context) (*venues.Balance, error) {
	account, err := c.account(ctx)
	if err != nil {
		return nil, err
	}

	var res struct {
		CashBalance         string `json:"cash-balance"`
		NetLiquidatingValue string `json:"net-liquidating-value"`
		EquityBuyingPower   string `json:"equity-buying-power"`
		Currency            string `json:"currency"`
	}
	if err := c.request(ctx, http.MethodGet, "/accounts/"+account+"/balances", nil, nil, &res); err != nil {
		return nil, err
	}

	currency := res.Currency
	if currency == "" {
		currency = "USD"
	}
	return &venues.Balance{
		Currency:  currency,
		Total:     dec(res.NetLiquidatingValue),
		Available: dec(res.EquityBuyingPower),
		Details: []venues.BalanceDetail{{
			Currency:  currency,
			Total:     dec(res.NetLiquidatingValue),
			Available: dec(res.CashBalance),
		}},
	}, nil
}

func (c *client) GetPositions(ctx context.Context) ([]venues.Position, error) {
	account, err := c.account(ctx)
	if err != nil {
		return nil, err
	}

	var res struct {
		Items []struct {
			Symbol            string `json:"symbol"`
			Quantity          string `json:"quantity"`
			QuantityDirection string `json:"quantity-direction"`
			AverageOpenPrice  string `json:"average-open-price"`
		} `json:"items"`
	}
	if err := c.request(ctx, http.MethodGet, "/accounts/"+account+"/positions", nil, nil, &res); err != nil {
		return nil, err
	}

	positions := make([]venues.Position, 0, len(res.Items))
	for _, p := range res.Items {
		size := dec(p.Quantity)
		if size.IsZero() {
			continue
		}
		side := venues.PositionSideLong
		if strings.EqualFold(p.QuantityDirection, "Short") {
			side = venues.PositionSideShort
		}
		positions = append(positions, venues.Position{
			Symbol:     p.Symbol,
			Market:     venues.MarketTypeSpot,
			Side:       side,
			Size:       size.Abs(),
			EntryPrice: dec(p.AverageOpenPrice),
			UpdatedAt:  time.Now(),
		})
	}
	return positions, nil
}

func (c *client) GetOpenOrders(ctx context.Context, symbol string) ([]venues.Order, error) {
	account, err := c.account(ctx)
	if err != nil {
		return nil, err
	}

	var res struct {
		Items []tastyOrder `json:"items"`
	}
	if err := c.request(ctx, http.MethodGet, "/accounts/"+account+"/orders/live", nil, nil, &res); err != nil {
		return nil, err
	}

	native := normalizeSymbol(symbol)
	orders := make([]venues.Order, 0, len(res.Items))
	for _, o := range res.Items {
		normalized := o.normalize()
		if native != "" && normalized.Symbol != native {
			continue
		}
		orders = append(orders, normalized)
	}
	return orders, nil
}

func (c *client) GetMarketConfig(ctx context.Context, symbol string) (*venues.MarketConfig, error) {
	native := normalizeSymbol(symbol)

	params := url.Values{"symbol[]": []string{native}}
	var res struct {
		Items []struct {
			Symbol   string `json:"symbol"`
			TickSize string `json:"tick-size"`
		} `json:"items"`
	}
	if err := c.request(ctx, http.MethodGet, "/instruments/cryptocurrencies", params, nil, &res); err != nil {
		return nil, err
	}
	if len(res.Items) == 0 {
		return nil, errors.NewVenueError(errors.ErrVenueBusiness, string(venues.VenueTasty), "", "instrument not found: "+native, "")
	}

	pricePrecision, err := venues.DecimalPlacesFromTick(dec(res.Items[0].TickSize))
	if err != nil {
		return nil, err
	}

	// The instrument payload carries no quantity step; crypto quantities
	// are accepted to 8 places.
	return &venues.MarketConfig{
		Symbol:            symbol,
		NativeSymbol:      res.Items[0].Symbol,
		Market:            venues.MarketTypeSpot,
		PricePrecision:    venues.ClampScale(pricePrecision),
		QuantityPrecision: 8,
	}, nil
}

// GetCommissionRate is not supported: the venue exposes no fee-rate
// endpoint for cryptocurrency instruments.
func (c *client) GetCommissionRate(ctx context.Context, symbol string) (*venues.CommissionRate, error) {
	return nil, errors.Wrap(errors.ErrNotSupported, "tastytrade: no commission rate endpoint")
}

func (c *client) GetTicker(ctx context.Context, symbol string) (*venues.Ticker, error) {
	native := normalizeSymbol(symbol)

	params := url.Values{"cryptocurrency": []string{native}}
	var res struct {
		Items []struct {
			Symbol    string `json:"symbol"`
			Last      string `json:"last"`
			Mark      string `json:"mark"`
			UpdatedAt int64  `json:"updated-at"`
		} `json:"items"`
	}
	if err := c.request(ctx, http.MethodGet, "/market-data/by-type", params, nil, &res); err != nil {
		return nil, err
	}
	if len(res.Items) == 0 {
		return nil, venues.Unmapped(venues.VenueTasty, http.StatusOK, nil)
	}

	last := dec(res.Items[0].Last)
	if last.IsZero() {
		last = dec(res.Items[0].Mark)
	}
	return &venues.Ticker{
		Symbol:    res.Items[0].Symbol,
		LastPrice: last,
		Timestamp: time.UnixMilli(res.Items[0].UpdatedAt),
	}, nil
}

func (c *client) PlaceOrder(ctx context.Context, intent *venues.OrderIntent) (*venues.OrderResult, error) {
	account, err := c.account(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := c.GetMarketConfig(ctx, intent.Symbol)
	if err != nil {
		return nil, err
	}

	translated, err := venues.Translate(ctx, intent, cfg, nil, venues.TranslateOptions{})
	if err != nil {
		return nil, err
	}

	action := "Buy to Open"
	priceEffect := "Debit"
	if translated.Side == venues.OrderSideSell {
		action = "Sell to Close"
		priceEffect = "Credit"
	}

	order := map[string]interface{}{
		"order-type":    orderTypeToAPI(translated.Type),
		"time-in-force": tifToAPI(translated.TimeInForce),
		"legs": []map[string]interface{}{{
			"instrument-type": "Cryptocurrency",
			"symbol":          translated.Symbol,
			"quantity":        translated.Quantity.String(),
			"action":          action,
		}},
	}
	if translated.Type == venues.OrderTypeLimit {
		order["price"] = translated.Price.String()
		order["price-effect"] = priceEffect
	}

	body, err := json.Marshal(order)
	if err != nil {
		return nil, errors.Wrap(errors.ErrSigning, err.Error())
	}

	var res struct {
		Order struct {
			ID     json.Number `json:"id"`
			Status string      `json:"status"`
		} `json:"order"`
	}
	if err := c.request(ctx, http.MethodPost, "/accounts/"+account+"/orders", nil, body, &res); err != nil {
		return nil, err
	}

	return &venues.OrderResult{
		VenueOrderID:  res.Order.ID.String(),
		ClientOrderID: translated.ClientOrderID,
		RawStatus:     res.Order.Status,
		Raw:           string(body),
	}, nil
}

// CancelAllOpenOrders lists live orders and cancels each one; the venue
// has no bulk-cancel endpoint.
func (c *client) CancelAllOpenOrders(ctx context.Context, symbol string) error {
	account, err := c.account(ctx)
	if err != nil {
		return err
	}
	orders, err := c.GetOpenOrders(ctx, symbol)
	if err != nil {
		return err
	}

	for _, o := range orders {
		if err := c.request(ctx, http.MethodDelete, "/accounts/"+account+"/orders/"+o.ID, nil, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

func (c *client) GetTradeHistory(ctx context.Context, symbol string, limit int) ([]venues.TradeFill, error) {
	account, err := c.account(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	params := url.Values{
		"per-page":          []string{strconv.Itoa(limit)},
		"instrument-type":   []string{"Cryptocurrency"},
		"transaction-types": []string{"Trade"},
	}
	native := normalizeSymbol(symbol)
	if native != "" {
		params.Set("symbol", native)
	}

	var res struct {
		Items []struct {
			ID         json.Number `json:"id"`
			OrderID    json.Number `json:"order-id"`
			Symbol     string      `json:"symbol"`
			Action     string      `json:"action"`
			Price      string      `json:"price"`
			Quantity   string      `json:"quantity"`
			Commission string      `json:"commission"`
			ExecutedAt string      `json:"executed-at"`
		} `json:"items"`
	}
	if err := c.request(ctx, http.MethodGet, "/accounts/"+account+"/transactions", params, nil, &res); err != nil {
		return nil, err
	}

	fills := make([]venues.TradeFill, 0, len(res.Items))
	for _, f := range res.Items {
		side := venues.OrderSideBuy
		if strings.HasPrefix(f.Action, "Sell") {
			side = venues.OrderSideSell
		}
		executedAt, _ := time.Parse(time.RFC3339, f.ExecutedAt)
		fills = append(fills, venues.TradeFill{
			ID:        f.ID.String(),
			OrderID:   f.OrderID.String(),
			Symbol:    f.Symbol,
			Side:      side,
			Price:     dec(f.Price),
			Quantity:  dec(f.Quantity),
			Fee:       dec(f.Commission).Abs(),
			FeeAsset:  "USD",
			Timestamp: executedAt,
		})
	}
	return fills, nil
}

// request performs one bearer-authenticated round trip and decodes the
// data envelope. A 401 invalidates the cached token and retries once with
// a fresh one.
func (c *client) request(ctx context.Context, method, path string, params url.Values, body []byte, target interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	status, raw, err := c.roundTrip(ctx, token, method, path, params, body)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		c.tokens.Invalidate(token)
		token, err = c.tokens.Token(ctx)
		if err != nil {
			return err
		}
		status, raw, err = c.roundTrip(ctx, token, method, path, params, body)
		if err != nil {
			return err
		}
	}

	return decodeEnvelope(status, raw, target)
}

func (c *client) roundTrip(ctx context.Context, token, method, path string, params url.Values, body []byte) (int, []byte, error) {
	reqURL := c.cfg.BaseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return 0, nil, errors.Wrap(errors.ErrSigning, err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, venues.ClassifyTransport(venues.VenueTasty, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, venues.ClassifyTransport(venues.VenueTasty, err)
	}
	return resp.StatusCode, raw, nil
}

// decodeEnvelope unwraps the {"data": ...} envelope on success and maps
// the {"error": {code, message}} shape on failure.
func decodeEnvelope(status int, raw []byte, target interface{}) error {
	if status >= http.StatusBadRequest {
		return classify(status, raw)
	}

	if target == nil {
		return nil
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || len(env.Data) == 0 {
		return venues.Unmapped(venues.VenueTasty, status, raw)
	}
	if err := json.Unmarshal(env.Data, target); err != nil {
		return venues.Unmapped(venues.VenueTasty, status, raw)
	}
	return nil
}

func classify(status int, raw []byte) error {
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(raw, &env)
	code := env.Error.Code
	msg := env.Error.Message

	kind := errors.ErrUnmappedVenue
	switch {
	case status == http.StatusUnauthorized,
		code == "invalid_credentials", code == "invalid_grant", code == "invalid_token":
		kind = errors.ErrAuth
	case status == http.StatusForbidden, code == "not_permitted", code == "forbidden":
		kind = errors.ErrPermission
	case status == http.StatusUnprocessableEntity, strings.Contains(code, "validation"):
		kind = errors.ErrVenueBusiness
	}
	if kind == errors.ErrUnmappedVenue {
		return venues.Unmapped(venues.VenueTasty, status, raw)
	}
	return errors.NewVenueError(kind, string(venues.VenueTasty), code, msg, string(raw))
}

type tastyOrder struct {
	ID          json.Number `json:"id"`
	OrderType   string      `json:"order-type"`
	TimeInForce string      `json:"time-in-force"`
	Price       string      `json:"price"`
	Size        string      `json:"size"`
	Status      string      `json:"status"`
	ReceivedAt  string      `json:"received-at"`
	Legs        []struct {
		Symbol   string `json:"symbol"`
		Action   string `json:"action"`
		Quantity string `json:"quantity"`
	} `json:"legs"`
}

func (o tastyOrder) normalize() venues.Order {
	order := venues.Order{
		ID:          o.ID.String(),
		Market:      venues.MarketTypeSpot,
		Type:        orderTypeFromAPI(o.OrderType),
		Status:      statusFromAPI(o.Status),
		Price:       dec(o.Price),
		Quantity:    dec(o.Size),
		TimeInForce: tifFromAPI(o.TimeInForce),
	}
	if t, err := time.Parse(time.RFC3339, o.ReceivedAt); err == nil {
		order.CreatedAt = t
	}
	if len(o.Legs) > 0 {
		order.Symbol = o.Legs[0].Symbol
		if strings.HasPrefix(o.Legs[0].Action, "Sell") {
			order.Side = venues.OrderSideSell
		} else {
			order.Side = venues.OrderSideBuy
		}
		if order.Quantity.IsZero() {
			order.Quantity = dec(o.Legs[0].Quantity)
		}
	}
	return order
}

func orderTypeToAPI(t venues.OrderType) string {
	if t == venues.OrderTypeMarket {
		return "Market"
	}
	return "Limit"
}

func orderTypeFromAPI(s string) venues.OrderType {
	if strings.EqualFold(s, "Market") {
		return venues.OrderTypeMarket
	}
	return venues.OrderTypeLimit
}

func tifToAPI(tif venues.TimeInForce) string {
	switch tif {
	case venues.TimeInForceIOC, venues.TimeInForceFOK:
		return "IOC"
	case "":
		return "Day"
	default:
		return "GTC"
	}
}

func tifFromAPI(s string) venues.TimeInForce {
	switch s {
	case "IOC":
		return venues.TimeInForceIOC
	case "GTC":
		return venues.TimeInForceGTC
	default:
		return venues.TimeInForceGTC
	}
}

func statusFromAPI(s string) venues.OrderStatus {
	switch strings.ToLower(s) {
	case "received", "routed", "live", "contingent":
		return venues.OrderStatusOpen
	case "filled":
		return venues.OrderStatusFilled
	case "cancelled", "canceled":
		return venues.OrderStatusCanceled
	case "rejected":
		return venues.OrderStatusRejected
	case "expired":
		return venues.OrderStatusExpired
	default:
		return venues.OrderStatusUnknown
	}
}

func dec(v string) decimal.Decimal {
	if v == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// normalizeSymbol converts compact or dashed spellings into the venue's
// slash form, e.g. BTC-USD or BTCUSD -> BTC/USD.
func normalizeSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	s = strings.ReplaceAll(s, "-", "/")
	s = strings.ReplaceAll(s, "_", "/")
	if strings.Contains(s, "/") || s == "" {
		return s
	}
	for _, quote := range []string{"USDT", "USD"} {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return s[:len(s)-len(quote)] + "/" + quote
		}
	}
	return s
}
