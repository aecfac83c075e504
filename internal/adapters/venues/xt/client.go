package xt

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
	spotBaseURL        = "https://sapi.xt.com"
	umBaseURL          = "https://fapi.xt.com"
	cmBaseURL          = "https://dapi.xt.com"
	defaultHTTPTimeout = 30 * time.Second
)

// Config configures the XT adapter. Market selects the spot host or the
// futures hosts; within futures the USDT-margined vs coin-margined host is
// picked per symbol.
type Config struct {
	Credential venues.Credential
	Market     venues.MarketType

	HTTPClient  *http.Client
	SpotBaseURL string
	UMBaseURL   string
	CMBaseURL   string
}

// NewClient constructs an XT adapter bound to one credential.
func NewClient(cfg Config) (venues.Venue, error) {
	if cfg.Credential.KeyID == "" || cfg.Credential.Secret == "" {
		return nil, errors.Wrap(errors.ErrConfig, "xt: api key and secret required")
	}
	if cfg.Market == "" {
		cfg.Market = venues.MarketTypeSpot
	}
	if cfg.SpotBaseURL == "" {
		cfg.SpotBaseURL = spotBaseURL
	}
	if cfg.UMBaseURL == "" {
		cfg.UMBaseURL = umBaseURL
	}
	if cfg.CMBaseURL == "" {
		cfg.CMBaseURL = cmBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &client{cfg: cfg}, nil
}

type client struct {
	cfg Config
}

func (c *client) Name() venues.VenueName {
	return venues.VenueXT
}

func (c *client) spot() bool {
	return c.cfg.Market == venues.MarketTypeSpot
}

// futuresBase picks the USDT- or coin-margined host by symbol suffix.
// The suffix heuristic mirrors the venue's own host split; a base asset
// whose name ends in "usd" would misroute, which the venue's symbol
// vocabulary currently avoids.
func (c *client) futuresBase(symbol string) string {
	s := normalizeSymbol(symbol)
	if strings.HasSuffix(s, "usdt") {
		return c.cfg.UMBaseURL
	}
	if strings.HasSuffix(s, "usd") {
		return c.cfg.CMBaseURL
	}
	return c.cfg.UMBaseURL
}

func (c *client) GetBalance(ctx context.Context) (*venues.Balance, error) {
	if c.spot() {
		return c.spotBalance(ctx)
	}
	return c.futuresBalance(ctx)
}

func (c *client) spotBalance(ctx context.Context) (*venues.Balance, error) {
	var res struct {
		Assets []struct {
			Currency     string `json:"currency"`
			AvailableAmt string `json:"availableAmount"`
			FrozenAmt    string `json:"frozenAmount"`
			TotalAmt     string `json:"totalAmount"`
		} `json:"assets"`
	}
	if err := c.request(ctx, c.cfg.SpotBaseURL, spotHeaderPrefix, http.MethodGet, "/v4/balances", nil, nil, true, &res); err != nil {
		return nil, err
	}

	balance := &venues.Balance{Currency: "usdt"}
	for _, a := range res.Assets {
		total := dec(a.TotalAmt)
		if total.IsZero() {
			continue
		}
		balance.Details = append(balance.Details, venues.BalanceDetail{
			Currency:  a.Currency,
			Total:     total,
			Available: dec(a.AvailableAmt),
		})
		if strings.EqualFold(a.Currency, "usdt") {
			balance.Total = total
			balance.Available = dec(a.AvailableAmt)
		}
	}
	return balance, nil
}

func (c *client) futuresBalance(ctx context.Context) (*venues.Balance, error) {
	var res []struct {
		Coin            string `json:"coin"`
		WalletBalance   string `json:"walletBalance"`
		AvailableAmount string `json:"availableBalance"`
	}
	if err := c.request(ctx, c.cfg.UMBaseURL, futuresHeaderPrefix, http.MethodGet, "/future/user/v1/balance/list", nil, nil, true, &res); err != nil {
		return nil, err
	}

	balance := &venues.Balance{Currency: "usdt"}
	for _, b := range res {
		total := dec(b.WalletBalance)
		if total.IsZero() {
			continue
		}
		balance.Details = append(balance.Details, venues.BalanceDetail{
			Currency:  b.Coin,
			Total:     total,
			Available: dec(b.AvailableAmount),
		})
		if strings.EqualFold(b.Coin, "usdt") {
			balance.Total = total
			balance.Available = dec(b.AvailableAmount)
		}
	}
	return balance, nil
}

func (c *client) GetPositions(ctx context.Context) ([]venues.Position, error) {
	if c.spot() {
		return []venues.Position{}, nil
	}

	var res []struct {
		Symbol       string `json:"symbol"`
		PositionSide string `json:"positionSide"`
		PositionSize string `json:"positionSize"`
		EntryPrice   string `json:"entryPrice"`
		Leverage     string `json:"leverage"`
		FloatingPL   string `json:"floatingPL"`
	}
	if err := c.request(ctx, c.cfg.UMBaseURL, futuresHeaderPrefix, http.MethodGet, "/future/user/v1/position/list", nil, nil, true, &res); err != nil {
		return nil, err
	}

	positions := make([]venues.Position, 0, len(res))
	for _, p := range res {
		size := dec(p.PositionSize)
		if size.IsZero() {
			continue
		}
		side := venues.PositionSideLong
		if strings.EqualFold(p.PositionSide, "SHORT") {
			side = venues.PositionSideShort
		}
		positions = append(positions, venues.Position{
			Symbol:        p.Symbol,
			Market:        venues.MarketTypeLinearPerp,
			Side:          side,
			Size:          size.Abs(),
			EntryPrice:    dec(p.EntryPrice),
			Leverage:      dec(p.Leverage),
			UnrealizedPnL: dec(p.FloatingPL),
			UpdatedAt:     time.Now(),
		})
	}
	return positions, nil
}

func (c *client) GetOpenOrders(ctx context.Context, symbol string) ([]venues.Order, error) {
	native := normalizeSymbol(symbol)

	if c.spot() {
		params := url.Values{}
		if native != "" {
			params.Set("symbol", native)
		}
		var list []xtSpotOrder
		if err := c.request(ctx, c.cfg.SpotBaseURL, spotHeaderPrefix, http.MethodGet, "/v4/open-order", params, nil, true, &list); err != nil {
			return nil, err
		}

		orders := make([]venues.Order, 0, len(list))
		for _, o := range list {
			orders = append(orders, o.normalize())
		}
		return orders, nil
	}

	params := url.Values{"state": []string{"NOT_FINISHED"}}
	if native != "" {
		params.Set("symbol", native)
	}
	var res struct {
		Items []xtFuturesOrder `json:"items"`
	}
	if err := c.request(ctx, c.futuresBase(native), futuresHeaderPrefix, http.MethodGet, "/future/trade/v1/order/list", params, nil, true, &res); err != nil {
		return nil, err
	}

	orders := make([]venues.Order, 0, len(res.Items))
	for _, o := range res.Items {
		orders = append(orders, o.normalize())
	}
	return orders, nil
}

func (c *client) GetMarketConfig(ctx context.Context, symbol string) (*venues.MarketConfig, error) {
	native := normalizeSymbol(symbol)

	if c.spot() {
		params := url.Values{"symbol": []string{native}}
		var res struct {
			Symbols []struct {
				Symbol            string `json:"symbol"`
				PricePrecision    int32  `json:"pricePrecision"`
				QuantityPrecision int32  `json:"quantityPrecision"`
			} `json:"symbols"`
		}
		if err := c.request(ctx, c.cfg.SpotBaseURL, spotHeaderPrefix, http.MethodGet, "/v4/symbol", params, nil, false, &res); err != nil {
			return nil, err
		}
		if len(res.Symbols) == 0 {
			return nil, errors.NewVenueError(errors.ErrVenueBusiness, string(venues.VenueXT), "", "symbol not found: "+native, "")
		}

		return &venues.MarketConfig{
			Symbol:            symbol,
			NativeSymbol:      res.Symbols[0].Symbol,
			Market:            venues.MarketTypeSpot,
			PricePrecision:    venues.ClampScale(res.Symbols[0].PricePrecision),
			QuantityPrecision: venues.ClampScale(res.Symbols[0].QuantityPrecision),
		}, nil
	}

	params := url.Values{"symbol": []string{native}}
	var res struct {
		Symbol       string          `json:"symbol"`
		PriceScale   int32           `json:"pricePrecision"`
		AmountScale  int32           `json:"quantityPrecision"`
		ContractSize json.RawMessage `json:"contractSize"`
	}
	if err := c.request(ctx, c.futuresBase(native), futuresHeaderPrefix, http.MethodGet, "/future/market/v1/public/symbol/detail", params, nil, false, &res); err != nil {
		return nil, err
	}

	market := venues.MarketTypeLinearPerp
	if !strings.HasSuffix(native, "usdt") && strings.HasSuffix(native, "usd") {
		market = venues.MarketTypeInversePerp
	}

	return &venues.MarketConfig{
		Symbol:            symbol,
		NativeSymbol:      res.Symbol,
		Market:            market,
		PricePrecision:    venues.ClampScale(res.PriceScale),
		QuantityPrecision: venues.ClampScale(res.AmountScale),
		ContractSize:      rawDec(res.ContractSize),
	}, nil
}

func (c *client) GetCommissionRate(ctx context.Context, symbol string) (*venues.CommissionRate, error) {
	native := normalizeSymbol(symbol)

	if c.spot() {
		// spot fee rates ride on the symbol config
		params := url.Values{"symbol": []string{native}}
		var res struct {
			Symbols []struct {
				Symbol   string `json:"symbol"`
				MakerFee string `json:"makerFeeRate"`
				TakerFee string `json:"takerFeeRate"`
			} `json:"symbols"`
		}
		if err := c.request(ctx, c.cfg.SpotBaseURL, spotHeaderPrefix, http.MethodGet, "/v4/symbol", params, nil, false, &res); err != nil {
			return nil, err
		}
		if len(res.Symbols) == 0 {
			return nil, errors.NewVenueError(errors.ErrVenueBusiness, string(venues.VenueXT), "", "symbol not found: "+native, "")
		}
		return &venues.CommissionRate{
			Symbol: res.Symbols[0].Symbol,
			Maker:  dec(res.Symbols[0].MakerFee),
			Taker:  dec(res.Symbols[0].TakerFee),
		}, nil
	}

	params := url.Values{"symbol": []string{native}}
	var res struct {
		MakerFee string `json:"makerFee"`
		TakerFee string `json:"takerFee"`
	}
	if err := c.request(ctx, c.futuresBase(native), futuresHeaderPrefix, http.MethodGet, "/future/user/v1/user/step-rate", params, nil, true, &res); err != nil {
		return nil, err
	}
	return &venues.CommissionRate{
		Symbol: native,
		Maker:  dec(res.MakerFee),
		Taker:  dec(res.TakerFee),
	}, nil
}

func (c *client) GetTicker(ctx context.Context, symbol string) (*venues.Ticker, error) {
	native := normalizeSymbol(symbol)

	if c.spot() {
		params := url.Values{"symbol": []string{native}}
		var res []struct {
			S string `json:"s"`
			P string `json:"p"`
			T int64  `json:"t"`
		}
		if err := c.request(ctx, c.cfg.SpotBaseURL, spotHeaderPrefix, http.MethodGet, "/v4/public/ticker/price", params, nil, false, &res); err != nil {
			return nil, err
		}
		if len(res) == 0 {
			return nil, venues.Unmapped(venues.VenueXT, http.StatusOK, nil)
		}
		return &venues.Ticker{
			Symbol:    res[0].S,
			LastPrice: dec(res[0].P),
			Timestamp: time.UnixMilli(res[0].T),
		}, nil
	}

	params := url.Values{"symbol": []string{native}}
	var res struct {
		Symbol string `json:"s"`
		Price  string `json:"p"`
		Time   int64  `json:"t"`
	}
	if err := c.request(ctx, c.futuresBase(native), futuresHeaderPrefix, http.MethodGet, "/future/market/v1/public/q/ticker", params, nil, false, &res); err != nil {
		return nil, err
	}
	return &venues.Ticker{
		Symbol:    res.Symbol,
		LastPrice: dec(res.Price),
		Timestamp: time.UnixMilli(res.Time),
	}, nil
}

func (c *client) PlaceOrder(ctx context.Context, intent *venues.OrderIntent) (*venues.OrderResult, error) {
	cfg, err := c.GetMarketConfig(ctx, intent.Symbol)
	if err != nil {
		return nil, err
	}

	sized := *intent
	if !c.spot() && cfg.ContractSize.Sign() > 0 {
		sized.Quantity = intent.Quantity.Div(cfg.ContractSize)
	}

	translated, err := venues.Translate(ctx, &sized, cfg, c.lastPrice, venues.TranslateOptions{
		UsePositionSide: !c.spot(),
		// futures market orders need an explicit completion policy
		MarketTimeInForce:   c.marketTIF(),
		QuoteSizedMarketBuy: c.spot(),
	})
	if err != nil {
		return nil, err
	}

	if c.spot() {
		return c.placeSpotOrder(ctx, translated)
	}
	return c.placeFuturesOrder(ctx, translated)
}

func (c *client) marketTIF() venues.TimeInForce {
	if c.spot() {
		return ""
	}
	return venues.TimeInForceFOK
}

func (c *client) placeSpotOrder(ctx context.Context, p *venues.OrderParams) (*venues.OrderResult, error) {
	body := map[string]string{
		"symbol":  p.Symbol,
		"side":    strings.ToUpper(string(p.Side)),
		"type":    strings.ToUpper(string(p.Type)),
		"bizType": "SPOT",
	}
	if !p.QuoteQuantity.IsZero() {
		body["quoteQty"] = p.QuoteQuantity.String()
	} else {
		body["quantity"] = p.Quantity.String()
	}
	if p.Type == venues.OrderTypeLimit {
		body["price"] = p.Price.String()
		body["timeInForce"] = string(p.TimeInForce)
	}
	if p.ClientOrderID != "" {
		body["clientOrderId"] = p.ClientOrderID
	}

	var res struct {
		OrderID string `json:"orderId"`
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrSigning, err.Error())
	}
	if err := c.request(ctx, c.cfg.SpotBaseURL, spotHeaderPrefix, http.MethodPost, "/v4/order", nil, raw, true, &res); err != nil {
		return nil, err
	}

	return &venues.OrderResult{
		VenueOrderID:  res.OrderID,
		ClientOrderID: p.ClientOrderID,
		RawStatus:     "NEW",
		Raw:           string(raw),
	}, nil
}

func (c *client) placeFuturesOrder(ctx context.Context, p *venues.OrderParams) (*venues.OrderResult, error) {
	body := map[string]string{
		"symbol":    p.Symbol,
		"orderSide": strings.ToUpper(string(p.Side)),
		"orderType": strings.ToUpper(string(p.Type)),
		"origQty":   p.Quantity.String(),
	}
	if p.PositionSide != "" {
		body["positionSide"] = strings.ToUpper(string(p.PositionSide))
	}
	if p.Type == venues.OrderTypeLimit {
		body["price"] = p.Price.String()
	}
	if p.TimeInForce != "" {
		body["timeInForce"] = string(p.TimeInForce)
	}
	if p.ClientOrderID != "" {
		body["clientOrderId"] = p.ClientOrderID
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrSigning, err.Error())
	}

	var orderID json.Number
	if err := c.request(ctx, c.futuresBase(p.Symbol), futuresHeaderPrefix, http.MethodPost, "/future/trade/v1/order/create", nil, raw, true, &orderID); err != nil {
		return nil, err
	}

	return &venues.OrderResult{
		VenueOrderID:  orderID.String(),
		ClientOrderID: p.ClientOrderID,
		RawStatus:     "NEW",
		Raw:           string(raw),
	}, nil
}

func (c *client) CancelAllOpenOrders(ctx context.Context, symbol string) error {
	native := normalizeSymbol(symbol)

	if c.spot() {
		body, err := json.Marshal(map[string]string{"symbol": native, "bizType": "SPOT"})
		if err != nil {
			return errors.Wrap(errors.ErrSigning, err.Error())
		}
		return c.request(ctx, c.cfg.SpotBaseURL, spotHeaderPrefix, http.MethodDelete, "/v4/open-order", nil, body, true, nil)
	}

	body, err := json.Marshal(map[string]string{"symbol": native})
	if err != nil {
		return errors.Wrap(errors.ErrSigning, err.Error())
	}
	return c.request(ctx, c.futuresBase(native), futuresHeaderPrefix, http.MethodPost, "/future/trade/v1/order/cancel-all", nil, body, true, nil)
}

func (c *client) GetTradeHistory(ctx context.Context, symbol string, limit int) ([]venues.TradeFill, error) {
	native := normalizeSymbol(symbol)
	if limit <= 0 {
		limit = 50
	}

	if c.spot() {
		params := url.Values{
			"symbol": []string{native},
			"limit":  []string{strconv.Itoa(limit)},
		}
		var res struct {
			Items []struct {
				TradeID  string `json:"tradeId"`
				OrderID  string `json:"orderId"`
				Symbol   string `json:"symbol"`
				Side     string `json:"orderSide"`
				Price    string `json:"price"`
				Quantity string `json:"quantity"`
				Fee      string `json:"fee"`
				FeeCcy   string `json:"feeCurrency"`
				Time     int64  `json:"time"`
			} `json:"items"`
		}
		if err := c.request(ctx, c.cfg.SpotBaseURL, spotHeaderPrefix, http.MethodGet, "/v4/trade", params, nil, true, &res); err != nil {
			return nil, err
		}

		fills := make([]venues.TradeFill, 0, len(res.Items))
		for _, f := range res.Items {
			fills = append(fills, venues.TradeFill{
				ID:        f.TradeID,
				OrderID:   f.OrderID,
				Symbol:    f.Symbol,
				Side:      sideFromString(f.Side),
				Price:     dec(f.Price),
				Quantity:  dec(f.Quantity),
				Fee:       dec(f.Fee),
				FeeAsset:  f.FeeCcy,
				Timestamp: time.UnixMilli(f.Time),
			})
		}
		return fills, nil
	}

	params := url.Values{
		"symbol": []string{native},
		"size":   []string{strconv.Itoa(limit)},
	}
	var res struct {
		Items []struct {
			ExecID    string `json:"execId"`
			OrderID   string `json:"orderId"`
			Symbol    string `json:"symbol"`
			OrderSide string `json:"orderSide"`
			Price     string `json:"price"`
			Quantity  string `json:"quantity"`
			Fee       string `json:"fee"`
			FeeCoin   string `json:"feeCoin"`
			Timestamp int64  `json:"timestamp"`
		} `json:"items"`
	}
	if err := c.request(ctx, c.futuresBase(native), futuresHeaderPrefix, http.MethodGet, "/future/trade/v1/order/trade-list", params, nil, true, &res); err != nil {
		return nil, err
	}

	fills := make([]venues.TradeFill, 0, len(res.Items))
	for _, f := range res.Items {
		fills = append(fills, venues.TradeFill{
			ID:        f.ExecID,
			OrderID:   f.OrderID,
			Symbol:    f.Symbol,
			Side:      sideFromString(f.OrderSide),
			Price:     dec(f.Price),
			Quantity:  dec(f.Quantity),
			Fee:       dec(f.Fee),
			FeeAsset:  f.FeeCoin,
			Timestamp: time.UnixMilli(f.Timestamp),
		})
	}
	return fills, nil
}

// TransferFunds moves assets between the spot and futures accounts.
func (c *client) TransferFunds(ctx context.Context, req *venues.TransferRequest) error {
	body, err := json.Marshal(map[string]string{
		"currency": strings.ToLower(req.Asset),
		"amount":   req.Amount.String(),
		"from":     req.From,
		"to":       req.To,
	})
	if err != nil {
		return errors.Wrap(errors.ErrSigning, err.Error())
	}
	return c.request(ctx, c.cfg.SpotBaseURL, spotHeaderPrefix, http.MethodPost, "/v4/balance/transfer", nil, body, true, nil)
}

func (c *client) lastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	ticker, err := c.GetTicker(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return ticker.LastPrice, nil
}

// request performs one signed or public round trip against the given host
// and decodes the rc/returnCode envelope.
func (c *client) request(ctx context.Context, base, prefix, method, path string, params url.Values, body []byte, signed bool, target interface{}) error {
	query := ""
	if len(params) > 0 {
		query = params.Encode()
	}

	reqURL := base + path
	if query != "" {
		reqURL += "?" + query
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = strings.NewReader(string(body))
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return errors.Wrap(errors.ErrSigning, err.Error())
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if signed {
		signer := &Signer{APIKey: c.cfg.Credential.KeyID, Secret: c.cfg.Credential.Secret, Prefix: prefix}
		if err := signer.Apply(req, path, query, string(body)); err != nil {
			return err
		}
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return venues.ClassifyTransport(venues.VenueXT, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return venues.ClassifyTransport(venues.VenueXT, err)
	}

	return decodeEnvelope(raw, resp.StatusCode, target)
}

// decodeEnvelope handles both XT envelope dialects: spot {rc, mc, result}
// and futures {returnCode, msgInfo, error, result}.
func decodeEnvelope(raw []byte, status int, target interface{}) error {
	var env struct {
		RC         *int   `json:"rc"`
		MC         string `json:"mc"`
		ReturnCode *int   `json:"returnCode"`
		MsgInfo    string `json:"msgInfo"`
		Error      *struct {
			Code string `json:"code"`
			Msg  string `json:"msg"`
		} `json:"error"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || (env.RC == nil && env.ReturnCode == nil) {
		return venues.Unmapped(venues.VenueXT, status, raw)
	}

	code := ""
	msg := ""
	failed := false
	switch {
	case env.RC != nil && *env.RC != 0:
		failed = true
		code = env.MC
		msg = env.MC
	case env.ReturnCode != nil && *env.ReturnCode != 0:
		failed = true
		if env.Error != nil {
			code = env.Error.Code
			msg = env.Error.Msg
		} else {
			code = strconv.Itoa(*env.ReturnCode)
			msg = env.MsgInfo
		}
	}
	if failed {
		logger.Get().Debugw("xt error response", "code", code)
		return classify(code, msg, string(raw))
	}

	if target != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, target); err != nil {
			return venues.Unmapped(venues.VenueXT, status, raw)
		}
	}
	return nil
}

// classify maps XT error codes into the common taxonomy. AUTH_105 means
// the key lacks the permission bit; the other AUTH codes are credential
// failures.
func classify(code, msg, raw string) error {
	kind := errors.ErrUnmappedVenue
	switch {
	case code == "AUTH_105", code == "AUTH_106":
		kind = errors.ErrPermission
	case strings.HasPrefix(code, "AUTH_"):
		kind = errors.ErrAuth
	case code == "SIGN_001", code == "SIGN_002":
		kind = errors.ErrSigning
	case strings.Contains(strings.ToLower(msg), "timestamp"):
		kind = errors.ErrClockSkew
	case strings.HasPrefix(code, "ORDER_"), strings.HasPrefix(code, "TRADE_"),
		strings.HasPrefix(code, "BALANCE_"), strings.HasPrefix(code, "SYMBOL_"):
		kind = errors.ErrVenueBusiness
	}
	return errors.NewVenueError(kind, string(venues.VenueXT), code, msg, raw)
}

type xtSpotOrder struct {
	OrderID     string `json:"orderId"`
	ClientID    string `json:"clientOrderId"`
	Symbol      string `json:"symbol"`
	Price       string `json:"price"`
	OrigQty     string `json:"origQty"`
	ExecutedQty string `json:"executedQty"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	State       string `json:"state"`
	TIF         string `json:"timeInForce"`
	Time        int64  `json:"time"`
}

func (o xtSpotOrder) normalize() venues.Order {
	return venues.Order{
		ID:            o.OrderID,
		ClientOrderID: o.ClientID,
		Symbol:        o.Symbol,
		Market:        venues.MarketTypeSpot,
		Type:          typeFromString(o.Type),
		Side:          sideFromString(o.Side),
		Status:        stateFromString(o.State),
		Price:         dec(o.Price),
		Quantity:      dec(o.OrigQty),
		Filled:        dec(o.ExecutedQty),
		TimeInForce:   tifFromString(o.TIF),
		CreatedAt:     time.UnixMilli(o.Time),
	}
}

type xtFuturesOrder struct {
	OrderID     json.Number `json:"orderId"`
	ClientID    string      `json:"clientOrderId"`
	Symbol      string      `json:"symbol"`
	Price       string      `json:"price"`
	OrigQty     string      `json:"origQty"`
	ExecutedQty string      `json:"executedQty"`
	OrderSide   string      `json:"orderSide"`
	OrderType   string      `json:"orderType"`
	State       string      `json:"state"`
	CreatedTime int64       `json:"createdTime"`
}

func (o xtFuturesOrder) normalize() venues.Order {
	return venues.Order{
		ID:            o.OrderID.String(),
		ClientOrderID: o.ClientID,
		Symbol:        o.Symbol,
		Market:        venues.MarketTypeLinearPerp,
		Type:          typeFromString(o.OrderType),
		Side:          sideFromString(o.OrderSide),
		Status:        stateFromString(o.State),
		Price:         dec(o.Price),
		Quantity:      dec(o.OrigQty),
		Filled:        dec(o.ExecutedQty),
		TimeInForce:   venues.TimeInForceGTC,
		CreatedAt:     time.UnixMilli(o.CreatedTime),
	}
}

func typeFromString(s string) venues.OrderType {
	if strings.EqualFold(s, "MARKET") {
		return venues.OrderTypeMarket
	}
	return venues.OrderTypeLimit
}

func sideFromString(s string) venues.OrderSide {
	if strings.EqualFold(s, "SELL") {
		return venues.OrderSideSell
	}
	return venues.OrderSideBuy
}

func tifFromString(s string) venues.TimeInForce {
	switch strings.ToUpper(s) {
	case "IOC":
		return venues.TimeInForceIOC
	case "FOK":
		return venues.TimeInForceFOK
	default:
		return venues.TimeInForceGTC
	}
}

func stateFromString(s string) venues.OrderStatus {
	switch strings.ToUpper(s) {
	case "NEW", "NOT_FINISHED", "UNFINISHED":
		return venues.OrderStatusOpen
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

func rawDec(raw json.RawMessage) decimal.Decimal {
	if len(raw) == 0 {
		return decimal.Zero
	}
	return dec(strings.Trim(string(raw), `"`))
}

// normalizeSymbol converts compact or dashed spellings into the venue's
// lowercase underscore form, e.g. BTC-USDT -> btc_usdt.
func normalizeSymbol(symbol string) string {
	s := strings.ToLower(strings.ReplaceAll(symbol, "-", "_"))
	if strings.Contains(s, "_") || s == "" {
		return s
	}
	for _, quote := range []string{"usdt", "usdc", "usd", "btc", "eth"} {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return s[:len(s)-len(quote)] + "_" + quote
		}
	}
	return s
}
