package venues

import (
	"time"

	"github.com/shopspring/decimal"
)

// VenueName identifies a supported exchange API.
type VenueName string

const (
	VenueBinance   VenueName = "binance"
	VenueBinancePM VenueName = "binance_pm"
	VenueOKX       VenueName = "okx"
	VenueXT        VenueName = "xt"
	VenueTasty     VenueName = "tastytrade"
)

// MarketType defines supported exchange market segments.
type MarketType string

const (
	MarketTypeSpot        MarketType = "spot"
	MarketTypeLinearPerp  MarketType = "linear_perp"
	MarketTypeInversePerp MarketType = "inverse_perp"
	MarketTypeUnknown     MarketType = "unknown"
)

// OrderSide defines buy or sell direction.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// PositionIntent is the semantic effect of an order on a futures position,
// independent of raw side.
type PositionIntent string

const (
	PositionIntentNone       PositionIntent = "none"
	PositionIntentOpenLong   PositionIntent = "open_long"
	PositionIntentCloseLong  PositionIntent = "close_long"
	PositionIntentOpenShort  PositionIntent = "open_short"
	PositionIntentCloseShort PositionIntent = "close_short"
)

// PositionSide differentiates hedged positions on venues that address them.
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
	PositionSideBoth  PositionSide = "both"
)

// OrderType defines supported order execution types.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderStatus enumerates exchange level order lifecycle.
type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "new"
	OrderStatusOpen     OrderStatus = "open"
	OrderStatusPartial  OrderStatus = "partial"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusCanceled OrderStatus = "canceled"
	OrderStatusRejected OrderStatus = "rejected"
	OrderStatusExpired  OrderStatus = "expired"
	OrderStatusUnknown  OrderStatus = "unknown"
)

// TimeInForce enumerates supported order time policies.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
)

// Credential is a single authorization context for one venue. It is
// immutable after construction and owned by exactly one adapter instance;
// two concurrently tested credentials must never share an adapter.
type Credential struct {
	Venue      VenueName
	KeyName    string
	KeyID      string
	Secret     string
	Passphrase string
	Simulated  bool
}

// ReadOnly reports whether the key name declares a read-only credential.
// Unlabeled keys default to read-only so the harness never expects write
// capability it was not told about.
func (c Credential) ReadOnly() bool {
	return !c.ReadWrite()
}

// ReadWrite reports whether the key name declares trading capability.
func (c Credential) ReadWrite() bool {
	return len(c.KeyName) >= 10 && c.KeyName[:10] == "read_write"
}

// MarketConfig carries the per-symbol precision metadata a venue reports.
// It is fetched at call time, not cached, since precision can change
// venue-side.
type MarketConfig struct {
	Symbol            string
	NativeSymbol      string
	Market            MarketType
	PricePrecision    int32
	QuantityPrecision int32
	ContractSize      decimal.Decimal
}

// OrderIntent is the venue-agnostic order request. Price and TimeInForce
// are optional depending on Type; a zero Price on a LIMIT order is a
// validation error, never a silent default.
type OrderIntent struct {
	Symbol         string
	Market         MarketType
	Side           OrderSide
	PositionIntent PositionIntent
	Type           OrderType
	Price          decimal.Decimal
	Quantity       decimal.Decimal
	TimeInForce    TimeInForce
	ClientOrderID  string
}

// OrderParams is the translated, venue-ready parameter set. Quantity is
// already precision-rounded; for quote-sized market buys QuoteQuantity
// holds the notional and Quantity is zero. An empty PositionSide means the
// venue runs one-way mode and the field is omitted from the wire request.
type OrderParams struct {
	Symbol        string
	Side          OrderSide
	PositionSide  PositionSide
	Type          OrderType
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	QuoteQuantity decimal.Decimal
	TimeInForce   TimeInForce
	ClientOrderID string
}

// OrderResult reports a placed order. Raw preserves the venue payload so
// callers can diagnose anything the normalization dropped.
type OrderResult struct {
	VenueOrderID  string
	ClientOrderID string
	RawStatus     string
	Raw           string
}

// Balance describes account balances.
type Balance struct {
	Total     decimal.Decimal
	Available decimal.Decimal
	Currency  string
	Details   []BalanceDetail
}

// BalanceDetail holds per-asset balance.
type BalanceDetail struct {
	Currency  string
	Total     decimal.Decimal
	Available decimal.Decimal
	Borrowed  decimal.Decimal
}

// Position represents a futures/derivatives position.
type Position struct {
	Symbol        string
	Market        MarketType
	Side          PositionSide
	Size          decimal.Decimal
	EntryPrice    decimal.Decimal
	MarkPrice     decimal.Decimal
	Leverage      decimal.Decimal
	UnrealizedPnL decimal.Decimal
	UpdatedAt     time.Time
}

// Order represents a normalized open order.
type Order struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Market        MarketType
	Type          OrderType
	Side          OrderSide
	Status        OrderStatus
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	Filled        decimal.Decimal
	TimeInForce   TimeInForce
	CreatedAt     time.Time
}

// Ticker is a last-price snapshot. Market orders sized in quote currency
// convert through a ticker fetched just before placement.
type Ticker struct {
	Symbol    string
	LastPrice decimal.Decimal
	Timestamp time.Time
}

// CommissionRate holds maker/taker fee rates for a symbol.
type CommissionRate struct {
	Symbol string
	Maker  decimal.Decimal
	Taker  decimal.Decimal
}

// TradeFill is one executed trade from account history.
type TradeFill struct {
	ID        string
	OrderID   string
	Symbol    string
	Side      OrderSide
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Fee       decimal.Decimal
	FeeAsset  string
	Timestamp time.Time
}

// TransferRequest moves funds between accounts on venues that support it.
type TransferRequest struct {
	Asset  string
	Amount decimal.Decimal
	// From/To are venue-specific account designators, e.g. Binance PM
	// "UM_TO_MARGIN"/"MARGIN_TO_UM" legs or XT account types.
	From string
	To   string
}

// AccountConfig is the venue-level account configuration snapshot. Venues
// fill the fields they report; the rest stay empty.
type AccountConfig struct {
	AccountID    string
	PositionMode string
	AccountLevel string
	Status       string
	Raw          string
}
