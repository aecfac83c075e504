package venues

import (
	"context"
)

// Venue defines the unified contract each venue adapter must satisfy.
// Every method is a single blocking request/response round trip bounded by
// the caller's context; adapters never retry on their own.
type Venue interface {
	Name() VenueName

	// Account
	GetBalance(ctx context.Context) (*Balance, error)
	GetPositions(ctx context.Context) ([]Position, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]Order, error)

	// Market metadata
	GetMarketConfig(ctx context.Context, symbol string) (*MarketConfig, error)
	GetCommissionRate(ctx context.Context, symbol string) (*CommissionRate, error)
	GetTicker(ctx context.Context, symbol string) (*Ticker, error)

	// Trading
	PlaceOrder(ctx context.Context, intent *OrderIntent) (*OrderResult, error)
	CancelAllOpenOrders(ctx context.Context, symbol string) error

	// History
	GetTradeHistory(ctx context.Context, symbol string, limit int) ([]TradeFill, error)
}

// AlgoOrderCanceller is implemented by venues with a separate algo/trigger
// order book (OKX). Discovered by type assertion; absence means the venue
// has no such capability, not a failure.
type AlgoOrderCanceller interface {
	CancelAllAlgoOrders(ctx context.Context, symbol string) error
}

// FundsTransferrer is implemented by venues that expose account-to-account
// transfers (Binance PM bnb-transfer, OKX funding/trading transfer, XT
// bi-directional transfer).
type FundsTransferrer interface {
	TransferFunds(ctx context.Context, req *TransferRequest) error
}

// FundsCollector is implemented by venues with a sweep operation that
// gathers stranded balances into the trading account (Binance PM
// auto-collection).
type FundsCollector interface {
	CollectFunds(ctx context.Context) error
}

// AccountConfigurer is implemented by venues that expose account-level
// configuration (OKX account config and position mode, Binance PM account
// status).
type AccountConfigurer interface {
	GetAccountConfig(ctx context.Context) (*AccountConfig, error)
}

// AccountModeConfigurer is implemented by venues whose position mode and
// account level can be changed over the API (OKX). Both calls apply
// account-wide and fail while positions or pending orders exist.
type AccountModeConfigurer interface {
	SetPositionMode(ctx context.Context, mode string) error
	SetAccountLevel(ctx context.Context, level int) error
}
