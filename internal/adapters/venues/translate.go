package venues

import (
	"context"

	"github.com/shopspring/decimal"

	"keyprobe/pkg/errors"
)

// QuoteFn returns the latest traded price for a symbol. Translate calls it
// at most once, just in time, when a spot market buy must be sized in
// quote currency; a cached price would drift from what the venue charges.
type QuoteFn func(ctx context.Context, symbol string) (decimal.Decimal, error)

// TranslateOptions captures the venue-specific conventions the translator
// must honor. Each adapter passes its own fixed set.
type TranslateOptions struct {
	// LimitTimeInForce is the default applied to limit orders when the
	// intent does not specify one. Empty means GTC.
	LimitTimeInForce TimeInForce

	// MarketTimeInForce is sent with market orders on venues that require
	// an explicit policy (e.g. FOK). Empty omits the field.
	MarketTimeInForce TimeInForce

	// UsePositionSide maps position intents onto an explicit position
	// side field. False for one-way/net-mode venues, which omit it.
	UsePositionSide bool

	// QuoteSizedMarketBuy converts spot market buy quantity to quote
	// notional using a fresh price.
	QuoteSizedMarketBuy bool
}

// positionIntentTable maps an intent to the (side, positionSide) pair the
// hedged-mode venues expect.
var positionIntentTable = map[PositionIntent]struct {
	side    OrderSide
	posSide PositionSide
}{
	PositionIntentOpenLong:   {OrderSideBuy, PositionSideLong},
	PositionIntentCloseLong:  {OrderSideSell, PositionSideLong},
	PositionIntentOpenShort:  {OrderSideSell, PositionSideShort},
	PositionIntentCloseShort: {OrderSideBuy, PositionSideShort},
}

// Translate maps a venue-agnostic order intent into venue-ready parameters.
// It is a pure function apart from the just-in-time quote lookup: it either
// returns fully populated params or a validation error, never a partial
// result. All numeric outputs are precision-rounded per the market config.
func Translate(ctx context.Context, intent *OrderIntent, cfg *MarketConfig, quote QuoteFn, opts TranslateOptions) (*OrderParams, error) {
	if intent == nil {
		return nil, errors.NewValidationError("intent", "required", nil)
	}
	if intent.Symbol == "" {
		return nil, errors.NewValidationError("symbol", "required", intent.Symbol)
	}
	if intent.Quantity.Sign() <= 0 {
		return nil, errors.NewValidationError("quantity", "must be positive", intent.Quantity.String())
	}

	params := &OrderParams{
		Symbol:        cfg.NativeSymbol,
		Type:          intent.Type,
		ClientOrderID: intent.ClientOrderID,
	}
	if params.Symbol == "" {
		params.Symbol = intent.Symbol
	}

	side := intent.Side
	if intent.PositionIntent != "" && intent.PositionIntent != PositionIntentNone {
		mapped, ok := positionIntentTable[intent.PositionIntent]
		if !ok {
			return nil, errors.NewValidationError("positionIntent", "unknown intent", string(intent.PositionIntent))
		}
		side = mapped.side
		if opts.UsePositionSide {
			params.PositionSide = mapped.posSide
		}
	}
	if side != OrderSideBuy && side != OrderSideSell {
		return nil, errors.NewValidationError("side", "must be buy or sell", string(side))
	}
	params.Side = side

	qty, err := RoundQuantity(intent.Quantity, cfg.QuantityPrecision)
	if err != nil {
		return nil, err
	}

	switch intent.Type {
	case OrderTypeLimit:
		if intent.Price.Sign() <= 0 {
			return nil, errors.NewValidationError("price", "price required", intent.Price.String())
		}
		price, err := RoundPrice(intent.Price, cfg.PricePrecision)
		if err != nil {
			return nil, err
		}
		params.Price = price
		params.Quantity = qty
		params.TimeInForce = intent.TimeInForce
		if params.TimeInForce == "" {
			params.TimeInForce = opts.LimitTimeInForce
		}
		if params.TimeInForce == "" {
			params.TimeInForce = TimeInForceGTC
		}

	case OrderTypeMarket:
		// Market orders never carry a price; the venue fills at market.
		params.TimeInForce = opts.MarketTimeInForce

		if opts.QuoteSizedMarketBuy && side == OrderSideBuy && cfg.Market == MarketTypeSpot {
			if quote == nil {
				return nil, errors.NewValidationError("quote", "price source required for quote-sized market buy", intent.Symbol)
			}
			last, err := quote(ctx, intent.Symbol)
			if err != nil {
				return nil, err
			}
			if last.Sign() <= 0 {
				return nil, errors.NewValidationError("quote", "non-positive market price", last.String())
			}
			notional, err := RoundPrice(qty.Mul(last), cfg.PricePrecision)
			if err != nil {
				return nil, err
			}
			params.QuoteQuantity = notional
		} else {
			params.Quantity = qty
		}

	default:
		return nil, errors.NewValidationError("orderType", "unsupported order type", string(intent.Type))
	}

	return params, nil
}
