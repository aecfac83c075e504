package xt

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyprobe/internal/adapters/venues"
	"keyprobe/pkg/errors"
)

func testClient(t *testing.T, market venues.MarketType, spot, um, cm http.Handler) venues.Venue {
	t.Helper()
	spotSrv := httptest.NewServer(spot)
	t.Cleanup(spotSrv.Close)
	umSrv := httptest.NewServer(um)
	t.Cleanup(umSrv.Close)
	cmSrv := httptest.NewServer(cm)
	t.Cleanup(cmSrv.Close)

	v, err := NewClient(Config{
		Credential:  venues.Credential{Venue: venues.VenueXT, KeyID: "k", Secret: "s"},
		Market:      market,
		SpotBaseURL: spotSrv.URL,
		UMBaseURL:   umSrv.URL,
		CMBaseURL:   cmSrv.URL,
	})
	require.NoError(t, err)
	return v
}

func emptyMux() http.Handler {
	return http.NewServeMux()
}

func TestSymbolSuffixRouting(t *testing.T) {
	var umHit, cmHit bool
	um := http.NewServeMux()
	um.HandleFunc("/future/market/v1/public/symbol/detail", func(w http.ResponseWriter, r *http.Request) {
		umHit = true
		w.Write([]byte(`{"returnCode":0,"msgInfo":"success","result":{"symbol":"btc_usdt","pricePrecision":1,"quantityPrecision":0,"contractSize":"0.001"}}`))
	})
	cm := http.NewServeMux()
	cm.HandleFunc("/future/market/v1/public/symbol/detail", func(w http.ResponseWriter, r *http.Request) {
		cmHit = true
		w.Write([]byte(`{"returnCode":0,"msgInfo":"success","result":{"symbol":"btc_usd","pricePrecision":1,"quantityPrecision":0,"contractSize":"100"}}`))
	})

	v := testClient(t, venues.MarketTypeLinearPerp, emptyMux(), um, cm)

	cfg, err := v.GetMarketConfig(context.Background(), "BTC_USDT")
	require.NoError(t, err)
	assert.True(t, umHit)
	assert.False(t, cmHit)
	assert.Equal(t, venues.MarketTypeLinearPerp, cfg.Market)
	assert.Equal(t, "0.001", cfg.ContractSize.String())

	cfg, err = v.GetMarketConfig(context.Background(), "btc_usd")
	require.NoError(t, err)
	assert.True(t, cmHit)
	assert.Equal(t, venues.MarketTypeInversePerp, cfg.Market)
}

func TestPlaceFuturesOrderContractsAndFOK(t *testing.T) {
	var payload map[string]string
	um := http.NewServeMux()
	um.HandleFunc("/future/market/v1/public/symbol/detail", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"returnCode":0,"msgInfo":"success","result":{"symbol":"btc_usdt","pricePrecision":1,"quantityPrecision":0,"contractSize":"0.001"}}`))
	})
	um.HandleFunc("/future/trade/v1/order/create", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.NotEmpty(t, r.Header.Get("validate-signature"))
		w.Write([]byte(`{"returnCode":0,"msgInfo":"success","result":331119}`))
	})

	v := testClient(t, venues.MarketTypeLinearPerp, emptyMux(), um, emptyMux())
	res, err := v.PlaceOrder(context.Background(), &venues.OrderIntent{
		Symbol:         "btc_usdt",
		Market:         venues.MarketTypeLinearPerp,
		PositionIntent: venues.PositionIntentOpenLong,
		Type:           venues.OrderTypeMarket,
		Quantity:       decimal.RequireFromString("0.01"), // 10 contracts
	})
	require.NoError(t, err)
	assert.Equal(t, "331119", res.VenueOrderID)

	assert.Equal(t, "10", payload["origQty"], "quantity is sized in contracts, integral serialization")
	assert.Equal(t, "BUY", payload["orderSide"])
	assert.Equal(t, "LONG", payload["positionSide"])
	assert.Equal(t, "FOK", payload["timeInForce"])
	_, hasPrice := payload["price"]
	assert.False(t, hasPrice)
}

func TestPlaceSpotMarketBuyQuoteQty(t *testing.T) {
	var payload map[string]string
	spot := http.NewServeMux()
	spot.HandleFunc("/v4/symbol", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rc":0,"mc":"SUCCESS","result":{"symbols":[{"symbol":"btc_usdt","pricePrecision":2,"quantityPrecision":6}]}}`))
	})
	spot.HandleFunc("/v4/public/ticker/price", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rc":0,"mc":"SUCCESS","result":[{"s":"btc_usdt","p":"50000","t":1700000000000}]}`))
	})
	spot.HandleFunc("/v4/order", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
		w.Write([]byte(`{"rc":0,"mc":"SUCCESS","result":{"orderId":"o-1"}}`))
	})

	v := testClient(t, venues.MarketTypeSpot, spot, emptyMux(), emptyMux())
	res, err := v.PlaceOrder(context.Background(), &venues.OrderIntent{
		Symbol:   "BTC-USDT",
		Market:   venues.MarketTypeSpot,
		Side:     venues.OrderSideBuy,
		Type:     venues.OrderTypeMarket,
		Quantity: decimal.RequireFromString("0.001"),
	})
	require.NoError(t, err)
	assert.Equal(t, "o-1", res.VenueOrderID)

	assert.Equal(t, "btc_usdt", payload["symbol"])
	assert.Equal(t, "50", payload["quoteQty"])
	_, hasQty := payload["quantity"]
	assert.False(t, hasQty)
}

func TestEnvelopeClassification(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind error
	}{
		{"spot permission", `{"rc":1,"mc":"AUTH_105","result":null}`, errors.ErrPermission},
		{"spot auth", `{"rc":1,"mc":"AUTH_101","result":null}`, errors.ErrAuth},
		{"futures business", `{"returnCode":1,"msgInfo":"failure","error":{"code":"ORDER_002","msg":"insufficient balance"},"result":null}`, errors.ErrVenueBusiness},
		{"futures unknown", `{"returnCode":1,"msgInfo":"failure","error":{"code":"XYZ_001","msg":"mystery"},"result":null}`, errors.ErrUnmappedVenue},
		{"non-envelope", `<html>gateway error</html>`, errors.ErrUnmappedVenue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := decodeEnvelope([]byte(tt.body), http.StatusOK, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)

			var venueErr *errors.VenueError
			require.True(t, errors.As(err, &venueErr))
			assert.Equal(t, tt.body, venueErr.Raw)
		})
	}
}

func TestSpotPositionsEmpty(t *testing.T) {
	v := testClient(t, venues.MarketTypeSpot, emptyMux(), emptyMux(), emptyMux())
	positions, err := v.GetPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestFundsTransferCapability(t *testing.T) {
	var path string
	spot := http.NewServeMux()
	spot.HandleFunc("/v4/balance/transfer", func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(`{"rc":0,"mc":"SUCCESS","result":null}`))
	})

	v := testClient(t, venues.MarketTypeSpot, spot, emptyMux(), emptyMux())
	transferrer, ok := v.(venues.FundsTransferrer)
	require.True(t, ok)
	require.NoError(t, transferrer.TransferFunds(context.Background(), &venues.TransferRequest{
		Asset:  "USDT",
		Amount: decimal.RequireFromString("10"),
		From:   "SPOT",
		To:     "FUTURES_U",
	}))
	assert.Equal(t, "/v4/balance/transfer", path)
}
