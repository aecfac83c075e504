package tastytrade

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyprobe/internal/adapters/venues"
	"keyprobe/pkg/errors"
)

func withToken(mux *http.ServeMux) *http.ServeMux {
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"tok","expires_in":900}`))
	})
	return mux
}

func testClient(t *testing.T, handler http.Handler) venues.Venue {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	v, err := NewClient(Config{
		Credential: venues.Credential{Venue: venues.VenueTasty, KeyID: "cid", Secret: "sec"},
		AccountID:  "ACC-1",
		BaseURL:    srv.URL,
	})
	require.NoError(t, err)
	return v
}

func TestAccountResolvedFromCustomer(t *testing.T) {
	mux := withToken(http.NewServeMux())
	mux.HandleFunc("/customers/me/accounts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"data":{"items":[{"account":{"account-number":"5WT0001"}}]}}`))
	})
	mux.HandleFunc("/accounts/5WT0001/balances", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"cash-balance":"1000.5","net-liquidating-value":"1200.25","equity-buying-power":"1000.5","currency":"USD"}}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	v, err := NewClient(Config{
		Credential: venues.Credential{Venue: venues.VenueTasty, KeyID: "cid", Secret: "sec"},
		BaseURL:    srv.URL,
	})
	require.NoError(t, err)

	balance, err := v.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "USD", balance.Currency)
	assert.Equal(t, "1200.25", balance.Total.String())
	assert.Equal(t, "1000.5", balance.Available.String())
}

func TestGetMarketConfigFromTickSize(t *testing.T) {
	mux := withToken(http.NewServeMux())
	mux.HandleFunc("/instruments/cryptocurrencies", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTC/USD", r.URL.Query().Get("symbol[]"))
		w.Write([]byte(`{"data":{"items":[{"symbol":"BTC/USD","tick-size":"0.01"}]}}`))
	})

	v := testClient(t, mux)
	cfg, err := v.GetMarketConfig(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, "BTC/USD", cfg.NativeSymbol)
	assert.Equal(t, int32(2), cfg.PricePrecision)
	assert.Equal(t, int32(8), cfg.QuantityPrecision)
}

func TestPlaceLimitOrderLegs(t *testing.T) {
	var payload map[string]interface{}
	mux := withToken(http.NewServeMux())
	mux.HandleFunc("/instruments/cryptocurrencies", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"items":[{"symbol":"BTC/USD","tick-size":"0.01"}]}}`))
	})
	mux.HandleFunc("/accounts/ACC-1/orders", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
		w.Write([]byte(`{"data":{"order":{"id":123456,"status":"Received"}}}`))
	})

	v := testClient(t, mux)
	res, err := v.PlaceOrder(context.Background(), &venues.OrderIntent{
		Symbol:   "BTC/USD",
		Market:   venues.MarketTypeSpot,
		Side:     venues.OrderSideBuy,
		Type:     venues.OrderTypeLimit,
		Price:    decimal.RequireFromString("52000.556"),
		Quantity: decimal.RequireFromString("0.25"),
	})
	require.NoError(t, err)
	assert.Equal(t, "123456", res.VenueOrderID)
	assert.Equal(t, "Received", res.RawStatus)

	assert.Equal(t, "Limit", payload["order-type"])
	assert.Equal(t, "GTC", payload["time-in-force"])
	assert.Equal(t, "52000.56", payload["price"])
	assert.Equal(t, "Debit", payload["price-effect"])

	legs := payload["legs"].([]interface{})
	require.Len(t, legs, 1)
	leg := legs[0].(map[string]interface{})
	assert.Equal(t, "Cryptocurrency", leg["instrument-type"])
	assert.Equal(t, "BTC/USD", leg["symbol"])
	assert.Equal(t, "0.25", leg["quantity"])
	assert.Equal(t, "Buy to Open", leg["action"])
}

func TestUnauthorizedRetriesWithFreshToken(t *testing.T) {
	var tokens int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&tokens, 1)
		if n == 1 {
			w.Write([]byte(`{"access_token":"stale","expires_in":900}`))
			return
		}
		w.Write([]byte(`{"access_token":"fresh","expires_in":900}`))
	})
	mux.HandleFunc("/accounts/ACC-1/positions", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer stale" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":"invalid_token","message":"token expired"}}`))
			return
		}
		w.Write([]byte(`{"data":{"items":[]}}`))
	})

	v := testClient(t, mux)
	positions, err := v.GetPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)
	assert.Equal(t, int32(2), atomic.LoadInt32(&tokens))
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   error
	}{
		{"forbidden", http.StatusForbidden, `{"error":{"code":"not_permitted","message":"read only"}}`, errors.ErrPermission},
		{"validation", http.StatusUnprocessableEntity, `{"error":{"code":"validation_error","message":"size too small"}}`, errors.ErrVenueBusiness},
		{"unknown", http.StatusInternalServerError, `{"error":{"code":"server_error","message":"boom"}}`, errors.ErrUnmappedVenue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := withToken(http.NewServeMux())
			mux.HandleFunc("/accounts/ACC-1/positions", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			v := testClient(t, mux)
			_, err := v.GetPositions(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)

			var venueErr *errors.VenueError
			require.True(t, errors.As(err, &venueErr))
			assert.Equal(t, tt.body, venueErr.Raw)
		})
	}
}

func TestCancelAllDeletesEachLiveOrder(t *testing.T) {
	var deleted []string
	mux := withToken(http.NewServeMux())
	mux.HandleFunc("/accounts/ACC-1/orders/live", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"items":[
			{"id":1,"order-type":"Limit","status":"Live","legs":[{"symbol":"BTC/USD","action":"Buy to Open","quantity":"1"}]},
			{"id":2,"order-type":"Limit","status":"Live","legs":[{"symbol":"BTC/USD","action":"Sell to Close","quantity":"1"}]}
		]}}`))
	})
	mux.HandleFunc("/accounts/ACC-1/orders/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		deleted = append(deleted, r.URL.Path)
		w.Write([]byte(`{"data":{}}`))
	})

	v := testClient(t, mux)
	require.NoError(t, v.CancelAllOpenOrders(context.Background(), "BTC/USD"))
	assert.Equal(t, []string{"/accounts/ACC-1/orders/1", "/accounts/ACC-1/orders/2"}, deleted)
}

func TestCommissionRateNotSupported(t *testing.T) {
	v := testClient(t, withToken(http.NewServeMux()))
	_, err := v.GetCommissionRate(context.Background(), "BTC/USD")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotSupported))
}
