package harness

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyprobe/internal/adapters/venues"
	"keyprobe/pkg/errors"
)

// fakeVenue returns canned errors per operation and records write calls.
type fakeVenue struct {
	errs      map[string]error
	placed    []*venues.OrderIntent
	cancelled int
}

func (f *fakeVenue) Name() venues.VenueName { return venues.VenueBinance }

func (f *fakeVenue) GetBalance(ctx context.Context) (*venues.Balance, error) {
	return &venues.Balance{}, f.errs["balance"]
}

func (f *fakeVenue) GetPositions(ctx context.Context) ([]venues.Position, error) {
	return nil, f.errs["positions"]
}

func (f *fakeVenue) GetOpenOrders(ctx context.Context, symbol string) ([]venues.Order, error) {
	return nil, f.errs["openOrders"]
}

func (f *fakeVenue) GetMarketConfig(ctx context.Context, symbol string) (*venues.MarketConfig, error) {
	return &venues.MarketConfig{Symbol: symbol, PricePrecision: 2, QuantityPrecision: 4}, f.errs["marketConfig"]
}

func (f *fakeVenue) GetCommissionRate(ctx context.Context, symbol string) (*venues.CommissionRate, error) {
	return &venues.CommissionRate{}, f.errs["commission"]
}

func (f *fakeVenue) GetTicker(ctx context.Context, symbol string) (*venues.Ticker, error) {
	return &venues.Ticker{Symbol: symbol, LastPrice: decimal.RequireFromString("50000")}, f.errs["ticker"]
}

func (f *fakeVenue) PlaceOrder(ctx context.Context, intent *venues.OrderIntent) (*venues.OrderResult, error) {
	f.placed = append(f.placed, intent)
	return &venues.OrderResult{VenueOrderID: "1"}, f.errs["placeOrder"]
}

func (f *fakeVenue) CancelAllOpenOrders(ctx context.Context, symbol string) error {
	f.cancelled++
	return f.errs["cancelAll"]
}

func (f *fakeVenue) GetTradeHistory(ctx context.Context, symbol string, limit int) ([]venues.TradeFill, error) {
	return nil, f.errs["tradeHistory"]
}

// capableVenue adds the optional account-config and algo-cancel
// capabilities on top of fakeVenue.
type capableVenue struct {
	fakeVenue
	configCalls int
	algoCancels int
}

func (f *capableVenue) GetAccountConfig(ctx context.Context) (*venues.AccountConfig, error) {
	f.configCalls++
	return &venues.AccountConfig{PositionMode: "long_short_mode"}, f.errs["accountConfig"]
}

func (f *capableVenue) CancelAllAlgoOrders(ctx context.Context, symbol string) error {
	f.algoCancels++
	return f.errs["cancelAlgo"]
}

func readOnlyCred() venues.Credential {
	return venues.Credential{Venue: venues.VenueBinance, KeyName: "read_only_1"}
}

func readWriteCred() venues.Credential {
	return venues.Credential{Venue: venues.VenueBinance, KeyName: "read_write_1"}
}

func denied(msg string) error {
	return errors.NewVenueError(errors.ErrPermission, "binance", "-2015", msg, "")
}

func TestReadOnlyCredentialAllPass(t *testing.T) {
	fake := &fakeVenue{errs: map[string]error{
		"placeOrder": denied("Invalid API-key, IP, or permissions for action"),
		"cancelAll":  denied("Invalid API-key, IP, or permissions for action"),
	}}

	h := New(Options{})
	report := h.Verify(context.Background(), readOnlyCred(), fake)

	assert.Equal(t, len(report.Verdicts), report.Passed)
	assert.Zero(t, report.Failed)
}

func TestReadOnlyCredentialWriteSucceedsFails(t *testing.T) {
	fake := &fakeVenue{errs: map[string]error{}}

	h := New(Options{})
	report := h.Verify(context.Background(), readOnlyCred(), fake)

	require.NotZero(t, report.Failed)
	for _, v := range report.Verdicts {
		switch v.Probe {
		case "place limit order", "cancel all open orders":
			assert.False(t, v.Passed, "%s must fail when a read-only key can write", v.Probe)
			assert.Contains(t, v.Message, "unexpectedly succeeded")
		default:
			assert.True(t, v.Passed, "read probe %s", v.Probe)
		}
	}
}

func TestReadWriteCredentialBusinessConditionPasses(t *testing.T) {
	fake := &fakeVenue{errs: map[string]error{
		"cancelAll": errors.NewVenueError(errors.ErrVenueBusiness, "binance", "-2011", "Unknown order sent.", ""),
	}}

	h := New(Options{})
	report := h.Verify(context.Background(), readWriteCred(), fake)

	assert.Zero(t, report.Failed)
}

func TestUnmappedErrorFallsBackToPatterns(t *testing.T) {
	fake := &fakeVenue{errs: map[string]error{
		"cancelAll": errors.NewVenueError(errors.ErrUnmappedVenue, "xt", "", "No open orders to cancel", ""),
	}}

	h := New(Options{})
	report := h.Verify(context.Background(), readWriteCred(), fake)
	assert.Zero(t, report.Failed)

	fake = &fakeVenue{errs: map[string]error{
		"placeOrder": errors.NewVenueError(errors.ErrUnmappedVenue, "xt", "AUTH_106", "AUTH_106 forbidden", ""),
		"cancelAll":  errors.NewVenueError(errors.ErrUnmappedVenue, "xt", "AUTH_106", "AUTH_106 forbidden", ""),
	}}
	report = New(Options{}).Verify(context.Background(), readOnlyCred(), fake)
	assert.Zero(t, report.Failed)
}

func TestReadProbeToleratesIPRestriction(t *testing.T) {
	fake := &fakeVenue{errs: map[string]error{
		"balance":    errors.NewVenueError(errors.ErrUnmappedVenue, "okx", "", "request IP address is not in the whitelist", ""),
		"placeOrder": denied("permission denied"),
		"cancelAll":  denied("permission denied"),
	}}

	h := New(Options{})
	report := h.Verify(context.Background(), readOnlyCred(), fake)

	assert.Zero(t, report.Failed)
	assert.Contains(t, report.Verdicts[0].Message, "IP allow-list")
}

func TestReadProbeHardErrorFails(t *testing.T) {
	fake := &fakeVenue{errs: map[string]error{
		"balance":    errors.NewVenueError(errors.ErrAuth, "binance", "-2014", "API-key format invalid.", ""),
		"placeOrder": denied("permission denied"),
		"cancelAll":  denied("permission denied"),
	}}

	h := New(Options{})
	report := h.Verify(context.Background(), readOnlyCred(), fake)

	require.NotZero(t, report.Failed)
	assert.False(t, report.Verdicts[0].Passed)
}

func TestNotSupportedReadProbeSkipped(t *testing.T) {
	fake := &fakeVenue{errs: map[string]error{
		"commission": errors.Wrap(errors.ErrNotSupported, "no commission rate endpoint"),
		"placeOrder": denied("permission denied"),
		"cancelAll":  denied("permission denied"),
	}}

	h := New(Options{})
	report := h.Verify(context.Background(), readOnlyCred(), fake)
	assert.Zero(t, report.Failed)
}

func TestProbeOrderReadsBeforeWrites(t *testing.T) {
	h := New(Options{})
	probes := h.probes()

	sawWrite := false
	for _, p := range probes {
		if p.write {
			sawWrite = true
		} else {
			assert.False(t, sawWrite, "read probe %s after a write probe", p.name)
		}
	}
	assert.True(t, sawWrite)
}

func TestLimitProbePricedBelowMarket(t *testing.T) {
	fake := &fakeVenue{errs: map[string]error{}}

	h := New(Options{Symbol: "BTC-USDT", ProbeQuantity: decimal.RequireFromString("0.002")})
	report := h.Verify(context.Background(), readWriteCred(), fake)
	require.Zero(t, report.Failed)

	require.NotEmpty(t, fake.placed)
	limit := fake.placed[0]
	assert.Equal(t, venues.OrderTypeLimit, limit.Type)
	assert.Equal(t, "25000", limit.Price.String())
	assert.Equal(t, "0.002", limit.Quantity.String())
	assert.Equal(t, venues.OrderSideBuy, limit.Side)
	assert.NotEmpty(t, limit.ClientOrderID)
	assert.Equal(t, 1, fake.cancelled)
}

func TestFuturesMarketAddsPositionProbes(t *testing.T) {
	h := New(Options{Market: venues.MarketTypeLinearPerp, IncludePositionProbes: true})
	probes := h.probes()

	names := make([]string, 0, len(probes))
	for _, p := range probes {
		names = append(names, p.name)
	}
	assert.Contains(t, names, "open test position")
	assert.Contains(t, names, "close test position")
	assert.Equal(t, "close test position", names[len(names)-1])

	fake := &fakeVenue{errs: map[string]error{}}
	report := h.Verify(context.Background(), readWriteCred(), fake)
	require.Zero(t, report.Failed)

	last := fake.placed[len(fake.placed)-1]
	assert.Equal(t, venues.PositionIntentCloseLong, last.PositionIntent)
	assert.Equal(t, venues.OrderTypeMarket, last.Type)
}

func TestCapabilityProbesSkipWithoutInterface(t *testing.T) {
	fake := &fakeVenue{errs: map[string]error{}}

	h := New(Options{})
	report := h.Verify(context.Background(), readWriteCred(), fake)
	require.Zero(t, report.Failed)

	skipped := map[string]bool{}
	for _, v := range report.Verdicts {
		switch v.Probe {
		case "get account config", "cancel all algo orders":
			assert.Contains(t, v.Message, "skipped")
			skipped[v.Probe] = true
		}
	}
	assert.Len(t, skipped, 2, "both capability probes must run")
}

func TestCapabilityProbesInvokeWhenPresent(t *testing.T) {
	fake := &capableVenue{fakeVenue: fakeVenue{errs: map[string]error{}}}

	h := New(Options{})
	report := h.Verify(context.Background(), readWriteCred(), fake)
	require.Zero(t, report.Failed)
	assert.Equal(t, 1, fake.configCalls)
	assert.Equal(t, 1, fake.algoCancels)
}

func TestCapabilityProbesClassifiedForReadOnlyKey(t *testing.T) {
	fake := &capableVenue{fakeVenue: fakeVenue{errs: map[string]error{
		"placeOrder": denied("permission denied"),
		"cancelAll":  denied("permission denied"),
		"cancelAlgo": denied("permission denied"),
	}}}

	h := New(Options{})
	report := h.Verify(context.Background(), readOnlyCred(), fake)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 1, fake.configCalls, "account config is a read, allowed on read-only keys")
	assert.Equal(t, 1, fake.algoCancels)
}

func TestVerifyAllParallelMatchesSequential(t *testing.T) {
	creds := []venues.Credential{readOnlyCred(), readWriteCred()}
	adapters := map[string]venues.Venue{
		"binance:read_only_1": &fakeVenue{errs: map[string]error{
			"placeOrder": denied("permission denied"),
			"cancelAll":  denied("permission denied"),
		}},
		"binance:read_write_1": &fakeVenue{errs: map[string]error{}},
	}

	h := New(Options{})
	sequential := h.VerifyAll(context.Background(), creds, adapters, false)
	seqPassed, seqFailed := Summarize(sequential)

	adapters["binance:read_only_1"] = &fakeVenue{errs: map[string]error{
		"placeOrder": denied("permission denied"),
		"cancelAll":  denied("permission denied"),
	}}
	adapters["binance:read_write_1"] = &fakeVenue{errs: map[string]error{}}
	parallel := h.VerifyAll(context.Background(), creds, adapters, true)
	parPassed, parFailed := Summarize(parallel)

	assert.Equal(t, seqPassed, parPassed)
	assert.Equal(t, seqFailed, parFailed)
	assert.Zero(t, seqFailed)
}
