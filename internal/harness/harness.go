package harness

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"keyprobe/internal/adapters/venues"
	"keyprobe/pkg/errors"
	"keyprobe/pkg/logger"
)

const (
	defaultSymbol       = "BTC-USDT"
	defaultProbeTimeout = 15 * time.Second

	// limitProbeDiscount places the write-probe limit order at half the
	// last traded price so it rests unfilled until cancelled.
	limitProbeDiscount = "0.5"
)

// Options configures a verification run.
type Options struct {
	// Symbol is the market every probe targets. Defaults to BTC-USDT.
	Symbol string

	// Market selects the probe vocabulary; futures markets add position
	// open/close probes.
	Market venues.MarketType

	// ProbeQuantity is the order size used by write probes. Defaults to
	// 0.001 base units.
	ProbeQuantity decimal.Decimal

	// Timeout bounds each individual probe call.
	Timeout time.Duration

	// IncludePositionProbes adds market open/close probes on futures
	// markets. They move real funds on a live credential.
	IncludePositionProbes bool
}

func (o *Options) defaults() {
	if o.Symbol == "" {
		o.Symbol = defaultSymbol
	}
	if o.Market == "" {
		o.Market = venues.MarketTypeSpot
	}
	if o.ProbeQuantity.IsZero() {
		o.ProbeQuantity = decimal.RequireFromString("0.001")
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultProbeTimeout
	}
}

// Verdict is the classified outcome of one probe. Immutable once created.
type Verdict struct {
	Credential string
	Probe      string
	Passed     bool
	Message    string
}

// Report aggregates the verdicts for one credential.
type Report struct {
	Credential venues.Credential
	Verdicts   []Verdict
	Passed     int
	Failed     int
}

// Harness drives read then write probes against a venue adapter and
// classifies each outcome against the credential's declared permission.
// It holds no state across runs.
type Harness struct {
	opts Options
}

// New creates a harness with the given options.
func New(opts Options) *Harness {
	opts.defaults()
	return &Harness{opts: opts}
}

type probe struct {
	name  string
	write bool
	run   func(ctx context.Context, v venues.Venue) error
}

// Verify runs the full probe sequence for one credential, in program
// order: read probes first, then write probes. Later write probes depend
// on state created by earlier ones, so the order is fixed.
func (h *Harness) Verify(ctx context.Context, cred venues.Credential, adapter venues.Venue) *Report {
	report := &Report{Credential: cred}
	readOnly := cred.ReadOnly()

	for _, p := range h.probes() {
		probeCtx, cancel := context.WithTimeout(ctx, h.opts.Timeout)
		err := p.run(probeCtx, adapter)
		cancel()

		var verdict Verdict
		if p.write {
			verdict = classifyWrite(cred.KeyName, p.name, err, readOnly)
		} else {
			verdict = classifyRead(cred.KeyName, p.name, err)
		}

		logger.Get().Debugw("probe finished",
			"credential", cred.KeyName,
			"probe", p.name,
			"passed", verdict.Passed,
		)

		report.Verdicts = append(report.Verdicts, verdict)
		if verdict.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}

	return report
}

// CredentialKey identifies a credential across venues; two venues may
// reuse the same key name.
func CredentialKey(cred venues.Credential) string {
	return string(cred.Venue) + ":" + cred.KeyName
}

// VerifyAll runs Verify for each credential. Credentials share no mutable
// state, so parallel fan-out is safe; probes within one credential remain
// strictly sequential either way. adapters is keyed by CredentialKey.
func (h *Harness) VerifyAll(ctx context.Context, creds []venues.Credential, adapters map[string]venues.Venue, parallel bool) []*Report {
	reports := make([]*Report, len(creds))

	if !parallel {
		for i, cred := range creds {
			reports[i] = h.Verify(ctx, cred, adapters[CredentialKey(cred)])
		}
		return reports
	}

	var wg sync.WaitGroup
	for i, cred := range creds {
		wg.Add(1)
		go func(i int, cred venues.Credential) {
			defer wg.Done()
			reports[i] = h.Verify(ctx, cred, adapters[CredentialKey(cred)])
		}(i, cred)
	}
	wg.Wait()

	return reports
}

func (h *Harness) probes() []probe {
	symbol := h.opts.Symbol

	probes := []probe{
		{name: "get balance", run: func(ctx context.Context, v venues.Venue) error {
			_, err := v.GetBalance(ctx)
			return err
		}},
		{name: "get positions", run: func(ctx context.Context, v venues.Venue) error {
			_, err := v.GetPositions(ctx)
			return err
		}},
		{name: "get market config", run: func(ctx context.Context, v venues.Venue) error {
			_, err := v.GetMarketConfig(ctx, symbol)
			return err
		}},
		{name: "get commission rate", run: func(ctx context.Context, v venues.Venue) error {
			_, err := v.GetCommissionRate(ctx, symbol)
			return err
		}},
		{name: "get open orders", run: func(ctx context.Context, v venues.Venue) error {
			_, err := v.GetOpenOrders(ctx, symbol)
			return err
		}},
		{name: "get trade history", run: func(ctx context.Context, v venues.Venue) error {
			_, err := v.GetTradeHistory(ctx, symbol, 10)
			return err
		}},
		{name: "get ticker", run: func(ctx context.Context, v venues.Venue) error {
			_, err := v.GetTicker(ctx, symbol)
			return err
		}},
		// Optional-capability probes discover the interface per adapter;
		// venues without the capability pass as skipped.
		{name: "get account config", run: func(ctx context.Context, v venues.Venue) error {
			configurer, ok := v.(venues.AccountConfigurer)
			if !ok {
				return errors.Wrap(errors.ErrNotSupported, "no account config endpoint")
			}
			_, err := configurer.GetAccountConfig(ctx)
			return err
		}},
		{name: "place limit order", write: true, run: h.placeLimitProbe},
		{name: "cancel all open orders", write: true, run: func(ctx context.Context, v venues.Venue) error {
			return v.CancelAllOpenOrders(ctx, symbol)
		}},
		{name: "cancel all algo orders", write: true, run: func(ctx context.Context, v venues.Venue) error {
			canceller, ok := v.(venues.AlgoOrderCanceller)
			if !ok {
				return errors.Wrap(errors.ErrNotSupported, "no separate algo order book")
			}
			return canceller.CancelAllAlgoOrders(ctx, symbol)
		}},
	}

	if h.opts.Market != venues.MarketTypeSpot && h.opts.IncludePositionProbes {
		probes = append(probes,
			probe{name: "open test position", write: true, run: h.positionProbe(venues.PositionIntentOpenLong)},
			probe{name: "close test position", write: true, run: h.positionProbe(venues.PositionIntentCloseLong)},
		)
	}

	return probes
}

// placeLimitProbe places a resting buy limit far below the market. The
// following cancel-all probe cleans it up.
func (h *Harness) placeLimitProbe(ctx context.Context, v venues.Venue) error {
	ticker, err := v.GetTicker(ctx, h.opts.Symbol)
	if err != nil {
		return err
	}
	price := ticker.LastPrice.Mul(decimal.RequireFromString(limitProbeDiscount))

	intent := &venues.OrderIntent{
		Symbol:        h.opts.Symbol,
		Market:        h.opts.Market,
		Type:          venues.OrderTypeLimit,
		Price:         price,
		Quantity:      h.opts.ProbeQuantity,
		ClientOrderID: clientOrderID(),
	}
	if h.opts.Market == venues.MarketTypeSpot {
		intent.Side = venues.OrderSideBuy
	} else {
		intent.PositionIntent = venues.PositionIntentOpenLong
	}

	_, err = v.PlaceOrder(ctx, intent)
	return err
}

func (h *Harness) positionProbe(intent venues.PositionIntent) func(ctx context.Context, v venues.Venue) error {
	return func(ctx context.Context, v venues.Venue) error {
		_, err := v.PlaceOrder(ctx, &venues.OrderIntent{
			Symbol:         h.opts.Symbol,
			Market:         h.opts.Market,
			PositionIntent: intent,
			Type:           venues.OrderTypeMarket,
			Quantity:       h.opts.ProbeQuantity,
			ClientOrderID:  clientOrderID(),
		})
		return err
	}
}

func clientOrderID() string {
	return "kp-" + uuid.NewString()[:18]
}

// Summarize folds a set of reports into overall pass/fail counts.
func Summarize(reports []*Report) (passed, failed int) {
	for _, r := range reports {
		if r == nil {
			continue
		}
		passed += r.Passed
		failed += r.Failed
	}
	return passed, failed
}
