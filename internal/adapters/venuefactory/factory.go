package venuefactory

import (
	"net/http"
	"sync"

	"keyprobe/internal/adapters/venues"
	"keyprobe/internal/adapters/venues/binance"
	"keyprobe/internal/adapters/venues/binancepm"
	"keyprobe/internal/adapters/venues/okx"
	"keyprobe/internal/adapters/venues/tastytrade"
	"keyprobe/internal/adapters/venues/xt"
	"keyprobe/pkg/errors"
	"keyprobe/pkg/logger"
)

// Option customizes factory behavior.
type Option func(*Factory)

// WithHTTPClient shares one HTTP client across all venue adapters.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(f *Factory) {
		f.httpClient = httpClient
	}
}

// WithRecvWindow sets the receive window for the Binance-family venues.
func WithRecvWindow(recvWindow int64) Option {
	return func(f *Factory) {
		f.recvWindow = recvWindow
	}
}

// Factory creates venue adapters from credentials. Each credential gets
// its own client instance, cached by venue and key name.
type Factory struct {
	httpClient *http.Client
	recvWindow int64

	mu      sync.RWMutex
	clients map[string]venues.Venue
}

// New creates a pooled venue factory.
func New(opts ...Option) *Factory {
	f := &Factory{
		clients: make(map[string]venues.Venue),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// GetClient returns an adapter bound to the credential, creating one on
// first use.
func (f *Factory) GetClient(cred venues.Credential, market venues.MarketType) (venues.Venue, error) {
	key := string(cred.Venue) + ":" + cred.KeyName + ":" + string(market)

	f.mu.RLock()
	if client, ok := f.clients[key]; ok {
		f.mu.RUnlock()
		return client, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	if client, ok := f.clients[key]; ok {
		return client, nil
	}

	client, err := f.create(cred, market)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s client", cred.Venue)
	}

	logger.Get().Debugw("venue client created", "venue", cred.Venue, "key", cred.KeyName, "market", market)
	f.clients[key] = client
	return client, nil
}

func (f *Factory) create(cred venues.Credential, market venues.MarketType) (venues.Venue, error) {
	switch cred.Venue {
	case venues.VenueBinance:
		return binance.NewClient(binance.Config{
			Credential: cred,
			HTTPClient: f.httpClient,
			RecvWindow: f.recvWindow,
		})
	case venues.VenueBinancePM:
		return binancepm.NewClient(binancepm.Config{
			Credential: cred,
			Market:     market,
			HTTPClient: f.httpClient,
			RecvWindow: f.recvWindow,
		})
	case venues.VenueOKX:
		return okx.NewClient(okx.Config{
			Credential: cred,
			Market:     market,
			HTTPClient: f.httpClient,
		})
	case venues.VenueXT:
		return xt.NewClient(xt.Config{
			Credential: cred,
			Market:     market,
			HTTPClient: f.httpClient,
		})
	case venues.VenueTasty:
		return tastytrade.NewClient(tastytrade.Config{
			Credential: cred,
			HTTPClient: f.httpClient,
		})
	default:
		return nil, errors.Wrapf(errors.ErrConfig, "unsupported venue: %s", cred.Venue)
	}
}
