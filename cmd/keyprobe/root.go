package main

import (
	"net/http"

	"github.com/spf13/cobra"

	"keyprobe/internal/adapters/config"
	"keyprobe/internal/adapters/errors/noop"
	"keyprobe/internal/adapters/errors/sentry"
	"keyprobe/internal/adapters/venuefactory"
	"keyprobe/pkg/errors"
	"keyprobe/pkg/logger"
)

var (
	flagKeysFile string
	flagVenue    string
	flagSymbol   string
	flagMarket   string
)

var rootCmd = &cobra.Command{
	Use:   "keyprobe",
	Short: "Verify exchange API credential permissions",
	Long: `keyprobe drives read and write probes against exchange APIs to verify
that each credential has exactly the permissions its key name declares:
read_only_* keys must be rejected on write operations, read_write_* keys
must succeed (or hit an acceptable business condition).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagKeysFile, "keys", "", "path to the YAML key file (default from KEYS_FILE)")
	rootCmd.PersistentFlags().StringVar(&flagVenue, "venue", "", "restrict to one venue (binance, binance_pm, okx, xt, tastytrade)")
	rootCmd.PersistentFlags().StringVar(&flagSymbol, "symbol", "BTC-USDT", "market every probe targets")
	rootCmd.PersistentFlags().StringVar(&flagMarket, "market", "spot", "market type: spot, linear_perp, inverse_perp")

	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(probeCmd)
}

// bootstrap loads config and wires logging and error tracking the same
// way for every subcommand.
func bootstrap() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		return nil, err
	}
	logger.SetErrorTracker(initErrorTracker(cfg))

	if flagKeysFile != "" {
		cfg.Keystore.Path = flagKeysFile
	}
	return cfg, nil
}

func initErrorTracker(cfg *config.Config) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		return noop.New()
	}
	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		logger.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}
	return tracker
}

func newFactory(cfg *config.Config) *venuefactory.Factory {
	return venuefactory.New(
		venuefactory.WithHTTPClient(&http.Client{Timeout: cfg.HTTP.Timeout}),
		venuefactory.WithRecvWindow(cfg.HTTP.RecvWindow),
	)
}
