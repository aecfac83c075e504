package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"keyprobe/internal/adapters/venues"
	"keyprobe/internal/keystore"
	"keyprobe/pkg/errors"
	"keyprobe/pkg/logger"
)

var flagKeyName string

var probeCmd = &cobra.Command{
	Use:   "probe <operation>",
	Short: "Run one read operation with one credential",
	Long: `Runs a single operation and prints the normalized response as JSON.
Operations: balance, positions, open-orders, market-config, commission,
ticker, trade-history.`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().StringVar(&flagKeyName, "key", "", "key name from the key file (required)")
	_ = probeCmd.MarkFlagRequired("key")
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if flagVenue == "" {
		return errors.Wrap(errors.ErrConfig, "--venue is required")
	}

	entries, err := keystore.Load(cfg.Keystore.Path)
	if err != nil {
		return err
	}

	var cred venues.Credential
	found := false
	for _, entry := range keystore.Filter(entries, flagVenue) {
		if entry.KeyName == flagKeyName {
			cred = entry.Credential()
			found = true
			break
		}
	}
	if !found {
		return errors.Wrapf(errors.ErrConfig, "no key %s for venue %s in %s", flagKeyName, flagVenue, cfg.Keystore.Path)
	}

	adapter, err := newFactory(cfg).GetClient(cred, venues.MarketType(flagMarket))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.Timeout)
	defer cancel()

	result, err := runOperation(ctx, adapter, args[0])
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runOperation(ctx context.Context, adapter venues.Venue, op string) (interface{}, error) {
	switch op {
	case "balance":
		return adapter.GetBalance(ctx)
	case "positions":
		return adapter.GetPositions(ctx)
	case "open-orders":
		return adapter.GetOpenOrders(ctx, flagSymbol)
	case "market-config":
		return adapter.GetMarketConfig(ctx, flagSymbol)
	case "commission":
		return adapter.GetCommissionRate(ctx, flagSymbol)
	case "ticker":
		return adapter.GetTicker(ctx, flagSymbol)
	case "trade-history":
		return adapter.GetTradeHistory(ctx, flagSymbol, 20)
	default:
		return nil, errors.Wrapf(errors.ErrConfig, "unknown operation: %s", op)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}
