package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"keyprobe/internal/adapters/venues"
	"keyprobe/internal/harness"
	"keyprobe/internal/keystore"
	"keyprobe/pkg/errors"
	"keyprobe/pkg/logger"
)

var (
	flagParallel       bool
	flagPositionProbes bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run the full probe sequence for every credential in the key file",
	RunE:  runVerify,
}

func init() {
	verifyCmd.Flags().BoolVar(&flagParallel, "parallel", false, "verify credentials concurrently")
	verifyCmd.Flags().BoolVar(&flagPositionProbes, "position-probes", false, "include futures open/close probes (moves real funds)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	entries, err := keystore.Load(cfg.Keystore.Path)
	if err != nil {
		return err
	}
	entries = keystore.Filter(entries, flagVenue)
	if len(entries) == 0 {
		return errors.Wrapf(errors.ErrConfig, "no credentials in %s", cfg.Keystore.Path)
	}

	market := venues.MarketType(flagMarket)
	factory := newFactory(cfg)

	creds := make([]venues.Credential, 0, len(entries))
	adapters := make(map[string]venues.Venue, len(entries))
	for _, entry := range entries {
		cred := entry.Credential()
		adapter, err := factory.GetClient(cred, market)
		if err != nil {
			return err
		}
		creds = append(creds, cred)
		adapters[harness.CredentialKey(cred)] = adapter
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	h := harness.New(harness.Options{
		Symbol:                flagSymbol,
		Market:                market,
		Timeout:               cfg.HTTP.Timeout,
		IncludePositionProbes: flagPositionProbes,
	})

	reports := h.VerifyAll(ctx, creds, adapters, flagParallel)
	printReports(reports)

	_, failed := harness.Summarize(reports)
	if failed > 0 {
		os.Exit(1)
	}
	return nil
}

func printReports(reports []*harness.Report) {
	for _, report := range reports {
		if report == nil {
			continue
		}
		fmt.Printf("\n%s / %s\n", report.Credential.Venue, report.Credential.KeyName)
		for _, v := range report.Verdicts {
			status := "PASS"
			if !v.Passed {
				status = "FAIL"
			}
			fmt.Printf("  [%s] %-26s %s\n", status, v.Probe, v.Message)
		}
		fmt.Printf("  %d passed, %d failed\n", report.Passed, report.Failed)
	}
}
