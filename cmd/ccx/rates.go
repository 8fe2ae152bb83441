package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/currency-annotator/internal/observability"
	"github.com/jonathan/currency-annotator/internal/rates"
	"github.com/jonathan/currency-annotator/internal/settings"
)

var ratesCmd = &cobra.Command{
	Use:   "rates <BASE> [SYMBOL...]",
	Short: "Look up exchange rates",
	Long:  "Look up the rates of BASE against the given symbols, or against the configured targets when none are given. Rates come from the rate worker when one is configured.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRates,
}

var currenciesCmd = &cobra.Command{
	Use:   "currencies",
	Short: "List the currencies the rate provider supports",
	Long:  "List the provider's currency catalog. When the provider cannot be reached, the built-in USD/EUR/PLN catalog is shown.",
	Args:  cobra.NoArgs,
	RunE:  runCurrencies,
}

func init() {
	ratesCmd.AddCommand(currenciesCmd)
	rootCmd.AddCommand(ratesCmd)
}

func runRates(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store, err)
	}
	defer closeStore()

	base := strings.ToUpper(strings.TrimSpace(args[0]))
	symbols := settings.NormalizeTargets(args[1:])
	if len(args) == 1 {
		opts, err := settings.New(store).GetOptions(ctx)
		if err != nil {
			return fmt.Errorf("failed to load options: %w", err)
		}
		symbols = opts.Targets
	}
	symbols = without(symbols, base)
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols to look up for %s", base)
	}

	table, err := newRateClient(cfg, store).GetRates(ctx, base, symbols)
	if err != nil {
		return err
	}
	observability.NewPrinter(os.Stdout).PrintRates(base, table)
	return nil
}

func without(items []string, drop string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item != drop {
			out = append(out, item)
		}
	}
	return out
}

func runCurrencies(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	catalog, err := rates.NewProvider(cfg.RatesURL, nil, cfg.Verbose).Currencies(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v; showing built-in currencies\n", err)
		catalog = rates.FallbackCurrencies()
	}
	observability.NewPrinter(os.Stdout).PrintCurrencies(catalog)
	return nil
}
