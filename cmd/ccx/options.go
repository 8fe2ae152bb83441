package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/currency-annotator/internal/observability"
	"github.com/jonathan/currency-annotator/internal/settings"
	"github.com/jonathan/currency-annotator/internal/types"
)

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "Show the conversion targets and enabled sites",
	Args:  cobra.NoArgs,
	RunE:  runOptions,
}

var optionsSetCmd = &cobra.Command{
	Use:   "set <CODE>...",
	Short: "Replace the conversion targets",
	Long:  "Replace the conversion targets with the given ISO 4217 codes. Codes are upper-cased; invalid and repeated codes are dropped.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runOptionsSet,
}

func init() {
	optionsCmd.AddCommand(optionsSetCmd)
	rootCmd.AddCommand(optionsCmd)
}

func runOptions(_ *cobra.Command, _ []string) error {
	st, closeStore, err := openSettings()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := context.Background()
	opts, err := st.GetOptions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load options: %w", err)
	}
	sites, err := st.SiteStates(ctx)
	if err != nil {
		return fmt.Errorf("failed to load site state: %w", err)
	}

	observability.NewPrinter(os.Stdout).PrintSettings(opts, sites)
	return nil
}

func runOptionsSet(_ *cobra.Command, args []string) error {
	if len(settings.NormalizeTargets(args)) == 0 {
		return fmt.Errorf("no valid currency codes in %v", args)
	}

	st, closeStore, err := openSettings()
	if err != nil {
		return err
	}
	defer closeStore()

	saved, err := st.SetOptions(context.Background(), types.Options{Targets: args})
	if err != nil {
		return fmt.Errorf("failed to save options: %w", err)
	}
	fmt.Printf("Targets: %v\n", saved.Targets)
	return nil
}

// openSettings opens the configured store wrapped in Settings.
func openSettings() (*settings.Settings, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := openStore(context.Background(), cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s store: %w", cfg.Store, err)
	}
	return settings.New(store), closeStore, nil
}
