package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/currency-annotator/internal/settings"
)

var siteCmd = &cobra.Command{
	Use:   "site",
	Short: "Enable, disable or inspect annotation per site",
}

var siteEnableCmd = &cobra.Command{
	Use:   "enable <host>",
	Short: "Enable annotation on a host",
	Args:  cobra.ExactArgs(1),
	RunE:  func(_ *cobra.Command, args []string) error { return setSite(args[0], true) },
}

var siteDisableCmd = &cobra.Command{
	Use:   "disable <host>",
	Short: "Disable annotation on a host",
	Args:  cobra.ExactArgs(1),
	RunE:  func(_ *cobra.Command, args []string) error { return setSite(args[0], false) },
}

var siteStatusCmd = &cobra.Command{
	Use:   "status <host>",
	Short: "Show whether annotation is enabled on a host",
	Args:  cobra.ExactArgs(1),
	RunE:  runSiteStatus,
}

func init() {
	siteCmd.AddCommand(siteEnableCmd, siteDisableCmd, siteStatusCmd)
	rootCmd.AddCommand(siteCmd)
}

func setSite(host string, enabled bool) error {
	if settings.NormalizeHost(host) == "" {
		return fmt.Errorf("host is required")
	}

	st, closeStore, err := openSettings()
	if err != nil {
		return err
	}
	defer closeStore()

	if err := st.SetSiteEnabled(context.Background(), host, enabled); err != nil {
		return fmt.Errorf("failed to save site state: %w", err)
	}
	fmt.Printf("%s: %s\n", settings.NormalizeHost(host), enabledLabel(enabled))
	return nil
}

func runSiteStatus(_ *cobra.Command, args []string) error {
	st, closeStore, err := openSettings()
	if err != nil {
		return err
	}
	defer closeStore()

	enabled, err := st.GetSiteEnabled(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to load site state: %w", err)
	}
	fmt.Printf("%s: %s\n", settings.NormalizeHost(args[0]), enabledLabel(enabled))
	return nil
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
