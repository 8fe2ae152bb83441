package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/currency-annotator/internal/rates"
	"github.com/jonathan/currency-annotator/internal/server"
	"github.com/jonathan/currency-annotator/internal/server/ratelimit"
	"github.com/jonathan/currency-annotator/internal/settings"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the rate worker",
	Long:  `Start an HTTP server that answers rate requests and exposes the conversion settings.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config, 8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	store, closeStore, err := openStore(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store, err)
	}
	defer closeStore()

	srv := server.New(server.Config{
		Port:      cfg.Port,
		RateLimit: ratelimit.LoadConfig(),
		Verbose:   cfg.Verbose,
	}, rates.NewHandler(newRateService(cfg, store)), settings.New(store))

	return srv.Start()
}
