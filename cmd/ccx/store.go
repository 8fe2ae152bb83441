package main

import (
	"context"
	"fmt"

	"github.com/jonathan/currency-annotator/internal/config"
	"github.com/jonathan/currency-annotator/internal/db"
	"github.com/jonathan/currency-annotator/internal/ratecache"
	"github.com/jonathan/currency-annotator/internal/rates"
	"github.com/jonathan/currency-annotator/internal/storage"
	"github.com/jonathan/currency-annotator/internal/storage/bolt"
	"github.com/jonathan/currency-annotator/internal/storage/redisstore"
)

// openStore opens the configured settings store. The returned function
// releases it.
func openStore(ctx context.Context, cfg config.Config) (storage.Store, func(), error) {
	switch cfg.Store {
	case config.StoreMemory:
		return storage.NewMemory(), func() {}, nil

	case config.StoreBolt:
		store, err := bolt.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	case config.StoreRedis:
		redisCfg := redisstore.ConfigFromEnv()
		if cfg.RedisAddr != "" {
			redisCfg.Addr = cfg.RedisAddr
		}
		store, err := redisstore.New(redisCfg)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	case config.StorePostgres:
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := database.EnsureSchema(ctx); err != nil {
			database.Close()
			return nil, nil, err
		}
		return database, database.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// newRateService builds the worker-side rate service over store.
func newRateService(cfg config.Config, store storage.Store) *rates.Service {
	provider := rates.NewProvider(cfg.RatesURL, nil, cfg.Verbose)
	return rates.NewService(store, provider, rates.ServiceConfig{Verbose: cfg.Verbose})
}

// newRateClient returns the client the annotator asks for rates: the remote
// worker when one is configured, the in-process service otherwise.
func newRateClient(cfg config.Config, store storage.Store) ratecache.Client {
	if cfg.WorkerURL != "" {
		return rates.NewRemoteClient(cfg.WorkerURL, nil)
	}
	return rates.NewLocalClient(rates.NewHandler(newRateService(cfg, store)))
}
