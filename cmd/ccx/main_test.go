package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/currency-annotator/internal/config"
	"github.com/jonathan/currency-annotator/internal/rates"
	"github.com/jonathan/currency-annotator/internal/storage"
)

// TestMain runs before all tests and loads .env if available
func TestMain(m *testing.M) {
	_ = godotenv.Load()
	os.Exit(m.Run())
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"annotate", "serve", "options", "site", "rates"} {
		assert.True(t, names[want], "missing command %s", want)
	}

	cmd, _, err := rootCmd.Find([]string{"rates", "currencies"})
	require.NoError(t, err)
	assert.Equal(t, "currencies", cmd.Name())
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	store, closeStore, err := openStore(ctx, config.Config{Store: config.StoreMemory})
	require.NoError(t, err)
	closeStore()
	assert.IsType(t, &storage.Memory{}, store)

	path := filepath.Join(t.TempDir(), "ccx.db")
	store, closeStore, err = openStore(ctx, config.Config{Store: config.StoreBolt, BoltPath: path})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "k", 1))
	closeStore()
	assert.FileExists(t, path)

	_, _, err = openStore(ctx, config.Config{Store: "tape"})
	assert.Error(t, err)
}

func TestNewRateClient(t *testing.T) {
	store := storage.NewMemory()

	assert.IsType(t, &rates.LocalClient{}, newRateClient(config.Config{}, store))
	assert.IsType(t, &rates.RemoteClient{}, newRateClient(config.Config{WorkerURL: "http://localhost:8080"}, store))
}

func TestLoadPage_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>€100</p>"), 0o644))

	markup, host, err := loadPage(context.Background(), config.Defaults(), path)
	require.NoError(t, err)
	assert.Equal(t, "<p>€100</p>", markup)
	assert.Empty(t, host)

	_, _, err = loadPage(context.Background(), config.Defaults(), filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)
}

func TestWithout(t *testing.T) {
	assert.Equal(t, []string{"USD", "PLN"}, without([]string{"USD", "EUR", "PLN"}, "EUR"))
	assert.Empty(t, without([]string{"EUR"}, "EUR"))
}
