package rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_LatestURL(t *testing.T) {
	p := NewProvider("https://rates.example.com/", nil, false)
	assert.Equal(t, "https://rates.example.com/latest?from=EUR&to=USD%2CPLN", p.LatestURL("EUR", []string{"USD", "PLN"}))
	assert.Equal(t, DefaultProviderURL+"/latest?from=USD&to=EUR", NewProvider("", nil, false).LatestURL("USD", []string{"EUR"}))
}

func TestProvider_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest", r.URL.Path)
		assert.Equal(t, "EUR", r.URL.Query().Get("from"))
		assert.Equal(t, "USD,PLN", r.URL.Query().Get("to"))
		_, _ = w.Write([]byte(`{"amount":1.0,"base":"EUR","date":"2026-10-16","rates":{"USD":1.08,"PLN":4.31}}`))
	}))
	defer server.Close()

	rates, err := NewProvider(server.URL, nil, false).Fetch(context.Background(), "EUR", []string{"USD", "PLN"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"USD": 1.08, "PLN": 4.31}, rates)
}

func TestProvider_FetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"bad status", http.StatusServiceUnavailable, `{}`, "Rate fetch failed: 503"},
		{"not json", http.StatusOK, `<html>`, "Unexpected rate response"},
		{"no rates", http.StatusOK, `{"base":"EUR"}`, "Unexpected rate response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewProvider(server.URL, nil, false).Fetch(context.Background(), "EUR", []string{"USD"})

			var rateErr *RateError
			require.True(t, errors.As(err, &rateErr))
			assert.Equal(t, tt.message, rateErr.Message)
			assert.Equal(t, "EUR", rateErr.Base)
		})
	}
}

func TestProvider_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewProvider(url, nil, false).Fetch(context.Background(), "EUR", []string{"USD"})

	var rateErr *RateError
	require.True(t, errors.As(err, &rateErr))
	assert.Equal(t, MsgFetchFailed, rateErr.Message)
	assert.NotNil(t, rateErr.Unwrap())
}

func TestProvider_Currencies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/currencies", r.URL.Path)
		_, _ = w.Write([]byte(`{"CHF":"Swiss Franc","EUR":"Euro","USD":"United States Dollar"}`))
	}))
	defer server.Close()

	catalog, err := NewProvider(server.URL, nil, false).Currencies(context.Background())
	require.NoError(t, err)
	assert.Len(t, catalog, 3)
	assert.Equal(t, "Swiss Franc", catalog["CHF"])
}

func TestProvider_CurrenciesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"bad status", http.StatusBadGateway, `{}`},
		{"not an object", http.StatusOK, `["USD"]`},
		{"empty", http.StatusOK, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewProvider(server.URL, nil, false).Currencies(context.Background())

			var rateErr *RateError
			require.True(t, errors.As(err, &rateErr))
			assert.Equal(t, MsgCurrenciesUnavailable, rateErr.Message)
		})
	}
}

func TestFallbackCurrencies(t *testing.T) {
	catalog := FallbackCurrencies()
	assert.Equal(t, "Euro", catalog["EUR"])
	assert.Len(t, catalog, 3)
}
