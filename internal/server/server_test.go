package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/currency-annotator/internal/rates"
	"github.com/jonathan/currency-annotator/internal/server/ratelimit"
	"github.com/jonathan/currency-annotator/internal/settings"
	"github.com/jonathan/currency-annotator/internal/storage"
	"github.com/jonathan/currency-annotator/internal/types"
)

type stubRates struct {
	rates map[string]float64
	err   error
	bases []string
}

func (s *stubRates) GetRates(_ context.Context, base string, _ []string) (map[string]float64, error) {
	s.bases = append(s.bases, base)
	return s.rates, s.err
}

func newTestServer(t *testing.T, getter rates.Getter, limit *ratelimit.Config) (*Server, *settings.Settings) {
	t.Helper()
	st := settings.New(storage.NewMemory())
	s := New(Config{Port: 0, RateLimit: limit}, rates.NewHandler(getter), st)
	t.Cleanup(s.rateLimiter.Stop)
	return s, st
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t, &stubRates{}, nil)

	w := do(t, s.Handler(), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRatesEndpoint(t *testing.T) {
	getter := &stubRates{rates: map[string]float64{"USD": 1.1}}
	s, _ := newTestServer(t, getter, nil)

	w := do(t, s.Handler(), http.MethodPost, "/rates", `{"type":"getRates","base":"EUR","symbols":["USD"]}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp types.RateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, 1.1, resp.Rates["USD"])
	assert.Equal(t, []string{"EUR"}, getter.bases)
}

func TestRatesEndpoint_InvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"wrong type", `{"type":"other","base":"EUR","symbols":["USD"]}`},
		{"missing symbols", `{"type":"getRates","base":"EUR"}`},
		{"symbols not array", `{"type":"getRates","base":"EUR","symbols":"USD"}`},
		{"lowercase base", `{"type":"getRates","base":"eur","symbols":["USD"]}`},
		{"empty symbols", `{"type":"getRates","base":"EUR","symbols":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getter := &stubRates{}
			s, _ := newTestServer(t, getter, nil)

			w := do(t, s.Handler(), http.MethodPost, "/rates", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"ok":false,"error":"Invalid rate request"}`, w.Body.String())
			assert.Empty(t, getter.bases)
		})
	}
}

func TestRatesEndpoint_UpstreamFailure(t *testing.T) {
	getter := &stubRates{err: &rates.RateError{Base: "EUR", Message: "Rate fetch failed: 500"}}
	s, _ := newTestServer(t, getter, nil)

	w := do(t, s.Handler(), http.MethodPost, "/rates", `{"type":"getRates","base":"EUR","symbols":["USD"]}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"ok":false,"error":"Rate fetch failed: 500"}`, w.Body.String())
}

func TestRatesEndpoint_RemoteClientRoundTrip(t *testing.T) {
	s, _ := newTestServer(t, &stubRates{rates: map[string]float64{"PLN": 4.3}}, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	got, err := rates.NewRemoteClient(ts.URL, nil).GetRates(context.Background(), "EUR", []string{"PLN"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"PLN": 4.3}, got)
}

func TestOptionsEndpoints(t *testing.T) {
	s, st := newTestServer(t, &stubRates{}, nil)
	h := s.Handler()

	w := do(t, h, http.MethodGet, "/options", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"targets":["USD","EUR","PLN"]}`, w.Body.String())

	w = do(t, h, http.MethodPut, "/options", `{"targets":["gbp","xx","GBP","chf"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"targets":["GBP","CHF"]}`, w.Body.String())

	opts, err := st.GetOptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"GBP", "CHF"}, opts.Targets)

	w = do(t, h, http.MethodPut, "/options", `{"targets":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, h, http.MethodPut, "/options", `nope`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSiteEndpoints(t *testing.T) {
	s, _ := newTestServer(t, &stubRates{}, nil)
	h := s.Handler()

	w := do(t, h, http.MethodGet, "/sites/shop.example.com", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"host":"shop.example.com","enabled":false}`, w.Body.String())

	w = do(t, h, http.MethodPut, "/sites/Shop.Example.com", `{"enabled":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"host":"Shop.Example.com","enabled":true}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/sites", "")
	assert.JSONEq(t, `{"shop.example.com":true}`, w.Body.String())

	w = do(t, h, http.MethodPut, "/sites/shop.example.com", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Enabled")

	w = do(t, h, http.MethodPut, "/sites/shop.example.com", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, http.MethodGet, "/sites", "")
	assert.JSONEq(t, `{}`, w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, &stubRates{}, nil)

	w := do(t, s.Handler(), http.MethodOptions, "/rates", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT")
}

func TestRateLimit(t *testing.T) {
	limit := &ratelimit.Config{
		Enabled: true,
		Default: ratelimit.Rule{Limit: 100, Window: time.Minute},
		Rules:   []ratelimit.Rule{{Method: http.MethodPost, Path: "/rates", Limit: 1, Window: time.Hour, Burst: 1}},
	}
	s, _ := newTestServer(t, &stubRates{rates: map[string]float64{"USD": 1}}, limit)
	h := s.Handler()
	body := `{"type":"getRates","base":"EUR","symbols":["USD"]}`

	w := do(t, h, http.MethodPost, "/rates", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = do(t, h, http.MethodPost, "/rates", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(&ErrValidation{Field: "targets", Message: "required"}))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(&rates.RateError{Message: "Rates unavailable"}))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(&storage.StoreError{Op: "get", Key: "k"}))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
	assert.Equal(t, "validation error: targets - required", (&ErrValidation{Field: "targets", Message: "required"}).Error())
}
