// Package rates resolves exchange rates: the upstream provider, the
// store-backed worker service, the request handler and its clients.
package rates

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/jonathan/currency-annotator/internal/fetch"
)

// DefaultProviderURL is the public frankfurter API.
const DefaultProviderURL = "https://api.frankfurter.app"

// Fetcher retrieves fresh rates from an upstream source.
type Fetcher interface {
	Fetch(ctx context.Context, base string, symbols []string) (map[string]float64, error)
}

// Provider fetches rates from a frankfurter-compatible API.
type Provider struct {
	baseURL string
	opts    *fetch.Options
	verbose bool
}

// NewProvider creates a Provider for baseURL. An empty baseURL uses
// DefaultProviderURL; nil opts use fetch defaults.
func NewProvider(baseURL string, opts *fetch.Options, verbose bool) *Provider {
	if baseURL == "" {
		baseURL = DefaultProviderURL
	}
	return &Provider{baseURL: strings.TrimRight(baseURL, "/"), opts: opts, verbose: verbose}
}

type latestResponse struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// LatestURL builds the request URL for base against symbols.
func (p *Provider) LatestURL(base string, symbols []string) string {
	query := url.Values{}
	query.Set("from", base)
	query.Set("to", strings.Join(symbols, ","))
	return p.baseURL + "/latest?" + query.Encode()
}

// Fetch implements Fetcher.
func (p *Provider) Fetch(ctx context.Context, base string, symbols []string) (map[string]float64, error) {
	endpoint := p.LatestURL(base, symbols)
	if p.verbose {
		log.Printf("[RATES] Fetching %s", endpoint)
	}

	var body latestResponse
	_, err := fetch.JSON(ctx, endpoint, nil, &body, p.opts)
	if err != nil {
		var fetchErr *fetch.Error
		if errors.As(err, &fetchErr) {
			switch {
			case fetchErr.StatusCode != 0:
				return nil, &RateError{Base: base, Message: fmt.Sprintf("%s: %d", MsgFetchFailed, fetchErr.StatusCode)}
			case fetchErr.Message == "failed to decode response":
				return nil, &RateError{Base: base, Message: MsgUnexpected, Cause: err}
			}
		}
		return nil, &RateError{Base: base, Message: MsgFetchFailed, Cause: err}
	}
	if body.Rates == nil {
		return nil, &RateError{Base: base, Message: MsgUnexpected}
	}
	return body.Rates, nil
}

// FallbackCurrencies is the catalog used when the provider's list is
// unavailable.
func FallbackCurrencies() map[string]string {
	return map[string]string{
		"USD": "US Dollar",
		"EUR": "Euro",
		"PLN": "Polish Zloty",
	}
}

// CurrenciesURL is the provider's currency catalog endpoint.
func (p *Provider) CurrenciesURL() string {
	return p.baseURL + "/currencies"
}

// Currencies returns the codes the provider supports, mapped to their names.
func (p *Provider) Currencies(ctx context.Context) (map[string]string, error) {
	endpoint := p.CurrenciesURL()
	if p.verbose {
		log.Printf("[RATES] Fetching %s", endpoint)
	}

	var catalog map[string]string
	if _, err := fetch.JSON(ctx, endpoint, nil, &catalog, p.opts); err != nil {
		return nil, &RateError{Message: MsgCurrenciesUnavailable, Cause: err}
	}
	if len(catalog) == 0 {
		return nil, &RateError{Message: MsgCurrenciesUnavailable}
	}
	return catalog, nil
}
