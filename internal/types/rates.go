// Package types provides type definitions for structured data shared across the currency annotator.
//
//nolint:revive // types is a standard Go package name pattern
package types

// RequestTypeGetRates is the type tag of a rate lookup request.
const RequestTypeGetRates = "getRates"

// RateRequest asks the rate worker to resolve a base currency against a list of symbols.
type RateRequest struct {
	Type    string   `json:"type" validate:"required,eq=getRates"`
	Base    string   `json:"base" validate:"required,len=3,uppercase"`
	Symbols []string `json:"symbols" validate:"required,min=1,dive,len=3,uppercase"`
}

// RateResponse is the worker's reply. A response with OK=false carries Error instead of Rates.
type RateResponse struct {
	OK    bool               `json:"ok"`
	Rates map[string]float64 `json:"rates,omitempty"`
	Error string             `json:"error,omitempty"`
}

// CachedRates is the persisted rate table for one base currency.
type CachedRates struct {
	Base      string             `json:"base"`
	FetchedAt int64              `json:"fetchedAt"` // epoch milliseconds
	Rates     map[string]float64 `json:"rates"`
}

// HasAll reports whether the cached table carries a rate for every symbol.
func (c *CachedRates) HasAll(symbols []string) bool {
	if c == nil {
		return false
	}
	for _, symbol := range symbols {
		if _, ok := c.Rates[symbol]; !ok {
			return false
		}
	}
	return true
}
