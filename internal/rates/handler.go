package rates

import (
	"context"
	"log"

	"github.com/jonathan/currency-annotator/internal/types"
)

// Getter resolves rates for a base currency.
type Getter interface {
	GetRates(ctx context.Context, base string, symbols []string) (map[string]float64, error)
}

// Handler dispatches rate protocol requests to a Getter.
type Handler struct {
	rates Getter
}

// NewHandler creates a Handler.
func NewHandler(rates Getter) *Handler {
	return &Handler{rates: rates}
}

// Valid reports whether req is a well-formed getRates request.
func Valid(req types.RateRequest) bool {
	return req.Type == types.RequestTypeGetRates && req.Base != "" && req.Symbols != nil
}

// Handle answers one request. Failures are reported in the response.
func (h *Handler) Handle(ctx context.Context, req types.RateRequest) types.RateResponse {
	if !Valid(req) {
		return types.RateResponse{OK: false, Error: MsgInvalidRequest}
	}

	rates, err := h.rates.GetRates(ctx, req.Base, req.Symbols)
	if err != nil {
		log.Printf("[RATES] Lookup for %s failed: %v", req.Base, err)
		msg := err.Error()
		if msg == "" {
			msg = MsgLookupFailed
		}
		return types.RateResponse{OK: false, Error: msg}
	}
	return types.RateResponse{OK: true, Rates: rates}
}
