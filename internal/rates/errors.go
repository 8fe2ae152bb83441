package rates

import "fmt"

// Error messages shared with rate worker clients.
const (
	MsgInvalidRequest = "Invalid rate request"
	MsgFetchFailed    = "Rate fetch failed"
	MsgUnexpected     = "Unexpected rate response"
	MsgUnavailable    = "Rates unavailable"
	MsgLookupFailed   = "Rate lookup failed"

	MsgCurrenciesUnavailable = "Currency list unavailable"
)

// RateError is returned when rates for a base currency cannot be resolved.
// Error() is the message sent to clients.
type RateError struct {
	Base    string
	Message string
	Cause   error
}

func (e *RateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *RateError) Unwrap() error {
	return e.Cause
}
