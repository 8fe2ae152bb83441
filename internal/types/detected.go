package types

import "github.com/shopspring/decimal"

// DetectedValue is a monetary value found in document text.
type DetectedValue struct {
	Currency   string          `json:"currency"`
	Amount     decimal.Decimal `json:"amount"`
	SourceText string          `json:"source_text"`
}

// GroupKey identifies the monetary fact ("EUR:100") used to suppress duplicate annotations.
func (d DetectedValue) GroupKey() string {
	return GroupKey(d.Currency, d.Amount)
}

// GroupKey builds the "CURRENCY:amount" identity for a detected price.
func GroupKey(currency string, amount decimal.Decimal) string {
	return currency + ":" + amount.String()
}
