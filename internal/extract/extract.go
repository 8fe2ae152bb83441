// Package extract detects currency codes and numeric amounts in free-form text.
//
// Both detectors are pure: the same input always yields the same output and
// neither depends on the other.
package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/jonathan/currency-annotator/internal/types"
	"github.com/shopspring/decimal"
)

// Supported currency codes.
const (
	EUR = "EUR"
	USD = "USD"
	PLN = "PLN"
)

var (
	// currencyMarker is the scanner's test for "this text mentions money".
	currencyMarker = regexp.MustCompile(`(?i)(?:€|EUR|\$|USD|PLN|zł|\bzl\b)`)

	// numberRun matches a digit run with embedded grouping/decimal separators.
	numberRun = regexp.MustCompile(`[0-9][0-9\s.,\x{00A0}\x{202F}]*[0-9]|[0-9]`)

	bareZL  = regexp.MustCompile(`\bZL\b`)
	zlotyZL = regexp.MustCompile(`(?i)zł`)
)

// HasCurrencyMarker reports whether text contains a currency symbol, code or spelled form.
func HasCurrencyMarker(text string) bool {
	return currencyMarker.MatchString(text)
}

// HasNumber reports whether text contains at least one digit run.
func HasNumber(text string) bool {
	return numberRun.MatchString(text)
}

// Currency returns the first currency matching the priority list EUR, USD, PLN.
func Currency(text string) (string, bool) {
	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, EUR) || strings.Contains(text, "€"):
		return EUR, true
	case strings.Contains(upper, USD) || strings.Contains(text, "$"):
		return USD, true
	case strings.Contains(upper, PLN) || zlotyZL.MatchString(text) || bareZL.MatchString(upper):
		return PLN, true
	}
	return "", false
}

// Amount parses the first number in text, resolving "," and "." as either
// thousands or decimal separators.
func Amount(text string) (decimal.Decimal, bool) {
	match := numberRun.FindString(text)
	if match == "" {
		return decimal.Zero, false
	}

	raw := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, match)
	if raw == "" {
		return decimal.Zero, false
	}

	value, err := decimal.NewFromString(normalize(raw))
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}

// normalize rewrites raw into a plain "1234.56" form.
func normalize(raw string) string {
	lastComma := strings.LastIndex(raw, ",")
	lastDot := strings.LastIndex(raw, ".")

	switch {
	case lastComma > -1 && lastDot > -1:
		decimalSep, thousandSep := ".", ","
		if lastComma > lastDot {
			decimalSep, thousandSep = ",", "."
		}
		normalized := strings.ReplaceAll(raw, thousandSep, "")
		return strings.Replace(normalized, decimalSep, ".", 1)
	case lastComma > -1:
		if lastGroupLen(raw, ",") == 3 {
			return strings.ReplaceAll(raw, ",", "")
		}
		return strings.ReplaceAll(raw, ",", ".")
	case lastDot > -1:
		if lastGroupLen(raw, ".") == 3 {
			return strings.ReplaceAll(raw, ".", "")
		}
		return raw
	}
	return raw
}

func lastGroupLen(raw, sep string) int {
	parts := strings.Split(raw, sep)
	return len(parts[len(parts)-1])
}

// Detect returns the currency and amount found in text when both are present.
func Detect(text string) (types.DetectedValue, bool) {
	currency, ok := Currency(text)
	if !ok {
		return types.DetectedValue{}, false
	}
	amount, ok := Amount(text)
	if !ok {
		return types.DetectedValue{}, false
	}
	return types.DetectedValue{Currency: currency, Amount: amount, SourceText: text}, true
}
