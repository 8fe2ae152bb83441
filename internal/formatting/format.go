// Package formatting renders converted amounts as localized currency strings.
package formatting

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Separator joins the per-target conversions in one annotation.
const Separator = " | "

// DefaultLocale is used when no locale is configured or it fails to parse.
const DefaultLocale = "en"

// maxWholeUnits bounds values rendered through integer grouping.
const maxWholeUnits = 1e15

// suffixLanguages write the currency symbol after the amount (CLDR
// "#,##0.00 ¤" patterns).
var suffixLanguages = map[string]bool{
	"bg": true, "cs": true, "da": true, "de": true, "el": true, "es": true,
	"et": true, "fi": true, "fr": true, "hr": true, "hu": true, "it": true,
	"lt": true, "lv": true, "nb": true, "no": true, "pl": true, "ro": true,
	"ru": true, "sk": true, "sl": true, "sv": true, "uk": true,
}

// prefixRegions override suffixLanguages for regional variants that keep the
// symbol in front.
var prefixRegions = map[string]bool{
	"de-AT": true, "de-CH": true, "de-LI": true,
}

// Formatter formats converted amounts for one locale. Digit grouping comes
// from the locale's number system; the symbol goes before or after the
// amount according to the locale's currency pattern.
type Formatter struct {
	tag         language.Tag
	printer     *message.Printer
	symbolAfter bool
}

// NewFormatter creates a Formatter for the given BCP 47 locale.
// An empty or invalid locale falls back to DefaultLocale.
func NewFormatter(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil || locale == "" {
		tag = language.MustParse(DefaultLocale)
	}
	return &Formatter{tag: tag, printer: message.NewPrinter(tag), symbolAfter: symbolAfter(tag)}
}

func symbolAfter(tag language.Tag) bool {
	base, _ := tag.Base()
	region, _ := tag.Region()
	if prefixRegions[base.String()+"-"+region.String()] {
		return false
	}
	return suffixLanguages[base.String()]
}

// Locale returns the locale tag in use.
func (f *Formatter) Locale() string {
	return f.tag.String()
}

// Format converts amount by rate and renders it in code, rounded to whole units.
// Codes the currency tables do not know are rendered as "12.34 XYZ".
func (f *Formatter) Format(amount decimal.Decimal, rate float64, code string) string {
	converted := amount.Mul(decimal.NewFromFloat(rate))

	unit, err := currency.ParseISO(code)
	if err != nil {
		return plain(converted, code)
	}

	rounded := converted.Round(0)
	if rounded.Abs().GreaterThanOrEqual(decimal.NewFromFloat(maxWholeUnits)) {
		return plain(converted, code)
	}

	symbol := f.printer.Sprint(currency.Symbol(unit))
	number := f.printer.Sprintf("%d", rounded.IntPart())
	if symbol == "" {
		return plain(converted, code)
	}
	if utf8.RuneCountInString(symbol) == 1 {
		return symbol + number
	}
	return symbol + " " + number
}

// BuildConversion formats amount for every target that has a usable rate, in
// target order, joined by Separator. It returns "" when no target has a rate.
func (f *Formatter) BuildConversion(amount decimal.Decimal, targets []string, rates map[string]float64) string {
	parts := make([]string, 0, len(targets))
	for _, target := range targets {
		rate, ok := rates[target]
		if !ok || math.IsNaN(rate) || math.IsInf(rate, 0) {
			continue
		}
		parts = append(parts, f.Format(amount, rate, target))
	}
	return strings.Join(parts, Separator)
}

func plain(amount decimal.Decimal, code string) string {
	return amount.StringFixed(2) + " " + code
}
