// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/jonathan/currency-annotator/internal/annotation"
	"github.com/jonathan/currency-annotator/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// truncate shortens s to max runes, ending with "..." when cut.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintScanResult outputs the counters of one scan.
func (p *Printer) PrintScanResult(host string, result annotation.ScanResult) {
	var sb strings.Builder
	if host != "" {
		sb.WriteString(fmt.Sprintf("Host:        %s\n\n", host))
	}
	sb.WriteString(fmt.Sprintf("Candidates:  %d\n", result.Candidates))
	sb.WriteString(fmt.Sprintf("Annotated:   %d\n", result.Annotated))
	sb.WriteString(fmt.Sprintf("Unchanged:   %d\n", result.Unchanged))
	sb.WriteString(fmt.Sprintf("Retracted:   %d\n", result.Retracted))
	sb.WriteString(fmt.Sprintf("Duplicates:  %d\n", result.Duplicates))
	sb.WriteString(fmt.Sprintf("Failed:      %d\n", result.Failed))
	sb.WriteString(fmt.Sprintf("Skipped:     %d", result.Skipped))

	p.printBox("SCAN RESULT", sb.String())
}

// PrintAnnotations outputs the first annotations of a document.
func (p *Printer) PrintAnnotations(annotations []annotation.Annotation) {
	if len(annotations) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d annotations:\n\n", len(annotations)))

	count := min(len(annotations), maxItemsToShow)
	for i := 0; i < count; i++ {
		a := annotations[i]
		sb.WriteString(fmt.Sprintf("• %s\n", a.DisplayText))
		if a.GroupKey != "" {
			sb.WriteString(fmt.Sprintf("  [%s]\n", a.GroupKey))
		}
	}

	if len(annotations) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more", len(annotations)-maxItemsToShow))
	}

	p.printBox("ANNOTATIONS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRates outputs a rate table in symbol order.
func (p *Printer) PrintRates(base string, rates map[string]float64) {
	if len(rates) == 0 {
		return
	}

	symbols := make([]string, 0, len(rates))
	for symbol := range rates {
		symbols = append(symbols, symbol)
	}
	slices.Sort(symbols)

	var sb strings.Builder
	for _, symbol := range symbols {
		sb.WriteString(fmt.Sprintf("1 %s = %.6g %s\n", base, rates[symbol], symbol))
	}

	p.printBox("RATES ("+base+")", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCurrencies outputs a currency catalog in code order.
func (p *Printer) PrintCurrencies(catalog map[string]string) {
	if len(catalog) == 0 {
		return
	}

	codes := make([]string, 0, len(catalog))
	for code := range catalog {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	var sb strings.Builder
	for _, code := range codes {
		sb.WriteString(fmt.Sprintf("%s  %s\n", code, catalog[code]))
	}

	p.printBox(fmt.Sprintf("CURRENCIES (%d)", len(codes)), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSettings outputs the conversion targets and the enabled sites.
func (p *Printer) PrintSettings(opts types.Options, sites types.SiteState) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Targets:  %s\n", strings.Join(opts.Targets, ", ")))

	hosts := make([]string, 0, len(sites))
	for host, enabled := range sites {
		if enabled {
			hosts = append(hosts, host)
		}
	}
	slices.Sort(hosts)

	if len(hosts) == 0 {
		sb.WriteString("Sites:    none enabled")
	} else {
		sb.WriteString("Sites:\n")
		for _, host := range hosts {
			sb.WriteString(fmt.Sprintf("  • %s\n", host))
		}
	}

	p.printBox("SETTINGS", strings.TrimSuffix(sb.String(), "\n"))
}
