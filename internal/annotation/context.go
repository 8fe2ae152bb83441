package annotation

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/jonathan/currency-annotator/internal/dom"
	"github.com/jonathan/currency-annotator/internal/extract"
	"github.com/jonathan/currency-annotator/internal/scanning"
	"github.com/jonathan/currency-annotator/internal/types"
)

// resolve finds the currency and amount for an element, looking at its
// neighbours when its own text lacks one of them. SourceText is the fragment
// where both became known, or the element's own text when they never did.
func resolve(node *html.Node, text string) (types.DetectedValue, bool) {
	value := types.DetectedValue{SourceText: text}

	currency, hasCurrency := extract.Currency(text)
	amount, hasAmount := extract.Amount(text)
	if hasCurrency && hasAmount {
		value.Currency, value.Amount = currency, amount
		return value, true
	}

	for _, fragment := range contextTexts(node, text) {
		if !hasCurrency {
			currency, hasCurrency = extract.Currency(fragment)
		}
		if !hasAmount {
			amount, hasAmount = extract.Amount(fragment)
		}
		if hasCurrency && hasAmount {
			value.Currency, value.Amount, value.SourceText = currency, amount, fragment
			return value, true
		}
	}
	return value, false
}

// contextTexts lists the own, previous sibling, next sibling, parent and
// grandparent texts, trimmed, without annotations and within their limits.
func contextTexts(node *html.Node, own string) []string {
	var texts []string
	seen := make(map[string]bool)
	push := func(value string, limit int) {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" || dom.RuneLen(trimmed) > limit || seen[trimmed] {
			return
		}
		seen[trimmed] = true
		texts = append(texts, trimmed)
	}

	push(own, scanning.MaxLeafText)

	if prev := sibling(node, dom.PrevElementSibling); prev != nil {
		push(dom.TextWithoutAnnotations(prev, scanning.MaxSiblingText), scanning.MaxSiblingText)
	}
	if next := sibling(node, dom.NextElementSibling); next != nil {
		push(dom.TextWithoutAnnotations(next, scanning.MaxSiblingText), scanning.MaxSiblingText)
	}
	if parent := dom.ParentElement(node); parent != nil {
		push(dom.TextWithoutAnnotations(parent, scanning.MaxParentText), scanning.MaxParentText)
		if grandparent := dom.ParentElement(parent); grandparent != nil {
			push(dom.TextWithoutAnnotations(grandparent, scanning.MaxGrandparentText), scanning.MaxGrandparentText)
		}
	}
	return texts
}

// sibling steps over annotations so an element's context reads the same
// before and after an annotation is inserted next to it.
func sibling(node *html.Node, step func(*html.Node) *html.Node) *html.Node {
	for s := step(node); s != nil; s = step(s) {
		if !dom.IsAnnotation(s) {
			return s
		}
	}
	return nil
}
