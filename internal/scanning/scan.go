// Package scanning finds the elements of a document that are likely to display a price.
package scanning

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/jonathan/currency-annotator/internal/dom"
	"github.com/jonathan/currency-annotator/internal/extract"
)

// Text limits, in runes. Longer texts are not treated as price content.
const (
	MaxLeafText        = 140
	MaxSiblingText     = 80
	MaxParentText      = 180
	MaxGrandparentText = 220
)

// DefaultPriceSelectors returns the structural hints commonly found on price elements.
func DefaultPriceSelectors() []string {
	return []string{
		"[data-testid*=price]",
		"[class*=price]",
		"[id*=price]",
		".offer-price__number",
		".offer-price__currency",
		"[class*=offer-price__number]",
		"[class*=offer-price__currency]",
	}
}

// Scanner collects candidate elements. It never modifies the tree.
type Scanner struct {
	selectors []string
}

// NewScanner creates a Scanner. With no selectors, DefaultPriceSelectors is used.
func NewScanner(selectors ...string) *Scanner {
	if len(selectors) == 0 {
		selectors = DefaultPriceSelectors()
	}
	return &Scanner{selectors: selectors}
}

// Scan returns the candidate elements under root in document order, each at most once.
func (s *Scanner) Scan(root *html.Node) []*html.Node {
	if root == nil {
		return nil
	}
	found := make(map[*html.Node]bool)

	// Structural hints.
	doc := goquery.NewDocumentFromNode(root)
	doc.Find(strings.Join(s.selectors, ", ")).Each(func(_ int, sel *goquery.Selection) {
		for _, n := range sel.Nodes {
			if dom.IsEligible(n) {
				found[n] = true
			}
		}
	})

	// Text heuristics.
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if AcceptText(n) {
				found[n.Parent] = true
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return inDocumentOrder(root, found)
}

// AcceptText decides whether a text leaf looks like (part of) a price.
func AcceptText(leaf *html.Node) bool {
	parent := leaf.Parent
	if parent == nil || !dom.IsEligible(parent) {
		return false
	}

	text := leaf.Data
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || dom.RuneLen(trimmed) > MaxLeafText {
		return false
	}

	hasCurrency := extract.HasCurrencyMarker(text)
	hasNumber := extract.HasNumber(text)
	switch {
	case hasCurrency && hasNumber:
		return true
	case hasCurrency:
		return contextMatches(parent, extract.HasNumber)
	case hasNumber:
		return contextMatches(parent, extract.HasCurrencyMarker)
	}
	return false
}

// contextMatches applies match to the parent's text, then the grandparent's.
func contextMatches(parent *html.Node, match func(string) bool) bool {
	parentText := dom.TextWithoutAnnotations(parent, MaxParentText)
	if dom.RuneLen(parentText) <= MaxParentText && match(parentText) {
		return true
	}

	container := dom.ParentElement(parent)
	if container == nil {
		return false
	}
	containerText := dom.TextWithoutAnnotations(container, MaxGrandparentText)
	return dom.RuneLen(containerText) <= MaxGrandparentText && match(containerText)
}

func inDocumentOrder(root *html.Node, set map[*html.Node]bool) []*html.Node {
	ordered := make([]*html.Node, 0, len(set))
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if set[n] {
			ordered = append(ordered, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return ordered
}
