package dom

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// AnnotationClass marks inserted annotation elements.
const AnnotationClass = "ccx-inline"

// skipTags are elements whose text is never price content.
var skipTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Textarea: true,
	atom.Input:    true,
	atom.Select:   true,
	atom.Option:   true,
}

// Attr returns the value of the named attribute.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// HasClass reports whether the element's class list contains class.
func HasClass(n *html.Node, class string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	value, ok := Attr(n, "class")
	if !ok {
		return false
	}
	for _, token := range strings.Fields(value) {
		if token == class {
			return true
		}
	}
	return false
}

// IsAnnotation reports whether n is an inserted annotation element.
func IsAnnotation(n *html.Node) bool {
	return HasClass(n, AnnotationClass)
}

// InsideAnnotation reports whether n or one of its ancestors is an annotation.
func InsideAnnotation(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if IsAnnotation(p) {
			return true
		}
	}
	return false
}

// IsContentEditable resolves the inherited contenteditable state of an element.
func IsContentEditable(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		value, ok := Attr(p, "contenteditable")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "", "true", "plaintext-only":
			return true
		case "false":
			return false
		}
	}
	return false
}

// IsEligible reports whether an element may carry price content: it is not a
// script, style or form control, not editable, and not part of an annotation.
func IsEligible(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if skipTags[n.DataAtom] {
		return false
	}
	if IsContentEditable(n) {
		return false
	}
	return !InsideAnnotation(n)
}

// ParentElement returns n's parent if it is an element.
func ParentElement(n *html.Node) *html.Node {
	if n == nil || n.Parent == nil || n.Parent.Type != html.ElementNode {
		return nil
	}
	return n.Parent
}

// PrevElementSibling returns the closest preceding element sibling.
func PrevElementSibling(n *html.Node) *html.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// NextElementSibling returns the closest following element sibling.
func NextElementSibling(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// Text returns the concatenated text of every descendant text node.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// TextWithoutAnnotations returns n's text with annotation content left out.
// With limit > 0, reading stops once more than limit runes were collected, so
// callers can tell an over-long text by its length.
func TextWithoutAnnotations(n *html.Node, limit int) string {
	if n == nil {
		return ""
	}
	if !hasAnnotationDescendant(n) {
		return truncate(Text(n), limit)
	}

	var sb strings.Builder
	count := 0
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if IsAnnotation(n) {
			return true
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			count += utf8.RuneCountInString(n.Data)
			return limit <= 0 || count <= limit
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(n)
	return sb.String()
}

func hasAnnotationDescendant(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if IsAnnotation(c) || hasAnnotationDescendant(c) {
			return true
		}
	}
	return false
}

// truncate keeps at most limit+1 runes of s.
func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit+1 {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit+1])
}

// RuneLen returns the number of runes in s.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// IsAttached reports whether n is still reachable from root through parent links.
func IsAttached(root, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

// NewAnnotation builds an annotation element carrying text.
func NewAnnotation(text string) *html.Node {
	span := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Span,
		Data:     "span",
		Attr:     []html.Attribute{{Key: "class", Val: AnnotationClass}},
	}
	span.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return span
}

// InsertAfter places node immediately after anchor. It returns false if the
// anchor is detached.
func InsertAfter(anchor, node *html.Node) bool {
	if anchor.Parent == nil {
		return false
	}
	anchor.Parent.InsertBefore(node, anchor.NextSibling)
	return true
}

// Remove detaches n from its parent, if any.
func Remove(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}
