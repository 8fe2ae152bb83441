// Package dom wraps an HTML node tree as a host document: a lock that
// serializes every read and write of the tree, a visibility flag, and a
// structural-change event source.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a mutable HTML tree shared between a host and the annotator.
type Document struct {
	mu   sync.Mutex
	root *html.Node
	host string

	hidden atomic.Bool
	idle   chan struct{}

	obsMu     sync.Mutex
	observers map[int]func()
	nextObs   int
}

// New wraps an existing tree.
func New(root *html.Node, host string) *Document {
	return &Document{
		root:      root,
		host:      strings.TrimSpace(strings.ToLower(host)),
		observers: make(map[int]func()),
		idle:      make(chan struct{}, 1),
	}
}

// Parse reads an HTML document.
func Parse(r io.Reader, host string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return New(root, host), nil
}

// ParseString reads an HTML document from a string.
func ParseString(s string, host string) (*Document, error) {
	return Parse(strings.NewReader(s), host)
}

// Host returns the normalized hostname the document was loaded from.
func (d *Document) Host() string {
	return d.host
}

// Visible reports whether the host is currently showing the document.
func (d *Document) Visible() bool {
	return !d.hidden.Load()
}

// SetVisible records a visibility change.
func (d *Document) SetVisible(visible bool) {
	d.hidden.Store(!visible)
}

// SignalIdle records that the host has spare time. Signals do not queue: one
// pending signal is kept until a waiter takes it.
func (d *Document) SignalIdle() {
	select {
	case d.idle <- struct{}{}:
	default:
	}
}

// IdleSignal delivers the signals sent by SignalIdle.
func (d *Document) IdleSignal() <-chan struct{} {
	return d.idle
}

// Do runs fn with exclusive access to the tree. It does not notify observers.
func (d *Document) Do(fn func(root *html.Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.root)
}

// Mutate runs a host-side structural change and then notifies observers.
func (d *Document) Mutate(fn func(root *html.Node)) {
	d.Do(fn)
	d.notify()
}

// Observe registers fn to be called after every host mutation.
// The returned function unregisters it.
func (d *Document) Observe(fn func()) (stop func()) {
	d.obsMu.Lock()
	id := d.nextObs
	d.nextObs++
	d.observers[id] = fn
	d.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.obsMu.Lock()
			delete(d.observers, id)
			d.obsMu.Unlock()
		})
	}
}

func (d *Document) notify() {
	d.obsMu.Lock()
	fns := make([]func(), 0, len(d.observers))
	for _, fn := range d.observers {
		fns = append(fns, fn)
	}
	d.obsMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Body returns the <body> element, or nil if the tree has none.
func Body(root *html.Node) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

// Render serializes the tree.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

// String serializes the tree, returning "" on error.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}
