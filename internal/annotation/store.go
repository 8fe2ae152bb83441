// Package annotation decides, per candidate element, whether and how to
// annotate a price, and keeps the per-element processing state in a side
// table so the document itself only ever gains or loses annotation elements.
package annotation

import (
	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/jonathan/currency-annotator/internal/dom"
)

// Status is the processing state of one element.
type Status int

const (
	// Unprocessed elements have no annotation and no work in flight.
	Unprocessed Status = iota
	// Processing elements are waiting for rates.
	Processing
	// Processed elements carry exactly one annotation.
	Processed
)

func (s Status) String() string {
	switch s {
	case Processing:
		return "processing"
	case Processed:
		return "processed"
	default:
		return "unprocessed"
	}
}

// State is a snapshot of one element's entry.
type State struct {
	ID         uuid.UUID
	Status     Status
	SourceText string
	GroupKey   string
}

// Annotation describes one rendered conversion.
type Annotation struct {
	AnchorID    uuid.UUID
	GroupKey    string
	DisplayText string
}

type entry struct {
	id         uuid.UUID
	status     Status
	generation uint64
	sourceText string
	groupKey   string
	badge      *html.Node
	text       string
}

// Store is the per-document side table. It is not safe for concurrent use:
// callers hold the document lock for every call.
type Store struct {
	entries    map[*html.Node]*entry
	badges     map[*html.Node]*entry
	generation uint64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		entries: make(map[*html.Node]*entry),
		badges:  make(map[*html.Node]*entry),
	}
}

func (s *Store) entry(n *html.Node) *entry {
	e, ok := s.entries[n]
	if !ok {
		e = &entry{id: uuid.New()}
		s.entries[n] = e
	}
	return e
}

// ID returns the stable identity of n, assigning one on first use.
func (s *Store) ID(n *html.Node) uuid.UUID {
	return s.entry(n).id
}

// State returns the current state of n.
func (s *Store) State(n *html.Node) State {
	e, ok := s.entries[n]
	if !ok {
		return State{Status: Unprocessed}
	}
	return State{ID: e.id, Status: e.status, SourceText: e.sourceText, GroupKey: e.groupKey}
}

// BeginProcessing marks n as Processing and returns the generation the work
// belongs to. It fails if n is already Processing.
func (s *Store) BeginProcessing(n *html.Node) (uint64, bool) {
	e := s.entry(n)
	if e.status == Processing {
		return 0, false
	}
	e.status = Processing
	e.generation = s.generation
	return s.generation, true
}

// EndProcessing releases the Processing marker taken in generation. A
// committed element stays Processed.
func (s *Store) EndProcessing(n *html.Node, generation uint64) {
	e, ok := s.entries[n]
	if !ok || e.generation != generation {
		return
	}
	if e.status == Processing {
		e.status = Unprocessed
	}
}

// Commit inserts the annotation after n and records it as Processed. It fails
// when n is not Processing in generation or is detached.
func (s *Store) Commit(n *html.Node, generation uint64, sourceText, groupKey, text string) (Annotation, bool) {
	e, ok := s.entries[n]
	if !ok || e.status != Processing || e.generation != generation {
		return Annotation{}, false
	}

	badge := dom.NewAnnotation(text)
	if !dom.InsertAfter(n, badge) {
		return Annotation{}, false
	}

	e.status = Processed
	e.sourceText = sourceText
	e.groupKey = groupKey
	e.badge = badge
	e.text = text
	s.badges[badge] = e
	return Annotation{AnchorID: e.id, GroupKey: groupKey, DisplayText: text}, true
}

// Retract removes n's annotation and clears its state.
func (s *Store) Retract(n *html.Node) bool {
	e, ok := s.entries[n]
	if !ok || e.status != Processed {
		return false
	}
	s.clear(e)
	return true
}

func (s *Store) clear(e *entry) {
	if e.badge != nil {
		dom.Remove(e.badge)
		delete(s.badges, e.badge)
	}
	e.status = Unprocessed
	e.sourceText = ""
	e.groupKey = ""
	e.badge = nil
	e.text = ""
}

// HasGroupUnder reports whether a direct child of parent is an annotation
// with groupKey. Deeper descendants are not considered.
func (s *Store) HasGroupUnder(parent *html.Node, groupKey string) bool {
	if parent == nil {
		return false
	}
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if e, ok := s.badges[c]; ok && e.groupKey == groupKey {
			return true
		}
	}
	return false
}

// IsAnnotation reports whether n is an annotation owned by this store.
func (s *Store) IsAnnotation(n *html.Node) bool {
	_, ok := s.badges[n]
	return ok
}

// RetractAll removes every annotation and forgets every element. Work still
// in flight from before the call can no longer commit.
func (s *Store) RetractAll() int {
	removed := 0
	for badge := range s.badges {
		dom.Remove(badge)
		removed++
	}
	s.entries = make(map[*html.Node]*entry)
	s.badges = make(map[*html.Node]*entry)
	s.generation++
	return removed
}

// Prune forgets elements that are no longer attached under root, removing
// any annotation they still own.
func (s *Store) Prune(root *html.Node) int {
	pruned := 0
	for n, e := range s.entries {
		if dom.IsAttached(root, n) {
			continue
		}
		if e.status == Processing {
			continue
		}
		s.clear(e)
		delete(s.entries, n)
		pruned++
	}
	return pruned
}

// Len returns the number of tracked elements.
func (s *Store) Len() int {
	return len(s.entries)
}

// Annotations lists the annotations under root in document order.
func (s *Store) Annotations(root *html.Node) []Annotation {
	var out []Annotation
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if e, ok := s.badges[n]; ok {
			out = append(out, Annotation{AnchorID: e.id, GroupKey: e.groupKey, DisplayText: e.text})
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}
