package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/jonathan/currency-annotator/internal/dom"
)

func parseBody(t *testing.T, markup string) *html.Node {
	t.Helper()
	doc, err := dom.ParseString(markup, "example.com")
	require.NoError(t, err)
	var root *html.Node
	doc.Do(func(r *html.Node) { root = r })
	return root
}

func TestStore_LifeCycle(t *testing.T) {
	root := parseBody(t, `<div id="d"><p id="p">€100</p></div>`)
	p := byID(root, "p")
	s := NewStore()

	assert.Equal(t, Unprocessed, s.State(p).Status)

	gen, ok := s.BeginProcessing(p)
	require.True(t, ok)
	_, again := s.BeginProcessing(p)
	assert.False(t, again)
	assert.Equal(t, Processing, s.State(p).Status)

	a, ok := s.Commit(p, gen, "€100", "EUR:100", "$110")
	require.True(t, ok)
	s.EndProcessing(p, gen)

	st := s.State(p)
	assert.Equal(t, Processed, st.Status)
	assert.Equal(t, "€100", st.SourceText)
	assert.Equal(t, st.ID, a.AnchorID)
	assert.Equal(t, st.ID, s.ID(p))
	assert.True(t, s.HasGroupUnder(byID(root, "d"), "EUR:100"))
	assert.False(t, s.HasGroupUnder(byID(root, "d"), "EUR:120"))
	require.NotNil(t, p.NextSibling)
	assert.True(t, s.IsAnnotation(p.NextSibling))
	assert.True(t, dom.IsAnnotation(p.NextSibling))

	assert.True(t, s.Retract(p))
	assert.False(t, s.Retract(p))
	assert.Nil(t, p.NextSibling)
	assert.Equal(t, Unprocessed, s.State(p).Status)
}

func TestStore_EndProcessingWithoutCommit(t *testing.T) {
	root := parseBody(t, `<p id="p">€100</p>`)
	p := byID(root, "p")
	s := NewStore()

	gen, ok := s.BeginProcessing(p)
	require.True(t, ok)
	s.EndProcessing(p, gen)

	assert.Equal(t, Unprocessed, s.State(p).Status)
	_, ok = s.BeginProcessing(p)
	assert.True(t, ok)
}

func TestStore_RetractAllInvalidatesInFlightWork(t *testing.T) {
	root := parseBody(t, `<p id="a">€1</p><p id="b">€2</p>`)
	a, b := byID(root, "a"), byID(root, "b")
	s := NewStore()

	genA, _ := s.BeginProcessing(a)
	_, ok := s.Commit(a, genA, "€1", "EUR:1", "$1")
	require.True(t, ok)
	genB, _ := s.BeginProcessing(b)

	assert.Equal(t, 1, s.RetractAll())
	assert.Zero(t, s.Len())
	assert.Empty(t, s.Annotations(root))

	_, ok = s.Commit(b, genB, "€2", "EUR:2", "$2")
	assert.False(t, ok)
	assert.Nil(t, b.NextSibling)
}

func TestStore_PruneDetached(t *testing.T) {
	root := parseBody(t, `<div><p id="a">€1</p><p id="b">€2</p></div>`)
	a, b := byID(root, "a"), byID(root, "b")
	s := NewStore()

	genA, _ := s.BeginProcessing(a)
	_, ok := s.Commit(a, genA, "€1", "EUR:1", "$1")
	require.True(t, ok)
	s.BeginProcessing(b)

	a.Parent.RemoveChild(a)
	b.Parent.RemoveChild(b)

	assert.Equal(t, 1, s.Prune(root))
	assert.Equal(t, 1, s.Len())
	assert.Empty(t, s.Annotations(root))
}

func TestStore_AnnotationsInDocumentOrder(t *testing.T) {
	root := parseBody(t, `<p id="a">€1</p><p id="b">€2</p>`)
	a, b := byID(root, "a"), byID(root, "b")
	s := NewStore()

	genB, _ := s.BeginProcessing(b)
	s.Commit(b, genB, "€2", "EUR:2", "$2")
	genA, _ := s.BeginProcessing(a)
	s.Commit(a, genA, "€1", "EUR:1", "$1")

	got := s.Annotations(root)
	require.Len(t, got, 2)
	assert.Equal(t, "EUR:1", got[0].GroupKey)
	assert.Equal(t, "EUR:2", got[1].GroupKey)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "unprocessed", Unprocessed.String())
	assert.Equal(t, "processing", Processing.String())
	assert.Equal(t, "processed", Processed.String())
	assert.Equal(t, "duplicate", OutcomeDuplicate.String())
}
