package scanning

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/jonathan/currency-annotator/internal/dom"
)

func scanIDs(t *testing.T, markup string) []string {
	t.Helper()
	doc, err := dom.ParseString(markup, "example.com")
	require.NoError(t, err)

	var ids []string
	doc.Do(func(root *html.Node) {
		for _, n := range NewScanner().Scan(root) {
			id, _ := dom.Attr(n, "id")
			ids = append(ids, id)
		}
	})
	return ids
}

func TestScan_CurrencyAndNumberInLeaf(t *testing.T) {
	ids := scanIDs(t, `<p id="a">Only €49 today</p><p id="b">Free delivery</p>`)
	assert.Equal(t, []string{"a"}, ids)
}

func TestScan_StructuralHints(t *testing.T) {
	ids := scanIDs(t, `
		<div id="hint" class="product-price"></div>
		<div id="testid" data-testid="price-label"></div>
		<div id="byid-price"></div>
		<div id="offer" class="offer-price__number"></div>
		<div id="none" class="title"></div>`)
	assert.Equal(t, []string{"hint", "testid", "byid-price", "offer"}, ids)
}

func TestScan_NumberWithCurrencyInParent(t *testing.T) {
	ids := scanIDs(t, `<div id="row">EUR <span id="num">1 299,00</span></div>`)
	assert.Equal(t, []string{"row", "num"}, ids)
}

func TestScan_NumberWithCurrencyInGrandparent(t *testing.T) {
	ids := scanIDs(t, `<div><span id="wrap">USD <i id="num">25</i></span></div>`)
	assert.Equal(t, []string{"wrap", "num"}, ids)
}

func TestScan_NumberWithoutCurrencyContext(t *testing.T) {
	ids := scanIDs(t, `<div><span id="qty">3</span> items in cart</div>`)
	assert.Empty(t, ids)
}

func TestScan_CurrencyOnlyNeedsNumberInContext(t *testing.T) {
	ids := scanIDs(t, `<div id="row"><span id="cur">€</span><span id="num">100</span></div>`)
	assert.Equal(t, []string{"cur", "num"}, ids)

	ids = scanIDs(t, `<div><span id="cur">Prices in EUR</span></div>`)
	assert.Empty(t, ids)
}

func TestScan_RejectsLongText(t *testing.T) {
	long := "€10 " + strings.Repeat("lorem ipsum ", 20)
	ids := scanIDs(t, `<p id="long">`+long+`</p>`)
	assert.Empty(t, ids)
}

func TestScan_RejectsOverLongContext(t *testing.T) {
	filler := strings.Repeat("x", 300)
	ids := scanIDs(t, `<div>EUR `+filler+`<span id="num">100</span></div>`)
	assert.Empty(t, ids)
}

func TestScan_SkipsNonContentElements(t *testing.T) {
	ids := scanIDs(t, `
		<script>var price = "€10";</script>
		<style>.x:after { content: "$5"; }</style>
		<select><option>€10</option></select>
		<textarea>€10</textarea>
		<div contenteditable><span id="edit">€10</span></div>
		<p id="ok">€10</p>`)
	assert.Equal(t, []string{"ok"}, ids)
}

func TestScan_IgnoresAnnotations(t *testing.T) {
	ids := scanIDs(t, `<p id="ok">€10</p><span class="ccx-inline">$11 | 43 PLN</span>`)
	assert.Equal(t, []string{"ok"}, ids)
}

func TestScan_AnnotationTextNotUsedAsContext(t *testing.T) {
	ids := scanIDs(t, `<div><span id="num">10</span><span class="ccx-inline">$11</span></div>`)
	assert.Empty(t, ids)
}

func TestScan_DeterministicAndDeduplicated(t *testing.T) {
	markup := `<div id="box" class="price">€10 <b id="b">€20</b></div>`
	first := scanIDs(t, markup)
	second := scanIDs(t, markup)

	assert.Equal(t, []string{"box", "b"}, first)
	assert.Equal(t, first, second)
}

func TestScan_DoesNotMutate(t *testing.T) {
	doc, err := dom.ParseString(`<p class="price">€10</p>`, "example.com")
	require.NoError(t, err)
	before := doc.String()

	doc.Do(func(root *html.Node) {
		NewScanner().Scan(root)
	})

	assert.Equal(t, before, doc.String())
}

func TestNewScanner_CustomSelectors(t *testing.T) {
	doc, err := dom.ParseString(`<div id="a" class="cost"></div><div id="b" class="price"></div>`, "example.com")
	require.NoError(t, err)

	doc.Do(func(root *html.Node) {
		nodes := NewScanner(".cost").Scan(root)
		require.Len(t, nodes, 1)
		id, _ := dom.Attr(nodes[0], "id")
		assert.Equal(t, "a", id)
	})
}
