package annotation

import (
	"context"
	"log"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/currency-annotator/internal/dom"
	"github.com/jonathan/currency-annotator/internal/extract"
	"github.com/jonathan/currency-annotator/internal/formatting"
	"github.com/jonathan/currency-annotator/internal/scanning"
	"github.com/jonathan/currency-annotator/internal/types"
)

// DefaultConcurrency bounds how many candidates wait for rates at once.
const DefaultConcurrency = 16

// RateSource resolves a base currency against target symbols.
type RateSource interface {
	GetRates(ctx context.Context, base string, targets []string) (map[string]float64, error)
}

// Outcome is what happened to one candidate.
type Outcome int

const (
	// OutcomeSkipped means the element is not a price or left the document.
	OutcomeSkipped Outcome = iota
	// OutcomeBusy means another pass is already processing the element.
	OutcomeBusy
	// OutcomeUnchanged means the existing annotation still matches the text.
	OutcomeUnchanged
	// OutcomeNoValue means no currency or amount could be extracted.
	OutcomeNoValue
	// OutcomeNoTargets means every target equals the detected currency.
	OutcomeNoTargets
	// OutcomeDuplicate means a sibling already shows the same price.
	OutcomeDuplicate
	// OutcomeNoRates means the lookup returned no rate for any target.
	OutcomeNoRates
	// OutcomeFailed means the rate lookup failed; the next scan retries.
	OutcomeFailed
	// OutcomeAnnotated means a new annotation was inserted.
	OutcomeAnnotated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBusy:
		return "busy"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeNoValue:
		return "no-value"
	case OutcomeNoTargets:
		return "no-targets"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeNoRates:
		return "no-rates"
	case OutcomeFailed:
		return "failed"
	case OutcomeAnnotated:
		return "annotated"
	default:
		return "skipped"
	}
}

// ScanResult summarizes one pass over a document.
type ScanResult struct {
	Candidates int
	Annotated  int
	Retracted  int
	Unchanged  int
	Duplicates int
	Failed     int
	Skipped    int
}

// Config configures an Engine.
type Config struct {
	Options     types.Options
	Locale      string
	Concurrency int
	Selectors   []string
	Verbose     bool
}

// Engine annotates the prices of one document.
type Engine struct {
	doc       *dom.Document
	rates     RateSource
	scanner   *scanning.Scanner
	formatter *formatting.Formatter
	store     *Store

	concurrency int
	verbose     bool

	optMu   sync.RWMutex
	options types.Options
}

// NewEngine creates an Engine for doc.
func NewEngine(doc *dom.Document, rates RateSource, cfg Config) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Engine{
		doc:         doc,
		rates:       rates,
		scanner:     scanning.NewScanner(cfg.Selectors...),
		formatter:   formatting.NewFormatter(cfg.Locale),
		store:       NewStore(),
		concurrency: cfg.Concurrency,
		verbose:     cfg.Verbose,
		options:     cfg.Options.Clone(),
	}
}

// SetOptions replaces the conversion options used by later candidates.
func (e *Engine) SetOptions(opts types.Options) {
	e.optMu.Lock()
	e.options = opts.Clone()
	e.optMu.Unlock()
}

// Options returns the options in use.
func (e *Engine) Options() types.Options {
	e.optMu.RLock()
	defer e.optMu.RUnlock()
	return e.options.Clone()
}

// Document returns the annotated document.
func (e *Engine) Document() *dom.Document {
	return e.doc
}

// Annotations lists the current annotations in document order.
func (e *Engine) Annotations() []Annotation {
	var out []Annotation
	e.doc.Do(func(root *html.Node) {
		out = e.store.Annotations(root)
	})
	return out
}

// State returns the processing state of n.
func (e *Engine) State(n *html.Node) State {
	var st State
	e.doc.Do(func(*html.Node) {
		st = e.store.State(n)
	})
	return st
}

// ClearAll removes every annotation and all processing state.
func (e *Engine) ClearAll() int {
	var removed int
	e.doc.Do(func(*html.Node) {
		removed = e.store.RetractAll()
	})
	if e.verbose && removed > 0 {
		log.Printf("[SCAN] Cleared %d annotations on %s", removed, e.doc.Host())
	}
	return removed
}

// Scan processes every candidate of the document and waits for all of them
// to settle. Hidden documents are left alone.
func (e *Engine) Scan(ctx context.Context) ScanResult {
	var result ScanResult
	if !e.doc.Visible() {
		return result
	}

	var candidates []*html.Node
	e.doc.Do(func(root *html.Node) {
		e.store.Prune(root)
		scope := dom.Body(root)
		if scope == nil {
			scope = root
		}
		candidates = e.scanner.Scan(scope)
	})
	result.Candidates = len(candidates)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for _, node := range candidates {
		g.Go(func() error {
			outcome, retracted := e.processSafely(ctx, node)
			mu.Lock()
			result.add(outcome, retracted)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if e.verbose {
		log.Printf("[SCAN] %s: %d candidates, %d annotated, %d retracted, %d unchanged, %d failed",
			e.doc.Host(), result.Candidates, result.Annotated, result.Retracted, result.Unchanged, result.Failed)
	}
	return result
}

func (r *ScanResult) add(outcome Outcome, retracted bool) {
	if retracted {
		r.Retracted++
	}
	switch outcome {
	case OutcomeAnnotated:
		r.Annotated++
	case OutcomeUnchanged:
		r.Unchanged++
	case OutcomeDuplicate:
		r.Duplicates++
	case OutcomeFailed:
		r.Failed++
	default:
		r.Skipped++
	}
}

// processSafely keeps one misbehaving candidate from taking down the batch.
func (e *Engine) processSafely(ctx context.Context, node *html.Node) (outcome Outcome, retracted bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[SCAN] Candidate processing panicked: %v", r)
			outcome = OutcomeFailed
		}
	}()
	return e.process(ctx, node)
}

// Process runs the annotation decision for a single element.
func (e *Engine) Process(ctx context.Context, node *html.Node) Outcome {
	outcome, _ := e.processSafely(ctx, node)
	return outcome
}

// plan is the work decided under the document lock before rates are requested.
type plan struct {
	value      types.DetectedValue
	groupKey   string
	targets    []string
	generation uint64
}

func (e *Engine) process(ctx context.Context, node *html.Node) (Outcome, bool) {
	var p *plan
	var outcome Outcome
	var retracted bool
	e.doc.Do(func(root *html.Node) {
		p, outcome, retracted = e.prepare(root, node)
	})
	if p == nil {
		return outcome, retracted
	}
	defer e.doc.Do(func(*html.Node) {
		e.store.EndProcessing(node, p.generation)
	})

	rates, err := e.rates.GetRates(ctx, p.value.Currency, p.targets)
	if err != nil {
		if e.verbose {
			log.Printf("[SCAN] Rates for %s unavailable: %v", p.groupKey, err)
		}
		return OutcomeFailed, retracted
	}

	e.doc.Do(func(root *html.Node) {
		outcome = e.commit(root, node, p, rates)
	})
	return outcome, retracted
}

func (e *Engine) prepare(root, node *html.Node) (*plan, Outcome, bool) {
	if !dom.IsEligible(node) || !dom.IsAttached(root, node) {
		return nil, OutcomeSkipped, false
	}

	state := e.store.State(node)
	text := strings.TrimSpace(dom.TextWithoutAnnotations(node, 0))
	if text == "" || dom.RuneLen(text) > scanning.MaxLeafText ||
		(!extract.HasCurrencyMarker(text) && !extract.HasNumber(text)) {
		// A price that disappeared takes its annotation with it.
		if state.Status == Processed {
			return nil, OutcomeSkipped, e.store.Retract(node)
		}
		return nil, OutcomeSkipped, false
	}

	value, found := resolve(node, text)

	retracted := false
	switch state.Status {
	case Processing:
		return nil, OutcomeBusy, false
	case Processed:
		if state.SourceText == value.SourceText {
			return nil, OutcomeUnchanged, false
		}
		retracted = e.store.Retract(node)
	}

	if !found {
		return nil, OutcomeNoValue, retracted
	}

	targets := e.targetsFor(value.Currency)
	if len(targets) == 0 {
		return nil, OutcomeNoTargets, retracted
	}

	groupKey := value.GroupKey()
	if e.store.HasGroupUnder(node.Parent, groupKey) {
		return nil, OutcomeDuplicate, retracted
	}

	generation, ok := e.store.BeginProcessing(node)
	if !ok {
		return nil, OutcomeBusy, retracted
	}
	return &plan{value: value, groupKey: groupKey, targets: targets, generation: generation}, OutcomeSkipped, retracted
}

func (e *Engine) commit(root, node *html.Node, p *plan, rates map[string]float64) Outcome {
	conversion := e.formatter.BuildConversion(p.value.Amount, p.targets, rates)
	if conversion == "" {
		return OutcomeNoRates
	}
	if !dom.IsAttached(root, node) {
		return OutcomeSkipped
	}
	if e.store.HasGroupUnder(node.Parent, p.groupKey) {
		return OutcomeDuplicate
	}
	if _, ok := e.store.Commit(node, p.generation, p.value.SourceText, p.groupKey, conversion); !ok {
		return OutcomeSkipped
	}
	if e.verbose {
		log.Printf("[SCAN] Annotated %s -> %s", p.groupKey, conversion)
	}
	return OutcomeAnnotated
}

// targetsFor returns the configured targets other than currency, in order.
func (e *Engine) targetsFor(currency string) []string {
	e.optMu.RLock()
	defer e.optMu.RUnlock()
	targets := make([]string, 0, len(e.options.Targets))
	for _, code := range e.options.Targets {
		if code != currency {
			targets = append(targets, code)
		}
	}
	return targets
}
