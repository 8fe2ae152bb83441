// Package session binds one document to the settings store: it loads options
// and the site's enabled flag, runs the scheduler, and follows later changes
// to either.
package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonathan/currency-annotator/internal/annotation"
	"github.com/jonathan/currency-annotator/internal/dom"
	"github.com/jonathan/currency-annotator/internal/scheduler"
	"github.com/jonathan/currency-annotator/internal/settings"
)

// Options configures a Session. A nil Idle waits on the document's idle
// signal.
type Options struct {
	Locale      string
	Concurrency int
	Selectors   []string
	Debounce    time.Duration
	IdleTimeout time.Duration
	Idle        scheduler.IdleRequester
	OnScan      func(annotation.ScanResult)
	Verbose     bool
}

// Session annotates one document for as long as it is open.
type Session struct {
	doc       *dom.Document
	settings  *settings.Settings
	engine    *annotation.Engine
	scheduler *scheduler.Scheduler
	verbose   bool

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopWatch func()

	mu      sync.Mutex
	pending map[string]bool
	wake    chan struct{}
}

// Start loads the stored settings, scans right away if the document's host is
// enabled, and follows store changes until Close.
func Start(ctx context.Context, doc *dom.Document, st *settings.Settings, rates annotation.RateSource, opts Options) (*Session, error) {
	options, err := st.GetOptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load options: %w", err)
	}
	enabled, err := st.GetSiteEnabled(ctx, doc.Host())
	if err != nil {
		return nil, fmt.Errorf("failed to load site state: %w", err)
	}

	engine := annotation.NewEngine(doc, rates, annotation.Config{
		Options:     options,
		Locale:      opts.Locale,
		Concurrency: opts.Concurrency,
		Selectors:   opts.Selectors,
		Verbose:     opts.Verbose,
	})

	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		doc:      doc,
		settings: st,
		engine:   engine,
		scheduler: scheduler.New(ctx, doc, engine, scheduler.Config{
			Debounce:    opts.Debounce,
			IdleTimeout: opts.IdleTimeout,
			Idle:        opts.Idle,
			Verbose:     opts.Verbose,
			OnScan:      opts.OnScan,
		}),
		verbose: opts.Verbose,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]bool),
		wake:    make(chan struct{}, 1),
	}

	s.stopWatch = st.Store().Watch(s.onChange)
	s.wg.Add(1)
	go s.loop()

	if s.verbose {
		log.Printf("[SESSION] Started on %s (enabled=%t, targets=%v)", doc.Host(), enabled, options.Targets)
	}
	if enabled {
		s.scheduler.SetEnabled(true)
	}
	return s, nil
}

// Engine returns the session's annotation engine.
func (s *Session) Engine() *annotation.Engine {
	return s.engine
}

// Scheduler returns the session's scheduler.
func (s *Session) Scheduler() *scheduler.Scheduler {
	return s.scheduler
}

// Enabled reports whether the document is currently annotated.
func (s *Session) Enabled() bool {
	return s.scheduler.Enabled()
}

// onChange queues a store change. Store callbacks must not block, so the
// work happens on the session's own goroutine.
func (s *Session) onChange(key string) {
	if key != settings.OptionsKey && key != settings.SiteStateKey {
		return
	}
	s.mu.Lock()
	s.pending[key] = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		}

		s.mu.Lock()
		options, siteState := s.pending[settings.OptionsKey], s.pending[settings.SiteStateKey]
		clear(s.pending)
		s.mu.Unlock()

		if options {
			s.reloadOptions()
		}
		if siteState {
			s.reloadSiteState()
		}
	}
}

func (s *Session) reloadOptions() {
	options, err := s.settings.GetOptions(s.ctx)
	if err != nil {
		log.Printf("[SESSION] Failed to reload options: %v", err)
		return
	}
	s.engine.SetOptions(options)
	if s.verbose {
		log.Printf("[SESSION] Options changed on %s: targets=%v", s.doc.Host(), options.Targets)
	}
	s.scheduler.Reset()
}

func (s *Session) reloadSiteState() {
	enabled, err := s.settings.GetSiteEnabled(s.ctx, s.doc.Host())
	if err != nil {
		log.Printf("[SESSION] Failed to reload site state: %v", err)
		return
	}
	if s.verbose && enabled != s.scheduler.Enabled() {
		log.Printf("[SESSION] %s enabled=%t", s.doc.Host(), enabled)
	}
	s.scheduler.SetEnabled(enabled)
}

// Close stops following the store and shuts the scheduler down. Annotations
// stay in the document.
func (s *Session) Close() {
	if s.stopWatch != nil {
		s.stopWatch()
	}
	s.cancel()
	s.wg.Wait()
	s.scheduler.Close()
}
