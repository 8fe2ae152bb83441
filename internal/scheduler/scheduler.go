// Package scheduler turns a stream of document change notifications into
// debounced scans, and owns the enabled/disabled lifecycle of a document's
// annotations.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jonathan/currency-annotator/internal/annotation"
	"github.com/jonathan/currency-annotator/internal/dom"
)

const (
	// DefaultDebounce is how long notifications are coalesced before a scan.
	DefaultDebounce = 400 * time.Millisecond
	// DefaultIdleTimeout bounds how long a scan waits for the host to go idle.
	DefaultIdleTimeout = 1000 * time.Millisecond
)

// State is the scheduling state of a Scheduler.
type State int

const (
	// Idle means no scan is pending.
	Idle State = iota
	// Debouncing means a change arrived and the debounce timer is running.
	Debouncing
	// ScheduledIdle means a scan is waiting for the host to go idle.
	ScheduledIdle
	// RunningNow means a scan is in progress.
	RunningNow
)

func (s State) String() string {
	switch s {
	case Debouncing:
		return "debouncing"
	case ScheduledIdle:
		return "scheduled-idle"
	case RunningNow:
		return "running"
	default:
		return "idle"
	}
}

// Engine is the part of annotation.Engine the scheduler drives.
type Engine interface {
	Scan(ctx context.Context) annotation.ScanResult
	ClearAll() int
}

// Config configures a Scheduler. Zero durations use the defaults.
type Config struct {
	Debounce    time.Duration
	IdleTimeout time.Duration
	// Idle defers each debounced scan until the host is idle. Nil waits on
	// the document's idle signal via TimeoutIdle.
	Idle    IdleRequester
	Verbose bool
	// OnScan is called after every completed scan.
	OnScan func(annotation.ScanResult)
}

// Scheduler debounces change notifications into scans of one document.
type Scheduler struct {
	doc    *dom.Document
	engine Engine
	cfg    Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	enabled     bool
	closed      bool
	debouncing  bool
	phase       State
	timer       *time.Timer
	stopObserve func()
}

// New creates a disabled Scheduler for doc.
func New(ctx context.Context, doc *dom.Document, engine Engine, cfg Config) *Scheduler {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Idle == nil {
		cfg.Idle = TimeoutIdle{Signal: doc.IdleSignal()}
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		doc:    doc,
		engine: engine,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// State reports the current scheduling state. A pending debounce wins over
// a scan that is already waiting or running.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.debouncing {
		return Debouncing
	}
	return s.phase
}

// Enabled reports whether the document is being annotated.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Notify records that the document changed. Notifications that arrive while
// a debounce is pending are absorbed into it.
func (s *Scheduler) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled || s.closed || s.debouncing {
		return
	}
	s.debouncing = true
	s.wg.Add(1)
	s.timer = time.AfterFunc(s.cfg.Debounce, s.fire)
}

func (s *Scheduler) fire() {
	defer s.wg.Done()

	s.mu.Lock()
	s.debouncing = false
	s.timer = nil
	if !s.enabled || s.closed || !s.doc.Visible() {
		s.mu.Unlock()
		return
	}
	s.phase = ScheduledIdle
	s.mu.Unlock()

	s.cfg.Idle.RequestIdle(s.ctx, s.cfg.IdleTimeout, s.run)
	s.mu.Lock()
	if s.phase == ScheduledIdle {
		s.phase = Idle
	}
	s.mu.Unlock()
}

func (s *Scheduler) run() {
	s.mu.Lock()
	if !s.enabled || s.closed {
		s.mu.Unlock()
		return
	}
	s.phase = RunningNow
	s.mu.Unlock()

	s.scan()

	s.mu.Lock()
	s.phase = Idle
	s.mu.Unlock()
}

func (s *Scheduler) scan() {
	result := s.engine.Scan(s.ctx)
	if s.cfg.Verbose {
		log.Printf("[SCHEDULER] Scan of %s finished: %d candidates, %d annotated",
			s.doc.Host(), result.Candidates, result.Annotated)
	}
	if s.cfg.OnScan != nil {
		s.cfg.OnScan(result)
	}
}

// SetEnabled switches annotation on or off. Enabling scans immediately and
// starts watching the document; disabling removes every annotation and stops
// watching. Repeating the current value does nothing.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	if s.closed || s.enabled == enabled {
		s.mu.Unlock()
		return
	}
	s.enabled = enabled

	if !enabled {
		s.stopTimerLocked()
		stop := s.stopObserve
		s.stopObserve = nil
		s.mu.Unlock()
		if stop != nil {
			stop()
		}
		removed := s.engine.ClearAll()
		if s.cfg.Verbose {
			log.Printf("[SCHEDULER] Disabled on %s, removed %d annotations", s.doc.Host(), removed)
		}
		return
	}
	s.mu.Unlock()

	if s.cfg.Verbose {
		log.Printf("[SCHEDULER] Enabled on %s", s.doc.Host())
	}
	s.Rescan()

	stop := s.doc.Observe(s.Notify)
	s.mu.Lock()
	if s.enabled && !s.closed && s.stopObserve == nil {
		s.stopObserve = stop
		stop = nil
	}
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Rescan scans right away when enabled, bypassing the debounce.
func (s *Scheduler) Rescan() {
	s.mu.Lock()
	ok := s.enabled && !s.closed
	s.mu.Unlock()
	if ok {
		s.scan()
	}
}

// Reset removes every annotation and, when enabled, scans again from scratch.
func (s *Scheduler) Reset() {
	if !s.Enabled() {
		return
	}
	s.engine.ClearAll()
	s.Rescan()
}

func (s *Scheduler) stopTimerLocked() {
	if s.timer != nil && s.timer.Stop() {
		s.wg.Done()
	}
	s.timer = nil
	s.debouncing = false
}

// Close stops observing, cancels pending work and waits for it to finish.
// Annotations already in the document are left in place.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopTimerLocked()
	stop := s.stopObserve
	s.stopObserve = nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.cancel()
	s.wg.Wait()
}
