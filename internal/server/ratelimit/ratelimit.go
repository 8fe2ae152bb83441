// Package ratelimit throttles clients with per-client, per-route token
// buckets.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	capacity float64
	perSec   float64
	tokens   float64
	last     time.Time
	used     time.Time
}

// refill tops the bucket up for the time elapsed since the last call.
func (b *bucket) refill(now time.Time) {
	b.tokens = min(b.capacity, b.tokens+now.Sub(b.last).Seconds()*b.perSec)
	b.last = now
}

// fullAt is when the bucket will be back to capacity.
func (b *bucket) fullAt(now time.Time) time.Time {
	missing := b.capacity - b.tokens
	if missing <= 0 {
		return now
	}
	return now.Add(time.Duration(missing / b.perSec * float64(time.Second)))
}

// Info describes the limit applied to one request.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter keeps one token bucket per client and route.
type Limiter struct {
	cfg *Config
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a Limiter. A nil config limits nothing.
func NewLimiter(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = &Config{}
	}
	l := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	if cfg.Enabled && cfg.CleanupInterval > 0 {
		go l.sweepEvery(cfg.CleanupInterval)
	}
	return l
}

// Allow takes a token for clientID on method and path.
func (l *Limiter) Allow(clientID, path, method string) (bool, Info) {
	if !l.cfg.Enabled || l.cfg.Allow[clientID] {
		return true, Info{Allowed: true}
	}
	if l.cfg.Deny[clientID] {
		return false, Info{}
	}

	rule := l.cfg.ruleFor(method, path)
	if rule.Limit <= 0 || rule.Window <= 0 {
		return true, Info{Allowed: true}
	}

	now := l.now()
	key := clientID + " " + method + " " + rule.Method + rule.Path
	if rule.Path == "" {
		key = clientID + " " + method + " " + path
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		capacity := rule.Burst
		if capacity <= 0 {
			capacity = rule.Limit
		}
		b = &bucket{
			capacity: float64(capacity),
			perSec:   float64(rule.Limit) / rule.Window.Seconds(),
			tokens:   float64(capacity),
			last:     now,
		}
		l.buckets[key] = b
	}
	b.refill(now)
	b.used = now

	info := Info{Limit: rule.Limit}
	if b.tokens >= 1 {
		b.tokens--
		info.Allowed = true
	} else {
		info.RetryAfter = time.Duration((1 - b.tokens) / b.perSec * float64(time.Second))
	}
	info.Remaining = int(b.tokens)
	info.ResetTime = b.fullAt(now)
	return info.Allowed, info
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) sweepEvery(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

// sweep drops buckets that have been idle longer than IdleExpiry.
func (l *Limiter) sweep() {
	expiry := l.cfg.IdleExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	cutoff := l.now().Add(-expiry)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.used.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Stop stops the background sweep.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}
