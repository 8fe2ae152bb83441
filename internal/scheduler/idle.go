package scheduler

import (
	"context"
	"time"
)

// IdleRequester runs fn once the host has spare time, or after timeout at the
// latest. It returns after fn has run or ctx is done.
type IdleRequester interface {
	RequestIdle(ctx context.Context, timeout time.Duration, fn func())
}

// TimeoutIdle waits for a value on Signal or for the timeout, whichever comes
// first. A nil Signal always waits for the timeout.
type TimeoutIdle struct {
	Signal <-chan struct{}
}

// RequestIdle implements IdleRequester.
func (t TimeoutIdle) RequestIdle(ctx context.Context, timeout time.Duration, fn func()) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-t.Signal:
	case <-timer.C:
	case <-ctx.Done():
		return
	}
	fn()
}

// Immediate runs fn right away, for hosts without an idle facility.
type Immediate struct{}

// RequestIdle implements IdleRequester.
func (Immediate) RequestIdle(ctx context.Context, _ time.Duration, fn func()) {
	if ctx.Err() == nil {
		fn()
	}
}
