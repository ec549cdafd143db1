package factory

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Throttle is a FIFO admission gate with a fixed number of slots.
// A slot returns to the pool only after the cooldown following a call,
// so at most max calls run at once and the factory sees a paced stream.
type Throttle struct {
	sem      *semaphore.Weighted
	cooldown time.Duration

	inFlight atomic.Int64
	waiting  atomic.Int64
	peak     atomic.Int64
}

// NewThrottle creates a gate admitting max concurrent calls
func NewThrottle(max int, cooldown time.Duration) *Throttle {
	if max <= 0 {
		max = DefaultMaxInFlight
	}
	return &Throttle{
		sem:      semaphore.NewWeighted(int64(max)),
		cooldown: cooldown,
	}
}

// Do waits for a slot in arrival order, then runs fn.
// It returns ctx.Err() if the context ends while queued.
func (t *Throttle) Do(ctx context.Context, fn func(context.Context) error) error {
	t.waiting.Add(1)
	err := t.sem.Acquire(ctx, 1)
	t.waiting.Add(-1)
	if err != nil {
		return err
	}

	n := t.inFlight.Add(1)
	for {
		p := t.peak.Load()
		if n <= p || t.peak.CompareAndSwap(p, n) {
			break
		}
	}

	defer func() {
		t.inFlight.Add(-1)
		if t.cooldown <= 0 {
			t.sem.Release(1)
			return
		}
		time.AfterFunc(t.cooldown, func() { t.sem.Release(1) })
	}()

	return fn(ctx)
}

// InFlight returns the number of calls currently running
func (t *Throttle) InFlight() int {
	return int(t.inFlight.Load())
}

// Waiting returns the number of callers queued for a slot
func (t *Throttle) Waiting() int {
	return int(t.waiting.Load())
}

// Peak returns the highest InFlight value observed
func (t *Throttle) Peak() int {
	return int(t.peak.Load())
}
