// Package evallimiter implements the evaluation rate limiter described in
// §5's concurrency model: a counting semaphore with a FIFO wait queue,
// bounding how many relevance/faithfulness evaluation calls may run at once
// across a run's Originality and Impact phases. It is independent of
// pkg/ratelimit's RateLimitGate, which governs ingress rather than internal
// evaluation fan-out.
package evallimiter

import (
	"context"
	"fmt"
)

// Limiter is a counting semaphore implemented as a buffered channel of
// tokens; Go's channel semantics give the FIFO wait queue for free since
// goroutines blocked on a channel receive are released in the order they
// started waiting.
type Limiter struct {
	tokens chan struct{}
}

// New returns a Limiter admitting at most max concurrent holders.
func New(max int) *Limiter {
	if max < 1 {
		max = 1
	}
	tokens := make(chan struct{}, max)
	for i := 0; i < max; i++ {
		tokens <- struct{}{}
	}
	return &Limiter{tokens: tokens}
}

// Acquire blocks until a slot is free or ctx is cancelled, returning a
// release function that MUST be called exactly once to return the slot.
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case <-l.tokens:
		return func() { l.tokens <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("evallimiter: acquire cancelled: %w", ctx.Err())
	}
}

// Capacity returns the configured concurrency limit.
func (l *Limiter) Capacity() int {
	return cap(l.tokens)
}

// Available returns the number of slots currently free. It is a point-in-
// time snapshot useful for diagnostics, not for synchronization.
func (l *Limiter) Available() int {
	return len(l.tokens)
}
