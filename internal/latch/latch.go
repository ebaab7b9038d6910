// Package latch implements the per-order completion semaphore the grader
// uses to satisfy "wait" directives: a counting semaphore, released once
// per client the instant an order is known to be fully handled, so any
// client may wait on any order regardless of who submitted it.
package latch

import (
	"time"

	"github.com/rs/zerolog"
)

// Latch is a counting semaphore with a fixed capacity equal to the
// client count, matching the original engine's "release N times" design.
type Latch struct {
	ch chan struct{}
}

// New returns a Latch sized for capacity releases (one per client).
func New(capacity int) *Latch {
	return &Latch{ch: make(chan struct{}, capacity)}
}

// Release signals the latch capacity times. It must be called at most
// once per Latch; the channel buffer is sized exactly to capacity so
// this never blocks.
func (l *Latch) Release(capacity int) {
	for i := 0; i < capacity; i++ {
		l.ch <- struct{}{}
	}
}

// Acquire blocks until a release is available, escalating log warnings
// at 100ms and 1s before waiting indefinitely — the same staged-timeout
// shape as the original grader's try_acquire_for chain.
func (l *Latch) Acquire(log zerolog.Logger, orderID uint32) {
	select {
	case <-l.ch:
		return
	case <-time.After(100 * time.Millisecond):
	}

	log.Warn().Uint32("order_id", orderID).Msg("waiting for order took more than 100ms")
	select {
	case <-l.ch:
		return
	case <-time.After(900 * time.Millisecond):
	}

	log.Warn().Uint32("order_id", orderID).Msg("waiting for order took more than 1000ms, possible deadlock")
	<-l.ch
}
