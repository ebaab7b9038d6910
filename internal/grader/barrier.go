package grader

import "sync"

// syncBarrier is a one-shot rendezvous point for a fixed set of
// goroutines: arrive blocks until every expected arrival has happened,
// then releases all of them together. It backs the script's "."
// directive, which synchronizes a chosen set of client threads.
type syncBarrier struct {
	mu      sync.Mutex
	n       int
	arrived int
	release chan struct{}
}

func newSyncBarrier(n int) *syncBarrier {
	return &syncBarrier{n: n, release: make(chan struct{})}
}

func (b *syncBarrier) arrive() {
	b.mu.Lock()
	b.arrived++
	if b.arrived == b.n {
		close(b.release)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	<-b.release
}
