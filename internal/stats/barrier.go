package stats

import "sync"

// Barrier is the Go idiom for gdnsd's dnspacket_wait_stats: the main
// thread blocks until every configured I/O thread has registered its
// counter block, the one cross-thread synchronization point on
// otherwise-lockless request paths (spec.md §4.6).
type Barrier struct {
	wg sync.WaitGroup
}

// NewBarrier returns a Barrier expecting n threads to register.
func NewBarrier(n int) *Barrier {
	b := &Barrier{}
	b.wg.Add(n)
	return b
}

// Registered marks one thread as having registered its counter block.
func (b *Barrier) Registered() { b.wg.Done() }

// Wait blocks until every expected thread has called Registered.
func (b *Barrier) Wait() { b.wg.Wait() }
