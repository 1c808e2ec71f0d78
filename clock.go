package stm

import "go.uber.org/atomic"

// globalClock is a process-wide monotonically non-decreasing counter of
// commit versions. Every Executor shares one clock; NewExecutor's callers
// never construct a clock directly.
//
// Wrap-around is not handled: a 64-bit counter is assumed never to overflow
// in practice.
type globalClock struct {
	version atomic.Uint64
}

func newGlobalClock() *globalClock {
	return &globalClock{}
}

// processClock is the single process-wide clock every Ref's publication
// version and every Executor's commit pipeline advance and validate
// against, regardless of how many Executor values a program constructs --
// refs are shared across Executors, so their version numbers must come
// from a shared source of truth.
var processClock = newGlobalClock()

// read performs an acquire-ordered load of the current clock value. A
// transaction's readVersion is taken this way at Begin.
func (c *globalClock) read() uint64 {
	return c.version.Load()
}

// tick increments the clock and returns the post-increment value. Callers
// must publish the returned version into a ref only after acquiring that
// ref's write lock, and before releasing it -- see commit.go.
func (c *globalClock) tick() uint64 {
	return c.version.Add(1)
}

// refIDAllocator hands out the stable, monotonically increasing integer ids
// refs use to derive the deterministic lock-acquisition order the commit
// pipeline requires. Grounded on mvcc-map's nextVersionID/nextTxID
// atomic.Uint64 counters.
type refIDAllocator struct {
	next atomic.Uint64
}

func newRefIDAllocator() *refIDAllocator {
	return &refIDAllocator{}
}

func (a *refIDAllocator) nextID() uint64 {
	return a.next.Add(1)
}
