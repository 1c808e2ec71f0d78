package stm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlobalClockMonotonic(t *testing.T) {
	c := newGlobalClock()
	v0 := c.read()
	v1 := c.tick()
	assert.Greater(t, v1, v0)
	assert.Equal(t, v1, c.read())
}

func TestGlobalClockConcurrentTicksAreUnique(t *testing.T) {
	c := newGlobalClock()
	const n = 500
	seen := make(chan uint64, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			seen <- c.tick()
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[uint64]bool, n)
	for v := range seen {
		assert.False(t, unique[v], "tick() must never hand out the same version twice")
		unique[v] = true
	}
	assert.Len(t, unique, n)
}

func TestRefIDAllocatorUnique(t *testing.T) {
	a := newRefIDAllocator()
	first := a.nextID()
	second := a.nextID()
	assert.NotEqual(t, first, second)
}

func TestRefsShareTheProcessClock(t *testing.T) {
	// Two independently constructed refs must validate against the same
	// clock -- processClock is a package singleton, not per-Executor.
	x := NewRef(0)
	y := NewRef(0)
	before := processClock.read()
	x.AtomicSet(1)
	y.AtomicSet(1)
	after := processClock.read()
	assert.Greater(t, after, before)
}
