package stm

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetRoundTrip(t *testing.T) {
	x := NewRef("a")
	err := Atomically(func(ctx context.Context, tx *Tx) error {
		assert.Equal(t, "a", x.Get(tx))
		x.Set(tx, "b")
		assert.Equal(t, "b", x.Get(tx), "a transaction must see its own uncommitted write")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "b", x.AtomicGet())
}

func TestGetAndSet(t *testing.T) {
	x := NewRef(1)
	var prev int
	err := Atomically(func(ctx context.Context, tx *Tx) error {
		prev = x.GetAndSet(tx, 2)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, prev)
	assert.Equal(t, 2, x.AtomicGet())
}

func TestAlterAndGetAndGetAndAlter(t *testing.T) {
	x := NewRef(10)
	var altered, prev int
	err := Atomically(func(ctx context.Context, tx *Tx) error {
		altered = x.AlterAndGet(tx, func(n int) int { return n + 1 })
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 11, altered)

	err = Atomically(func(ctx context.Context, tx *Tx) error {
		prev = x.GetAndAlter(tx, func(n int) int { return n * 2 })
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 11, prev)
	assert.Equal(t, 22, x.AtomicGet())
}

func TestCompareAndSwap(t *testing.T) {
	x := NewRef(1)
	var swapped bool
	err := Atomically(func(ctx context.Context, tx *Tx) error {
		swapped = x.CompareAndSwap(tx, 1, 2)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, swapped)
	assert.Equal(t, 2, x.AtomicGet())

	err = Atomically(func(ctx context.Context, tx *Tx) error {
		swapped = x.CompareAndSwap(tx, 1, 3)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, swapped)
	assert.Equal(t, 2, x.AtomicGet())
}

func TestCommuteDegradesOnExistingDependency(t *testing.T) {
	x := NewRef(0)
	err := Atomically(func(ctx context.Context, tx *Tx) error {
		x.Get(tx) // establish an explicit read dependency first
		x.Commute(tx, func(n int) int { return n + 1 })
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, x.AtomicGet())
}

func TestCommuteDeferredWithoutConflict(t *testing.T) {
	x := NewRef(0)
	var wg sync.WaitGroup
	wg.Add(20)
	for i := 0; i < 20; i++ {
		go func() {
			defer wg.Done()
			err := Atomically(func(ctx context.Context, tx *Tx) error {
				x.Commute(tx, func(n int) int { return n + 1 })
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, x.AtomicGet())
}

func TestAtomicFamily(t *testing.T) {
	x := NewRef(5)
	assert.Equal(t, 5, x.AtomicGet())
	assert.Equal(t, 5, x.AtomicWeakGet())

	x.AtomicSet(6)
	assert.Equal(t, 6, x.AtomicGet())

	ok := x.AtomicCompareAndSet(6, 7)
	assert.True(t, ok)
	ok = x.AtomicCompareAndSet(6, 8)
	assert.False(t, ok)
	assert.Equal(t, 7, x.AtomicGet())

	next := x.AtomicAlterAndGet(func(n int) int { return n * 10 })
	assert.Equal(t, 70, next)

	prev := x.AtomicGetAndAlter(func(n int) int { return n + 1 })
	assert.Equal(t, 70, prev)
	assert.Equal(t, 71, x.AtomicGet())
}

func TestAwaitPredicate(t *testing.T) {
	x := NewRef(0)
	go func() {
		_ = Atomically(func(ctx context.Context, tx *Tx) error {
			x.Set(tx, 42)
			return nil
		})
	}()

	err := Atomically(func(ctx context.Context, tx *Tx) error {
		return x.AwaitPredicate(tx, func(n int) bool { return n == 42 })
	})
	require.NoError(t, err)
}

func TestNewRefWithEqualCustomComparator(t *testing.T) {
	type point struct{ x, y int }
	calls := 0
	r := NewRefWithEqual(point{1, 1}, func(a, b point) bool {
		calls++
		return a == b
	})
	var ok bool
	_ = Atomically(func(ctx context.Context, tx *Tx) error {
		ok = r.CompareAndSwap(tx, point{1, 1}, point{2, 2})
		return nil
	})
	assert.True(t, ok)
	assert.Greater(t, calls, 0, "custom equal must be used instead of reflect.DeepEqual")
}
