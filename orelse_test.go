package stm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOrElseTakesFirstReadyBranch mirrors lukechampine-stm's Select idiom:
// when the first branch doesn't need to retry, it wins outright and the
// second branch never runs.
func TestOrElseTakesFirstReadyBranch(t *testing.T) {
	x := NewRef(1)
	bRan := false
	fn := OrElse(
		func(ctx context.Context, tx *Tx) error {
			if x.Get(tx) != 1 {
				return tx.Retry()
			}
			return nil
		},
		func(ctx context.Context, tx *Tx) error {
			bRan = true
			return nil
		},
	)
	err := Atomically(fn)
	require.NoError(t, err)
	assert.False(t, bRan, "second branch must not run when the first succeeds")
}

// TestOrElseFallsThroughToSecondBranch checks that when branch a retries,
// branch b runs against the same Tx and can still succeed.
func TestOrElseFallsThroughToSecondBranch(t *testing.T) {
	x := NewRef(1)
	fn := OrElse(
		func(ctx context.Context, tx *Tx) error {
			if x.Get(tx) != 2 {
				return tx.Retry()
			}
			return nil
		},
		func(ctx context.Context, tx *Tx) error {
			assert.Equal(t, 1, x.Get(tx), "b must see a's accumulated read log on the same tx")
			return nil
		},
	)
	err := Atomically(fn)
	require.NoError(t, err)
}

// TestOrElseNonRetryAbortPropagates checks that a genuine error from the
// first branch aborts the whole composition instead of falling through.
func TestOrElseNonRetryAbortPropagates(t *testing.T) {
	wantErr := ErrReadonlyViolation
	bRan := false
	fn := OrElse(
		func(ctx context.Context, tx *Tx) error {
			return wantErr
		},
		func(ctx context.Context, tx *Tx) error {
			bRan = true
			return nil
		},
	)
	err := Atomically(fn)
	assert.Equal(t, wantErr, err)
	assert.False(t, bRan)
}

// TestOrElseBothBranchesRetryBlocksOnUnion checks that when both a and b
// retry, the eventual wake comes from either ref changing -- the union of
// both branches' read logs, not just the last branch tried.
func TestOrElseBothBranchesRetryBlocksOnUnion(t *testing.T) {
	x, y := NewRef(0), NewRef(0)

	done := make(chan error, 1)
	go func() {
		fn := OrElse(
			func(ctx context.Context, tx *Tx) error {
				if x.Get(tx) == 0 {
					return tx.Retry()
				}
				return nil
			},
			func(ctx context.Context, tx *Tx) error {
				if y.Get(tx) == 0 {
					return tx.Retry()
				}
				return nil
			},
		)
		done <- Atomically(fn)
	}()

	time.Sleep(20 * time.Millisecond)
	_ = Atomically(func(ctx context.Context, tx *Tx) error {
		y.Set(tx, 1)
		return nil
	})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("orElse did not wake when the second branch's ref changed")
	}
}

// TestSelectEmptyHasNothingToWaitOn: Select with zero alternatives has an
// empty read log (it never touched a ref), so it can't block -- it reports
// ErrNoRetryPossible rather than parking forever, same as calling
// tx.Retry() directly with nothing read.
func TestSelectEmptyHasNothingToWaitOn(t *testing.T) {
	err := Atomically(Select())
	assert.ErrorIs(t, err, ErrNoRetryPossible)
}

func TestSelectSingleIsPassthrough(t *testing.T) {
	ran := false
	err := Atomically(Select(func(ctx context.Context, tx *Tx) error {
		ran = true
		return nil
	}))
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestSelectManyTriesInOrder(t *testing.T) {
	x := NewRef(3)
	order := []int{}
	fns := make([]Func, 4)
	for i := 0; i < 4; i++ {
		i := i
		fns[i] = func(ctx context.Context, tx *Tx) error {
			order = append(order, i)
			if x.Get(tx) != i {
				return tx.Retry()
			}
			return nil
		}
	}
	err := Atomically(Select(fns...))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, order)
}
