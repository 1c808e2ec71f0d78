package stm

import "context"

// OrElse composes two transaction branches: a runs first; if it retries
// (and only if it retries -- any other abort propagates immediately and
// aborts the whole composition), b runs against the SAME Tx, so b's reads
// accumulate onto a's in one read log. If b also retries, that retry
// propagates uncaught to whatever runs OrElse -- the executor, or an
// enclosing OrElse/Select -- so the eventual wait blocks on the union of
// both branches' reads, not just b's.
//
// Grounded on lukechampine-stm's Select/catchRetry, generalized to a named
// two-branch combinator with the panic/recover plumbing made explicit.
func OrElse(a, b Func) Func {
	return func(ctx context.Context, tx *Tx) (err error) {
		retried := false
		func() {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				cs, ok := asControlSignal(r)
				if !ok || cs.kind != sigRetry {
					panic(r)
				}
				retried = true
			}()
			err = a(ctx, tx)
		}()
		if !retried {
			return err
		}
		return b(ctx, tx)
	}
}

// Select runs fns in order, each catching the previous branch's retry and
// trying the next against the accumulated read log. An empty Select has
// touched nothing, so its own Retry call reports ErrNoRetryPossible rather
// than blocking, matching lukechampine-stm's Select with zero functions.
func Select(fns ...Func) Func {
	switch len(fns) {
	case 0:
		return func(ctx context.Context, tx *Tx) error {
			return tx.Retry()
		}
	case 1:
		return fns[0]
	default:
		return OrElse(fns[0], Select(fns[1:]...))
	}
}
