package stm

// Retry unwinds the current attempt and asks the executor to park until one
// of the refs this transaction read changes. It never returns to the caller
// on the blocking path -- like lukechampine-stm's tx.Retry, it unwinds via
// panic, caught only by the executor.
//
// Retry deliberately does NOT abort tx or build the wait latch itself. An
// OrElse/Select combinator (orelse.go) may catch this panic and run an
// alternative branch against the very same tx, accumulating its reads into
// the same read log; only once a retry signal goes completely uncaught
// does the executor's recover abort tx and construct the latch from
// whatever the union of all tried branches read.
func (tx *Tx) Retry() error {
	tx.requireActive()
	if tx.reads.len() == 0 {
		return ErrNoRetryPossible
	}
	if !tx.config.BlockingAllowed {
		return ErrRetryNotAllowed
	}
	raise(sigRetry, nil)
	return nil // unreachable
}

// buildRetryLatch snapshots tx's current read log into a latch and
// registers it with every ref read, so any of them publishing past the
// observed version wakes the waiter. Called by the executor after it has
// already aborted tx (released tx's locks), never by Retry itself -- see
// the Retry doc comment above.
func (tx *Tx) buildRetryLatch() *latch {
	versions := make(map[uint64]uint64, tx.reads.len())
	tx.reads.forEach(func(id uint64, slot *readSlot) {
		versions[id] = slot.version
	})
	l := newLatch(versions)
	for _, r := range tx.allRefs() {
		if v, ok := tx.reads.get(r.refID()); ok {
			r.registerRetryListener(l, v.version)
		}
	}
	return l
}

// Assert retries the transaction if p is false, mirroring lukechampine-
// stm's tx.Assert helper.
func (tx *Tx) Assert(p bool) error {
	if !p {
		return tx.Retry()
	}
	return nil
}

// Attempt returns how many times this transaction has been retried due to
// conflicts so far; speculative-shape upgrades replay the same attempt
// count rather than incrementing it, since they aren't a real retry.
func (tx *Tx) Attempt() int { return tx.attempt }
