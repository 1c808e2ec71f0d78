package stm

// This file is the public operation surface for refs. Per-primitive-type
// wrapper classes (IntRef, DoubleRef, ...) are out of scope; Get/Set/
// Commute/etc. here are generic over T and serve every such wrapper would
// project onto.

// Get returns tx's view of r: its own pending write if any, the cached
// value from an earlier read in this transaction, or a freshly validated
// read logged under tx.config.ReadLockMode.
func (r *Ref[T]) Get(tx *Tx) T {
	return r.openForRead(tx, tx.config.ReadLockMode)
}

// GetAndLock is Get but forces at least lockMode, never downgrading a
// stronger mode already held.
func (r *Ref[T]) GetAndLock(tx *Tx, lockMode LockMode) T {
	return r.openForRead(tx, lockMode)
}

// Set stages v as r's tentative value for this transaction, per
// tx.config.WriteLockMode.
func (r *Ref[T]) Set(tx *Tx, v T) {
	r.openForWrite(tx, v, tx.config.WriteLockMode)
}

// SetAndLock is Set but forces at least lockMode.
func (r *Ref[T]) SetAndLock(tx *Tx, v T, lockMode LockMode) {
	r.openForWrite(tx, v, lockMode)
}

// GetAndSet returns r's pre-write value and stages v as the new tentative
// value, in one call.
func (r *Ref[T]) GetAndSet(tx *Tx, v T) T {
	prev := r.Get(tx)
	r.Set(tx, v)
	return prev
}

// GetAndSetAndLock is GetAndSet but forces at least lockMode on the read
// half.
func (r *Ref[T]) GetAndSetAndLock(tx *Tx, v T, lockMode LockMode) T {
	prev := r.GetAndLock(tx, lockMode)
	r.Set(tx, v)
	return prev
}

// Commute defers fn for application at commit time if tx has no existing
// dependency on r, otherwise degrades to an immediate read-modify-write.
// This degrade-on-any-dependency rule is a documented contract, not
// inferred behavior.
func (r *Ref[T]) Commute(tx *Tx, fn func(T) T) {
	r.commute(tx, fn)
}

// AlterAndGet applies fn to r's current tentative value and returns the
// result, staging it as the new tentative value.
func (r *Ref[T]) AlterAndGet(tx *Tx, fn func(T) T) T {
	next := fn(r.Get(tx))
	r.Set(tx, next)
	return next
}

// GetAndAlter is AlterAndGet but returns the pre-alteration value.
func (r *Ref[T]) GetAndAlter(tx *Tx, fn func(T) T) T {
	prev := r.Get(tx)
	r.Set(tx, fn(prev))
	return prev
}

// Await blocks (via Retry) until r's value equals want.
func (r *Ref[T]) Await(tx *Tx, want T) error {
	return tx.Assert(r.equal(r.Get(tx), want))
}

// AwaitPredicate blocks until pred(r's value) is true.
func (r *Ref[T]) AwaitPredicate(tx *Tx, pred func(T) bool) error {
	return tx.Assert(pred(r.Get(tx)))
}

// CompareAndSwap stages new as r's tentative value iff r's current
// tentative/read value equals old, and reports whether it did so. Unlike
// the atomic* family, this runs inside tx and only takes effect on commit.
func (r *Ref[T]) CompareAndSwap(tx *Tx, old, new_ T) bool {
	if !r.equal(r.Get(tx), old) {
		return false
	}
	r.Set(tx, new_)
	return true
}

// AtomicGet is a self-contained read with no transaction, equivalent to
// lukechampine-stm's package-level AtomicGet.
func (r *Ref[T]) AtomicGet() T { return r.atomicGet() }

// AtomicWeakGet is a plain relaxed load with no ordering guarantee beyond
// the underlying atomic pointer read.
func (r *Ref[T]) AtomicWeakGet() T { return r.atomicWeakGet() }

// AtomicSet atomically installs v with no surrounding transaction.
func (r *Ref[T]) AtomicSet(v T) { r.atomicSet(processClock, v) }

// AtomicCompareAndSet atomically swaps old for new_ with no surrounding
// transaction, reporting whether it did so.
func (r *Ref[T]) AtomicCompareAndSet(old, new_ T) bool {
	return r.atomicCompareAndSet(processClock, old, new_)
}

// AtomicAlterAndGet atomically applies fn and returns the result, with no
// surrounding transaction.
func (r *Ref[T]) AtomicAlterAndGet(fn func(T) T) T {
	return r.atomicAlterAndGet(processClock, fn)
}

// AtomicGetAndAlter atomically applies fn and returns the pre-alteration
// value, with no surrounding transaction.
func (r *Ref[T]) AtomicGetAndAlter(fn func(T) T) T {
	return r.atomicGetAndAlter(processClock, fn)
}
