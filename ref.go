package stm

import (
	"reflect"
	"runtime"
	"sync/atomic"
)

// Ref is a versioned mutable memory cell participating in transactions.
// It is parameterised over its value type instead of the per-element-type
// wrapper classes (IntRef, DoubleRef, ...) some STM implementations
// expose; those typed wrappers are out of this core's scope.
//
// A Ref's zero value is not valid; use NewRef.
type Ref[T any] struct {
	id    uint64
	lock  *lockWord
	value atomic.Pointer[T]
	listeners listenerSet

	// equal backs CompareAndSwap and Await(value); defaults to
	// reflect.DeepEqual so Ref works for any T without requiring T to
	// satisfy comparable, at the cost of reflection overhead on that one
	// path. Set a cheaper comparator with NewRefWithEqual for hot types.
	equal func(a, b T) bool
}

var refIDs = newRefIDAllocator()

// NewRef returns a new Ref holding initial.
func NewRef[T any](initial T) *Ref[T] {
	return NewRefWithEqual(initial, func(a, b T) bool {
		return reflect.DeepEqual(a, b)
	})
}

// NewRefWithEqual is like NewRef but lets the caller supply a cheaper
// equality comparator than the default reflect.DeepEqual.
func NewRefWithEqual[T any](initial T, equal func(a, b T) bool) *Ref[T] {
	r := &Ref[T]{
		id:    refIDs.nextID(),
		lock:  newLockWord(0),
		equal: equal,
	}
	r.value.Store(&initial)
	return r
}

func (r *Ref[T]) refID() uint64 { return r.id }

func (r *Ref[T]) currentVersion() uint64 { return r.lock.version() }

func (r *Ref[T]) currentMode() (LockMode, int) {
	mode, readers, _ := r.lock.load()
	return mode, readers
}

func (r *Ref[T]) tryAcquireRead() bool  { return r.lock.tryAcquireRead() }
func (r *Ref[T]) tryAcquireWrite() bool { return r.lock.tryAcquireWrite() }

func (r *Ref[T]) tryUpgradeReadToWrite() bool { return r.lock.tryUpgradeReadToWrite() }
func (r *Ref[T]) tryUpgradeToExclusive() bool { return r.lock.tryUpgradeToExclusive() }

func (r *Ref[T]) releaseRead()  { r.lock.releaseRead() }
func (r *Ref[T]) releaseWrite() { r.lock.releaseWrite() }

func (r *Ref[T]) registerRetryListener(l *latch, observedVersion uint64) {
	r.listeners.register(l, r.id, observedVersion, r.lock.version())
	// A publish landing between the version load above and the append may
	// have drained the set before l joined it; recheck so it is not missed.
	if r.lock.version() > observedVersion {
		l.signal()
	}
}

func (r *Ref[T]) wakeListeners() { r.listeners.wakeAll() }

// stageCommutes implements trackedRef.stageCommutes: it pulls this ref's
// queued commute functions out of tx's commute log, applies them in
// registration order to the currently-committed value (the caller has
// already acquired at least Write), and stores the composed result as a
// write-log entry so commitWrite can publish it uniformly.
func (r *Ref[T]) stageCommutes(tx *Tx) bool {
	fns, ok := tx.commutes.get(r.id)
	if !ok || len(fns) == 0 {
		return false
	}
	cur := *r.value.Load()
	for _, raw := range fns {
		fn := raw.(func(T) T)
		cur = fn(cur)
	}
	existing, hasWrite := tx.writes.get(r.id)
	lockMode := LockWrite
	if hasWrite {
		lockMode = existing.lockMode
	}
	if !tx.writes.put(r.id, &writeSlot{value: cur, lockMode: lockMode, hasCommutes: true}) {
		raise(sigSpeculativeFailure, nil)
	}
	return true
}

// commitWrite implements trackedRef.commitWrite: install the tentative
// value from tx's write log at newVersion, then publish.
func (r *Ref[T]) commitWrite(tx *Tx, newVersion uint64) {
	slot, ok := tx.writes.get(r.id)
	if !ok {
		// A commute-only ref whose functions happened to be a no-op list
		// never reaches here because stageCommutes always stages a write
		// slot when it has functions to apply; absence means a logic bug.
		panic("stm: commitWrite called for ref with no staged value")
	}
	v := slot.value.(T)
	r.value.Store(&v)
	r.lock.publishAndRelease(newVersion)
	r.listeners.wakeAll()
}

// openForRead either returns a value already logged by this transaction,
// or validates and logs a fresh read.
func (r *Ref[T]) openForRead(tx *Tx, lockMode LockMode) T {
	tx.requireActive()
	if slot, ok := tx.writes.get(r.id); ok {
		return slot.value.(T)
	}
	if slot, ok := tx.reads.get(r.id); ok {
		if lockMode.weaker(slot.lockMode) {
			r.upgradeReadLock(tx, slot, lockMode)
		}
		return slot.value.(T)
	}

	mode, _, version := r.lock.load()
	if version > tx.readVersion {
		raise(sigReadConflict, nil)
	}
	held := LockNone
	if lockMode != LockNone {
		if r.acquireConfiguredLock(mode, lockMode) {
			held = lockMode
		} else {
			raise(sigLockNotFree, nil)
		}
	}
	v := *r.value.Load()
	if !tx.reads.put(r.id, &readSlot{value: v, version: version, lockMode: held}) {
		raise(sigSpeculativeFailure, nil)
	}
	tx.touch(r)
	return v
}

func (r *Ref[T]) acquireConfiguredLock(currentMode, requested LockMode) bool {
	switch requested {
	case LockRead:
		return r.lock.tryAcquireRead()
	case LockWrite, LockExclusive:
		return r.lock.tryAcquireWrite()
	default:
		return true
	}
}

func (r *Ref[T]) upgradeReadLock(tx *Tx, slot *readSlot, requested LockMode) {
	held := true // Write -> Exclusive: both are held as the word's Write mode
	switch slot.lockMode {
	case LockNone:
		held = r.acquireConfiguredLock(LockNone, requested)
	case LockRead:
		held = r.lock.tryUpgradeReadToWrite()
	}
	if !held {
		raise(sigLockNotFree, nil)
	}
	slot.lockMode = requested
	if r.lock.version() != slot.version {
		raise(sigReadConflict, nil)
	}
}

// openForWrite stages v as r's tentative value for this transaction.
func (r *Ref[T]) openForWrite(tx *Tx, v T, lockMode LockMode) {
	tx.requireActive()
	if tx.config.Readonly {
		raise(sigFatal, ErrReadonlyViolation)
	}
	existing, ok := tx.writes.get(r.id)
	held := lockMode
	if ok && existing.lockMode > held {
		held = existing.lockMode
	}
	if !tx.writes.put(r.id, &writeSlot{value: v, lockMode: held}) {
		raise(sigSpeculativeFailure, nil)
	}
	tx.touch(r)
}

// openForConstruction is used when r is freshly allocated and known
// unshared by any other goroutine, so bookkeeping a read log entry would
// be pure overhead.
func (r *Ref[T]) openForConstruction(tx *Tx, v T) {
	tx.requireActive()
	if !tx.writes.put(r.id, &writeSlot{value: v, lockMode: LockWrite}) {
		raise(sigSpeculativeFailure, nil)
	}
	tx.touch(r)
}

// commute degrades to an ordinary read-modify-write if tx already has an
// explicit dependency on r (a prior read or write); otherwise the function
// is deferred.
func (r *Ref[T]) commute(tx *Tx, fn func(T) T) {
	tx.requireActive()
	if tx.config.Readonly {
		raise(sigFatal, ErrReadonlyViolation)
	}
	_, read := tx.reads.get(r.id)
	_, written := tx.writes.get(r.id)
	if read || written {
		cur := r.openForRead(tx, LockNone)
		r.openForWrite(tx, fn(cur), LockWrite)
		return
	}
	fns, _ := tx.commutes.get(r.id)
	fns = append(fns, any(fn))
	if !tx.commutes.put(r.id, fns) {
		raise(sigSpeculativeFailure, nil)
	}
	tx.touch(r)
}

// atomicGet reads the current value outside any transaction, as a
// self-contained single-ref commit.
func (r *Ref[T]) atomicGet() T { return *r.value.Load() }

// atomicWeakGet is a relaxed load with no ordering guarantee beyond the
// hardware default atomic.Pointer load.
func (r *Ref[T]) atomicWeakGet() T { return *r.value.Load() }

// atomicSet writes v outside any transaction and advances the ref's
// version via a self-contained write lock/publish cycle, waking retry
// listeners exactly as a transactional commit would.
func (r *Ref[T]) atomicSet(clock *globalClock, v T) {
	for !r.lock.tryAcquireWrite() {
		runtime.Gosched()
	}
	newVersion := clock.tick()
	r.value.Store(&v)
	r.lock.publishAndRelease(newVersion)
	r.listeners.wakeAll()
}

// atomicCompareAndSet atomically swaps old for newVal using clock, reporting
// whether it did so.
func (r *Ref[T]) atomicCompareAndSet(clock *globalClock, old, newVal T) bool {
	for !r.lock.tryAcquireWrite() {
		runtime.Gosched()
	}
	cur := *r.value.Load()
	if !r.equal(cur, old) {
		r.lock.releaseWrite()
		return false
	}
	newVersion := clock.tick()
	r.value.Store(&newVal)
	r.lock.publishAndRelease(newVersion)
	r.listeners.wakeAll()
	return true
}

// atomicAlterAndGet atomically applies fn using clock and returns the
// result.
func (r *Ref[T]) atomicAlterAndGet(clock *globalClock, fn func(T) T) T {
	for !r.lock.tryAcquireWrite() {
		runtime.Gosched()
	}
	next := fn(*r.value.Load())
	newVersion := clock.tick()
	r.value.Store(&next)
	r.lock.publishAndRelease(newVersion)
	r.listeners.wakeAll()
	return next
}

// atomicGetAndAlter atomically applies fn using clock and returns the
// pre-alteration value.
func (r *Ref[T]) atomicGetAndAlter(clock *globalClock, fn func(T) T) T {
	for !r.lock.tryAcquireWrite() {
		runtime.Gosched()
	}
	prev := *r.value.Load()
	next := fn(prev)
	newVersion := clock.tick()
	r.value.Store(&next)
	r.lock.publishAndRelease(newVersion)
	r.listeners.wakeAll()
	return prev
}
