package stm

import (
	"context"
	"sync"
	"time"
)

// latch is the sole blocking primitive in the engine. It is single-shot:
// once signalled it stays signalled, and a transaction that abandons it on
// timeout or interrupt never reuses it. Grounded on lukechampine-stm's
// globalCond wait/broadcast, generalized from one process-wide condvar to
// one latch per blocked transaction so wakeups are targeted rather than
// broadcast to every waiter in the process.
type latch struct {
	mu        sync.Mutex
	signalled bool
	ch        chan struct{}

	// observedVersions records, per ref this latch was registered on, the
	// version the owning transaction had read. A ref whose committed
	// version already exceeds the recorded value when registerRetryListener
	// runs signals immediately: registration is level-triggered on a version
	// change, not edge-triggered on a signal call.
	observedVersions map[uint64]uint64
}

func newLatch(versions map[uint64]uint64) *latch {
	return &latch{
		ch:               make(chan struct{}),
		observedVersions: versions,
	}
}

// signal wakes the latch exactly once. Idempotent: signalling an
// already-signalled latch is a no-op: a listener, once signalled, is woken
// at most once.
func (l *latch) signal() {
	l.mu.Lock()
	if l.signalled {
		l.mu.Unlock()
		return
	}
	l.signalled = true
	l.mu.Unlock()
	close(l.ch)
}

// awaitWithDeadlineAndInterrupt parks until signalled, the deadline
// elapses, or ctx is done (when interruptible is true). It returns which
// of the three happened.
func (l *latch) awaitWithDeadlineAndInterrupt(ctx context.Context, timeout time.Duration, interruptible bool) error {
	var timer *time.Timer
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}
	var interruptCh <-chan struct{}
	if interruptible {
		interruptCh = ctx.Done()
	}
	select {
	case <-l.ch:
		return nil
	case <-timeoutCh:
		return ErrRetryTimeout
	case <-interruptCh:
		return ErrRetryInterrupted
	}
}

// listenerSet is the set of latches registered on a ref, guarded by its
// own mutex (publish drains it). A plain mutex-guarded slice stands in for
// a lock-free intrusive structure guarded by the ref's own word, since
// drains happen only at publish time, off the read/write hot path.
type listenerSet struct {
	mu        sync.Mutex
	listeners []*latch
}

func (s *listenerSet) register(l *latch, refID, observedVersion, currentVersion uint64) {
	if currentVersion > observedVersion {
		// Level-triggered: the ref already moved past what the
		// transaction read, so there is nothing to wait for.
		l.signal()
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// wakeAll signals and drains every registered listener, called by the
// writer that publishes a new version.
func (s *listenerSet) wakeAll() {
	s.mu.Lock()
	toWake := s.listeners
	s.listeners = nil
	s.mu.Unlock()
	for _, l := range toWake {
		l.signal()
	}
}
