package stm

// status is the lifecycle state of a transaction context.
type status int

const (
	statusActive status = iota
	statusPrepared
	statusAborted
	statusCommitted
)

// trackedRef is the non-generic capability surface the transaction engine
// needs from a Ref[T], so the context, protocol and commit pipeline never
// have to know T. Each *Ref[T] implements this directly; see ref.go.
type trackedRef interface {
	refID() uint64
	currentVersion() uint64
	currentMode() (LockMode, int)
	tryAcquireRead() bool
	tryAcquireWrite() bool
	tryUpgradeReadToWrite() bool
	tryUpgradeToExclusive() bool
	// stageCommutes pulls this ref's queued commute functions out of tx,
	// applies them to the currently committed value (caller already holds
	// at least Write) and stores the result as this ref's pending write
	// value for commitWrite. Returns false if there were no commutes.
	stageCommutes(tx *Tx) bool
	// commitWrite installs the pending tentative value (from Set or from
	// stageCommutes) at newVersion and drops the lock to None.
	commitWrite(tx *Tx, newVersion uint64)
	releaseRead()
	releaseWrite()
	registerRetryListener(l *latch, observedVersion uint64)
	wakeListeners()
}

// readSlot records what a transaction observed the first time it read a
// ref, plus the cached value so repeated Get calls within the same
// transaction see a consistent view.
type readSlot struct {
	value    any
	version  uint64
	lockMode LockMode
}

// writeSlot records a transaction's tentative value for a ref, untouched
// until commit.
type writeSlot struct {
	value       any
	lockMode    LockMode
	hasCommutes bool
}

// shape is the speculation ladder's tag for which concrete store a Tx is
// currently using.
type shape int

const (
	shapeLean      shape = iota // fixed-capacity inline log
	shapeFat                    // growable map-backed log
	shapeMonitored              // fat + extra bookkeeping for diagnostics
)

// Tx is a transaction context: the per-attempt read/write/commute logs plus
// lifecycle state, speculation shape and config. A Tx is created fresh by
// the executor on every attempt and is never reused once terminal.
type Tx struct {
	clock  *globalClock
	config Config
	logger txLogger

	readVersion uint64
	status      status
	attempt     int
	shape       shape

	reads    txStore[*readSlot]
	writes   txStore[*writeSlot]
	commutes txStore[[]any]

	// refOrder preserves first-touch order across reads, writes and
	// commutes combined, independent of the store's own iteration order.
	// It is the list of touched refs that allRefs copies and sorts by id
	// (the commit pipeline's acquisition order) and that refByID searches.
	refOrder []trackedRef
	seen     map[uint64]bool
}

const leanCapacity = 8

func newTx(clock *globalClock, config Config, logger txLogger, sh shape) *Tx {
	tx := &Tx{
		clock:       clock,
		config:      config,
		logger:      logger,
		readVersion: clock.read(),
		status:      statusActive,
		shape:       sh,
		seen:        make(map[uint64]bool),
	}
	switch sh {
	case shapeLean:
		tx.reads = newArrayStore[*readSlot](leanCapacity)
		tx.writes = newArrayStore[*writeSlot](leanCapacity)
		tx.commutes = newArrayStore[[]any](leanCapacity)
	case shapeFat:
		tx.reads = newMapStore[*readSlot]()
		tx.writes = newMapStore[*writeSlot]()
		tx.commutes = newMapStore[[]any]()
	case shapeMonitored:
		tx.reads = newMonitoredStore[*readSlot]()
		tx.writes = newMonitoredStore[*writeSlot]()
		tx.commutes = newMonitoredStore[[]any]()
	}
	return tx
}

func (tx *Tx) touch(r trackedRef) {
	if !tx.seen[r.refID()] {
		tx.seen[r.refID()] = true
		tx.refOrder = append(tx.refOrder, r)
	}
}

func (tx *Tx) requireActive() {
	switch tx.status {
	case statusAborted, statusCommitted:
		raise(sigFatal, ErrDeadTransaction)
	case statusPrepared:
		raise(sigFatal, ErrPreparedTransaction)
	}
}

// allRefs returns every ref this transaction touched (read, wrote or
// commuted), sorted by ref id -- the canonical tie-break the commit
// pipeline acquires locks in.
func (tx *Tx) allRefs() []trackedRef {
	out := make([]trackedRef, len(tx.refOrder))
	copy(out, tx.refOrder)
	sortRefsByID(out)
	return out
}

func sortRefsByID(refs []trackedRef) {
	// insertion sort: transaction read/write sets are small in practice,
	// and this keeps the dependency list to exactly what's already
	// imported (no sort.Slice closure allocation on the hot commit path).
	for i := 1; i < len(refs); i++ {
		for j := i; j > 0 && refs[j-1].refID() > refs[j].refID(); j-- {
			refs[j-1], refs[j] = refs[j], refs[j-1]
		}
	}
}
