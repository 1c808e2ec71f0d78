package stm

import "time"

// LockMode is the strength of a lock a transaction holds on a Ref.
//
// Modes strengthen in the order they are listed; a transaction never
// downgrades a lock it already holds (lock monotonicity).
type LockMode int

const (
	// LockNone means the ref is not locked at all.
	LockNone LockMode = iota
	// LockRead allows any number of concurrent readers, no writers.
	LockRead
	// LockWrite allows exactly one writer; readers observing a pre-write
	// snapshot are unaffected until publish.
	LockWrite
	// LockExclusive is LockWrite plus the guarantee that no other lock mode
	// is concurrently held by anyone else. The commit pipeline publishes
	// under Write and does not upgrade to Exclusive.
	LockExclusive
)

func (m LockMode) String() string {
	switch m {
	case LockNone:
		return "None"
	case LockRead:
		return "Read"
	case LockWrite:
		return "Write"
	case LockExclusive:
		return "Exclusive"
	default:
		return "Unknown"
	}
}

// weaker reports whether m is a strictly weaker lock than other, i.e.
// acquiring other would be an upgrade relative to m.
func (m LockMode) weaker(other LockMode) bool {
	return m < other
}

// IsolationLevel controls how much validation a commit performs.
type IsolationLevel int

const (
	// Serialized is full opacity: every ref in the read log is revalidated
	// at commit. This is the default and the only level the engine
	// guarantees serializability under.
	Serialized IsolationLevel = iota
	// Snapshot skips read-set revalidation at commit; an opt-in speed/safety
	// tradeoff for callers who can tolerate it.
	Snapshot
)

// PropagationLevel controls how a nested Execute composes with an already
// active transaction on the calling goroutine.
type PropagationLevel int

const (
	// Requires joins an active transaction if present, else starts a new
	// one. This is the default.
	Requires PropagationLevel = iota
	// RequiresNew always starts a fresh, independent transaction.
	RequiresNew
	// Mandatory requires an active transaction to already exist.
	Mandatory
	// Never forbids running inside an existing transaction.
	Never
	// Supports joins an active transaction if present; otherwise it starts
	// a new one, exactly as Requires does. fn is never run without a Tx.
	Supports
)

// Config holds every knob an Executor may be constructed with. The zero
// value is not valid; use DefaultConfig or NewExecutor's functional options.
type Config struct {
	ReadLockMode    LockMode
	WriteLockMode   LockMode
	BlockingAllowed bool
	Timeout         time.Duration // 0 means unbounded
	Interruptible   bool
	MaxRetries      int
	Speculative     bool
	IsolationLevel  IsolationLevel
	Propagation     PropagationLevel
	Readonly        bool
	logger          txLogger
}

// DefaultConfig returns the engine's documented default configuration.
func DefaultConfig() Config {
	return Config{
		ReadLockMode:    LockNone,
		WriteLockMode:   LockWrite,
		BlockingAllowed: true,
		Timeout:         0,
		Interruptible:   false,
		MaxRetries:      1000,
		Speculative:     true,
		IsolationLevel:  Serialized,
		Propagation:     Requires,
		Readonly:        false,
	}
}

// Option mutates a Config. Grounded on mvcc-map's functional-options
// pattern (mvcc/options.go).
type Option func(*Config)

// WithReadLockMode sets the lock every ref acquires on first read.
func WithReadLockMode(m LockMode) Option {
	return func(c *Config) { c.ReadLockMode = m }
}

// WithWriteLockMode sets the lock acquired on first write.
func WithWriteLockMode(m LockMode) Option {
	return func(c *Config) { c.WriteLockMode = m }
}

// WithBlockingAllowed controls whether Retry is permitted.
func WithBlockingAllowed(allowed bool) Option {
	return func(c *Config) { c.BlockingAllowed = allowed }
}

// WithTimeout bounds how long a transaction may park on a retry latch.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithInterruptible makes a parked latch observe ctx cancellation.
func WithInterruptible(interruptible bool) Option {
	return func(c *Config) { c.Interruptible = interruptible }
}

// WithMaxRetries caps the number of conflict-driven retries.
func WithMaxRetries(n int) Option {
	return func(c *Config) { c.MaxRetries = n }
}

// WithSpeculative enables or disables the lean-to-fat speculation ladder.
func WithSpeculative(enabled bool) Option {
	return func(c *Config) { c.Speculative = enabled }
}

// WithIsolationLevel selects Serialized (default) or Snapshot isolation.
func WithIsolationLevel(l IsolationLevel) Option {
	return func(c *Config) { c.IsolationLevel = l }
}

// WithPropagation selects how nested Executes compose.
func WithPropagation(p PropagationLevel) Option {
	return func(c *Config) { c.Propagation = p }
}

// WithReadonly disallows writes; a write attempt raises ReadonlyViolation.
func WithReadonly(readonly bool) Option {
	return func(c *Config) { c.Readonly = readonly }
}
