package stm

import "errors"

// User-visible failures. These are ordinary errors returned from
// Atomically/Execute, or from Tx.Retry and the helpers built on it
// (Tx.Assert, Ref.Await, Ref.AwaitPredicate); user code is expected to
// check for them with errors.Is.
//
// They are distinct from the internal control-flow signals in signals.go,
// which the executor alone observes.
var (
	// ErrTransactionMandatory is raised when an operation requires an
	// active transaction and none is available (e.g. Mandatory propagation).
	ErrTransactionMandatory = errors.New("stm: transaction mandatory")

	// ErrNoRetryPossible is raised when Retry is called with an empty
	// read log: there is nothing for the latch to wait on.
	ErrNoRetryPossible = errors.New("stm: retry called with empty read log")

	// ErrRetryNotAllowed is raised when Retry is called under
	// BlockingAllowed=false.
	ErrRetryNotAllowed = errors.New("stm: retry not allowed by config")

	// ErrRetryTimeout is raised when a parked latch's deadline elapses.
	ErrRetryTimeout = errors.New("stm: retry timed out")

	// ErrRetryInterrupted is raised when a parked latch observes
	// interruption under Interruptible=true.
	ErrRetryInterrupted = errors.New("stm: retry interrupted")

	// ErrTooManyRetries is raised when MaxRetries is exhausted.
	ErrTooManyRetries = errors.New("stm: too many retries")

	// ErrDeadTransaction is raised when an operation targets an aborted or
	// committed context.
	ErrDeadTransaction = errors.New("stm: transaction already aborted or committed")

	// ErrPreparedTransaction is raised when a mutation targets a context
	// that has entered Prepared state.
	ErrPreparedTransaction = errors.New("stm: transaction already prepared")

	// ErrReadonlyViolation is raised by a write attempt under Readonly=true.
	ErrReadonlyViolation = errors.New("stm: write attempted on readonly transaction")

	// ErrNullArgument reports a missing required argument. No operation in
	// this package returns it: Ref and Tx operations do not check their
	// arguments for nil.
	ErrNullArgument = errors.New("stm: required argument was nil")
)
