package stm

// signalKind tags the closed set of internal control-flow signals the
// transaction engine raises. These are executor-only: user code never
// observes a signalKind directly.
//
// The source this runtime is modeled on (a ControlFlowError exception
// hierarchy) unwinds arbitrary user code back to the executor via panic.
// We keep that unwind mechanism -- Tx.Retry and a failed openForRead/Write
// still panic, exactly like lukechampine-stm's tx.Retry -- but the panic payload
// is this typed sum rather than a bare string. The package recovers it in
// two places only: the executor's attempt loop, and OrElse, which catches
// retry signals and re-panics everything else.
type signalKind int

const (
	sigReadConflict signalKind = iota
	sigWriteConflict
	sigLockNotFree
	sigSpeculativeFailure
	sigRetry
	// sigFatal carries a deterministic, non-transient error -- retrying the
	// attempt would hit the exact same error again, so the executor returns
	// cause directly instead of counting it against MaxRetries.
	sigFatal
)

func (k signalKind) String() string {
	switch k {
	case sigReadConflict:
		return "ReadConflict"
	case sigWriteConflict:
		return "WriteConflict"
	case sigLockNotFree:
		return "LockNotFree"
	case sigSpeculativeFailure:
		return "SpeculativeFailure"
	case sigRetry:
		return "RetrySignal"
	case sigFatal:
		return "Fatal"
	default:
		return "UnknownSignal"
	}
}

// controlSignal is the payload panicked by the transaction engine and
// recovered by the executor. It is never exported and must never be
// returned as an error to user code.
//
// latch is left nil by raise; only the executor's top-level recover (the
// one that isn't inside an OrElse/Select combinator) fills it in, once it
// knows the retry wasn't caught and retried by an alternative branch.
type controlSignal struct {
	kind  signalKind
	latch *latch
	// cause is an optional diagnostic for most signal kinds (e.g. which ref
	// conflicted), but load-bearing for sigFatal: the executor returns it
	// directly as the user-visible error.
	cause error
}

func raise(kind signalKind, cause error) {
	panic(&controlSignal{kind: kind, cause: cause})
}

// asControlSignal recovers a controlSignal from a panic value, or returns
// (nil, false) if the panic was not one of ours -- in which case the
// executor must re-panic so genuine user panics are never swallowed.
func asControlSignal(r any) (*controlSignal, bool) {
	cs, ok := r.(*controlSignal)
	return cs, ok
}
