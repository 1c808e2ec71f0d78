package stm

import (
	"context"
	"time"

	"github.com/juju/ratelimit"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Func is a transaction closure: the unit of work Atomically/Execute run
// under a Tx. It returns an error for any user-visible failure; internal
// control-flow signals (Retry, conflicts) are never returned, only
// panicked and recovered by the executor.
//
// Func takes the context.Context the executor is running under so that a
// closure which itself calls ExecuteContext with that same ctx flattens
// into the outer transaction instead of opening a new retry scope, using an
// explicit context parameter as the scoped lookup Go has no goroutine-local
// equivalent for. Closures that never nest can ignore ctx.
type Func func(ctx context.Context, tx *Tx) error

// Executor owns the conflict/retry loop. Construct one with NewExecutor;
// the package-level Atomically/AtomicallyContext helpers share a single Executor
// built from DefaultConfig, mirroring lukechampine-stm's single implicit
// global transaction manager.
type Executor struct {
	clock   *globalClock
	config  Config
	logger  txLogger
	metrics *metricsSet

	// backoffBucket is long-lived across every conflict retry this Executor
	// ever runs, refilling by one token per backoffUnit. backoff draws an
	// exponentially growing number of tokens per attempt, so each retry
	// waits for the bucket to refill by roughly that many units -- unlike a
	// bucket built fresh per call, which always starts full and never
	// blocks.
	backoffBucket *ratelimit.Bucket
}

type activeTxKey struct{}

const (
	backoffUnit     = time.Millisecond
	backoffMaxShift = 10 // caps the per-attempt token draw at 1<<10
	backoffCapacity = 1
)

// NewExecutor constructs an Executor with DefaultConfig modified by opts.
func NewExecutor(opts ...Option) *Executor {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = defaultLogger()
	}
	return &Executor{
		clock:         processClock,
		config:        cfg,
		logger:        logger,
		metrics:       defaultMetrics,
		backoffBucket: ratelimit.NewBucket(backoffUnit, backoffCapacity),
	}
}

// Execute runs fn under a transaction scoped to context.Background. fn
// still receives a context carrying the active transaction, so an
// ExecuteContext call inside fn that passes that context on joins it; a
// nested Execute call starts again from context.Background and never
// joins. Use ExecuteContext to nest under a caller-supplied context.
func (e *Executor) Execute(fn Func) error {
	return e.ExecuteContext(context.Background(), fn)
}

// ExecuteContext runs fn under a transaction, honoring e.config.Propagation
// against any transaction already active on ctx. fn receives a derived
// context with the active transaction attached; a closure that calls
// ExecuteContext again with that derived context joins the same
// transaction rather than starting a new retry scope.
func (e *Executor) ExecuteContext(ctx context.Context, fn Func) error {
	if existing, ok := ctx.Value(activeTxKey{}).(*Tx); ok {
		switch e.config.Propagation {
		case Never:
			return errors.Wrap(ErrTransactionMandatory, "propagation Never forbids an active transaction")
		case RequiresNew:
			// fall through to start an independent transaction below
		default:
			return fn(ctx, existing)
		}
	} else if e.config.Propagation == Mandatory {
		return ErrTransactionMandatory
	}

	attempt := 0
	sh := shapeLean
	if !e.config.Speculative {
		sh = shapeFat
	}

	for {
		tx := newTx(e.clock, e.config, e.logger, sh)
		tx.attempt = attempt
		runCtx := context.WithValue(ctx, activeTxKey{}, tx)

		result, signal := e.runAttempt(runCtx, tx, fn)
		switch {
		case signal == nil:
			return result
		case signal.kind == sigFatal:
			return signal.cause
		case signal.kind == sigSpeculativeFailure:
			sh = nextShape(sh)
			e.metrics.shapeUpgrades.Inc()
			e.logger.Debug("stm: upgrading transaction shape", zap.String("shape", shapeName(sh)))
			continue
		case signal.kind == sigRetry:
			if !e.config.BlockingAllowed {
				return ErrRetryNotAllowed
			}
			e.metrics.retries.Inc()
			err := signal.latch.awaitWithDeadlineAndInterrupt(ctx, e.config.Timeout, e.config.Interruptible)
			if err != nil {
				return err
			}
			continue
		case signal.kind == sigReadConflict, signal.kind == sigWriteConflict, signal.kind == sigLockNotFree:
			attempt++
			e.metrics.conflicts.WithLabelValues(signal.kind.String()).Inc()
			if attempt > e.config.MaxRetries {
				return errors.Wrap(ErrTooManyRetries, signal.kind.String())
			}
			e.backoff(attempt)
			continue
		default:
			e.logger.Error("stm: unknown control signal", zap.String("kind", signal.kind.String()))
			continue
		}
	}
}

// runAttempt runs one attempt of fn to completion, recovering the
// control-flow panic the engine raises on conflict/retry and translating
// it into a (result, signal) pair. A genuine user panic aborts the tx and
// propagates unchanged -- it is never mistaken for one of the engine's own
// control signals.
func (e *Executor) runAttempt(ctx context.Context, tx *Tx, fn Func) (err error, signal *controlSignal) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		cs, ok := asControlSignal(r)
		if !ok {
			tx.abort()
			panic(r)
		}
		tx.abort()
		if cs.kind == sigRetry {
			cs.latch = tx.buildRetryLatch()
		}
		signal = cs
	}()

	err = fn(ctx, tx)
	if err != nil {
		tx.abort()
		return err, nil
	}

	tx.prepare()
	tx.finalizeCommutes()
	tx.commit()
	e.metrics.commits.Inc()
	e.logger.Debug("stm: committed transaction", zap.Int("attempt", tx.attempt))
	return nil, nil
}

// backoff blocks for a bounded, exponentially growing duration keyed on
// attempt, drawing from the Executor's single shared bucket so the delay
// actually compounds instead of resetting on every call.
func (e *Executor) backoff(attempt int) {
	shift := attempt
	if shift > backoffMaxShift {
		shift = backoffMaxShift
	}
	tokens := int64(1) << uint(shift)
	e.backoffBucket.Wait(tokens)
}

func nextShape(sh shape) shape {
	switch sh {
	case shapeLean:
		return shapeFat
	default:
		return shapeMonitored
	}
}

func shapeName(sh shape) string {
	switch sh {
	case shapeLean:
		return "lean"
	case shapeFat:
		return "fat"
	default:
		return "fat-monitored"
	}
}

var defaultExecutor = NewExecutor()

// Atomically executes fn under a fresh transaction using the package-level
// default Executor, mirroring lukechampine-stm's top-level Atomically.
func Atomically(fn Func) error {
	return defaultExecutor.Execute(fn)
}

// AtomicallyContext is Atomically with explicit cancellation/nesting scope.
func AtomicallyContext(ctx context.Context, fn Func) error {
	return defaultExecutor.ExecuteContext(ctx, fn)
}
