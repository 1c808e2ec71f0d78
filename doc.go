// Package stm provides Software Transactional Memory operations for Go. This
// is an alternative to the standard way of writing concurrent code (channels
// and mutexes). STM makes it easy to perform arbitrarily complex operations
// atomically. One of its primary advantages over traditional locking is that
// STM transactions are composable, whereas locking functions are not -- the
// composition will either deadlock or release the lock between functions
// (making it non-atomic).
//
// To begin, create a Ref that wraps the data you want to access
// concurrently.
//
//	c := stm.NewRef(3)
//
// Use Atomically to atomically read and/or write the data. This code
// atomically decrements c:
//
//	stm.Atomically(func(ctx context.Context, tx *stm.Tx) error {
//		cur := c.Get(tx)
//		c.Set(tx, cur-1)
//		return nil
//	})
//
// A transaction can suspend itself by calling tx.Retry. Atomically blocks
// until one of the Refs the transaction read is modified by another
// transaction, then reruns the closure from the top:
//
//	stm.Atomically(func(ctx context.Context, tx *stm.Tx) error {
//		cur := c.Get(tx)
//		if cur == 0 {
//			return tx.Retry()
//		}
//		c.Set(tx, cur-1)
//		return nil
//	})
//
// Alternative transactions are composed with OrElse and Select: the first
// branch that does not retry wins; if every branch retries, the whole
// selection blocks until a Ref read by any branch changes.
//
//	stm.Atomically(stm.Select(dec(x), dec(y)))
//
// Transaction closures must be idempotent: a transaction may run its
// closure more than once before it commits, so side effects inside the
// closure (other than reads/writes of Refs) will also run more than once.
// The usual remedy is to stage impure work and perform it only after
// Atomically returns.
package stm
