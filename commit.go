package stm

// writeParticipants returns every ref this transaction must hold at least
// a Write lock on to commit: everything in the write log plus everything
// in the commute log, sorted by ref id for deadlock-free acquisition.
func (tx *Tx) writeParticipants() []trackedRef {
	var out []trackedRef
	for _, r := range tx.allRefs() {
		if tx.isWriteParticipant(r) {
			out = append(out, r)
		}
	}
	return out
}

func (tx *Tx) isWriteParticipant(r trackedRef) bool {
	_, inWrites := tx.writes.get(r.refID())
	fns, inCommutes := tx.commutes.get(r.refID())
	return inWrites || (inCommutes && len(fns) > 0)
}

// heldMode reports the strongest lock tx currently holds on r, reflecting
// both an explicit read-lock upgrade (recorded on the read-log slot) and a
// write/commute participant whose lock was acquired directly at prepare
// time (that is, once tx is Prepared). A transaction never downgrades a
// lock it already holds.
func (tx *Tx) heldMode(r trackedRef) LockMode {
	if slot, ok := tx.reads.get(r.refID()); ok && slot.lockMode != LockNone {
		return slot.lockMode
	}
	if tx.status == statusPrepared && tx.isWriteParticipant(r) {
		return LockWrite
	}
	return LockNone
}

// prepare acquires at least Write on every write/commute participant,
// then revalidates every ref in the read log that wasn't already locked
// by the transaction's configured read lock.
func (tx *Tx) prepare() {
	participants := tx.writeParticipants()
	acquired := make([]trackedRef, 0, len(participants))
	for _, r := range participants {
		switch tx.heldMode(r) {
		case LockWrite, LockExclusive:
			// Already holding at least Write via a prior read-lock upgrade;
			// that lock is released through the read log, not here.
		default:
			if !r.tryAcquireWrite() {
				tx.releaseAcquired(acquired)
				raise(sigLockNotFree, nil)
			}
			acquired = append(acquired, r)
		}
	}

	if tx.config.IsolationLevel == Serialized {
		if conflict := tx.hasReadConflict(); conflict {
			tx.releaseAcquired(acquired)
			raise(sigReadConflict, nil)
		}
	}

	tx.status = statusPrepared
}

// hasReadConflict revalidates the read log: every ref not already locked
// by this transaction must still show the version it was read at, and
// must not be held by anyone else in an incompatible mode.
func (tx *Tx) hasReadConflict() bool {
	conflict := false
	tx.reads.forEach(func(id uint64, slot *readSlot) {
		if conflict || slot.lockMode != LockNone {
			return
		}
		ref := tx.refByID(id)
		if ref == nil {
			return
		}
		if ref.currentVersion() != slot.version {
			conflict = true
			return
		}
		mode, _ := ref.currentMode()
		if (mode == LockWrite || mode == LockExclusive) && !tx.isWriteParticipant(ref) {
			conflict = true
		}
	})
	return conflict
}

func (tx *Tx) refByID(id uint64) trackedRef {
	for _, r := range tx.refOrder {
		if r.refID() == id {
			return r
		}
	}
	return nil
}

func (tx *Tx) releaseAcquired(acquired []trackedRef) {
	for i := len(acquired) - 1; i >= 0; i-- {
		acquired[i].releaseWrite()
	}
}

// finalizeCommutes reads, for every ref with queued commute functions, the
// committed value under the just-acquired write lock and applies the
// functions in order.
func (tx *Tx) finalizeCommutes() {
	for _, r := range tx.allRefs() {
		r.stageCommutes(tx)
	}
}

// commit ticks the clock if there is anything to publish, revalidates the
// read log once more against the new clock value, publishes every write,
// then releases and marks the transaction Committed.
func (tx *Tx) commit() {
	participants := tx.writeParticipants()

	if len(participants) > 0 {
		writeClock := tx.clock.tick()

		if tx.config.IsolationLevel == Serialized {
			conflict := false
			tx.reads.forEach(func(id uint64, slot *readSlot) {
				if !conflict && slot.version > writeClock-1 {
					conflict = true
				}
			})
			if conflict {
				tx.releaseAcquired(participants)
				tx.releaseAllLocks()
				tx.status = statusAborted
				raise(sigReadConflict, nil)
			}
		}

		for _, r := range participants {
			r.commitWrite(tx, writeClock)
		}
	}

	tx.releaseAllLocks()
	tx.status = statusCommitted
}

// releaseAllLocks drops every lock tx still holds back to the
// pre-transaction mode. Write participants are skipped: at both call sites
// commitWrite or releaseAcquired has already dropped their locks, and
// releasing them again could drop a lock another transaction has taken
// since.
func (tx *Tx) releaseAllLocks() {
	for _, r := range tx.allRefs() {
		if tx.isWriteParticipant(r) {
			continue
		}
		switch tx.heldMode(r) {
		case LockRead:
			r.releaseRead()
		case LockWrite, LockExclusive:
			r.releaseWrite()
		}
	}
}

// abort releases every lock this transaction holds, in reverse-acquisition
// order, restoring the exact pre-transaction mode.
func (tx *Tx) abort() {
	if tx.status == statusAborted || tx.status == statusCommitted {
		return
	}
	refs := tx.allRefs()
	for i := len(refs) - 1; i >= 0; i-- {
		r := refs[i]
		switch tx.heldMode(r) {
		case LockRead:
			r.releaseRead()
		case LockWrite, LockExclusive:
			r.releaseWrite()
		}
	}
	tx.status = statusAborted
}
