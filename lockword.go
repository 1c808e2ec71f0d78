package stm

import "go.uber.org/atomic"

// lockWord packs a ref's lock mode, reader count and publication version
// into a single atomic uint64, the way tiancaiamao-stm's versionedWriteLock
// packs a lock bit and a version into one word, generalized here from a
// binary locked/unlocked bit to a four-mode state machine
// (None/Read(n)/Write/Exclusive).
//
// Layout, high to low bit:
//
//	[63:62] lockMode  (2 bits)
//	[61:52] readers   (10 bits, only meaningful when lockMode == LockRead)
//	[51:0]  version   (52 bits)
//
// All transitions are performed with a compare-and-swap loop so a reader
// of the word never observes a torn mode/readers/version triple.
type lockWord struct {
	word atomic.Uint64
}

const (
	lwModeShift    = 62
	lwModeMask     = uint64(0x3)
	lwReadersShift = 52
	lwReadersMask  = uint64(0x3FF)
	lwVersionMask  = uint64(1)<<52 - 1
	maxReaders     = 1023
)

func packLockWord(mode LockMode, readers int, version uint64) uint64 {
	return (uint64(mode)&lwModeMask)<<lwModeShift |
		(uint64(readers)&lwReadersMask)<<lwReadersShift |
		(version & lwVersionMask)
}

func unpackLockWord(w uint64) (mode LockMode, readers int, version uint64) {
	mode = LockMode((w >> lwModeShift) & lwModeMask)
	readers = int((w >> lwReadersShift) & lwReadersMask)
	version = w & lwVersionMask
	return
}

func newLockWord(initialVersion uint64) *lockWord {
	lw := &lockWord{}
	lw.word.Store(packLockWord(LockNone, 0, initialVersion))
	return lw
}

// load returns the current mode, reader count and version with acquire
// ordering.
func (lw *lockWord) load() (LockMode, int, uint64) {
	return unpackLockWord(lw.word.Load())
}

// version returns only the published version, as used by validation.
func (lw *lockWord) version() uint64 {
	_, _, v := unpackLockWord(lw.word.Load())
	return v
}

// tryAcquireRead transitions None->Read(1) or Read(n)->Read(n+1). It fails
// if the ref is currently Write or Exclusive locked, or at the reader-count
// ceiling.
func (lw *lockWord) tryAcquireRead() bool {
	for {
		old := lw.word.Load()
		mode, readers, version := unpackLockWord(old)
		switch mode {
		case LockNone:
			if lw.word.CAS(old, packLockWord(LockRead, 1, version)) {
				return true
			}
		case LockRead:
			if readers >= maxReaders {
				return false
			}
			if lw.word.CAS(old, packLockWord(LockRead, readers+1, version)) {
				return true
			}
		default:
			return false
		}
	}
}

// tryAcquireWrite transitions None->Write. It never blocks; callers that
// fail retry later or abort with LockNotFree -- the commit pipeline never
// blocks waiting on a ref lock.
func (lw *lockWord) tryAcquireWrite() bool {
	old := lw.word.Load()
	mode, _, version := unpackLockWord(old)
	if mode != LockNone {
		return false
	}
	return lw.word.CAS(old, packLockWord(LockWrite, 0, version))
}

// tryUpgradeReadToWrite transitions Read(1)->Write. The caller is
// responsible for ensuring it is the sole reader's owning transaction;
// the word itself only enforces readers == 1.
func (lw *lockWord) tryUpgradeReadToWrite() bool {
	old := lw.word.Load()
	mode, readers, version := unpackLockWord(old)
	if mode != LockRead || readers != 1 {
		return false
	}
	return lw.word.CAS(old, packLockWord(LockWrite, 0, version))
}

// tryUpgradeToExclusive transitions Write->Exclusive. The commit pipeline
// publishes straight from Write and does not call it.
func (lw *lockWord) tryUpgradeToExclusive() bool {
	old := lw.word.Load()
	mode, _, version := unpackLockWord(old)
	if mode != LockWrite {
		return false
	}
	return lw.word.CAS(old, packLockWord(LockExclusive, 0, version))
}

// publishAndRelease installs newVersion and drops the lock to None. Only
// valid while holding Write or Exclusive.
func (lw *lockWord) publishAndRelease(newVersion uint64) {
	for {
		old := lw.word.Load()
		mode, _, _ := unpackLockWord(old)
		if mode != LockWrite && mode != LockExclusive {
			panic("stm: publishAndRelease called without holding Write/Exclusive")
		}
		if lw.word.CAS(old, packLockWord(LockNone, 0, newVersion)) {
			return
		}
	}
}

// releaseRead transitions Read(n)->Read(n-1) or Read(1)->None.
func (lw *lockWord) releaseRead() {
	for {
		old := lw.word.Load()
		mode, readers, version := unpackLockWord(old)
		if mode != LockRead || readers == 0 {
			return
		}
		var next uint64
		if readers == 1 {
			next = packLockWord(LockNone, 0, version)
		} else {
			next = packLockWord(LockRead, readers-1, version)
		}
		if lw.word.CAS(old, next) {
			return
		}
	}
}

// releaseWrite drops a Write or Exclusive lock back to None without
// changing the version, used on abort (no publish happened).
func (lw *lockWord) releaseWrite() {
	for {
		old := lw.word.Load()
		mode, _, version := unpackLockWord(old)
		if mode != LockWrite && mode != LockExclusive {
			return
		}
		if lw.word.CAS(old, packLockWord(LockNone, 0, version)) {
			return
		}
	}
}
