package stm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigMatchesDocumentedDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, LockNone, cfg.ReadLockMode)
	assert.Equal(t, LockWrite, cfg.WriteLockMode)
	assert.True(t, cfg.BlockingAllowed)
	assert.Equal(t, time.Duration(0), cfg.Timeout)
	assert.False(t, cfg.Interruptible)
	assert.Equal(t, Serialized, cfg.IsolationLevel)
	assert.Equal(t, Requires, cfg.Propagation)
	assert.False(t, cfg.Readonly)
}

func TestOptionsOverrideDefaults(t *testing.T) {
	cfg := DefaultConfig()
	opts := []Option{
		WithReadLockMode(LockRead),
		WithWriteLockMode(LockExclusive),
		WithBlockingAllowed(false),
		WithTimeout(time.Second),
		WithInterruptible(true),
		WithMaxRetries(5),
		WithSpeculative(false),
		WithIsolationLevel(Snapshot),
		WithPropagation(RequiresNew),
		WithReadonly(true),
	}
	for _, o := range opts {
		o(&cfg)
	}
	assert.Equal(t, LockRead, cfg.ReadLockMode)
	assert.Equal(t, LockExclusive, cfg.WriteLockMode)
	assert.False(t, cfg.BlockingAllowed)
	assert.Equal(t, time.Second, cfg.Timeout)
	assert.True(t, cfg.Interruptible)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.False(t, cfg.Speculative)
	assert.Equal(t, Snapshot, cfg.IsolationLevel)
	assert.Equal(t, RequiresNew, cfg.Propagation)
	assert.True(t, cfg.Readonly)
}

func TestLockModeWeakerOrdering(t *testing.T) {
	assert.True(t, LockNone.weaker(LockRead))
	assert.True(t, LockRead.weaker(LockWrite))
	assert.True(t, LockWrite.weaker(LockExclusive))
	assert.False(t, LockExclusive.weaker(LockWrite))
	assert.False(t, LockWrite.weaker(LockWrite))
}

func TestLockModeString(t *testing.T) {
	assert.Equal(t, "None", LockNone.String())
	assert.Equal(t, "Read", LockRead.String())
	assert.Equal(t, "Write", LockWrite.String())
	assert.Equal(t, "Exclusive", LockExclusive.String())
}
