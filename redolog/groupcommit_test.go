package redolog

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrodb/redolog/common"
)

func TestGroupCommitLockFirstCallerAcquires(t *testing.T) {
	l := newGroupCommitLock()
	assert.True(t, l.Acquire(10))
}

func TestGroupCommitLockReleaseUnblocksLowerTargets(t *testing.T) {
	l := newGroupCommitLock()
	require.True(t, l.Acquire(10))
	l.Release(10)
	assert.Equal(t, common.LSN(10), l.Value())
	assert.False(t, l.Acquire(5), "a target already covered should not re-acquire")
}

func TestGroupCommitLockSecondCallerWaitsThenBecomesOwner(t *testing.T) {
	l := newGroupCommitLock()
	require.True(t, l.Acquire(100))

	var acquired bool
	done := make(chan struct{})
	go func() {
		acquired = l.Acquire(200)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	l.Release(100) // covers less than 200, so the waiter must become owner

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter never woke up")
	}
	assert.True(t, acquired)
}

func TestGroupCommitLockManyWaitersOnlyOneOwnerAtATime(t *testing.T) {
	l := newGroupCommitLock()
	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	owners := 0
	maxConcurrentOwners := 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(target common.LSN) {
			defer wg.Done()
			if l.Acquire(target) {
				mu.Lock()
				owners++
				if owners > maxConcurrentOwners {
					maxConcurrentOwners = owners
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				owners--
				mu.Unlock()
				l.Release(target)
			}
		}(common.LSN(i + 1))
	}
	wg.Wait()
	assert.Equal(t, 1, maxConcurrentOwners)
	assert.GreaterOrEqual(t, l.Value(), common.LSN(1))
}
