package redolog

import (
	"sync"

	"github.com/ferrodb/redolog/common"
)

// groupCommitLock implements the group-commit primitive of spec.md §4.5
// and §5: at most one caller "owns" the lock for a given round, and
// every other caller whose target is already covered by a completed
// round returns immediately without doing any work. Acquire retries
// internally so a caller woken by a round that didn't reach its target
// becomes the next owner instead of racing its caller to decide that.
type groupCommitLock struct {
	mu        sync.Mutex
	cond      *sync.Cond
	owned     bool
	completed common.LSN
}

func newGroupCommitLock() *groupCommitLock {
	l := &groupCommitLock{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Acquire returns true (ACQUIRED) if the caller must perform the work
// covering lsn target, or false (NOT_ACQUIRED) once some round has
// completed up to at least target.
func (l *groupCommitLock) Acquire(target common.LSN) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for {
		if l.completed >= target {
			return false
		}
		if !l.owned {
			l.owned = true
			return true
		}
		l.cond.Wait()
	}
}

// Release is called by the Acquire(...)==true owner once it has finished
// its round, recording the LSN it completed up to and waking every
// waiter so they can re-check their own targets.
func (l *groupCommitLock) Release(completed common.LSN) {
	l.mu.Lock()
	if completed > l.completed {
		l.completed = completed
	}
	l.owned = false
	l.mu.Unlock()
	l.cond.Broadcast()
}

// Value returns the highest LSN a completed round has covered.
func (l *groupCommitLock) Value() common.LSN {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.completed
}
