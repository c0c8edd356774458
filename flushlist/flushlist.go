// Package flushlist supplies the default, in-memory implementation of the
// buffer pool's dirty-page / flush-list collaborator spec.md §1 names only
// as an external interface. A real buffer pool would implement Tracker
// itself; ShardedTracker makes the module runnable and testable end to end
// without one.
package flushlist

import (
	"sync"

	"github.com/ferrodb/redolog/common"
)

// Tracker is the narrow interface the checkpoint engine and the
// mini-transaction commit path call into: recording, per dirty page, the
// LSN range of the modification that dirtied it, and reporting the
// oldest unflushed modification's LSN for the checkpoint-age
// calculation.
type Tracker interface {
	// Insert records that page was dirtied by a modification spanning
	// [startLSN, endLSN). Call under the flush-order mutex to keep
	// insertion order matching LSN order.
	Insert(page common.Bnum, startLSN, endLSN common.LSN)
	// OldestModification returns the smallest startLSN among pages
	// still tracked, or (0, false) if the tracker is empty.
	OldestModification() (common.LSN, bool)
	// Evict removes page, e.g. once the page cleaner has written it
	// back and it is no longer dirty.
	Evict(page common.Bnum)
}

// NShard is the number of shards ShardedTracker splits its state across,
// grounded on the teacher's shardmap.BlockMap sharding idiom.
const NShard = 509

type entry struct {
	startLSN common.LSN
	endLSN   common.LSN
}

type shard struct {
	mu    sync.RWMutex
	pages map[common.Bnum]entry
}

// ShardedTracker implements Tracker with the same NSHARD-way sharding
// idiom as shardmap.BlockMap, tracking the minimum start-LSN across all
// shards for OldestModification.
type ShardedTracker struct {
	shards [NShard]*shard
}

// NewShardedTracker returns an empty tracker.
func NewShardedTracker() *ShardedTracker {
	t := &ShardedTracker{}
	for i := range t.shards {
		t.shards[i] = &shard{pages: make(map[common.Bnum]entry)}
	}
	return t
}

func (t *ShardedTracker) shardFor(page common.Bnum) *shard {
	return t.shards[page%NShard]
}

// Insert implements Tracker. If page is already tracked its start LSN is
// left unchanged: the oldest modification of a page, not its most recent
// one, is what bounds checkpoint age.
func (t *ShardedTracker) Insert(page common.Bnum, startLSN, endLSN common.LSN) {
	s := t.shardFor(page)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.pages[page]; ok {
		if endLSN > existing.endLSN {
			existing.endLSN = endLSN
		}
		s.pages[page] = existing
		return
	}
	s.pages[page] = entry{startLSN: startLSN, endLSN: endLSN}
}

// Evict implements Tracker.
func (t *ShardedTracker) Evict(page common.Bnum) {
	s := t.shardFor(page)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pages, page)
}

// OldestModification implements Tracker by scanning every shard under
// its read lock and returning the minimum start LSN found.
func (t *ShardedTracker) OldestModification() (common.LSN, bool) {
	var oldest common.LSN
	found := false
	for _, s := range t.shards {
		s.mu.RLock()
		for _, e := range s.pages {
			if !found || e.startLSN < oldest {
				oldest = e.startLSN
				found = true
			}
		}
		s.mu.RUnlock()
	}
	return oldest, found
}

// Len returns the number of pages currently tracked, for tests and
// introspection.
func (t *ShardedTracker) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.RLock()
		n += len(s.pages)
		s.mu.RUnlock()
	}
	return n
}
