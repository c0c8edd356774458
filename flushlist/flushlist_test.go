package flushlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptyTrackerHasNoOldest(t *testing.T) {
	tr := NewShardedTracker()
	_, ok := tr.OldestModification()
	assert.False(t, ok)
}

func TestOldestModificationTracksMinimum(t *testing.T) {
	tr := NewShardedTracker()
	tr.Insert(1, 100, 150)
	tr.Insert(2, 50, 80)
	tr.Insert(3, 200, 260)

	oldest, ok := tr.OldestModification()
	assert.True(t, ok)
	assert.Equal(t, uint64(50), uint64(oldest))
}

func TestInsertKeepsEarliestStartLSN(t *testing.T) {
	tr := NewShardedTracker()
	tr.Insert(1, 100, 150)
	tr.Insert(1, 200, 260)

	oldest, ok := tr.OldestModification()
	assert.True(t, ok)
	assert.Equal(t, uint64(100), uint64(oldest))
}

func TestEvictRemovesPage(t *testing.T) {
	tr := NewShardedTracker()
	tr.Insert(1, 100, 150)
	tr.Evict(1)
	_, ok := tr.OldestModification()
	assert.False(t, ok)
	assert.Equal(t, 0, tr.Len())
}

func TestLenCountsDistinctPages(t *testing.T) {
	tr := NewShardedTracker()
	tr.Insert(1, 10, 20)
	tr.Insert(2, 10, 20)
	tr.Insert(1, 30, 40)
	assert.Equal(t, 2, tr.Len())
}
