package eventcache

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(block uint64, logIndex uint) EventKey {
	return EventKey{ChainID: testChainID, BlockNumber: block, LogIndex: logIndex}
}

func TestCoverageIndexUpdate(t *testing.T) {
	index, err := NewCoverageIndex(10)
	require.NoError(t, err)

	err = index.Update("scope", func(entry *CoverageEntry) error {
		return entry.commit(Range{10, 20}, map[uint64][]EventKey{
			15: {key(15, 2), key(15, 0), key(15, 1)},
			11: {key(11, 0)},
		})
	})
	require.NoError(t, err)

	snapshot, found, err := index.Snapshot("scope", Range{10, 20})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []Range{{10, 20}}, snapshot.Ranges)
	assert.Equal(t, []EventKey{key(11, 0), key(15, 0), key(15, 1), key(15, 2)}, snapshot.Keys)

	snapshot, _, err = index.Snapshot("scope", Range{12, 20})
	require.NoError(t, err)
	assert.Equal(t, []EventKey{key(15, 0), key(15, 1), key(15, 2)}, snapshot.Keys)

	// refetching a range replaces the block index inside it
	err = index.Update("scope", func(entry *CoverageEntry) error {
		return entry.commit(Range{14, 25}, map[uint64][]EventKey{
			24: {key(24, 0)},
		})
	})
	require.NoError(t, err)

	snapshot, _, err = index.Snapshot("scope", Range{0, 100})
	require.NoError(t, err)
	assert.Equal(t, []Range{{10, 25}}, snapshot.Ranges)
	assert.Equal(t, []EventKey{key(11, 0), key(24, 0)}, snapshot.Keys)
}

func TestCoverageIndexFailedUpdateKeepsEntry(t *testing.T) {
	index, err := NewCoverageIndex(10)
	require.NoError(t, err)

	require.NoError(t, index.Update("scope", func(entry *CoverageEntry) error {
		return entry.commit(Range{10, 20}, map[uint64][]EventKey{12: {key(12, 0)}})
	}))

	err = index.Update("scope", func(entry *CoverageEntry) error {
		return entry.commit(Range{30, 40}, map[uint64][]EventKey{50: {key(50, 0)}})
	})
	assert.ErrorIs(t, err, ErrInvariantViolation)

	failure := errors.New("abort")
	err = index.Update("scope", func(entry *CoverageEntry) error {
		entry.ranges = append(entry.ranges, Range{100, 200})
		return failure
	})
	assert.ErrorIs(t, err, failure)

	assert.Equal(t, []Range{{10, 20}}, index.Ranges("scope"))
	assert.Nil(t, index.Ranges("cold"))
}

func TestCoverageIndexColdAndEviction(t *testing.T) {
	index, err := NewCoverageIndex(2)
	require.NoError(t, err)

	_, found, err := index.Snapshot("a", Range{0, 1})
	require.NoError(t, err)
	assert.False(t, found)

	for _, scope := range []string{"a", "b", "c"} {
		require.NoError(t, index.Update(scope, func(entry *CoverageEntry) error {
			return entry.commit(Range{1, 2}, nil)
		}))
	}

	assert.Equal(t, 2, index.Len())
	assert.Nil(t, index.Ranges("a"))
	assert.Equal(t, []Range{{1, 2}}, index.Ranges("c"))
}

func TestScopeLocksCleanup(t *testing.T) {
	locks := newScopeLocks()

	var wg sync.WaitGroup
	counter := 0
	for idx := 0; idx < 100; idx++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("scope")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
	assert.Empty(t, locks.locks)
}

func TestQueryCacheCopies(t *testing.T) {
	cache, err := NewQueryCache(2)
	require.NoError(t, err)

	keys := []EventKey{key(1, 0), key(2, 0)}
	cache.Add("scope", Range{1, 2}, keys)
	keys[0] = key(9, 9)

	cached, ok := cache.Get("scope", Range{1, 2})
	require.True(t, ok)
	assert.Equal(t, []EventKey{key(1, 0), key(2, 0)}, cached)

	cached[1] = key(8, 8)
	again, _ := cache.Get("scope", Range{1, 2})
	assert.Equal(t, key(2, 0), again[1])

	_, ok = cache.Get("scope", Range{1, 3})
	assert.False(t, ok)
}
