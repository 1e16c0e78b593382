package eventcache

import (
	"fmt"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/tidwall/btree"
)

// CoverageEntry tracks which ranges of a scope are cached and which event keys
// occur in each covered block.
type CoverageEntry struct {
	ranges        []Range
	eventsByBlock *btree.Map[uint64, []EventKey]
}

func newCoverageEntry() *CoverageEntry {
	return &CoverageEntry{
		ranges:        []Range{},
		eventsByBlock: &btree.Map[uint64, []EventKey]{},
	}
}

func (entry *CoverageEntry) clone() *CoverageEntry {
	return &CoverageEntry{
		ranges:        slices.Clone(entry.ranges),
		eventsByBlock: entry.eventsByBlock.Copy(),
	}
}

// Ranges returns a copy of the covered ranges.
func (entry *CoverageEntry) Ranges() []Range {
	return slices.Clone(entry.ranges)
}

// BlockCount returns the number of blocks holding at least one event.
func (entry *CoverageEntry) BlockCount() int {
	return entry.eventsByBlock.Len()
}

// eventsInRange returns the keys of all indexed events in r, in block and log order.
func (entry *CoverageEntry) eventsInRange(r Range) []EventKey {
	keys := []EventKey{}
	entry.eventsByBlock.Ascend(r.From, func(block uint64, blockKeys []EventKey) bool {
		if block > r.To {
			return false
		}
		keys = append(keys, blockKeys...)
		return true
	})
	return keys
}

// commit records a fully fetched range. keysByBlock must hold the keys of every event
// inside r, blocks without events are simply absent.
func (entry *CoverageEntry) commit(r Range, keysByBlock map[uint64][]EventKey) error {
	if err := ValidateRanges(entry.ranges); err != nil {
		return err
	}

	stale := []uint64{}
	entry.eventsByBlock.Ascend(r.From, func(block uint64, _ []EventKey) bool {
		if block > r.To {
			return false
		}
		stale = append(stale, block)
		return true
	})
	for _, block := range stale {
		entry.eventsByBlock.Delete(block)
	}

	for block, keys := range keysByBlock {
		if !r.Contains(block) {
			return fmt.Errorf("%w: block %v outside committed range %v", ErrInvariantViolation, block, r)
		}
		entry.eventsByBlock.Set(block, sortKeys(slices.Clone(keys)))
	}

	entry.ranges = ComputeCoverage(entry.ranges, r).Merged
	return nil
}

// CoverageSnapshot is a point in time view of a scope's coverage.
type CoverageSnapshot struct {
	Ranges []Range
	// Keys holds the indexed event keys inside the snapshot range.
	Keys []EventKey
}

// CoverageIndex maps scopes to their coverage. All mutation goes through Update,
// which serializes writers of the same scope.
type CoverageIndex struct {
	cache *lru.Cache[string, *CoverageEntry]
	locks *scopeLocks
}

func NewCoverageIndex(size int) (*CoverageIndex, error) {
	cache, err := lru.New[string, *CoverageEntry](size)
	if err != nil {
		return nil, fmt.Errorf("could not create coverage index: %w", err)
	}

	return &CoverageIndex{
		cache: cache,
		locks: newScopeLocks(),
	}, nil
}

// Snapshot returns the covered ranges of scope and the indexed keys within r.
// It returns false when the scope is cold.
func (ci *CoverageIndex) Snapshot(scope string, r Range) (*CoverageSnapshot, bool, error) {
	unlock := ci.locks.lock(scope)
	defer unlock()

	entry, ok := ci.cache.Get(scope)
	if !ok {
		return nil, false, nil
	}

	if err := ValidateRanges(entry.ranges); err != nil {
		return nil, true, fmt.Errorf("coverage of %v: %w", scope, err)
	}

	return &CoverageSnapshot{
		Ranges: entry.Ranges(),
		Keys:   entry.eventsInRange(r),
	}, true, nil
}

// Update runs fn on a copy of the scope's entry (a fresh one if the scope is cold)
// and stores the result if fn succeeds.
func (ci *CoverageIndex) Update(scope string, fn func(entry *CoverageEntry) error) error {
	unlock := ci.locks.lock(scope)
	defer unlock()

	var entry *CoverageEntry
	if current, ok := ci.cache.Get(scope); ok {
		entry = current.clone()
	} else {
		entry = newCoverageEntry()
	}

	if err := fn(entry); err != nil {
		return err
	}

	ci.cache.Add(scope, entry)
	return nil
}

// Ranges returns the covered ranges of scope, or nil for a cold scope.
func (ci *CoverageIndex) Ranges(scope string) []Range {
	unlock := ci.locks.lock(scope)
	defer unlock()

	entry, ok := ci.cache.Peek(scope)
	if !ok {
		return nil
	}
	return entry.Ranges()
}

func (ci *CoverageIndex) Remove(scope string) {
	unlock := ci.locks.lock(scope)
	defer unlock()

	ci.cache.Remove(scope)
}

func (ci *CoverageIndex) Len() int {
	return ci.cache.Len()
}

func (ci *CoverageIndex) Purge() {
	ci.cache.Purge()
}

// scopeLocks is a keyed mutex, entries are dropped once no goroutine holds or waits on them.
type scopeLocks struct {
	mutex sync.Mutex
	locks map[string]*scopeLock
}

type scopeLock struct {
	sync.Mutex
	refs int
}

func newScopeLocks() *scopeLocks {
	return &scopeLocks{
		locks: map[string]*scopeLock{},
	}
}

func (sl *scopeLocks) lock(key string) func() {
	sl.mutex.Lock()
	lock := sl.locks[key]
	if lock == nil {
		lock = &scopeLock{}
		sl.locks[key] = lock
	}
	lock.refs++
	sl.mutex.Unlock()

	lock.Lock()

	return func() {
		lock.Unlock()

		sl.mutex.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(sl.locks, key)
		}
		sl.mutex.Unlock()
	}
}
