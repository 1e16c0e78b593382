package eventcache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// EventStore holds full event records by key. Implementations are bounded and evict
// entries on their own; callers must treat every Get as a possible miss.
type EventStore interface {
	Get(key EventKey) (*EventRecord, bool)
	Add(record *EventRecord)
	Remove(key EventKey)
	Len() int
	Purge()
}

// LruEventStore is the default EventStore, bounded by record count.
type LruEventStore struct {
	cache *lru.Cache[EventKey, *EventRecord]
}

var _ EventStore = (*LruEventStore)(nil)

func NewLruEventStore(size int) (*LruEventStore, error) {
	cache, err := lru.New[EventKey, *EventRecord](size)
	if err != nil {
		return nil, fmt.Errorf("could not create event store: %w", err)
	}

	return &LruEventStore{
		cache: cache,
	}, nil
}

func (store *LruEventStore) Get(key EventKey) (*EventRecord, bool) {
	return store.cache.Get(key)
}

func (store *LruEventStore) Add(record *EventRecord) {
	store.cache.Add(record.Key(), record)
}

func (store *LruEventStore) Remove(key EventKey) {
	store.cache.Remove(key)
}

func (store *LruEventStore) Len() int {
	return store.cache.Len()
}

func (store *LruEventStore) Purge() {
	store.cache.Purge()
}
