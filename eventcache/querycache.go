package eventcache

import (
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// QueryCache maps an exact query (scope + concrete range) to the ordered keys answering it.
// The referenced records may be evicted from the EventStore at any time.
type QueryCache struct {
	cache *lru.Cache[queryKey, []EventKey]
}

func NewQueryCache(size int) (*QueryCache, error) {
	cache, err := lru.New[queryKey, []EventKey](size)
	if err != nil {
		return nil, fmt.Errorf("could not create query cache: %w", err)
	}

	return &QueryCache{
		cache: cache,
	}, nil
}

func (qc *QueryCache) Get(scope string, r Range) ([]EventKey, bool) {
	keys, ok := qc.cache.Get(queryKey{scope: scope, from: r.From, to: r.To})
	if !ok {
		return nil, false
	}
	return slices.Clone(keys), true
}

func (qc *QueryCache) Add(scope string, r Range, keys []EventKey) {
	qc.cache.Add(queryKey{scope: scope, from: r.From, to: r.To}, slices.Clone(keys))
}

func (qc *QueryCache) Remove(scope string, r Range) {
	qc.cache.Remove(queryKey{scope: scope, from: r.From, to: r.To})
}

func (qc *QueryCache) Len() int {
	return qc.cache.Len()
}

func (qc *QueryCache) Purge() {
	qc.cache.Purge()
}
