package eventcache

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queryCacheHitsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dora_eventcache_query_cache_hits_total",
		Help: "Number of queries answered from the query cache",
	})
	queryCacheMissCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dora_eventcache_query_cache_misses_total",
		Help: "Number of queries not found in the query cache",
	})
	coverageHitsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dora_eventcache_coverage_hits_total",
		Help: "Number of queries with existing coverage for their scope",
	})
	coverageMissCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dora_eventcache_coverage_misses_total",
		Help: "Number of queries for a cold scope",
	})
	sourceFetchCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dora_eventcache_source_fetches_total",
		Help: "Number of range requests sent to the event source",
	})
	sourceErrorCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dora_eventcache_source_errors_total",
		Help: "Number of failed range requests",
	})
	fetchedBlocksCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dora_eventcache_fetched_blocks_total",
		Help: "Number of blocks requested from the event source",
	})
	repairedRecordsCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dora_eventcache_repaired_records_total",
		Help: "Number of evicted records restored by the repair engine",
	})

	eventStoreSizeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dora_eventcache_event_store_size",
		Help: "Number of records in the event store",
	})
	coverageIndexSizeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dora_eventcache_coverage_index_size",
		Help: "Number of scopes in the coverage index",
	})
	queryCacheSizeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dora_eventcache_query_cache_size",
		Help: "Number of exact queries in the query cache",
	})
)

// Stats is a snapshot of a client's store sizes and counters.
type Stats struct {
	EventStoreSize    int `json:"event_store_size"`
	CoverageIndexSize int `json:"coverage_index_size"`
	QueryCacheSize    int `json:"query_cache_size"`

	QueryCacheHits   uint64 `json:"query_cache_hits"`
	QueryCacheMisses uint64 `json:"query_cache_misses"`
	CoverageHits     uint64 `json:"coverage_hits"`
	CoverageMisses   uint64 `json:"coverage_misses"`
	SourceFetches    uint64 `json:"source_fetches"`
	SourceErrors     uint64 `json:"source_errors"`
	FetchedBlocks    uint64 `json:"fetched_blocks"`
	RepairedRecords  uint64 `json:"repaired_records"`
}

type clientStats struct {
	queryCacheHits   atomic.Uint64
	queryCacheMisses atomic.Uint64
	coverageHits     atomic.Uint64
	coverageMisses   atomic.Uint64
	sourceFetches    atomic.Uint64
	sourceErrors     atomic.Uint64
	fetchedBlocks    atomic.Uint64
	repairedRecords  atomic.Uint64
}

func (s *clientStats) queryCacheHit() {
	s.queryCacheHits.Add(1)
	queryCacheHitsCounter.Inc()
}

func (s *clientStats) queryCacheMiss() {
	s.queryCacheMisses.Add(1)
	queryCacheMissCounter.Inc()
}

func (s *clientStats) coverageHit() {
	s.coverageHits.Add(1)
	coverageHitsCounter.Inc()
}

func (s *clientStats) coverageMiss() {
	s.coverageMisses.Add(1)
	coverageMissCounter.Inc()
}

func (s *clientStats) sourceFetch(r Range) {
	s.sourceFetches.Add(1)
	s.fetchedBlocks.Add(r.Blocks())
	sourceFetchCounter.Inc()
	fetchedBlocksCounter.Add(float64(r.Blocks()))
}

func (s *clientStats) sourceError() {
	s.sourceErrors.Add(1)
	sourceErrorCounter.Inc()
}

func (s *clientStats) repaired(count int) {
	s.repairedRecords.Add(uint64(count))
	repairedRecordsCounter.Add(float64(count))
}
