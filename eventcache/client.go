package eventcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
)

// Client answers event queries from its caches and loads missing ranges from the source.
// Every client owns its stores; Close releases them.
type Client struct {
	logger   logrus.FieldLogger
	config   Config
	resolver BlockResolver

	events   EventStore
	coverage *CoverageIndex
	queries  *QueryCache

	fetcher  *FetchOrchestrator
	repairer *RepairEngine
	stats    *clientStats
}

// NewClient creates a cache client on top of source. resolver may be nil if all
// queries use concrete block numbers.
func NewClient(config Config, source Source, resolver BlockResolver, logger logrus.FieldLogger) (*Client, error) {
	if source == nil {
		return nil, fmt.Errorf("cannot initialize event cache without source")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	if err := config.applyDefaults(); err != nil {
		return nil, err
	}

	events := config.EventStore
	if events == nil {
		store, err := NewLruEventStore(config.EventStoreSize)
		if err != nil {
			return nil, err
		}
		events = store
	}

	coverage, err := NewCoverageIndex(config.CoverageIndexSize)
	if err != nil {
		return nil, err
	}

	queries, err := NewQueryCache(config.QueryCacheSize)
	if err != nil {
		return nil, err
	}

	stats := &clientStats{}

	client := &Client{
		logger:   logger,
		config:   config,
		resolver: resolver,
		events:   events,
		coverage: coverage,
		queries:  queries,
		stats:    stats,
		fetcher: &FetchOrchestrator{
			logger:      logger.WithField("module", "fetcher"),
			source:      source,
			events:      events,
			coverage:    coverage,
			stats:       stats,
			minGap:      config.MinMissingRangeGap,
			concurrency: config.FetchConcurrency,
		},
		repairer: &RepairEngine{
			logger: logger.WithField("module", "repair"),
			source: source,
			events: events,
			stats:  stats,
			minGap: config.MinMissingRangeGap,
		},
	}

	return client, nil
}

func (c *Client) EventStore() EventStore {
	return c.events
}

func (c *Client) CoverageIndex() *CoverageIndex {
	return c.coverage
}

func (c *Client) QueryCache() *QueryCache {
	return c.queries
}

// GetEvents returns all events of the query scope within the query range, ascending
// by block and log index.
func (c *Client) GetEvents(ctx context.Context, query *Query) ([]*EventRecord, error) {
	scope := query.Scope()
	scopeKey := scope.Key()

	fromTag := tagOrLatest(query.FromBlock)
	toTag := tagOrLatest(query.ToBlock)

	head := &chainHead{resolver: c.resolver}

	var requested Range
	concrete := fromTag >= 0 && toTag >= 0
	if concrete {
		requested = Range{From: uint64(fromTag), To: uint64(toTag)}
		if requested.From > requested.To {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRange, requested)
		}

		if keys, ok := c.queries.Get(scopeKey, requested); ok {
			return c.resolveCached(ctx, scope, requested, keys)
		}
	} else {
		var err error
		requested, err = c.resolveRange(ctx, head, fromTag, toTag)
		if err != nil {
			return nil, err
		}

		if keys, ok := c.queries.Get(scopeKey, requested); ok {
			return c.resolveCached(ctx, scope, requested, keys)
		}
	}

	c.stats.queryCacheMiss()

	snapshot, found, err := c.coverage.Snapshot(scopeKey, requested)
	if err != nil {
		return nil, err
	}

	var cachedKeys []EventKey
	var fetched []*EventRecord
	if found {
		c.stats.coverageHit()

		missing := ComputeCoverage(snapshot.Ranges, requested).Missing
		if len(missing) > 0 {
			c.logger.Debugf("coverage hit for %v %v, %v missing ranges", scopeKey, requested, len(missing))
		}

		fetched, err = c.fetcher.Fetch(ctx, scope, missing, head)
		if err != nil {
			return nil, err
		}
		cachedKeys = snapshot.Keys
	} else {
		c.stats.coverageMiss()
		c.logger.Debugf("coverage miss for %v %v, full fetch", scopeKey, requested)

		fetched, err = c.fetcher.Fetch(ctx, scope, []Range{requested}, head)
		if err != nil {
			return nil, err
		}
	}

	keys, known := assembleKeys(requested, cachedKeys, fetched)

	records, err := c.repairer.resolve(ctx, scope, keys, known)
	if err != nil {
		return nil, err
	}

	// blocks past the head are not covered yet, the result is incomplete until they exist
	if !head.before(requested.To) {
		c.queries.Add(scopeKey, requested, keys)
	}

	return records, nil
}

func (c *Client) resolveCached(ctx context.Context, scope Scope, requested Range, keys []EventKey) ([]*EventRecord, error) {
	c.stats.queryCacheHit()

	records, err := c.repairer.Repair(ctx, scope, keys)
	if err != nil {
		if errors.Is(err, ErrRecordMissing) {
			// the cached result no longer matches the source
			c.queries.Remove(scope.Key(), requested)
		}
		return nil, err
	}
	return records, nil
}

// resolveRange turns the block tags into a concrete range. Tags are resolved on every
// call and never cached.
func (c *Client) resolveRange(ctx context.Context, head *chainHead, fromTag rpc.BlockNumber, toTag rpc.BlockNumber) (Range, error) {
	resolve := func(tag rpc.BlockNumber) (uint64, error) {
		switch {
		case tag >= 0:
			return uint64(tag), nil
		case tag == rpc.EarliestBlockNumber:
			return 0, nil
		}

		if c.resolver == nil {
			return 0, &BlockRangeResolutionError{Tag: tag, Err: fmt.Errorf("no block resolver configured")}
		}

		if tag == rpc.LatestBlockNumber {
			number, _, err := head.get(ctx)
			return number, err
		}

		number, err := c.resolver.GetBlockNumberByTag(ctx, tag)
		if err != nil {
			return 0, &BlockRangeResolutionError{Tag: tag, Err: err}
		}
		return number, nil
	}

	from, err := resolve(fromTag)
	if err != nil {
		return Range{}, err
	}
	to, err := resolve(toTag)
	if err != nil {
		return Range{}, err
	}

	if from > to {
		return Range{}, fmt.Errorf("%w: [%v-%v] (%v - %v)", ErrInvalidRange, from, to, fromTag.String(), toTag.String())
	}

	return Range{From: from, To: to}, nil
}

// Stats returns the current store sizes and counters of the client.
func (c *Client) Stats() Stats {
	return Stats{
		EventStoreSize:    c.events.Len(),
		CoverageIndexSize: c.coverage.Len(),
		QueryCacheSize:    c.queries.Len(),
		QueryCacheHits:    c.stats.queryCacheHits.Load(),
		QueryCacheMisses:  c.stats.queryCacheMisses.Load(),
		CoverageHits:      c.stats.coverageHits.Load(),
		CoverageMisses:    c.stats.coverageMisses.Load(),
		SourceFetches:     c.stats.sourceFetches.Load(),
		SourceErrors:      c.stats.sourceErrors.Load(),
		FetchedBlocks:     c.stats.fetchedBlocks.Load(),
		RepairedRecords:   c.stats.repairedRecords.Load(),
	}
}

// PublishMetrics updates the store size gauges, meant as a metrics pre-collect hook.
func (c *Client) PublishMetrics() {
	eventStoreSizeGauge.Set(float64(c.events.Len()))
	coverageIndexSizeGauge.Set(float64(c.coverage.Len()))
	queryCacheSizeGauge.Set(float64(c.queries.Len()))
}

// Close drops all cached data.
func (c *Client) Close() {
	c.queries.Purge()
	c.coverage.Purge()
	c.events.Purge()
}

func tagOrLatest(tag *rpc.BlockNumber) rpc.BlockNumber {
	if tag == nil {
		return rpc.LatestBlockNumber
	}
	return *tag
}

// assembleKeys merges the indexed keys of the covered part with freshly fetched records,
// restricted to r. The fetched records are returned by key for direct resolution.
func assembleKeys(r Range, cachedKeys []EventKey, fetched []*EventRecord) ([]EventKey, map[EventKey]*EventRecord) {
	known := make(map[EventKey]*EventRecord, len(fetched))
	keys := make([]EventKey, 0, len(cachedKeys)+len(fetched))

	for _, key := range cachedKeys {
		if r.Contains(key.BlockNumber) {
			keys = append(keys, key)
		}
	}
	for _, record := range fetched {
		if !r.Contains(record.BlockNumber) {
			continue
		}
		key := record.Key()
		known[key] = record
		keys = append(keys, key)
	}

	return sortKeys(keys), known
}
