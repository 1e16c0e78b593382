package eventcache

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// FetchOrchestrator loads missing ranges from the source and commits them into the
// event store and coverage index.
type FetchOrchestrator struct {
	logger      logrus.FieldLogger
	source      Source
	events      EventStore
	coverage    *CoverageIndex
	stats       *clientStats
	minGap      uint64
	concurrency int
}

// Fetch gap merges missing and fetches every resulting range. The first failing range
// cancels the remaining ones; ranges committed before the failure stay committed.
// Blocks past the chain head are neither fetched nor committed as covered.
// The returned records are those fetched by this call, in no particular order.
func (fo *FetchOrchestrator) Fetch(ctx context.Context, scope Scope, missing []Range, head *chainHead) ([]*EventRecord, error) {
	ranges := MergeGaps(missing, fo.minGap)
	if len(ranges) == 0 {
		return nil, nil
	}

	limit, ok, err := head.get(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		ranges = clampRanges(ranges, limit)
		if len(ranges) == 0 {
			fo.logger.Debugf("requested ranges for %v are past the head (%v)", scope.Key(), limit)
			return nil, nil
		}
	}

	scopeKey := scope.Key()
	results := make([][]*EventRecord, len(ranges))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(fo.concurrency)

	for idx, r := range ranges {
		group.Go(func() error {
			records, err := fo.fetchRange(groupCtx, scope, scopeKey, r)
			if err != nil {
				return err
			}
			results[idx] = records
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	count := 0
	for _, records := range results {
		count += len(records)
	}
	fetched := make([]*EventRecord, 0, count)
	for _, records := range results {
		fetched = append(fetched, records...)
	}

	return fetched, nil
}

func (fo *FetchOrchestrator) fetchRange(ctx context.Context, scope Scope, scopeKey string, r Range) ([]*EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, &SourceFetchError{Scope: scopeKey, Range: r, Err: err}
	}

	t1 := time.Now()
	fo.stats.sourceFetch(r)

	records, err := fo.source.GetEvents(ctx, scope, r.From, r.To)
	if err != nil {
		fo.stats.sourceError()
		return nil, &SourceFetchError{Scope: scopeKey, Range: r, Err: err}
	}

	records = filterRecords(fo.logger, scope, r, records)

	keysByBlock := map[uint64][]EventKey{}
	for _, record := range records {
		fo.events.Add(record)
		keysByBlock[record.BlockNumber] = append(keysByBlock[record.BlockNumber], record.Key())
	}

	err = fo.coverage.Update(scopeKey, func(entry *CoverageEntry) error {
		return entry.commit(r, keysByBlock)
	})
	if err != nil {
		return nil, err
	}

	fo.logger.Debugf("fetched events for %v %v: %v events (%v blocks, %v ms)", scopeKey, r, len(records), len(keysByBlock), time.Since(t1).Milliseconds())

	return records, nil
}

// clampRanges cuts sorted ranges at block limit.
func clampRanges(ranges []Range, limit uint64) []Range {
	clamped := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.From > limit {
			break
		}
		if r.To > limit {
			r.To = limit
		}
		clamped = append(clamped, r)
	}
	return clamped
}

// filterRecords drops records that do not belong to the requested chain or range.
func filterRecords(logger logrus.FieldLogger, scope Scope, r Range, records []*EventRecord) []*EventRecord {
	filtered := records[:0:0]
	for _, record := range records {
		if record == nil {
			continue
		}
		if record.ChainID != scope.ChainID || !r.Contains(record.BlockNumber) {
			logger.Debugf("source returned unexpected event %v for %v %v", record.Key(), scope.Key(), r)
			continue
		}
		filtered = append(filtered, record)
	}
	return filtered
}
