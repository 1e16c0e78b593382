package eventcache

import (
	"context"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"
)

// RepairEngine resolves event keys against the event store and re-fetches records
// that were evicted independently of the index referencing them.
type RepairEngine struct {
	logger logrus.FieldLogger
	source Source
	events EventStore
	stats  *clientStats
	minGap uint64
}

// Repair returns the records of keys in the same order, re-fetching evicted ones.
func (re *RepairEngine) Repair(ctx context.Context, scope Scope, keys []EventKey) ([]*EventRecord, error) {
	return re.resolve(ctx, scope, keys, nil)
}

// resolve is Repair with a set of records already in hand, which are preferred over
// store lookups.
func (re *RepairEngine) resolve(ctx context.Context, scope Scope, keys []EventKey, known map[EventKey]*EventRecord) ([]*EventRecord, error) {
	records := make([]*EventRecord, len(keys))
	holes := []int{}
	holeBlocks := []uint64{}

	for idx, key := range keys {
		if record := known[key]; record != nil {
			records[idx] = record
			continue
		}
		if record, ok := re.events.Get(key); ok {
			records[idx] = record
			continue
		}
		holes = append(holes, idx)
		holeBlocks = append(holeBlocks, key.BlockNumber)
	}

	if len(holes) == 0 {
		return records, nil
	}

	slices.Sort(holeBlocks)
	ranges := MergeGaps(blocksToRanges(holeBlocks), re.minGap)
	scopeKey := scope.Key()

	re.logger.Debugf("repairing %v evicted events of %v in %v ranges", len(holes), scopeKey, len(ranges))

	recovered := make(map[EventKey]*EventRecord, len(holes))
	for _, r := range ranges {
		re.stats.sourceFetch(r)

		fetched, err := re.source.GetEvents(ctx, scope, r.From, r.To)
		if err != nil {
			re.stats.sourceError()
			return nil, &SourceFetchError{Scope: scopeKey, Range: r, Err: err}
		}

		for _, record := range filterRecords(re.logger, scope, r, fetched) {
			re.events.Add(record)
			recovered[record.Key()] = record
		}
	}

	for _, idx := range holes {
		record := recovered[keys[idx]]
		if record == nil {
			return nil, fmt.Errorf("%w: %v in %v", ErrRecordMissing, keys[idx], scopeKey)
		}
		records[idx] = record
	}

	re.stats.repaired(len(holes))

	return records, nil
}
