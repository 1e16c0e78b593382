package eventcache

import (
	"fmt"
)

// CoverageResult is the outcome of reconciling covered ranges with a requested range.
type CoverageResult struct {
	// Missing are the parts of the requested range not covered yet.
	Missing []Range
	// Merged is the covered set after adding the requested range.
	Merged []Range
}

// ComputeCoverage sweeps the sorted covered ranges once and returns the sub ranges of
// requested that still need to be fetched, together with the covered set extended by
// requested. Covered must be sorted, disjoint and merged (see ValidateRanges).
func ComputeCoverage(covered []Range, requested Range) CoverageResult {
	result := CoverageResult{
		Missing: []Range{},
		Merged:  make([]Range, 0, len(covered)+1),
	}

	cursor := requested.From
	pending := requested
	flushed := false

	for _, r := range covered {
		switch {
		case r.To < requested.From:
			if r.To+1 >= pending.From {
				pending.From = r.From
			} else {
				result.Merged = append(result.Merged, r)
			}

		case r.From > requested.To:
			if !flushed && r.From <= pending.To+1 {
				if r.To > pending.To {
					pending.To = r.To
				}
				continue
			}
			if !flushed {
				result.Merged = append(result.Merged, pending)
				flushed = true
			}
			result.Merged = append(result.Merged, r)

		default:
			if r.From < pending.From {
				pending.From = r.From
			}
			if r.To > pending.To {
				pending.To = r.To
			}
			if cursor < r.From {
				result.Missing = append(result.Missing, Range{From: cursor, To: r.From - 1})
			}
			if r.To+1 > cursor {
				cursor = r.To + 1
			}
		}
	}

	if cursor <= requested.To {
		result.Missing = append(result.Missing, Range{From: cursor, To: requested.To})
	}
	if !flushed {
		result.Merged = append(result.Merged, pending)
	}

	return result
}

// ValidateRanges checks that ranges are well formed, sorted ascending, disjoint and
// that no two neighbours touch without a gap.
func ValidateRanges(ranges []Range) error {
	for idx, r := range ranges {
		if r.From > r.To {
			return fmt.Errorf("%w: range %v is inverted", ErrInvariantViolation, r)
		}
		if idx == 0 {
			continue
		}
		prev := ranges[idx-1]
		if r.From <= prev.To {
			return fmt.Errorf("%w: range %v overlaps or precedes %v", ErrInvariantViolation, r, prev)
		}
		if r.From == prev.To+1 {
			return fmt.Errorf("%w: range %v is adjacent to %v", ErrInvariantViolation, r, prev)
		}
	}
	return nil
}

// MergeGaps joins consecutive sorted ranges which are separated by less than minGap
// blocks (next.From - prev.To < minGap) into a single range.
func MergeGaps(ranges []Range, minGap uint64) []Range {
	if len(ranges) == 0 {
		return nil
	}

	merged := make([]Range, 0, len(ranges))
	current := ranges[0]
	for _, r := range ranges[1:] {
		if r.From <= current.To || r.From-current.To < minGap {
			if r.To > current.To {
				current.To = r.To
			}
			continue
		}
		merged = append(merged, current)
		current = r
	}

	return append(merged, current)
}

// blocksToRanges turns an ascending list of block numbers into single block ranges,
// skipping duplicates.
func blocksToRanges(blocks []uint64) []Range {
	ranges := make([]Range, 0, len(blocks))
	for idx, block := range blocks {
		if idx > 0 && blocks[idx-1] == block {
			continue
		}
		ranges = append(ranges, Range{From: block, To: block})
	}
	return ranges
}
