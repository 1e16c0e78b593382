package eventcache

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCoverage(t *testing.T) {
	tests := []struct {
		name            string
		covered         []Range
		requested       Range
		expectedMissing []Range
		expectedMerged  []Range
	}{
		{
			name:            "cold scope",
			covered:         []Range{},
			requested:       Range{10, 20},
			expectedMissing: []Range{{10, 20}},
			expectedMerged:  []Range{{10, 20}},
		},
		{
			name:            "fully covered",
			covered:         []Range{{5, 50}},
			requested:       Range{10, 20},
			expectedMissing: []Range{},
			expectedMerged:  []Range{{5, 50}},
		},
		{
			name:            "gap between two ranges",
			covered:         []Range{{10, 20}, {30, 40}},
			requested:       Range{15, 35},
			expectedMissing: []Range{{21, 29}},
			expectedMerged:  []Range{{10, 40}},
		},
		{
			name:            "disjoint after",
			covered:         []Range{{10, 20}},
			requested:       Range{30, 40},
			expectedMissing: []Range{{30, 40}},
			expectedMerged:  []Range{{10, 20}, {30, 40}},
		},
		{
			name:            "disjoint before",
			covered:         []Range{{30, 40}},
			requested:       Range{10, 20},
			expectedMissing: []Range{{10, 20}},
			expectedMerged:  []Range{{10, 20}, {30, 40}},
		},
		{
			name:            "adjacent before is folded",
			covered:         []Range{{1, 9}},
			requested:       Range{10, 20},
			expectedMissing: []Range{{10, 20}},
			expectedMerged:  []Range{{1, 20}},
		},
		{
			name:            "adjacent after is folded",
			covered:         []Range{{21, 30}},
			requested:       Range{10, 20},
			expectedMissing: []Range{{10, 20}},
			expectedMerged:  []Range{{10, 30}},
		},
		{
			name:            "adjacent on both sides",
			covered:         []Range{{1, 9}, {21, 30}, {40, 50}},
			requested:       Range{10, 20},
			expectedMissing: []Range{{10, 20}},
			expectedMerged:  []Range{{1, 30}, {40, 50}},
		},
		{
			name:            "request spans several ranges",
			covered:         []Range{{0, 2}, {12, 14}, {20, 22}, {30, 32}, {60, 70}},
			requested:       Range{13, 31},
			expectedMissing: []Range{{15, 19}, {23, 29}},
			expectedMerged:  []Range{{0, 2}, {12, 32}, {60, 70}},
		},
		{
			name:            "request extends beyond covered edges",
			covered:         []Range{{20, 30}},
			requested:       Range{10, 40},
			expectedMissing: []Range{{10, 19}, {31, 40}},
			expectedMerged:  []Range{{10, 40}},
		},
		{
			name:            "single block",
			covered:         []Range{{5, 5}},
			requested:       Range{5, 5},
			expectedMissing: []Range{},
			expectedMerged:  []Range{{5, 5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ComputeCoverage(tt.covered, tt.requested)

			assert.Equal(t, tt.expectedMissing, result.Missing)
			assert.Equal(t, tt.expectedMerged, result.Merged)
			assert.NoError(t, ValidateRanges(result.Merged))
		})
	}
}

func TestComputeCoverageProperties(t *testing.T) {
	const maxBlock = 200
	rnd := rand.New(rand.NewPCG(42, 1337))

	randomRange := func() Range {
		from := rnd.Uint64N(maxBlock)
		return Range{From: from, To: from + rnd.Uint64N(25)}
	}

	for iteration := 0; iteration < 500; iteration++ {
		// build a valid covered set through the calculator itself
		covered := []Range{}
		for n := rnd.IntN(8); n > 0; n-- {
			covered = ComputeCoverage(covered, randomRange()).Merged
		}
		require.NoError(t, ValidateRanges(covered))

		requested := randomRange()
		result := ComputeCoverage(covered, requested)

		coveredSet := blockSet(covered)
		mergedSet := blockSet(result.Merged)
		missingSet := blockSet(result.Missing)

		expectedMerged := blockSet(covered)
		expectedMissing := map[uint64]bool{}
		for block := requested.From; block <= requested.To; block++ {
			expectedMerged[block] = true
			if !coveredSet[block] {
				expectedMissing[block] = true
			}
		}

		require.Equal(t, expectedMerged, mergedSet, "merged union of %v + %v", covered, requested)
		require.Equal(t, expectedMissing, missingSet, "missing of %v in %v", requested, covered)
		require.NoError(t, ValidateRanges(result.Merged))
		require.NoError(t, ValidateRanges(result.Missing))

		again := ComputeCoverage(result.Merged, requested)
		require.Empty(t, again.Missing)
		require.Equal(t, result.Merged, again.Merged)
	}
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name   string
		ranges []Range
		valid  bool
	}{
		{"empty", []Range{}, true},
		{"sorted disjoint", []Range{{1, 5}, {7, 9}}, true},
		{"inverted", []Range{{5, 1}}, false},
		{"overlapping", []Range{{1, 5}, {5, 9}}, false},
		{"unsorted", []Range{{10, 15}, {1, 5}}, false},
		{"adjacent", []Range{{1, 5}, {6, 9}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRanges(tt.ranges)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvariantViolation)
			}
		})
	}
}

func TestMergeGaps(t *testing.T) {
	tests := []struct {
		name     string
		ranges   []Range
		minGap   uint64
		expected []Range
	}{
		{"merged below threshold", []Range{{10, 20}, {25, 30}}, 11, []Range{{10, 30}}},
		{"kept apart above threshold", []Range{{10, 20}, {25, 30}}, 4, []Range{{10, 20}, {25, 30}}},
		{"gap equal to threshold", []Range{{10, 20}, {25, 30}}, 5, []Range{{10, 20}, {25, 30}}},
		{"chain of small gaps", []Range{{1, 1}, {5, 5}, {9, 9}, {40, 41}}, 11, []Range{{1, 9}, {40, 41}}},
		{"single", []Range{{3, 4}}, 11, []Range{{3, 4}}},
		{"empty", []Range{}, 11, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MergeGaps(tt.ranges, tt.minGap))
		})
	}
}

func blockSet(ranges []Range) map[uint64]bool {
	set := map[uint64]bool{}
	for _, r := range ranges {
		for block := r.From; block <= r.To; block++ {
			set[block] = true
		}
	}
	return set
}
