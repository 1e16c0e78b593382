package eventcache

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrInvariantViolation is returned when coverage read from the index is not sorted,
	// overlaps or contains unmerged adjacent ranges.
	ErrInvariantViolation = errors.New("coverage invariant violation")

	// ErrInvalidRange is returned when a query resolves to fromBlock > toBlock.
	ErrInvalidRange = errors.New("invalid block range")

	// ErrRecordMissing is returned when a repair fetch did not return an evicted record.
	ErrRecordMissing = errors.New("record missing after repair")
)

// SourceFetchError is returned when the source failed to deliver events for a range.
type SourceFetchError struct {
	Scope string
	Range Range
	Err   error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("error fetching events for %v %v: %v", e.Scope, e.Range, e.Err)
}

func (e *SourceFetchError) Unwrap() error {
	return e.Err
}

// BlockRangeResolutionError is returned when a symbolic block tag could not be resolved.
type BlockRangeResolutionError struct {
	Tag rpc.BlockNumber
	Err error
}

func (e *BlockRangeResolutionError) Error() string {
	return fmt.Sprintf("could not resolve block tag %v: %v", e.Tag.String(), e.Err)
}

func (e *BlockRangeResolutionError) Unwrap() error {
	return e.Err
}
