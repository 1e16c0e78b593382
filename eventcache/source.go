package eventcache

import (
	"context"

	"github.com/ethereum/go-ethereum/rpc"
)

// Source loads all events of a scope within an inclusive block range.
type Source interface {
	GetEvents(ctx context.Context, scope Scope, fromBlock uint64, toBlock uint64) ([]*EventRecord, error)
}

// BlockResolver turns symbolic block tags into block numbers.
type BlockResolver interface {
	GetBlockNumber(ctx context.Context) (uint64, error)
	GetBlockNumberByTag(ctx context.Context, tag rpc.BlockNumber) (uint64, error)
}

// chainHead resolves the head block at most once per query.
type chainHead struct {
	resolver BlockResolver
	number   uint64
	loaded   bool
}

// get returns the head block number, or false if there is no resolver to ask.
func (h *chainHead) get(ctx context.Context) (uint64, bool, error) {
	if h == nil || h.resolver == nil {
		return 0, false, nil
	}

	if !h.loaded {
		number, err := h.resolver.GetBlockNumber(ctx)
		if err != nil {
			return 0, false, &BlockRangeResolutionError{Tag: rpc.LatestBlockNumber, Err: err}
		}
		h.number = number
		h.loaded = true
	}

	return h.number, true, nil
}

// before reports whether the head resolved so far lies before block.
func (h *chainHead) before(block uint64) bool {
	return h != nil && h.loaded && h.number < block
}

// SourceFunc adapts a plain function to the Source interface.
type SourceFunc func(ctx context.Context, scope Scope, fromBlock uint64, toBlock uint64) ([]*EventRecord, error)

func (fn SourceFunc) GetEvents(ctx context.Context, scope Scope, fromBlock uint64, toBlock uint64) ([]*EventRecord, error) {
	return fn(ctx, scope, fromBlock, toBlock)
}
