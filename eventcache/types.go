package eventcache

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// Range is an inclusive block range.
type Range struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

func (r Range) String() string {
	return fmt.Sprintf("[%v-%v]", r.From, r.To)
}

// Blocks returns the number of blocks in the range.
func (r Range) Blocks() uint64 {
	return r.To - r.From + 1
}

func (r Range) Contains(block uint64) bool {
	return block >= r.From && block <= r.To
}

// EventKey identifies a single log on a chain.
type EventKey struct {
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block"`
	LogIndex    uint   `json:"log_index"`
}

func (k EventKey) Less(other EventKey) bool {
	if k.BlockNumber != other.BlockNumber {
		return k.BlockNumber < other.BlockNumber
	}
	return k.LogIndex < other.LogIndex
}

func (k EventKey) String() string {
	return fmt.Sprintf("%v:%v:%v", k.ChainID, k.BlockNumber, k.LogIndex)
}

// EventRecord is a fetched and decoded event log. Records are never modified after
// they have been added to an EventStore.
type EventRecord struct {
	ChainID     uint64                 `json:"chain_id"`
	BlockNumber uint64                 `json:"block_number"`
	LogIndex    uint                   `json:"log_index"`
	BlockHash   common.Hash            `json:"block_hash"`
	TxHash      common.Hash            `json:"tx_hash"`
	Address     common.Address         `json:"address"`
	EventName   string                 `json:"event"`
	Args        map[string]interface{} `json:"args,omitempty"`
	Raw         *types.Log             `json:"raw,omitempty"`
}

func (r *EventRecord) Key() EventKey {
	return EventKey{
		ChainID:     r.ChainID,
		BlockNumber: r.BlockNumber,
		LogIndex:    r.LogIndex,
	}
}

// Scope is the tuple coverage and query results are tracked for.
// Topics filters the indexed event arguments, position 0 being the first indexed
// argument (topic1 on the wire). Nil or empty positions match anything.
type Scope struct {
	ChainID   uint64
	Address   common.Address
	EventName string
	Topics    [][]common.Hash
}

// Key returns the canonical string used to key the coverage index and query cache.
func (s Scope) Key() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d/%s/%s", s.ChainID, strings.ToLower(s.Address.Hex()), s.EventName)

	// trailing wildcards do not change the filter
	topics := s.Topics
	for len(topics) > 0 && len(topics[len(topics)-1]) == 0 {
		topics = topics[:len(topics)-1]
	}

	for _, position := range topics {
		// alternatives within a position are unordered
		position = slices.SortedFunc(slices.Values(position), func(a, b common.Hash) int {
			return a.Cmp(b)
		})

		sb.WriteString("/")
		for idx, topic := range slices.Compact(position) {
			if idx > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(topic.Hex())
		}
	}

	return sb.String()
}

func (s Scope) String() string {
	return s.Key()
}

// Query is a caller facing event query. Nil block tags default to latest.
type Query struct {
	ChainID   uint64
	Address   common.Address
	EventName string
	Topics    [][]common.Hash
	FromBlock *rpc.BlockNumber
	ToBlock   *rpc.BlockNumber
}

func (q *Query) Scope() Scope {
	return Scope{
		ChainID:   q.ChainID,
		Address:   q.Address,
		EventName: q.EventName,
		Topics:    q.Topics,
	}
}

// queryKey identifies an exact query for the query cache.
type queryKey struct {
	scope string
	from  uint64
	to    uint64
}

// sortKeys orders keys by (block, log index) and drops duplicates.
func sortKeys(keys []EventKey) []EventKey {
	slices.SortFunc(keys, func(a, b EventKey) int {
		if a.BlockNumber != b.BlockNumber {
			return cmp.Compare(a.BlockNumber, b.BlockNumber)
		}
		return cmp.Compare(a.LogIndex, b.LogIndex)
	})
	return slices.Compact(keys)
}
