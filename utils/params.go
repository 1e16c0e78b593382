package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

// ParseBlockNumber parses a block number (decimal or 0x hex) or a block tag like
// latest, safe or finalized. Empty params return nil.
func ParseBlockNumber(param string) (*rpc.BlockNumber, error) {
	if param == "" {
		return nil, nil
	}

	var blockNumber rpc.BlockNumber
	if number, err := strconv.ParseUint(param, 10, 63); err == nil {
		blockNumber = rpc.BlockNumber(number)
		return &blockNumber, nil
	}

	if err := blockNumber.UnmarshalJSON([]byte(strconv.Quote(param))); err != nil {
		return nil, fmt.Errorf("invalid block: %v", param)
	}
	return &blockNumber, nil
}

// ParseTopics parses a comma separated list of 32 byte topic hashes. Empty params
// return nil, matching any topic.
func ParseTopics(param string) ([]common.Hash, error) {
	if param == "" {
		return nil, nil
	}

	topics := []common.Hash{}
	for _, topic := range strings.Split(param, ",") {
		topic = strings.TrimSpace(topic)
		if !strings.HasPrefix(topic, "0x") || len(topic) != 66 {
			return nil, fmt.Errorf("invalid topic: %v", topic)
		}

		var hash common.Hash
		if err := hash.UnmarshalText([]byte(topic)); err != nil {
			return nil, fmt.Errorf("invalid topic: %v", topic)
		}
		topics = append(topics, hash)
	}
	return topics, nil
}
