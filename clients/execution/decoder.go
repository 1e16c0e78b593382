package execution

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ethpandaops/dora-eventcache/eventcache"
)

// EventDecoder maps event names of known contracts to their abi definition and decodes
// raw logs into event records.
type EventDecoder struct {
	contractsMutex sync.RWMutex
	contracts      map[common.Address]*abi.ABI
}

func NewEventDecoder() *EventDecoder {
	return &EventDecoder{
		contracts: make(map[common.Address]*abi.ABI),
	}
}

func (d *EventDecoder) AddContract(address common.Address, contractAbi *abi.ABI) {
	d.contractsMutex.Lock()
	defer d.contractsMutex.Unlock()

	d.contracts[address] = contractAbi
}

// AddContractJSON parses an abi json definition and registers it for address.
func (d *EventDecoder) AddContractJSON(address common.Address, abiJson string) error {
	contractAbi, err := abi.JSON(strings.NewReader(abiJson))
	if err != nil {
		return fmt.Errorf("failed parsing contract abi: %w", err)
	}

	d.AddContract(address, &contractAbi)
	return nil
}

func (d *EventDecoder) LoadContractFile(address common.Address, path string) error {
	abiJson, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed reading abi file %v: %w", path, err)
	}

	return d.AddContractJSON(address, string(abiJson))
}

// ResolveEvent returns the topic0 hash for an event name on address, together with the
// abi event if known. A raw 0x prefixed topic hash is accepted as name for contracts
// without abi; such events are not decoded.
func (d *EventDecoder) ResolveEvent(address common.Address, eventName string) (common.Hash, *abi.Event, error) {
	d.contractsMutex.RLock()
	contractAbi := d.contracts[address]
	d.contractsMutex.RUnlock()

	if strings.HasPrefix(eventName, "0x") {
		if len(eventName) != 66 {
			return common.Hash{}, nil, fmt.Errorf("invalid event topic: %v", eventName)
		}

		topic := common.HexToHash(eventName)
		if contractAbi != nil {
			if event, err := contractAbi.EventByID(topic); err == nil {
				return topic, event, nil
			}
		}
		return topic, nil, nil
	}

	if contractAbi == nil {
		return common.Hash{}, nil, fmt.Errorf("no abi known for contract %v", address.Hex())
	}

	event, ok := contractAbi.Events[eventName]
	if !ok {
		return common.Hash{}, nil, fmt.Errorf("event %v not found in abi of %v", eventName, address.Hex())
	}
	if event.Anonymous {
		return common.Hash{}, nil, fmt.Errorf("anonymous event %v cannot be filtered by topic", eventName)
	}

	return event.ID, &event, nil
}

// Decode converts a raw log into an event record. Event args are only set when event
// is not nil.
func (d *EventDecoder) Decode(chainID uint64, eventName string, event *abi.Event, log *types.Log) (*eventcache.EventRecord, error) {
	record := &eventcache.EventRecord{
		ChainID:     chainID,
		BlockNumber: log.BlockNumber,
		LogIndex:    log.Index,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		Address:     log.Address,
		EventName:   eventName,
		Raw:         log,
	}

	if event == nil {
		return record, nil
	}

	args, err := unpackArgs(event, log)
	if err != nil {
		return nil, err
	}

	record.Args = args
	return record, nil
}

// DecodeArgs decodes the args of a raw log of eventName. Args are nil for events
// without known abi.
func (d *EventDecoder) DecodeArgs(eventName string, log *types.Log) (map[string]interface{}, error) {
	_, event, err := d.ResolveEvent(log.Address, eventName)
	if err != nil || event == nil {
		return nil, err
	}

	return unpackArgs(event, log)
}

func unpackArgs(event *abi.Event, log *types.Log) (map[string]interface{}, error) {
	if len(log.Topics) == 0 || log.Topics[0] != event.ID {
		return nil, fmt.Errorf("log %v/%v is not a %v event", log.BlockNumber, log.Index, event.Name)
	}

	args := map[string]interface{}{}
	if err := event.Inputs.UnpackIntoMap(args, log.Data); err != nil {
		return nil, fmt.Errorf("failed decoding %v data: %w", event.Name, err)
	}

	indexed := abi.Arguments{}
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if err := abi.ParseTopicsIntoMap(args, indexed, log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("failed decoding %v topics: %w", event.Name, err)
	}

	return args, nil
}
