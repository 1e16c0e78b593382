package cache

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"math/big"

	"github.com/coocood/freecache"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/dora-eventcache/eventcache"
	"github.com/ethpandaops/dora-eventcache/utils"
)

// ArgsDecoder decodes the event args of a raw log.
type ArgsDecoder interface {
	DecodeArgs(eventName string, log *types.Log) (map[string]interface{}, error)
}

// FreeEventStore is an event store bounded by memory instead of record count.
// Records are gob encoded into a freecache ring buffer which evicts on its own.
// With a decoder, records carrying their raw log are stored without args, which are
// decoded again on read.
type FreeEventStore struct {
	localCache *freecache.Cache
	decoder    ArgsDecoder
	logger     logrus.FieldLogger
}

var _ eventcache.EventStore = (*FreeEventStore)(nil)

var CacheMissError error = errors.New("cache miss")

func init() {
	// args of records stored without decoder
	gob.Register(new(big.Int))
	gob.Register([]*big.Int{})
	gob.Register(common.Address{})
	gob.Register([]common.Address{})
	gob.Register(common.Hash{})
	gob.Register([]common.Hash{})
	gob.Register([32]byte{})
	gob.Register([]interface{}{})
	gob.Register(map[string]interface{}{})
}

func NewFreeEventStore(cacheSizeMb int, decoder ArgsDecoder, logger logrus.FieldLogger) *FreeEventStore {
	return &FreeEventStore{
		localCache: freecache.NewCache(cacheSizeMb * 1024 * 1024),
		decoder:    decoder,
		logger:     logger,
	}
}

func (store *FreeEventStore) Get(key eventcache.EventKey) (*eventcache.EventRecord, bool) {
	record, err := store.get(key)
	if err != nil {
		if !errors.Is(err, CacheMissError) {
			utils.LogError(err, "error decoding cached event", 0, map[string]interface{}{"key": key.String()})
			store.localCache.Del(encodeKey(key))
		}
		return nil, false
	}
	return record, true
}

func (store *FreeEventStore) get(key eventcache.EventKey) (*eventcache.EventRecord, error) {
	data, err := store.localCache.Get(encodeKey(key))
	if err != nil {
		return nil, CacheMissError
	}

	entry := &storeEntry{}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(entry); err != nil {
		return nil, err
	}

	record := entry.Record
	if entry.DecodeArgs {
		args, err := store.decoder.DecodeArgs(record.EventName, record.Raw)
		if err != nil {
			return nil, err
		}
		record.Args = args
	}
	return &record, nil
}

type storeEntry struct {
	Record     eventcache.EventRecord
	DecodeArgs bool
}

// Add stores record. Records which cannot be encoded or are too large are skipped and
// behave like evicted ones.
func (store *FreeEventStore) Add(record *eventcache.EventRecord) {
	entry := &storeEntry{
		Record: *record,
	}
	if store.decoder != nil && record.Raw != nil && len(record.Args) > 0 {
		entry.Record.Args = nil
		entry.DecodeArgs = true
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		store.logger.Debugf("cannot encode event %v for cache: %v", record.Key(), err)
		return
	}

	if err := store.localCache.Set(encodeKey(record.Key()), buf.Bytes(), 0); err != nil {
		store.logger.Debugf("cannot cache event %v: %v", record.Key(), err)
	}
}

func (store *FreeEventStore) Remove(key eventcache.EventKey) {
	store.localCache.Del(encodeKey(key))
}

func (store *FreeEventStore) Len() int {
	return int(store.localCache.EntryCount())
}

func (store *FreeEventStore) Purge() {
	store.localCache.Clear()
}

func encodeKey(key eventcache.EventKey) []byte {
	buf := make([]byte, 24)
	binary.BigEndian.PutUint64(buf[0:8], key.ChainID)
	binary.BigEndian.PutUint64(buf[8:16], key.BlockNumber)
	binary.BigEndian.PutUint64(buf[16:24], uint64(key.LogIndex))
	return buf
}
