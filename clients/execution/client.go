package execution

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ethpandaops/dora-eventcache/clients/execution/rpc"
	"github.com/ethpandaops/dora-eventcache/eventcache"
)

type ClientConfig struct {
	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int
	LogBatchSize   uint64
}

// Client loads contract events from a single execution node. It serves as event source
// and block resolver for the event cache.
type Client struct {
	logger    logrus.FieldLogger
	rpcClient *rpc.ExecutionClient
	decoder   *EventDecoder
	limiter   *rate.Limiter
	timeout   time.Duration
	batchSize uint64
	chainID   uint64
}

var _ eventcache.Source = (*Client)(nil)
var _ eventcache.BlockResolver = (*Client)(nil)

// NewClient initializes the rpc client and loads the chain id of the connected node.
func NewClient(ctx context.Context, config *ClientConfig, rpcClient *rpc.ExecutionClient, decoder *EventDecoder, logger logrus.FieldLogger) (*Client, error) {
	client := &Client{
		logger:    logger,
		rpcClient: rpcClient,
		decoder:   decoder,
		limiter:   rate.NewLimiter(rate.Inf, 0),
		timeout:   config.RequestTimeout,
		batchSize: config.LogBatchSize,
	}

	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}
	if client.timeout == 0 {
		client.timeout = 60 * time.Second
	}
	if client.decoder == nil {
		client.decoder = NewEventDecoder()
	}

	if err := rpcClient.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed connecting execution client: %w", err)
	}

	err := client.call(ctx, func(ctx context.Context) error {
		chainID, err := rpcClient.GetChainId(ctx)
		client.chainID = chainID
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed loading chain id: %w", err)
	}

	logger.Infof("connected to execution client %v (chain id %v)", rpcClient.GetName(), client.chainID)

	return client, nil
}

func (c *Client) GetChainID() uint64 {
	return c.chainID
}

func (c *Client) GetDecoder() *EventDecoder {
	return c.decoder
}

func (c *Client) Close() {
	c.rpcClient.Close()
}

// call waits for the rate limiter and runs fn with the request timeout applied.
func (c *Client) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return fn(ctx)
}

func (c *Client) GetBlockNumber(ctx context.Context) (uint64, error) {
	var number uint64
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		number, err = c.rpcClient.GetLatestBlockNumber(ctx)
		return err
	})
	return number, err
}

func (c *Client) GetBlockNumberByTag(ctx context.Context, tag gethrpc.BlockNumber) (uint64, error) {
	if tag == gethrpc.LatestBlockNumber {
		return c.GetBlockNumber(ctx)
	}

	var number uint64
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		number, err = c.rpcClient.GetBlockNumberByTag(ctx, tag)
		return err
	})
	return number, err
}

// GetEvents loads all events of scope within [fromBlock, toBlock], split into requests
// of at most LogBatchSize blocks.
func (c *Client) GetEvents(ctx context.Context, scope eventcache.Scope, fromBlock uint64, toBlock uint64) ([]*eventcache.EventRecord, error) {
	if scope.ChainID != c.chainID {
		return nil, fmt.Errorf("chain id mismatch: scope %v, client %v", scope.ChainID, c.chainID)
	}

	topic0, event, err := c.decoder.ResolveEvent(scope.Address, scope.EventName)
	if err != nil {
		return nil, err
	}

	topics := [][]common.Hash{{topic0}}
	topics = append(topics, scope.Topics...)

	records := []*eventcache.EventRecord{}
	for batchFrom := fromBlock; batchFrom <= toBlock; {
		batchTo := toBlock
		if c.batchSize > 0 && batchTo-batchFrom >= c.batchSize {
			batchTo = batchFrom + c.batchSize - 1
		}

		query := ethereum.FilterQuery{
			FromBlock: big.NewInt(0).SetUint64(batchFrom),
			ToBlock:   big.NewInt(0).SetUint64(batchTo),
			Addresses: []common.Address{scope.Address},
			Topics:    topics,
		}

		err := c.call(ctx, func(ctx context.Context) error {
			logs, err := c.rpcClient.GetLogs(ctx, query)
			if err != nil {
				return err
			}

			for idx := range logs {
				log := &logs[idx]
				if log.Removed {
					continue
				}

				record, err := c.decoder.Decode(c.chainID, scope.EventName, event, log)
				if err != nil {
					return err
				}
				records = append(records, record)
			}

			c.logger.Debugf("received %v logs for %v, blocks %v - %v", len(logs), scope.Key(), batchFrom, batchTo)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("error fetching logs %v - %v: %w", batchFrom, batchTo, err)
		}

		if batchTo == toBlock {
			break
		}
		batchFrom = batchTo + 1
	}

	return records, nil
}
