package rpc

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

type ExecutionClient struct {
	name      string
	endpoint  string
	headers   map[string]string
	rpcClient *rpc.Client
	ethClient *ethclient.Client
}

// NewExecutionClient is used to create a new execution client
func NewExecutionClient(name, endpoint string, headers map[string]string) *ExecutionClient {
	return &ExecutionClient{
		name:     name,
		endpoint: endpoint,
		headers:  headers,
	}
}

// NewExecutionClientFromRpc wraps an already connected rpc client.
func NewExecutionClientFromRpc(name string, rpcClient *rpc.Client) *ExecutionClient {
	return &ExecutionClient{
		name:      name,
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
	}
}

func (ec *ExecutionClient) Initialize(ctx context.Context) error {
	if ec.ethClient != nil {
		return nil
	}

	rpcClient, err := rpc.DialContext(ctx, ec.endpoint)
	if err != nil {
		return err
	}

	for hKey, hVal := range ec.headers {
		rpcClient.SetHeader(hKey, hVal)
	}

	ec.rpcClient = rpcClient
	ec.ethClient = ethclient.NewClient(rpcClient)

	return nil
}

func (ec *ExecutionClient) GetName() string {
	return ec.name
}

func (ec *ExecutionClient) Close() {
	if ec.rpcClient != nil {
		ec.rpcClient.Close()
	}
}

func (ec *ExecutionClient) GetChainId(ctx context.Context) (uint64, error) {
	chainID, err := ec.ethClient.ChainID(ctx)
	if err != nil {
		return 0, err
	}

	if !chainID.IsUint64() {
		return 0, fmt.Errorf("chain id out of range: %v", chainID)
	}

	return chainID.Uint64(), nil
}

func (ec *ExecutionClient) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	return ec.ethClient.BlockNumber(ctx)
}

// GetBlockNumberByTag resolves a block tag (latest, safe, finalized, ...) to the number
// of the block it currently points to.
func (ec *ExecutionClient) GetBlockNumberByTag(ctx context.Context, tag rpc.BlockNumber) (uint64, error) {
	header, err := ec.ethClient.HeaderByNumber(ctx, big.NewInt(tag.Int64()))
	if err != nil {
		return 0, err
	}

	return header.Number.Uint64(), nil
}

func (ec *ExecutionClient) GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	return ec.ethClient.FilterLogs(ctx, query)
}
