package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/dora-eventcache/cache"
	"github.com/ethpandaops/dora-eventcache/clients/execution"
	"github.com/ethpandaops/dora-eventcache/clients/execution/rpc"
	"github.com/ethpandaops/dora-eventcache/eventcache"
	"github.com/ethpandaops/dora-eventcache/types"
	"github.com/ethpandaops/dora-eventcache/utils"
)

func loadConfig(cmd *cobra.Command) (*types.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg := &types.Config{}
	if err := utils.ReadConfig(cfg, configPath); err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}
	utils.Config = cfg

	return cfg, nil
}

// initEventCache connects the execution client and builds the event cache on top of it.
func initEventCache(ctx context.Context, cfg *types.Config, logger logrus.FieldLogger) (*eventcache.Client, *execution.Client, error) {
	decoder := execution.NewEventDecoder()
	for _, contract := range cfg.Contracts {
		if contract.AbiPath == "" {
			continue
		}

		err := decoder.LoadContractFile(common.HexToAddress(contract.Address), contract.AbiPath)
		if err != nil {
			return nil, nil, fmt.Errorf("contract %v: %w", contract.Name, err)
		}
	}

	rpcClient := rpc.NewExecutionClient("default", cfg.ExecutionApi.Endpoint, cfg.ExecutionApi.Headers)
	executionClient, err := execution.NewClient(ctx, &execution.ClientConfig{
		RequestTimeout: cfg.ExecutionApi.RequestTimeout,
		RateLimit:      cfg.ExecutionApi.RateLimit,
		RateBurst:      cfg.ExecutionApi.RateBurst,
		LogBatchSize:   cfg.ExecutionApi.LogBatchSize,
	}, rpcClient, decoder, logger.WithField("module", "execution"))
	if err != nil {
		return nil, nil, err
	}

	cacheConfig := eventcache.Config{
		MinMissingRangeGap: cfg.EventCache.MinMissingRangeGap,
		EventStoreSize:     cfg.EventCache.EventStoreSize,
		CoverageIndexSize:  cfg.EventCache.CoverageIndexSize,
		QueryCacheSize:     cfg.EventCache.QueryCacheSize,
		FetchConcurrency:   cfg.EventCache.FetchConcurrency,
	}
	if cfg.EventCache.StoreBackend == "freecache" {
		cacheConfig.EventStore = cache.NewFreeEventStore(cfg.EventCache.FreecacheSizeMb, executionClient.GetDecoder(), logger.WithField("module", "freecache"))
	}

	eventCache, err := eventcache.NewClient(cacheConfig, executionClient, executionClient, logger.WithField("module", "eventcache"))
	if err != nil {
		return nil, nil, err
	}

	return eventCache, executionClient, nil
}

// resolveContract accepts a contract address or the name of a configured contract.
func resolveContract(cfg *types.Config, contract string) (common.Address, error) {
	if common.IsHexAddress(contract) {
		return common.HexToAddress(contract), nil
	}

	for _, known := range cfg.Contracts {
		if known.Name == contract {
			return common.HexToAddress(known.Address), nil
		}
	}

	return common.Address{}, fmt.Errorf("unknown contract: %v", contract)
}
