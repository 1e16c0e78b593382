package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/dora-eventcache/eventcache"
	"github.com/ethpandaops/dora-eventcache/utils"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Load the events of a contract for a block range",
	Long:  "Runs a single event query against the configured execution node and prints the events as json",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd)
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringP("contract", "a", "", "Contract address or configured contract name (required)")
	queryCmd.Flags().StringP("event", "e", "", "Event name from the contract abi or raw topic0 hash (required)")
	queryCmd.Flags().StringP("from", "f", "", "First block (number or tag, default latest)")
	queryCmd.Flags().StringP("to", "t", "", "Last block (number or tag, default latest)")
	queryCmd.Flags().String("topic1", "", "Comma separated filter for the first indexed argument")
	queryCmd.Flags().String("topic2", "", "Comma separated filter for the second indexed argument")
	queryCmd.Flags().String("topic3", "", "Comma separated filter for the third indexed argument")
	queryCmd.Flags().Int("repeat", 1, "Number of times to run the query, for cache testing")

	queryCmd.MarkFlagRequired("contract")
	queryCmd.MarkFlagRequired("event")
}

func runQuery(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	cfg.Logging.OutputStderr = true
	logWriter, logger := utils.InitLogger(cfg)
	defer logWriter.Dispose()

	query, err := buildQuery(cmd)
	if err != nil {
		return err
	}
	query.Address, err = resolveContract(cfg, cmd.Flag("contract").Value.String())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventCache, executionClient, err := initEventCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer executionClient.Close()
	defer eventCache.Close()

	query.ChainID = executionClient.GetChainID()

	repeat, _ := cmd.Flags().GetInt("repeat")
	var records []*eventcache.EventRecord
	for i := 0; i < max(repeat, 1); i++ {
		start := time.Now()
		records, err = eventCache.GetEvents(ctx, query)
		if err != nil {
			return err
		}

		logger.WithFields(logrus.Fields{
			"run":      i + 1,
			"events":   len(records),
			"duration": time.Since(start),
		}).Info("query completed")
	}

	stats := eventCache.Stats()
	logger.WithFields(logrus.Fields{
		"queryCacheHits": stats.QueryCacheHits,
		"coverageHits":   stats.CoverageHits,
		"sourceFetches":  stats.SourceFetches,
		"fetchedBlocks":  stats.FetchedBlocks,
	}).Info("cache stats")

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(records)
}

func buildQuery(cmd *cobra.Command) (*eventcache.Query, error) {
	query := &eventcache.Query{}
	query.EventName, _ = cmd.Flags().GetString("event")

	var err error
	fromParam, _ := cmd.Flags().GetString("from")
	query.FromBlock, err = utils.ParseBlockNumber(fromParam)
	if err != nil {
		return nil, fmt.Errorf("invalid from: %w", err)
	}
	toParam, _ := cmd.Flags().GetString("to")
	query.ToBlock, err = utils.ParseBlockNumber(toParam)
	if err != nil {
		return nil, fmt.Errorf("invalid to: %w", err)
	}

	for idx, name := range []string{"topic1", "topic2", "topic3"} {
		param, _ := cmd.Flags().GetString(name)
		topics, err := utils.ParseTopics(param)
		if err != nil {
			return nil, fmt.Errorf("invalid %v: %w", name, err)
		}
		if topics == nil {
			continue
		}
		for len(query.Topics) < idx {
			query.Topics = append(query.Topics, nil)
		}
		query.Topics = append(query.Topics, topics)
	}

	return query, nil
}
