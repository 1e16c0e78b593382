package utils

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/dora-eventcache/config"
	"github.com/ethpandaops/dora-eventcache/types"
)

// Config is the globally accessible configuration
var Config *types.Config

// ReadConfig will process a configuration
func ReadConfig(cfg *types.Config, path string) error {
	err := yaml.Unmarshal([]byte(config.DefaultConfigYml), cfg)
	if err != nil {
		return fmt.Errorf("error decoding default config: %v", err)
	}

	err = readConfigFile(cfg, path)
	if err != nil {
		return err
	}

	err = readConfigEnv(cfg)
	if err != nil {
		return fmt.Errorf("error reading config from environment: %v", err)
	}

	err = validateConfig(cfg)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"endpoint":          cfg.ExecutionApi.Endpoint,
		"storeBackend":      cfg.EventCache.StoreBackend,
		"eventStoreSize":    cfg.EventCache.EventStoreSize,
		"coverageIndexSize": cfg.EventCache.CoverageIndexSize,
		"queryCacheSize":    cfg.EventCache.QueryCacheSize,
		"contracts":         len(cfg.Contracts),
	}).Debugf("did init config")

	return nil
}

func readConfigFile(cfg *types.Config, path string) error {
	if path == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening config file %v: %v", path, err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	err = decoder.Decode(cfg)
	if err != nil {
		return fmt.Errorf("error decoding config file %v: %v", path, err)
	}

	return nil
}

func readConfigEnv(cfg *types.Config) error {
	return envconfig.Process("", cfg)
}

func validateConfig(cfg *types.Config) error {
	if cfg.ExecutionApi.Endpoint == "" {
		return fmt.Errorf("missing execution api endpoint")
	}

	switch cfg.EventCache.StoreBackend {
	case "", "lru":
	case "freecache":
		if cfg.EventCache.FreecacheSizeMb <= 0 {
			return fmt.Errorf("freecache store backend requires freecacheSizeMb > 0")
		}
	default:
		return fmt.Errorf("unknown event store backend: %v", cfg.EventCache.StoreBackend)
	}

	for idx, contract := range cfg.Contracts {
		if !common.IsHexAddress(contract.Address) {
			return fmt.Errorf("invalid address for contract %v (%v): %v", idx, contract.Name, contract.Address)
		}
	}

	return nil
}
