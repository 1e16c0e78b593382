package eventcache

import (
	"fmt"

	"dario.cat/mergo"
)

// Config holds the tunables of a Client. Zero values are replaced by the defaults.
type Config struct {
	// MinMissingRangeGap is the block distance below which two missing ranges are
	// fetched with a single request.
	MinMissingRangeGap uint64

	EventStoreSize    int
	CoverageIndexSize int
	QueryCacheSize    int

	// FetchConcurrency limits the parallel source requests of a single call.
	FetchConcurrency int

	// EventStore replaces the default count bounded LRU store.
	EventStore EventStore
}

func DefaultConfig() Config {
	return Config{
		MinMissingRangeGap: 11,
		EventStoreSize:     100_000,
		CoverageIndexSize:  100,
		QueryCacheSize:     500,
		FetchConcurrency:   1,
	}
}

func (cfg *Config) applyDefaults() error {
	if err := mergo.Merge(cfg, DefaultConfig()); err != nil {
		return fmt.Errorf("error merging default config: %w", err)
	}
	if cfg.EventStoreSize < 0 || cfg.CoverageIndexSize < 0 || cfg.QueryCacheSize < 0 {
		return fmt.Errorf("cache sizes must not be negative")
	}
	if cfg.FetchConcurrency < 0 {
		return fmt.Errorf("fetch concurrency must not be negative")
	}
	return nil
}
