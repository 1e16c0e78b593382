package types

import "time"

// Config is a struct to hold the configuration data
type Config struct {
	Logging struct {
		OutputLevel  string `yaml:"outputLevel" envconfig:"LOGGING_OUTPUT_LEVEL"`
		OutputStderr bool   `yaml:"outputStderr" envconfig:"LOGGING_OUTPUT_STDERR"`

		FilePath  string `yaml:"filePath" envconfig:"LOGGING_FILE_PATH"`
		FileLevel string `yaml:"fileLevel" envconfig:"LOGGING_FILE_LEVEL"`
	} `yaml:"logging"`

	Server struct {
		Port string `yaml:"port" envconfig:"SERVER_PORT"`
		Host string `yaml:"host" envconfig:"SERVER_HOST"`

		ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"SERVER_READ_TIMEOUT"`
		WriteTimeout time.Duration `yaml:"writeTimeout" envconfig:"SERVER_WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `yaml:"idleTimeout" envconfig:"SERVER_IDLE_TIMEOUT"`

		CorsOrigins []string `yaml:"corsOrigins" envconfig:"SERVER_CORS_ORIGINS"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" envconfig:"METRICS_ENABLED"`
		Public  bool   `yaml:"public" envconfig:"METRICS_PUBLIC"`
		Host    string `yaml:"host" envconfig:"METRICS_HOST"`
		Port    string `yaml:"port" envconfig:"METRICS_PORT"`
	} `yaml:"metrics"`

	ExecutionApi struct {
		Endpoint string            `yaml:"endpoint" envconfig:"EXECUTION_API_ENDPOINT"`
		Headers  map[string]string `yaml:"headers"`

		RequestTimeout time.Duration `yaml:"requestTimeout" envconfig:"EXECUTION_API_REQUEST_TIMEOUT"`
		RateLimit      float64       `yaml:"rateLimit" envconfig:"EXECUTION_API_RATE_LIMIT"`
		RateBurst      int           `yaml:"rateBurst" envconfig:"EXECUTION_API_RATE_BURST"`
		LogBatchSize   uint64        `yaml:"logBatchSize" envconfig:"EXECUTION_API_LOG_BATCH_SIZE"`
	} `yaml:"executionApi"`

	EventCache struct {
		MinMissingRangeGap uint64 `yaml:"minMissingRangeGap" envconfig:"EVENTCACHE_MIN_MISSING_RANGE_GAP"`
		EventStoreSize     int    `yaml:"eventStoreSize" envconfig:"EVENTCACHE_EVENT_STORE_SIZE"`
		CoverageIndexSize  int    `yaml:"coverageIndexSize" envconfig:"EVENTCACHE_COVERAGE_INDEX_SIZE"`
		QueryCacheSize     int    `yaml:"queryCacheSize" envconfig:"EVENTCACHE_QUERY_CACHE_SIZE"`
		FetchConcurrency   int    `yaml:"fetchConcurrency" envconfig:"EVENTCACHE_FETCH_CONCURRENCY"`

		// StoreBackend selects the event store: "lru" (record count bound) or
		// "freecache" (memory bound, FreecacheSizeMb).
		StoreBackend    string `yaml:"storeBackend" envconfig:"EVENTCACHE_STORE_BACKEND"`
		FreecacheSizeMb int    `yaml:"freecacheSizeMb" envconfig:"EVENTCACHE_FREECACHE_SIZE_MB"`
	} `yaml:"eventCache"`

	Contracts []ContractConfig `yaml:"contracts" ignored:"true"`
}

type ContractConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	AbiPath string `yaml:"abiPath"`
}
