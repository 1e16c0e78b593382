package config

import (
	_ "embed"
)

// default config
//
//go:embed default.config.yml
var DefaultConfigYml string
