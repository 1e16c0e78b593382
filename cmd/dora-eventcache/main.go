package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/dora-eventcache/utils"
)

var rootCmd = &cobra.Command{
	Use:   "dora-eventcache",
	Short: "Range coverage cache for contract events",
	Long:  "Caches contract event logs by block range coverage and serves them from memory, fetching only missing block ranges from the execution node",
}

func init() {
	rootCmd.Version = utils.GetBuildVersion()
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the config file, if empty string defaults will be used")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
