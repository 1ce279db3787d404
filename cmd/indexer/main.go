package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Layr-Labs/lending-indexer/pkg/clients/ethereum"
	"github.com/Layr-Labs/lending-indexer/pkg/indexerConfig"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "indexer",
	Short: "Ingest lending pool events into a deduplicated event store",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var configFile string
var Config *indexerConfig.IndexerConfig

func init() {
	cobra.OnInitialize(initConfigIfPresent)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().Bool(indexerConfig.Debug, false, `"true" or "false"`)

	rootCmd.PersistentFlags().Uint(indexerConfig.ChainId, 1, "chain id of the lending pool deployment")
	rootCmd.PersistentFlags().String(indexerConfig.RpcUrl, "", "JSON-RPC url of an archive or full node")
	rootCmd.PersistentFlags().String(indexerConfig.BlockType, string(ethereum.BlockType_Latest), "head tag to follow: latest, safe or finalized")
	rootCmd.PersistentFlags().String(indexerConfig.PoolAddress, "", "override the pool address for the chain")
	rootCmd.PersistentFlags().String(indexerConfig.DataProviderAddress, "", "override the pool data provider address for the chain")
	rootCmd.PersistentFlags().Int(indexerConfig.PollingInterval, 60, "seconds between ticks")
	rootCmd.PersistentFlags().Uint64(indexerConfig.LookbackBlocks, 100, "blocks behind the confirmed head to start from when no watermark exists; 0 starts at the confirmed head")
	rootCmd.PersistentFlags().Uint64(indexerConfig.Confirmations, 0, "blocks to stay behind head")
	rootCmd.PersistentFlags().Uint64(indexerConfig.MaxBlockRange, 0, "maximum blocks per tick, 0 for unbounded")
	rootCmd.PersistentFlags().StringSlice(indexerConfig.EventKinds, nil, "pool events to ingest (Supply,Borrow,Repay,Withdraw,LiquidationCall)")
	rootCmd.PersistentFlags().Int(indexerConfig.WriteConcurrency, 0, "concurrent store writes per tick")
	rootCmd.PersistentFlags().String(indexerConfig.StorageType, string(indexerConfig.StorageKind_Memory), "memory, sqlite, postgres or badger")
	rootCmd.PersistentFlags().String(indexerConfig.DatabaseDSN, "", "dsn for sqlite or postgres storage")
	rootCmd.PersistentFlags().String(indexerConfig.BadgerDir, "", "data directory for badger storage")
	rootCmd.PersistentFlags().String(indexerConfig.HttpAddress, ":8080", "listen address of the query server")
	rootCmd.PersistentFlags().String(indexerConfig.TvlApiUrl, "", "base url of the TVL aggregator")

	rootCmd.PersistentFlags().VisitAll(bindFlag)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	if err := indexerConfig.BindEnv(viper.GetViper()); err != nil {
		fmt.Printf("Failed to bind env: %+v\n", err)
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(recentCmd)
}

func initConfigIfPresent() {
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			panic(err)
		}
		config, err := indexerConfig.NewIndexerConfigFromYamlBytes(data)
		if err != nil {
			panic(err)
		}
		Config = config
	} else {
		Config = indexerConfig.NewIndexerConfig()
	}
}

func main() {
	Execute()
}
