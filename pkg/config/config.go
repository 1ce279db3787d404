package config

import "strings"

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_Base            ChainId = 8453
	ChainId_Arbitrum        ChainId = 42161
	ChainId_Anvil           ChainId = 31337
)

var (
	SupportedChainIds = []ChainId{
		ChainId_EthereumMainnet,
		ChainId_EthereumSepolia,
		ChainId_Base,
		ChainId_Arbitrum,
		ChainId_Anvil,
	}
)

// KebabToSnakeCase converts a flag name like "rpc-url" into the viper key "rpc_url"
func KebabToSnakeCase(str string) string {
	return strings.ReplaceAll(str, "-", "_")
}

func NormalizeFlagName(name string) string {
	return KebabToSnakeCase(strings.ToLower(strings.TrimSpace(name)))
}
