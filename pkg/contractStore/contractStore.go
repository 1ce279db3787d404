package contractStore

import (
	"github.com/Layr-Labs/lending-indexer/pkg/config"
	"github.com/Layr-Labs/lending-indexer/pkg/contracts"
)

// IContractStore resolves the pool and data provider contracts the indexer reads from.
type IContractStore interface {
	GetContractByAddress(address string, chainId config.ChainId) (*contracts.Contract, error)
	GetContractByNameForChainId(name string, chainId config.ChainId) (*contracts.Contract, error)
	OverrideContract(contractName string, chainIds []config.ChainId, contract *contracts.Contract) error
}
