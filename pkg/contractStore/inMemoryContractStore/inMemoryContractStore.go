package inMemoryContractStore

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/Layr-Labs/lending-indexer/pkg/config"
	"github.com/Layr-Labs/lending-indexer/pkg/contractStore"
	"github.com/Layr-Labs/lending-indexer/pkg/contracts"
	"github.com/Layr-Labs/lending-indexer/pkg/util"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var _ contractStore.IContractStore = (*InMemoryContractStore)(nil)

type InMemoryContractStore struct {
	mu        sync.RWMutex
	contracts []*contracts.Contract
	logger    *zap.Logger
}

func NewInMemoryContractStore(initial []*contracts.Contract, logger *zap.Logger) *InMemoryContractStore {
	return &InMemoryContractStore{
		contracts: slices.Clone(initial),
		logger:    logger,
	}
}

func (ics *InMemoryContractStore) GetContractByNameForChainId(name string, chainId config.ChainId) (*contracts.Contract, error) {
	ics.mu.RLock()
	defer ics.mu.RUnlock()

	found := util.Find(ics.contracts, func(c *contracts.Contract) bool {
		return strings.EqualFold(c.Name, name) && c.ChainId == chainId
	})
	if found == nil {
		ics.logger.Sugar().Errorw("Contract not found", zap.String("name", name), zap.Uint("chainId", uint(chainId)))
		return nil, fmt.Errorf("contract not found: name=%s, chainId=%d", name, chainId)
	}
	return found, nil
}

// GetContractByAddress matches address case-insensitively.
func (ics *InMemoryContractStore) GetContractByAddress(address string, chainId config.ChainId) (*contracts.Contract, error) {
	ics.mu.RLock()
	defer ics.mu.RUnlock()

	found := util.Find(ics.contracts, func(c *contracts.Contract) bool {
		return strings.EqualFold(c.Address, address) && c.ChainId == chainId
	})
	if found == nil {
		return nil, fmt.Errorf("contract not found: address=%s, chainId=%d", address, chainId)
	}
	return found, nil
}

// OverrideContract replaces the address of the named contract on the given chains, keeping its abi
// unless the override carries one. Chains without the contract get it appended.
func (ics *InMemoryContractStore) OverrideContract(contractName string, chainIds []config.ChainId, contract *contracts.Contract) error {
	if contract == nil || contract.Address == "" {
		return fmt.Errorf("override for %s requires an address", contractName)
	}
	if !common.IsHexAddress(contract.Address) {
		return fmt.Errorf("override for %s has an invalid address: %s", contractName, contract.Address)
	}
	address := common.HexToAddress(contract.Address).Hex()

	ics.mu.Lock()
	defer ics.mu.Unlock()

	overridden := make(map[config.ChainId]bool)
	for i, orig := range ics.contracts {
		if orig.Name != contractName || (len(chainIds) > 0 && !slices.Contains(chainIds, orig.ChainId)) {
			continue
		}
		ics.logger.Sugar().Infow("Overriding contract",
			zap.String("name", contractName),
			zap.String("previousAddress", orig.Address),
			zap.String("newAddress", address),
			zap.Uint("chainId", uint(orig.ChainId)),
		)
		abiVersions := orig.AbiVersions
		if len(contract.AbiVersions) > 0 {
			abiVersions = contract.AbiVersions
		}
		ics.contracts[i] = &contracts.Contract{
			Name:        orig.Name,
			Address:     address,
			ChainId:     orig.ChainId,
			AbiVersions: abiVersions,
		}
		overridden[orig.ChainId] = true
	}

	for _, chainId := range chainIds {
		if overridden[chainId] {
			continue
		}
		if len(contract.AbiVersions) == 0 {
			return fmt.Errorf("contract %s is unknown on chain %d and the override has no abi", contractName, chainId)
		}
		ics.logger.Sugar().Infow("Contract not found for override, adding new contract",
			zap.String("name", contractName),
			zap.Uint("chainId", uint(chainId)),
		)
		ics.contracts = append(ics.contracts, &contracts.Contract{
			Name:        contractName,
			Address:     address,
			ChainId:     chainId,
			AbiVersions: contract.AbiVersions,
		})
	}
	return nil
}
