package contracts

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Layr-Labs/lending-indexer/pkg/config"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	ContractName_Pool             = "Pool"
	ContractName_PoolDataProvider = "PoolDataProvider"
)

const (
	EventName_Supply          = "Supply"
	EventName_Borrow          = "Borrow"
	EventName_Repay           = "Repay"
	EventName_Withdraw        = "Withdraw"
	EventName_LiquidationCall = "LiquidationCall"
)

// Canonical event signatures; keccak256 of these is topic0.
var EventSignatures = map[string]string{
	EventName_Supply:          "Supply(address,address,address,uint256,uint16)",
	EventName_Borrow:          "Borrow(address,address,address,uint256,uint8,uint256,uint16)",
	EventName_Repay:           "Repay(address,address,address,uint256,bool)",
	EventName_Withdraw:        "Withdraw(address,address,address,uint256)",
	EventName_LiquidationCall: "LiquidationCall(address,address,address,uint256,uint256,address,bool)",
}

// EventTopic returns the lowercase hex topic0 for a known pool event.
func EventTopic(eventName string) (string, error) {
	sig, ok := EventSignatures[eventName]
	if !ok {
		return "", fmt.Errorf("unknown event: %s", eventName)
	}
	return crypto.Keccak256Hash([]byte(sig)).Hex(), nil
}

type Contract struct {
	Name        string
	Address     string
	ChainId     config.ChainId
	AbiVersions []string
}

// CombinedAbi returns the last abi version, which is the one in effect.
func (c *Contract) CombinedAbi() (*abi.ABI, error) {
	if len(c.AbiVersions) == 0 {
		return nil, fmt.Errorf("contract %s has no abi", c.Name)
	}
	return parseAbi(c.AbiVersions[len(c.AbiVersions)-1])
}

var (
	abiCacheMu sync.Mutex
	abiCache   = map[string]*abi.ABI{}
)

func parseAbi(raw string) (*abi.ABI, error) {
	abiCacheMu.Lock()
	defer abiCacheMu.Unlock()

	if parsed, ok := abiCache[raw]; ok {
		return parsed, nil
	}
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse abi: %w", err)
	}
	abiCache[raw] = &parsed
	return &parsed, nil
}

func MustPoolAbi() *abi.ABI {
	parsed, err := parseAbi(PoolAbi)
	if err != nil {
		panic(err)
	}
	return parsed
}

func MustPoolDataProviderAbi() *abi.ABI {
	parsed, err := parseAbi(PoolDataProviderAbi)
	if err != nil {
		panic(err)
	}
	return parsed
}

// Aave V3 deployments. Other chains are configured through address overrides.
var deployments = map[config.ChainId]map[string]string{
	config.ChainId_EthereumMainnet: {
		ContractName_Pool:             "0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2",
		ContractName_PoolDataProvider: "0x7B4EB56E7CD4b454BA8ff71E4518426369a138a3",
	},
}

// DefaultContracts returns the known pool and data provider for every supported deployment.
func DefaultContracts() []*Contract {
	out := make([]*Contract, 0)
	for _, chainId := range config.SupportedChainIds {
		addrs, ok := deployments[chainId]
		if !ok {
			continue
		}
		out = append(out,
			&Contract{Name: ContractName_Pool, Address: addrs[ContractName_Pool], ChainId: chainId, AbiVersions: []string{PoolAbi}},
			&Contract{Name: ContractName_PoolDataProvider, Address: addrs[ContractName_PoolDataProvider], ChainId: chainId, AbiVersions: []string{PoolDataProviderAbi}},
		)
	}
	return out
}
