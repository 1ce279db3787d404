// Package log holds the structured form of a decoded event log.
package log

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// DecodedLog is an event log with its arguments resolved against the emitting contract's abi.
type DecodedLog struct {
	// LogIndex is the position of the log in the block
	LogIndex uint64
	// Address is the contract address that emitted the event
	Address string
	// Arguments contains every event parameter, indexed or not, in abi order
	Arguments []Argument
	// EventName is the name of the emitted event
	EventName string
	// OutputData contains the non-indexed parameters unpacked from the log data
	OutputData map[string]interface{}
}

type Argument struct {
	Name    string
	Type    string
	Value   interface{}
	Indexed bool
}

// Value looks a parameter up by name across indexed arguments and output data.
func (dl *DecodedLog) Value(name string) (interface{}, bool) {
	for _, arg := range dl.Arguments {
		if arg.Name == name && arg.Indexed {
			return arg.Value, arg.Value != nil
		}
	}
	v, ok := dl.OutputData[name]
	return v, ok && v != nil
}

func (dl *DecodedLog) AddressValue(name string) (common.Address, error) {
	v, ok := dl.Value(name)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: argument %q missing", dl.EventName, name)
	}
	addr, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: argument %q is %T, not an address", dl.EventName, name, v)
	}
	return addr, nil
}

func (dl *DecodedLog) BigIntValue(name string) (*big.Int, error) {
	v, ok := dl.Value(name)
	if !ok {
		return nil, fmt.Errorf("%s: argument %q missing", dl.EventName, name)
	}
	n, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: argument %q is %T, not a uint256", dl.EventName, name, v)
	}
	return n, nil
}
