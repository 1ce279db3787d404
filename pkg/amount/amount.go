// Package amount converts raw on-chain token amounts into exact decimal strings.
package amount

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is used when a token's precision cannot be resolved.
const DefaultDecimals uint8 = 18

// Normalize renders raw / 10^decimals without going through floating point.
// Whole values keep a ".0" suffix so the output always reads as a decimal.
func Normalize(raw *big.Int, decimals uint8) string {
	if raw == nil {
		return "0.0"
	}
	s := decimal.NewFromBigInt(raw, -int32(decimals)).String()
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
