package walletpnl

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"
)

const (
	defaultTokenDecimals = 18
	maxTokenDecimals     = 255
)

// parseRawValue parses a non-negative explorer integer string (decimal or 0x hex).
func parseRawValue(raw string) (*big.Int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	value, ok := math.ParseBig256(raw)
	if !ok || value.Sign() < 0 {
		return nil, false
	}
	return value, true
}

// tokenAmount scales a raw integer amount by decimals. The division is exact;
// only the final conversion to float64 rounds. Decimals outside 0..255 yield 0.
func tokenAmount(raw string, decimals int32) float64 {
	if decimals < 0 || decimals > maxTokenDecimals {
		return 0
	}
	value, ok := parseRawValue(raw)
	if !ok || value.Sign() == 0 {
		return 0
	}
	return decimal.NewFromBigInt(value, -decimals).InexactFloat64()
}
