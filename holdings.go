package walletpnl

import (
	"math/big"
	"slices"
	"strings"
)

// ScanHeldContracts returns the contracts with a strictly positive net raw
// balance for wallet, plus the chain's wrapped-native token. Balances are
// summed as big integers; a transfer counts as inflow or outflow, never both.
func ScanHeldContracts(transfers []TokenTransfer, wallet string, chain Chain) map[string]struct{} {
	wallet = strings.ToLower(wallet)
	net := make(map[string]*big.Int)

	for _, tx := range transfers {
		value, ok := parseRawValue(tx.Value)
		if !ok {
			continue
		}
		contract := tx.Contract()
		balance, exists := net[contract]
		if !exists {
			balance = new(big.Int)
			net[contract] = balance
		}

		if strings.EqualFold(tx.To, wallet) {
			balance.Add(balance, value)
		} else if strings.EqualFold(tx.From, wallet) {
			balance.Sub(balance, value)
		}
	}

	held := make(map[string]struct{}, len(net)+1)
	for contract, balance := range net {
		if balance.Sign() > 0 {
			held[contract] = struct{}{}
		}
	}
	if info, ok := LookupChain(chain); ok && info.WrappedNative != "" {
		held[info.WrappedNative] = struct{}{}
	}
	return held
}

// sortedKeys returns the keys of set in lexical order.
func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
