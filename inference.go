package walletpnl

import (
	"math"
	"strings"
)

// TxPrices maps contract -> tx hash -> inferred USD price per token.
type TxPrices map[string]map[string]float64

// Lookup returns the inferred price of contract in txHash.
func (p TxPrices) Lookup(contract, txHash string) (float64, bool) {
	byTx, ok := p[contract]
	if !ok {
		return 0, false
	}
	price, ok := byTx[txHash]
	return price, ok
}

func (p TxPrices) set(contract, txHash string, price float64) {
	byTx, ok := p[contract]
	if !ok {
		byTx = make(map[string]float64)
		p[contract] = byTx
	}
	byTx[txHash] = price
}

// InferTxPrices derives per-transaction token prices from the stablecoin or
// wrapped-native legs of the same transaction. The wallet's net stable flow
// in a transaction is its USD value; without one, the net wrapped-native
// flow is converted at wethPrice. Every other leg moving into or out of the
// wallet is priced at |netUsd| / amount.
//
// A transaction with several non-stable legs applies the same USD flow to
// each of them, so multi-hop swaps are only approximated.
func InferTxPrices(transfers []TokenTransfer, wallet string, chain Chain, wethPrice float64) TxPrices {
	result := make(TxPrices)
	info, ok := LookupChain(chain)
	if !ok {
		return result
	}
	wallet = strings.ToLower(wallet)

	var order []string
	byTx := make(map[string][]TokenTransfer)
	for _, tx := range transfers {
		if _, seen := byTx[tx.Hash]; !seen {
			order = append(order, tx.Hash)
		}
		byTx[tx.Hash] = append(byTx[tx.Hash], tx)
	}

	for _, hash := range order {
		legs := byTx[hash]
		netUsd := netCounterFlow(legs, wallet, info, wethPrice)
		if netUsd == 0 {
			continue
		}
		usd := math.Abs(netUsd)

		for _, leg := range legs {
			contract := leg.Contract()
			if info.IsStablecoin(contract) || info.IsWrappedNative(contract) {
				continue
			}
			amount := tokenAmount(leg.Value, leg.Decimals())
			if amount <= 0 {
				continue
			}
			if !strings.EqualFold(leg.To, wallet) && !strings.EqualFold(leg.From, wallet) {
				continue
			}
			result.set(contract, hash, usd/amount)
		}
	}
	return result
}

// netCounterFlow returns the USD moving to the wallet (negative when leaving
// it) through the stablecoin legs of one transaction, or through its
// wrapped-native legs when the stable flow nets to zero.
func netCounterFlow(legs []TokenTransfer, wallet string, info ChainInfo, wethPrice float64) float64 {
	var netStable, netWeth float64
	for _, leg := range legs {
		contract := leg.Contract()
		var acc *float64
		switch {
		case info.IsStablecoin(contract):
			acc = &netStable
		case info.IsWrappedNative(contract):
			acc = &netWeth
		default:
			continue
		}
		amount := tokenAmount(leg.Value, leg.Decimals())
		if strings.EqualFold(leg.To, wallet) {
			*acc += amount
		}
		if strings.EqualFold(leg.From, wallet) {
			*acc -= amount
		}
	}

	if netStable != 0 {
		return netStable
	}
	if wethPrice > 0 {
		return netWeth * wethPrice
	}
	return 0
}
