package walletpnl

import (
	"math"
	"sort"
	"strings"
)

const (
	dustQuantity  = 1e-12
	dustUSD       = 1e-3
	unknownSymbol = "???"
)

// costLot is one acquisition still (partly) held.
type costLot struct {
	quantity float64
	price    float64
}

// lotQueue is the FIFO of open lots of one contract.
type lotQueue struct {
	lots []costLot
	head int
}

func (q *lotQueue) push(quantity, price float64) {
	q.lots = append(q.lots, costLot{quantity: quantity, price: price})
}

// consume removes quantity from the oldest lots first and returns the cost
// basis taken. Quantity beyond the open lots carries no cost basis.
func (q *lotQueue) consume(quantity float64) float64 {
	remaining := quantity
	costBasis := 0.0
	for remaining > 0 && q.head < len(q.lots) {
		lot := &q.lots[q.head]
		if lot.quantity <= remaining {
			costBasis += lot.quantity * lot.price
			remaining -= lot.quantity
			q.head++
			continue
		}
		costBasis += remaining * lot.price
		lot.quantity -= remaining
		remaining = 0
	}
	return costBasis
}

func (q *lotQueue) open() []costLot {
	return q.lots[q.head:]
}

func (q *lotQueue) quantity() float64 {
	total := 0.0
	for _, lot := range q.open() {
		total += lot.quantity
	}
	return total
}

func (q *lotQueue) costBasis() float64 {
	total := 0.0
	for _, lot := range q.open() {
		total += lot.quantity * lot.price
	}
	return total
}

// contractLedger accumulates the FIFO state of one contract. held never
// drops below zero, so it always equals the open lot quantity.
type contractLedger struct {
	lots          lotQueue
	held          float64
	realized      float64
	bought        float64
	sold          float64
	hasHistorical bool
}

func (l *contractLedger) buy(quantity, price float64) {
	l.lots.push(quantity, price)
	l.held += quantity
	l.bought += quantity * price
}

func (l *contractLedger) sell(quantity, price float64) {
	costBasis := l.lots.consume(quantity)
	proceeds := quantity * price
	l.sold += proceeds
	l.realized += proceeds - costBasis
	l.held = math.Max(0, l.held-quantity)
}

// CalculatePnL runs FIFO cost-basis accounting over every contract the wallet
// touched and ranks the result by held value. prices holds current USD
// prices, histories the daily series per contract.
func CalculatePnL(
	transfers []TokenTransfer,
	wallet string,
	chain Chain,
	prices map[string]float64,
	histories map[string][]PricePoint,
) WalletReport {
	wallet = strings.ToLower(wallet)
	var wethPrice float64
	if info, ok := LookupChain(chain); ok {
		wethPrice = prices[info.WrappedNative]
	}
	inferred := InferTxPrices(transfers, wallet, chain, wethPrice)

	var order []string
	byContract := make(map[string][]TokenTransfer)
	for _, tx := range transfers {
		contract := tx.Contract()
		if _, seen := byContract[contract]; !seen {
			order = append(order, contract)
		}
		byContract[contract] = append(byContract[contract], tx)
	}

	tokens := make([]TokenPnL, 0, len(order))
	for _, contract := range order {
		token, keep := contractPnL(contract, byContract[contract], wallet, prices[contract], histories[contract], inferred)
		if keep {
			tokens = append(tokens, token)
		}
	}

	sort.SliceStable(tokens, func(i, j int) bool {
		vi, vj := tokens[i].HeldValue(), tokens[j].HeldValue()
		if vi != vj {
			return vi > vj
		}
		return math.Abs(tokens[i].TotalPnL) > math.Abs(tokens[j].TotalPnL)
	})

	return WalletReport{Tokens: tokens, Summary: summarize(tokens)}
}

func contractPnL(
	contract string,
	txs []TokenTransfer,
	wallet string,
	currentPrice float64,
	history []PricePoint,
	inferred TxPrices,
) (TokenPnL, bool) {
	first := txs[0]
	symbol := first.TokenSymbol
	if symbol == "" {
		symbol = unknownSymbol
	}
	name := first.TokenName
	if name == "" {
		name = symbol
	}
	decimals := first.Decimals()

	sorted := make([]TokenTransfer, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp() < sorted[j].Timestamp()
	})

	var ledger contractLedger
	for _, tx := range sorted {
		quantity := tokenAmount(tx.Value, decimals)
		if quantity == 0 {
			continue
		}
		inflow := strings.EqualFold(tx.To, wallet)
		outflow := strings.EqualFold(tx.From, wallet)
		if !inflow && !outflow {
			continue
		}

		price, historical := selectPrice(contract, tx, inferred, history, currentPrice)
		if historical {
			ledger.hasHistorical = true
		}
		if inflow {
			ledger.buy(quantity, price)
		} else {
			ledger.sell(quantity, price)
		}
	}
	held, realized, bought, sold := ledger.held, ledger.realized, ledger.bought, ledger.sold

	remainingCost := ledger.lots.costBasis()
	unrealized := 0.0
	if currentPrice > 0 {
		unrealized = held*currentPrice - remainingCost
	}
	total := realized + unrealized

	hasHoldings := held > dustQuantity
	hasActivity := math.Abs(realized) > dustUSD || math.Abs(bought) > dustUSD
	if !hasHoldings && !hasActivity {
		return TokenPnL{}, false
	}

	avgBuy := 0.0
	if held > 0 && remainingCost > 0 {
		avgBuy = remainingCost / held
	}

	pnlPercent := 0.0
	switch {
	case remainingCost > 0:
		pnlPercent = unrealized / remainingCost * 100
	case bought > 0:
		pnlPercent = total / bought * 100
	}

	return TokenPnL{
		Symbol:             symbol,
		Name:               name,
		ContractAddress:    contract,
		QuantityHeld:       held,
		AvgBuyPrice:        avgBuy,
		CurrentPrice:       currentPrice,
		TotalBought:        bought,
		TotalSold:          sold,
		RealizedPnL:        realized,
		UnrealizedPnL:      unrealized,
		TotalPnL:           total,
		PnLPercent:         pnlPercent,
		HasHistoricalPrice: ledger.hasHistorical,
	}, true
}

// selectPrice picks the inferred swap price, then the nearest daily price
// within 36h, then the current price. The flag reports whether the price
// came from one of the first two.
func selectPrice(contract string, tx TokenTransfer, inferred TxPrices, history []PricePoint, currentPrice float64) (float64, bool) {
	if price, ok := inferred.Lookup(contract, tx.Hash); ok {
		return price, true
	}
	if price, ok := PriceAt(history, tx.Timestamp(), historyMaxDelta); ok {
		return price, true
	}
	return currentPrice, false
}

func summarize(tokens []TokenPnL) Summary {
	var summary Summary
	var costBasis float64
	profitable := 0
	for _, token := range tokens {
		summary.TotalValue += token.HeldValue()
		summary.TotalPnL += token.TotalPnL
		summary.RealizedPnL += token.RealizedPnL
		summary.UnrealizedPnL += token.UnrealizedPnL
		if token.AvgBuyPrice > 0 {
			costBasis += token.QuantityHeld * token.AvgBuyPrice
		}
		if token.TotalPnL > 0 {
			profitable++
		}
	}
	if costBasis > 0 {
		summary.TotalPnLPercent = summary.TotalPnL / costBasis * 100
	}
	summary.TokensTracked = len(tokens)
	if len(tokens) > 0 {
		summary.WinRate = float64(profitable) / float64(len(tokens)) * 100
	}
	return summary
}
