package walletpnl

import (
	"strconv"
	"strings"
)

// TokenTransfer is one ERC-20 transfer log entry as served by the explorer.
// Numeric fields stay strings so raw values never pass through a float.
type TokenTransfer struct {
	BlockNumber     string `json:"blockNumber"`
	TimeStamp       string `json:"timeStamp"`
	Hash            string `json:"hash"`
	From            string `json:"from"`
	To              string `json:"to"`
	ContractAddress string `json:"contractAddress"`
	TokenName       string `json:"tokenName"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenDecimal    string `json:"tokenDecimal"`
	Value           string `json:"value"`
}

// Timestamp returns the block time in unix seconds, or 0 when unparseable.
func (t TokenTransfer) Timestamp() int64 {
	ts, err := strconv.ParseInt(strings.TrimSpace(t.TimeStamp), 10, 64)
	if err != nil {
		return 0
	}
	return ts
}

// Decimals returns the token decimals, defaulting to 18 when the field is
// empty, malformed or outside the uint8 range of ERC-20 decimals().
func (t TokenTransfer) Decimals() int32 {
	d, err := strconv.ParseInt(strings.TrimSpace(t.TokenDecimal), 10, 32)
	if err != nil || d < 0 || d > maxTokenDecimals {
		return defaultTokenDecimals
	}
	return int32(d)
}

// Contract returns the lower-cased contract address.
func (t TokenTransfer) Contract() string {
	return strings.ToLower(t.ContractAddress)
}

// TransferHistory is the result of a paginated explorer fetch.
type TransferHistory struct {
	Transfers []TokenTransfer
	// Truncated is set when the page cap stopped the fetch early.
	Truncated bool
}

// PricePoint is one daily sample of a historical price series.
type PricePoint struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
}

// TokenPnL aggregates the FIFO result for one contract.
type TokenPnL struct {
	Symbol             string  `json:"symbol"`
	Name               string  `json:"name"`
	ContractAddress    string  `json:"contractAddress"`
	QuantityHeld       float64 `json:"quantityHeld"`
	AvgBuyPrice        float64 `json:"avgBuyPrice"`
	CurrentPrice       float64 `json:"currentPrice"`
	TotalBought        float64 `json:"totalBought"`
	TotalSold          float64 `json:"totalSold"`
	RealizedPnL        float64 `json:"realizedPnl"`
	UnrealizedPnL      float64 `json:"unrealizedPnl"`
	TotalPnL           float64 `json:"totalPnl"`
	PnLPercent         float64 `json:"pnlPercent"`
	HasHistoricalPrice bool    `json:"hasHistoricalPrice"`
}

// HeldValue is the USD value of the remaining position at the current price.
func (t TokenPnL) HeldValue() float64 {
	return t.QuantityHeld * t.CurrentPrice
}

// Summary aggregates every retained TokenPnL of one report.
type Summary struct {
	TotalValue      float64 `json:"totalValue"`
	TotalPnL        float64 `json:"totalPnl"`
	TotalPnLPercent float64 `json:"totalPnlPercent"`
	RealizedPnL     float64 `json:"realizedPnl"`
	UnrealizedPnL   float64 `json:"unrealizedPnl"`
	WinRate         float64 `json:"winRate"`
	TokensTracked   int     `json:"tokensTracked"`
}

// WalletReport is the outcome of one wallet analysis.
type WalletReport struct {
	Tokens    []TokenPnL `json:"tokens"`
	Summary   Summary    `json:"summary"`
	Truncated bool       `json:"truncated,omitempty"`
}
