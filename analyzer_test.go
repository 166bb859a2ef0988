package walletpnl

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransferSource struct {
	history TransferHistory
	err     error
}

func (f *fakeTransferSource) FetchTokenTransfers(context.Context, string, Chain) (TransferHistory, error) {
	return f.history, f.err
}

type fakePriceSource struct {
	mu     sync.Mutex
	prices map[string]float64
	asked  []string
}

func (f *fakePriceSource) FetchPrices(_ context.Context, addrs []string, _ Chain) map[string]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, addrs...)
	out := make(map[string]float64)
	for _, addr := range addrs {
		if price, ok := f.prices[addr]; ok {
			out[addr] = price
		}
	}
	return out
}

type fakeHistorySource struct {
	mu       sync.Mutex
	asked    []string
	minTs    int64
	maxTs    int64
	response map[string][]PricePoint
}

func (f *fakeHistorySource) FetchHistories(_ context.Context, contracts []string, _ Chain, minTs, maxTs int64) map[string][]PricePoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, contracts...)
	f.minTs, f.maxTs = minTs, maxTs
	return f.response
}

func TestAnalyzerRunsPipeline(t *testing.T) {
	t.Parallel()

	transfers := append(swapScenario(),
		transfer("0xlate", 5000, ethPool, testWallet, ethWETH, "WETH", 18, "1"),
	)
	prices := &fakePriceSource{prices: map[string]float64{ethTKN: 5, ethWETH: 3000}}
	histories := &fakeHistorySource{}
	analyzer := NewAnalyzerWithSources(
		&fakeTransferSource{history: TransferHistory{Transfers: transfers, Truncated: true}},
		prices,
		histories,
		NewDiscardLogger(),
	)

	report, err := analyzer.Analyze(context.Background(), testWallet, DefaultChain)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.True(t, report.Truncated)

	// USDC nets positive and WETH is always priced
	slices.Sort(prices.asked)
	assert.Equal(t, []string{ethTKN, ethUSDC, ethWETH}, prices.asked)
	// stables and wrapped native have no history lookup
	assert.Equal(t, []string{ethTKN}, histories.asked)
	assert.Equal(t, int64(1000), histories.minTs)
	assert.Equal(t, int64(5000), histories.maxTs)

	var tkn TokenPnL
	for _, token := range report.Tokens {
		if token.ContractAddress == ethTKN {
			tkn = token
		}
	}
	assert.InDelta(t, 340, tkn.TotalPnL, 1e-9)
}

func TestAnalyzerEmptyHistory(t *testing.T) {
	t.Parallel()

	prices := &fakePriceSource{}
	analyzer := NewAnalyzerWithSources(&fakeTransferSource{}, prices, &fakeHistorySource{}, NewDiscardLogger())

	report, err := analyzer.Analyze(context.Background(), testWallet, "base")
	require.NoError(t, err)
	assert.NotNil(t, report.Tokens)
	assert.Empty(t, report.Tokens)
	assert.Equal(t, Summary{}, report.Summary)
	assert.Empty(t, prices.asked, "no price lookups for an empty wallet")
}

func TestAnalyzerTransferFailureIsFatal(t *testing.T) {
	t.Parallel()

	analyzer := NewAnalyzerWithSources(
		&fakeTransferSource{err: ErrRateLimited},
		&fakePriceSource{},
		&fakeHistorySource{},
		NewDiscardLogger(),
	)

	report, err := analyzer.Analyze(context.Background(), testWallet, DefaultChain)
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, ErrRateLimited))

	_, err = analyzer.Analyze(context.Background(), testWallet, "solana")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
