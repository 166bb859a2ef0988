package walletpnl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

var analyzerLogger = NewLogger("analyzer")

// Analyzer runs the full wallet pipeline: transfer fetch, holdings filter,
// concurrent price and history fetches, then FIFO accounting.
type Analyzer struct {
	transfers TransferSource
	prices    PriceSource
	histories HistorySource
	logger    Logger
}

// NewAnalyzer wires the production clients from cfg. cache is shared by every
// analysis of the process.
func NewAnalyzer(cfg Config, cache *PriceCache, logger Logger) *Analyzer {
	if cache == nil {
		cache = NewPriceCache(cfg)
	}
	registerCacheGauges(cache)
	return NewAnalyzerWithSources(
		NewExplorerClient(cfg, NewLogger("explorer")),
		NewCoinGeckoClient(cfg, cache, NewLogger("coingecko")),
		NewDefiLlamaClient(cfg, NewLogger("defillama")),
		logger,
	)
}

// NewAnalyzerWithSources builds an analyzer from explicit collaborators.
func NewAnalyzerWithSources(transfers TransferSource, prices PriceSource, histories HistorySource, logger Logger) *Analyzer {
	if logger == nil {
		logger = analyzerLogger
	}
	return &Analyzer{
		transfers: transfers,
		prices:    prices,
		histories: histories,
		logger:    logger,
	}
}

// Analyze computes the PnL report of address on chain. Only a failed transfer
// fetch is an error; missing prices lower the report's confidence instead.
func (a *Analyzer) Analyze(ctx context.Context, address string, chain Chain) (*WalletReport, error) {
	info, ok := LookupChain(chain)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported chain %q", ErrInvalidInput, chain)
	}
	address = strings.ToLower(address)
	started := time.Now()

	history, err := a.transfers.FetchTokenTransfers(ctx, address, chain)
	if err != nil {
		analysesTotal.WithLabelValues(string(chain), "error").Inc()
		a.logger.Printf("analyze failed address=%s chain=%s: %v", address, chain, err)
		return nil, err
	}
	if len(history.Transfers) == 0 {
		analysesTotal.WithLabelValues(string(chain), "empty").Inc()
		return &WalletReport{Tokens: []TokenPnL{}, Truncated: history.Truncated}, nil
	}

	held := ScanHeldContracts(history.Transfers, address, chain)
	priceTargets := sortedKeys(held)
	historyTargets := make([]string, 0, len(priceTargets))
	for _, contract := range priceTargets {
		if info.IsStablecoin(contract) || info.IsWrappedNative(contract) {
			continue
		}
		historyTargets = append(historyTargets, contract)
	}
	minTs, maxTs := timestampRange(history.Transfers)

	var (
		prices    map[string]float64
		histories map[string][]PricePoint
	)
	// Both fetches degrade instead of failing, so the group only joins.
	var g errgroup.Group
	g.Go(func() error {
		prices = a.prices.FetchPrices(ctx, priceTargets, chain)
		return nil
	})
	g.Go(func() error {
		if minTs == 0 {
			histories = map[string][]PricePoint{}
			return nil
		}
		histories = a.histories.FetchHistories(ctx, historyTargets, chain, minTs, maxTs)
		return nil
	})
	_ = g.Wait()

	report := CalculatePnL(history.Transfers, address, chain, prices, histories)
	report.Truncated = history.Truncated

	elapsed := time.Since(started)
	analysesTotal.WithLabelValues(string(chain), "ok").Inc()
	analysisDuration.WithLabelValues(string(chain)).Observe(elapsed.Seconds())
	a.logger.Printf(
		"analyze done address=%s chain=%s transfers=%d held=%d priced=%d histories=%d tokens=%d truncated=%t elapsed=%s",
		address,
		chain,
		len(history.Transfers),
		len(held),
		len(prices),
		len(histories),
		len(report.Tokens),
		report.Truncated,
		elapsed.Truncate(time.Millisecond),
	)
	return &report, nil
}

// timestampRange returns the earliest and latest non-zero transfer times.
func timestampRange(transfers []TokenTransfer) (int64, int64) {
	var minTs, maxTs int64
	for _, tx := range transfers {
		ts := tx.Timestamp()
		if ts == 0 {
			continue
		}
		if minTs == 0 || ts < minTs {
			minTs = ts
		}
		if ts > maxTs {
			maxTs = ts
		}
	}
	return minTs, maxTs
}
