package walletpnl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	etherscanHost      = "api.etherscan.io"
	etherscanEndpoint  = "https://" + etherscanHost + "/v2/api"
	defaultHTTPTimeout = 15 * time.Second
	explorerPageSize   = 10000
	explorerMaxPages   = 10 // 100k transfers
	noTransactionsMsg  = "No transactions found"
)

var explorerLogger = NewLogger("explorer")

// TransferSource yields the full ERC-20 transfer log of a wallet on one chain.
type TransferSource interface {
	FetchTokenTransfers(ctx context.Context, address string, chain Chain) (TransferHistory, error)
}

// ExplorerClient pages through the Etherscan V2 tokentx endpoint. Unless a
// custom HTTPClient is supplied, every page request waits on the explorer
// limiter (Limiter, or the shared per-host one).
type ExplorerClient struct {
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
	Limiter    Limiter
	Logger     Logger
	PageSize   int
	MaxPages   int

	clientOnce sync.Once
}

// NewExplorerClient builds a client from cfg.
func NewExplorerClient(cfg Config, logger Logger) *ExplorerClient {
	client := &ExplorerClient{
		APIKey: cfg.EtherscanAPIKey,
		Logger: logger,
	}
	if cfg.ExplorerInterval > 0 && cfg.ExplorerInterval != defaultExplorerInterval {
		client.Limiter = NewIntervalLimiter(cfg.ExplorerInterval)
	}
	client.HTTPClient = newUpstreamHTTPClient(cfg.HTTPTimeout, client.limiter())
	return client
}

func (c *ExplorerClient) logger() Logger {
	if c != nil && c.Logger != nil {
		return c.Logger
	}
	return explorerLogger
}

func (c *ExplorerClient) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return etherscanEndpoint
}

func (c *ExplorerClient) limiter() Limiter {
	if c.Limiter != nil {
		return c.Limiter
	}
	return limiterForEndpoint(c.endpoint())
}

func (c *ExplorerClient) httpClient() *http.Client {
	c.clientOnce.Do(func() {
		if c.HTTPClient == nil {
			c.HTTPClient = newUpstreamHTTPClient(defaultHTTPTimeout, c.limiter())
		}
	})
	return c.HTTPClient
}

func (c *ExplorerClient) pageSize() int {
	if c.PageSize > 0 {
		return c.PageSize
	}
	return explorerPageSize
}

func (c *ExplorerClient) maxPages() int {
	if c.MaxPages > 0 {
		return c.MaxPages
	}
	return explorerMaxPages
}

// FetchTokenTransfers returns every transfer touching address in ascending
// time order. Hitting the page cap truncates the history instead of failing.
func (c *ExplorerClient) FetchTokenTransfers(ctx context.Context, address string, chain Chain) (TransferHistory, error) {
	info, ok := LookupChain(chain)
	if !ok {
		return TransferHistory{}, fmt.Errorf("%w: unsupported chain %q", ErrInvalidInput, chain)
	}

	var history TransferHistory
	pageSize := c.pageSize()
	for page := 1; ; page++ {
		transfers, done, err := c.fetchPage(ctx, address, info, page, pageSize)
		if err != nil {
			return TransferHistory{}, err
		}
		history.Transfers = append(history.Transfers, transfers...)
		c.logger().Printf("tokentx page chain=%s page=%d count=%d total=%d", chain, page, len(transfers), len(history.Transfers))

		if done || len(transfers) < pageSize {
			break
		}
		if page >= c.maxPages() {
			c.logger().Printf("tokentx page cap warning chain=%s address=%s pages=%d transfers=%d truncating", chain, address, page, len(history.Transfers))
			history.Truncated = true
			break
		}
	}
	return history, nil
}

type explorerResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func (c *ExplorerClient) fetchPage(ctx context.Context, address string, info ChainInfo, page, pageSize int) ([]TokenTransfer, bool, error) {
	params := url.Values{}
	params.Set("chainid", strconv.FormatInt(info.ChainID, 10))
	params.Set("module", "account")
	params.Set("action", "tokentx")
	params.Set("address", address)
	params.Set("page", strconv.Itoa(page))
	params.Set("offset", strconv.Itoa(pageSize))
	params.Set("sort", "asc")
	params.Set("apikey", c.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint()+"?"+params.Encode(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("build tokentx request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, false, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, false, &TransportError{
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(body))),
		}
	}

	var payload explorerResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, false, &UpstreamError{Detail: fmt.Sprintf("decode tokentx response: %v", err)}
	}

	if payload.Message == noTransactionsMsg {
		return nil, true, nil
	}

	result := bytes.TrimSpace(payload.Result)
	if payload.Status == "1" && len(result) > 0 && result[0] == '[' {
		var transfers []TokenTransfer
		if err := json.Unmarshal(result, &transfers); err != nil {
			return nil, false, &UpstreamError{Detail: fmt.Sprintf("decode tokentx result: %v", err)}
		}
		return transfers, false, nil
	}

	return nil, false, classifyExplorerFailure(payload)
}

// classifyExplorerFailure maps a non-success explorer payload to the error taxonomy.
func classifyExplorerFailure(payload explorerResponse) error {
	var detail string
	_ = json.Unmarshal(payload.Result, &detail)
	if detail == "" {
		detail = payload.Message
	}
	if detail == "" {
		detail = "unknown error"
	}

	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "max rate"):
		return ErrRateLimited
	case strings.Contains(lower, "invalid api key"), strings.Contains(lower, "missing apikey"):
		return ErrInvalidCredentials
	default:
		return &UpstreamError{Detail: detail}
	}
}
