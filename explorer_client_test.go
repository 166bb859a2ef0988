package walletpnl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
)

const testWallet = "0x1111111111111111111111111111111111111111"

func TestExplorerClientTruncatesAtPageCap(t *testing.T) {
	t.Parallel()

	limiter := &stubLimiter{}
	var requests atomic.Int32
	var firstQuery string
	client := &ExplorerClient{
		Endpoint: "http://explorer.test/v2/api",
		APIKey:   "key",
		PageSize: 2,
		Logger:   NewDiscardLogger(),
		HTTPClient: &http.Client{Transport: &RateLimitedTransport{
			Limiter: limiter,
			Base: roundTripFunc(func(req *http.Request) (*http.Response, error) {
				if requests.Add(1) == 1 {
					firstQuery = req.URL.RawQuery
				}
				page, _ := strconv.Atoi(req.URL.Query().Get("page"))
				// every page is full, so an uncapped fetch would go on forever
				return explorerPage(t, page, 2), nil
			}),
		}},
	}

	history, err := client.FetchTokenTransfers(context.Background(), testWallet, "base")
	if err != nil {
		t.Fatalf("FetchTokenTransfers returned error: %v", err)
	}
	if !history.Truncated {
		t.Fatalf("expected truncation signal after page cap")
	}
	if len(history.Transfers) != 20 {
		t.Fatalf("unexpected transfer count: got %d want 20", len(history.Transfers))
	}
	if got := requests.Load(); got != explorerMaxPages {
		t.Fatalf("unexpected page requests: got %d want %d", got, explorerMaxPages)
	}
	if limiter.Calls() != explorerMaxPages {
		t.Fatalf("limiter should be acquired once per page, got %d", limiter.Calls())
	}
	if history.Transfers[19].Hash != "0xpage10-1" {
		t.Fatalf("unexpected last transfer %q", history.Transfers[19].Hash)
	}

	for _, want := range []string{"chainid=8453", "module=account", "action=tokentx", "sort=asc", "offset=2", "page=1", "apikey=key", "address=" + testWallet} {
		if !strings.Contains(firstQuery, want) {
			t.Fatalf("query %q missing %q", firstQuery, want)
		}
	}
}

func TestExplorerClientStopsOnShortPage(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	client := &ExplorerClient{
		Endpoint: "http://explorer.test/v2/api",
		PageSize: 3,
		Logger:   NewDiscardLogger(),
		HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			requests.Add(1)
			page, _ := strconv.Atoi(req.URL.Query().Get("page"))
			if page == 1 {
				return explorerPage(t, page, 3), nil
			}
			return explorerPage(t, page, 1), nil
		})},
	}

	history, err := client.FetchTokenTransfers(context.Background(), testWallet, DefaultChain)
	if err != nil {
		t.Fatalf("FetchTokenTransfers returned error: %v", err)
	}
	if history.Truncated {
		t.Fatalf("short page must not be reported as truncation")
	}
	if len(history.Transfers) != 4 || requests.Load() != 2 {
		t.Fatalf("unexpected result: transfers=%d requests=%d", len(history.Transfers), requests.Load())
	}
}

func TestExplorerClientNoTransactions(t *testing.T) {
	t.Parallel()

	client := &ExplorerClient{
		Endpoint: "http://explorer.test/v2/api",
		Logger:   NewDiscardLogger(),
		HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"status":"0","message":"No transactions found","result":[]}`), nil
		})},
	}

	history, err := client.FetchTokenTransfers(context.Background(), testWallet, DefaultChain)
	if err != nil {
		t.Fatalf("FetchTokenTransfers returned error: %v", err)
	}
	if len(history.Transfers) != 0 || history.Truncated {
		t.Fatalf("expected empty history, got %+v", history)
	}
}

func TestExplorerClientClassifiesFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		transport error
		check     func(t *testing.T, err error)
	}{
		{
			name:   "rate limit",
			status: http.StatusOK,
			body:   `{"status":"0","message":"NOTOK","result":"Max rate limit reached, please use API Key for higher rate limit"}`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrRateLimited) {
					t.Fatalf("expected ErrRateLimited, got %v", err)
				}
			},
		},
		{
			name:   "invalid key",
			status: http.StatusOK,
			body:   `{"status":"0","message":"NOTOK","result":"Missing/Invalid API Key"}`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrInvalidCredentials) {
					t.Fatalf("expected ErrInvalidCredentials, got %v", err)
				}
			},
		},
		{
			name:   "upstream detail from result",
			status: http.StatusOK,
			body:   `{"status":"0","message":"NOTOK","result":"Query Timeout occured. Please select a smaller result dataset"}`,
			check: func(t *testing.T, err error) {
				var upstream *UpstreamError
				if !errors.As(err, &upstream) {
					t.Fatalf("expected UpstreamError, got %v", err)
				}
				if !strings.HasPrefix(upstream.Detail, "Query Timeout") {
					t.Fatalf("unexpected detail %q", upstream.Detail)
				}
			},
		},
		{
			name:   "upstream detail from message",
			status: http.StatusOK,
			body:   `{"status":"0","message":"Unexpected","result":null}`,
			check: func(t *testing.T, err error) {
				var upstream *UpstreamError
				if !errors.As(err, &upstream) || upstream.Detail != "Unexpected" {
					t.Fatalf("expected UpstreamError with message detail, got %v", err)
				}
			},
		},
		{
			name:   "non-2xx status",
			status: http.StatusServiceUnavailable,
			body:   `unavailable`,
			check: func(t *testing.T, err error) {
				var transport *TransportError
				if !errors.As(err, &transport) || transport.StatusCode != http.StatusServiceUnavailable {
					t.Fatalf("expected TransportError 503, got %v", err)
				}
			},
		},
		{
			name:      "network failure",
			transport: errors.New("connection reset"),
			check: func(t *testing.T, err error) {
				var transport *TransportError
				if !errors.As(err, &transport) || transport.StatusCode != 0 {
					t.Fatalf("expected TransportError without status, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := &ExplorerClient{
				Endpoint: "http://explorer.test/v2/api",
				Logger:   NewDiscardLogger(),
				HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
					if tt.transport != nil {
						return nil, tt.transport
					}
					return jsonResponse(tt.status, tt.body), nil
				})},
			}

			history, err := client.FetchTokenTransfers(context.Background(), testWallet, DefaultChain)
			if err == nil {
				t.Fatalf("expected error, got history %+v", history)
			}
			tt.check(t, err)
		})
	}
}

func TestExplorerClientRejectsUnknownChain(t *testing.T) {
	t.Parallel()

	client := &ExplorerClient{Logger: NewDiscardLogger()}
	if _, err := client.FetchTokenTransfers(context.Background(), testWallet, "solana"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func explorerPage(t *testing.T, page, size int) *http.Response {
	t.Helper()

	transfers := make([]TokenTransfer, size)
	for i := range transfers {
		transfers[i] = TokenTransfer{
			TimeStamp:       strconv.Itoa(1700000000 + page*100 + i),
			Hash:            fmt.Sprintf("0xpage%d-%d", page, i),
			From:            "0x2222222222222222222222222222222222222222",
			To:              testWallet,
			ContractAddress: "0x3333333333333333333333333333333333333333",
			TokenSymbol:     "TKN",
			TokenDecimal:    "18",
			Value:           "1000000000000000000",
		}
	}
	payload, err := json.Marshal(map[string]any{
		"status":  "1",
		"message": "OK",
		"result":  transfers,
	})
	if err != nil {
		t.Fatalf("failed to encode page: %v", err)
	}
	return jsonResponse(http.StatusOK, string(payload))
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
