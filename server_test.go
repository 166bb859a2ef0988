package walletpnl

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type analyzerFunc func(ctx context.Context, address string, chain Chain) (*WalletReport, error)

func (f analyzerFunc) Analyze(ctx context.Context, address string, chain Chain) (*WalletReport, error) {
	return f(ctx, address, chain)
}

func TestServerWalletEndpoint(t *testing.T) {
	t.Parallel()

	analyzer := analyzerFunc(func(_ context.Context, address string, chain Chain) (*WalletReport, error) {
		switch address {
		case "0x2222222222222222222222222222222222222222":
			return nil, ErrRateLimited
		case "0x3333333333333333333333333333333333333333":
			return nil, &UpstreamError{Detail: "NOTOK"}
		case "0x4444444444444444444444444444444444444444":
			return nil, &TransportError{Err: context.DeadlineExceeded}
		case "0x5555555555555555555555555555555555555555":
			return nil, ErrInvalidCredentials
		}
		return &WalletReport{
			Tokens:  []TokenPnL{{Symbol: "TKN", ContractAddress: ethTKN, QuantityHeld: 1}},
			Summary: Summary{TokensTracked: 1, TotalValue: float64(len(chain))},
		}, nil
	})

	ts := httptest.NewServer(NewServer(analyzer, NewDiscardLogger()))
	t.Cleanup(ts.Close)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		assert     func(t *testing.T, body []byte)
	}{
		{
			name:       "report",
			body:       `{"address":"` + testWallet + `"}`,
			wantStatus: http.StatusOK,
			assert: func(t *testing.T, body []byte) {
				var report WalletReport
				if err := json.Unmarshal(body, &report); err != nil {
					t.Fatalf("failed to decode report: %v", err)
				}
				if len(report.Tokens) != 1 || report.Tokens[0].Symbol != "TKN" {
					t.Fatalf("unexpected report %+v", report)
				}
				if report.Summary.TotalValue != float64(len(DefaultChain)) {
					t.Fatalf("chain should default to %s", DefaultChain)
				}
				if !strings.Contains(string(body), `"realizedPnl"`) || !strings.Contains(string(body), `"hasHistoricalPrice"`) {
					t.Fatalf("unexpected field names: %s", body)
				}
			},
		},
		{name: "invalid address", body: `{"address":"0x12"}`, wantStatus: http.StatusBadRequest},
		{name: "invalid chain", body: `{"address":"` + testWallet + `","chain":"solana"}`, wantStatus: http.StatusBadRequest},
		{name: "malformed body", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "rate limited", body: `{"address":"0x2222222222222222222222222222222222222222"}`, wantStatus: http.StatusTooManyRequests},
		{name: "upstream", body: `{"address":"0x3333333333333333333333333333333333333333"}`, wantStatus: http.StatusBadGateway},
		{name: "timeout", body: `{"address":"0x4444444444444444444444444444444444444444"}`, wantStatus: http.StatusGatewayTimeout},
		{name: "credentials", body: `{"address":"0x5555555555555555555555555555555555555555"}`, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			resp, err := http.Post(ts.URL+"/api/wallet", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("failed to POST wallet: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("unexpected status: got %d, want %d", resp.StatusCode, tt.wantStatus)
			}

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("failed to read body: %v", err)
			}
			if tt.assert != nil {
				tt.assert(t, body)
				return
			}

			var payload errorResponse
			if err := json.Unmarshal(body, &payload); err != nil || payload.Error == "" {
				t.Fatalf("expected {error} payload, got %s", body)
			}
		})
	}
}

func TestServerHealthAndMetrics(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(NewServer(analyzerFunc(func(context.Context, string, Chain) (*WalletReport, error) {
		return nil, errors.New("unused")
	}), NewDiscardLogger()))
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("failed to GET healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected health status %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("failed to GET metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "walletpnl_app_http_responses_total") {
		t.Fatalf("metrics output missing app response counter")
	}

	resp, err = http.Get(ts.URL + "/api/wallet")
	if err != nil {
		t.Fatalf("failed to GET wallet: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("wallet endpoint should only accept POST, got %d", resp.StatusCode)
	}
}

func TestStatusForError(t *testing.T) {
	t.Parallel()

	if got := statusForError(&TransportError{StatusCode: http.StatusServiceUnavailable, Err: errors.New("down")}); got != http.StatusBadGateway {
		t.Fatalf("unexpected status for upstream 503: %d", got)
	}
	if got := statusForError(errors.New("boom")); got != http.StatusInternalServerError {
		t.Fatalf("unexpected status for unknown error: %d", got)
	}
}
