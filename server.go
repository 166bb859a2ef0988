package walletpnl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxRequestBody = 4 << 10

// WalletAnalyzer is the core consumed by the HTTP surface.
type WalletAnalyzer interface {
	Analyze(ctx context.Context, address string, chain Chain) (*WalletReport, error)
}

type walletRequest struct {
	Address string `json:"address"`
	Chain   string `json:"chain"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewServer constructs the HTTP handler serving the wallet API.
func NewServer(analyzer WalletAnalyzer, logger Logger) http.Handler {
	if logger == nil {
		logger = NewLogger("server")
	}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/wallet", func(w http.ResponseWriter, r *http.Request) {
		var body walletRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "request body must be JSON {address, chain}"})
			return
		}
		address, chain, err := ValidateRequest(body.Address, body.Chain)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		report, err := analyzer.Analyze(r.Context(), address, chain)
		if err != nil {
			status := statusForError(err)
			logger.Printf("wallet request failed address=%s chain=%s status=%d: %v", address, chain, status, err)
			writeJSON(w, status, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, report)
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	return withResponseMetrics(mux)
}

// statusForError maps the analysis error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	var upstream *UpstreamError
	var transport *TransportError
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusInternalServerError
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	case errors.As(err, &transport):
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(transport.Err) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func isTimeout(err error) bool {
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
