package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/splitledger/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config) *GatewayClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg.BaseURL = srv.URL + "/"
	return NewGatewayClient(cfg, zerolog.Nop())
}

func TestGatewayClient_GetBalances(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/wallets/0xabc/balances", r.URL.Path)
		assert.Equal(t, "USDC", r.URL.Query().Get("asset"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"balances":[{"chain_id":8453,"amount":"10.5"},{"chain_id":42161,"amount":"3"}]}`))
	}, Config{APIKey: "secret"})

	balances, err := client.GetBalances(context.Background(), "0xabc", "USDC")
	require.NoError(t, err)
	require.Len(t, balances, 2)
	assert.Equal(t, domain.ChainBase, balances[0].ChainID)
	assert.True(t, balances[0].Amount.Equal(decimal.RequireFromString("10.5")))
	assert.Equal(t, domain.ChainArbitrum, balances[1].ChainID)
}

func TestGatewayClient_GetBalancesRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"balances":[{"chain_id":10,"amount":"1"}]}`))
	}, Config{MaxRetries: 3})

	balances, err := client.GetBalances(context.Background(), "0xabc", "USDC")
	require.NoError(t, err)
	assert.Len(t, balances, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGatewayClient_GetBalancesClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"unknown wallet"}`))
	}, Config{MaxRetries: 3})

	_, err := client.GetBalances(context.Background(), "0xabc", "USDC")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.Contains(t, err.Error(), "unknown wallet")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGatewayClient_BreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	var transitions []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, Config{
		BreakerThreshold: 1,
		BreakerTimeout:   time.Minute,
		OnStateChange: func(name string, state gobreaker.State) {
			transitions = append(transitions, name+":"+state.String())
		},
	})

	_, err := client.GetBalances(context.Background(), "0xabc", "USDC")
	require.Error(t, err)

	_, err = client.GetBalances(context.Background(), "0xabc", "USDC")
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []string{"chain-balances:open"}, transitions)
	assert.Equal(t, map[string]string{"chain-balances": "open", "chain-transfers": "closed"}, client.BreakerStates())
}

func TestGatewayClient_GetBalancesCanceled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"balances":[]}`))
	}, Config{MaxRetries: 3})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetBalances(ctx, "0xabc", "USDC")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGatewayClient_Transfer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/transfers", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "01ATTEMPT", r.Header.Get("Idempotency-Key"))

		var req transferRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "USDC", req.Asset)
		assert.Equal(t, "0x0000000000000000000000000000000000000001", req.RecipientAddress)
		assert.True(t, req.Amount.Equal(decimal.RequireFromString("12.50")))
		assert.Equal(t, []domain.ChainID{domain.ChainOptimism, domain.ChainBase}, req.SourceChains)
		assert.Equal(t, domain.ChainBase, req.DestinationChain)

		_, _ = w.Write([]byte(`{"success":true,"transaction_hash":"0xfeed"}`))
	}, Config{})

	res, err := client.Transfer(context.Background(), domain.TransferInstruction{
		IdempotencyKey:   "01ATTEMPT",
		Asset:            "USDC",
		RecipientAddress: "0x0000000000000000000000000000000000000001",
		Amount:           decimal.RequireFromString("12.50"),
		SourceChains:     []domain.ChainID{domain.ChainOptimism, domain.ChainBase},
		DestinationChain: domain.ChainBase,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "0xfeed", res.TransactionHash)
}

func TestGatewayClient_TransferFailures(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantErr     error
		wantMessage string
	}{
		{
			name:        "unsuccessful result",
			status:      http.StatusOK,
			body:        `{"success":false,"error":"user rejected"}`,
			wantMessage: "user rejected",
		},
		{
			name:        "rejected instruction",
			status:      http.StatusUnprocessableEntity,
			body:        `{"error":"insufficient allowance"}`,
			wantMessage: "insufficient allowance",
		},
		{
			name:        "rate limited before submission",
			status:      http.StatusTooManyRequests,
			body:        `{"error":"slow down"}`,
			wantMessage: "slow down",
		},
		{
			name:    "server error after submission",
			status:  http.StatusBadGateway,
			body:    `upstream down`,
			wantErr: domain.ErrTransferOutcomeUnknown,
		},
		{
			name:    "unreadable success body",
			status:  http.StatusOK,
			body:    `{"success":tru`,
			wantErr: domain.ErrTransferOutcomeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, Config{MaxRetries: 3})

			res, err := client.Transfer(context.Background(), domain.TransferInstruction{
				Asset:            "USDC",
				Amount:           decimal.NewFromInt(1),
				DestinationChain: domain.ChainBase,
			})

			assert.Equal(t, int32(1), calls.Load(), "transfers are never retried")
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, res)
				return
			}
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tt.wantMessage, res.Error)
		})
	}
}

func TestGatewayClient_TransferTimeoutIsOutcomeUnknown(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"success":true,"transaction_hash":"0xlate"}`))
	}, Config{Timeout: 50 * time.Millisecond})

	res, err := client.Transfer(context.Background(), domain.TransferInstruction{IdempotencyKey: "01LATE", Asset: "USDC"})

	require.ErrorIs(t, err, domain.ErrTransferOutcomeUnknown)
	assert.Nil(t, res)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGatewayClient_OpenBreakerIsNotOutcomeUnknown(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, Config{BreakerThreshold: 1, BreakerTimeout: time.Minute})

	_, err := client.Transfer(context.Background(), domain.TransferInstruction{Asset: "USDC"})
	require.ErrorIs(t, err, domain.ErrTransferOutcomeUnknown)

	// The breaker is open now, so the second request never leaves the client.
	_, err = client.Transfer(context.Background(), domain.TransferInstruction{Asset: "USDC"})
	require.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.NotErrorIs(t, err, domain.ErrTransferOutcomeUnknown)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGatewayClient_RejectedTransfersDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad instruction"}`))
	}, Config{BreakerThreshold: 1})

	for i := 0; i < 3; i++ {
		res, err := client.Transfer(context.Background(), domain.TransferInstruction{Asset: "USDC"})
		require.NoError(t, err)
		assert.False(t, res.Success)
	}
	assert.Equal(t, int32(3), calls.Load())
}
