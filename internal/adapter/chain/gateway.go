// Package chain talks to the wallet gateway that reads multi-chain balances
// and submits chain-abstracted transfers on behalf of a member's wallet.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/iho/splitledger/internal/domain"
)

// ErrGatewayUnavailable is returned when the gateway cannot be reached or the
// circuit breaker is open.
var ErrGatewayUnavailable = errors.New("wallet gateway unavailable")

const idempotencyKeyHeader = "Idempotency-Key"

// Config holds gateway client settings.
type Config struct {
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	MaxRetries       uint64
	BreakerTimeout   time.Duration
	BreakerThreshold uint32
	// OnStateChange, when set, is called with the breaker name and its new
	// state after every transition.
	OnStateChange func(name string, state gobreaker.State)
}

// GatewayClient implements usecase.ChainBalanceProvider and
// usecase.TransferExecutor over the gateway's JSON API.
type GatewayClient struct {
	baseURL    string
	apiKey     string
	maxRetries uint64
	httpClient *http.Client
	balanceCB  *gobreaker.CircuitBreaker
	transferCB *gobreaker.CircuitBreaker
	logger     zerolog.Logger
}

// NewGatewayClient creates a new GatewayClient.
func NewGatewayClient(cfg Config, logger zerolog.Logger) *GatewayClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 5
	}

	return &GatewayClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		balanceCB:  newBreaker("chain-balances", cfg, logger),
		transferCB: newBreaker("chain-transfers", cfg, logger),
		logger:     logger,
	}
}

func newBreaker(name string, cfg Config, logger zerolog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		// A rejected request means the gateway is up.
		IsSuccessful: func(err error) bool {
			var se *statusError
			if errors.As(err, &se) {
				return !se.retryable()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, to)
			}
		},
	})
}

// BreakerStates reports the state of each circuit breaker by name.
func (c *GatewayClient) BreakerStates() map[string]string {
	return map[string]string{
		c.balanceCB.Name():  c.balanceCB.State().String(),
		c.transferCB.Name(): c.transferCB.State().String(),
	}
}

type balanceItem struct {
	ChainID domain.ChainID  `json:"chain_id"`
	Amount  decimal.Decimal `json:"amount"`
}

type balancesResponse struct {
	Balances []balanceItem `json:"balances"`
}

type transferRequest struct {
	Asset            string           `json:"asset"`
	RecipientAddress string           `json:"recipient_address"`
	Amount           decimal.Decimal  `json:"amount"`
	SourceChains     []domain.ChainID `json:"source_chains"`
	DestinationChain domain.ChainID   `json:"destination_chain"`
}

type transferResponse struct {
	TransactionHash string `json:"transaction_hash"`
	Error           string `json:"error"`
	Success         bool   `json:"success"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusError is a non-2xx gateway reply.
type statusError struct {
	Message string
	Status  int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gateway status %d: %s", e.Status, e.Message)
}

func (e *statusError) retryable() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

// GetBalances reads per-chain balances of asset for wallet. Reads are
// retried with exponential backoff and guarded by a circuit breaker.
func (c *GatewayClient) GetBalances(ctx context.Context, wallet, asset string) ([]domain.ChainBalance, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second

	var out []domain.ChainBalance
	attempt := 0

	err := backoff.Retry(func() error {
		attempt++
		res, err := c.balanceCB.Execute(func() (interface{}, error) {
			return c.fetchBalances(ctx, wallet, asset)
		})
		if err != nil {
			if !isRetryable(err) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			c.logger.Warn().Err(err).Int("attempt", attempt).Msg("balance read failed, retrying")
			return err
		}
		out = res.([]domain.ChainBalance)
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx))
	if err != nil {
		return nil, wrapUnavailable(err)
	}

	return out, nil
}

func (c *GatewayClient) fetchBalances(ctx context.Context, wallet, asset string) ([]domain.ChainBalance, error) {
	endpoint := fmt.Sprintf("%s/v1/wallets/%s/balances?asset=%s",
		c.baseURL, url.PathEscape(wallet), url.QueryEscape(asset))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build balance request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send balance request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readStatusError(resp)
	}

	var body balancesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode balances: %w", err)
	}

	balances := make([]domain.ChainBalance, 0, len(body.Balances))
	for _, item := range body.Balances {
		balances = append(balances, domain.ChainBalance{ChainID: item.ChainID, Amount: item.Amount})
	}

	return balances, nil
}

// Transfer submits one transfer. It is never retried here: a repeated
// submission could move funds twice. The instruction's idempotency key is sent
// so the gateway can deduplicate a resubmitted attempt.
//
// Once the request may have reached the gateway, a missing definite answer
// (transport error, timeout, 5xx, unreadable 2xx body) is reported as
// domain.ErrTransferOutcomeUnknown rather than as a failed transfer.
func (c *GatewayClient) Transfer(ctx context.Context, instruction domain.TransferInstruction) (*domain.TransferResult, error) {
	res, err := c.transferCB.Execute(func() (interface{}, error) {
		return c.submitTransfer(ctx, instruction)
	})
	if err != nil {
		if errors.Is(err, domain.ErrTransferOutcomeUnknown) {
			return nil, err
		}
		var se *statusError
		if errors.As(err, &se) && se.Status < http.StatusInternalServerError {
			// The gateway refused the instruction; nothing was moved.
			return &domain.TransferResult{Success: false, Error: se.Message}, nil
		}
		return nil, wrapUnavailable(err)
	}

	return res.(*domain.TransferResult), nil
}

func (c *GatewayClient) submitTransfer(ctx context.Context, instruction domain.TransferInstruction) (*domain.TransferResult, error) {
	payload, err := json.Marshal(transferRequest{
		Asset:            instruction.Asset,
		RecipientAddress: instruction.RecipientAddress,
		Amount:           instruction.Amount,
		SourceChains:     instruction.SourceChains,
		DestinationChain: instruction.DestinationChain,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal transfer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transfers", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build transfer request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	if instruction.IdempotencyKey != "" {
		req.Header.Set(idempotencyKeyHeader, instruction.IdempotencyKey)
	}

	log := c.logger.With().
		Str("attempt_id", instruction.IdempotencyKey).
		Uint64("destination_chain", uint64(instruction.DestinationChain)).
		Logger()

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, outcomeUnknown(fmt.Errorf("send transfer request: %w", err))
	}
	defer resp.Body.Close()

	log.Info().
		Int("status", resp.StatusCode).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("transfer response received")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := readStatusError(resp)
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, outcomeUnknown(serr)
		}
		return nil, serr
	}

	var body transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, outcomeUnknown(fmt.Errorf("decode transfer: %w", err))
	}

	return &domain.TransferResult{
		TransactionHash: body.TransactionHash,
		Error:           body.Error,
		Success:         body.Success,
	}, nil
}

// outcomeUnknown marks an error raised after the transfer request was handed
// to the transport.
func outcomeUnknown(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrTransferOutcomeUnknown, err)
}

func (c *GatewayClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func readStatusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	msg := strings.TrimSpace(string(raw))
	var body errorResponse
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return &statusError{Status: resp.StatusCode, Message: msg}
}

func isRetryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.retryable()
	}
	return true
}

func wrapUnavailable(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
}
