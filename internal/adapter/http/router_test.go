package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/splitledger/internal/adapter/http/handler"
	apimiddleware "github.com/iho/splitledger/internal/adapter/http/middleware"
	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

func TestNewRouter_HealthEndpointAvailable(t *testing.T) {
	router := NewRouter(newRouterConfig())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected /health to return 200, got %d", rec.Code)
	}
}

func TestNewRouter_MetricsEndpoint(t *testing.T) {
	router := NewRouter(newRouterConfig())

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected /metrics to return 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Fatalf("expected http metrics to be exported")
	}
}

func TestNewRouter_SettleLimiterOnlyGuardsSubmission(t *testing.T) {
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.SettleLimiter = apimiddleware.NewRateLimiter(1, 1)
	}))

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/groups/g1/settlements/",
			strings.NewReader(`{"from_member_id":"bob","to_member_id":"alice"}`))
		req.RemoteAddr = "1.2.3.4:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := post(); code != http.StatusCreated {
		t.Fatalf("expected first settlement to succeed, got %d", code)
	}
	if code := post(); code != http.StatusTooManyRequests {
		t.Fatalf("expected second settlement to be throttled, got %d", code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/groups/g1/debts", nil)
	req.RemoteAddr = "1.2.3.4:1234"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("reads must not be throttled, got %d", rec.Code)
	}
}

func TestNewRouter_IdempotencyMiddlewareInvokesStore(t *testing.T) {
	store := &stubIdempotencyStore{}
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.IdempotencyStore = store
	}))

	body := `{"description":"Dinner","paid_by":"alice","amount":"30"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/groups/g1/expenses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apimiddleware.IdempotencyKeyHeader, "key-123")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if store.checkedKey != "/api/v1/groups/g1/expenses:key-123" {
		t.Fatalf("expected idempotency store to be used, got key %q", store.checkedKey)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	router := NewRouter(newRouterConfig())

	chiRoutes, ok := router.(chi.Router)
	if !ok {
		t.Fatal("router does not implement chi.Routes")
	}

	seen := map[string]bool{}
	if err := chi.Walk(chiRoutes, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+route] = true
		return nil
	}); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	expected := []string{
		"GET /health",
		"GET /ready",
		"GET /metrics",
		"GET /api/v1/groups/{groupID}/ledger",
		"GET /api/v1/groups/{groupID}/balances",
		"GET /api/v1/groups/{groupID}/debts",
		"POST /api/v1/groups/{groupID}/expenses",
		"GET /api/v1/groups/{groupID}/settlements/",
		"POST /api/v1/groups/{groupID}/settlements/",
		"GET /api/v1/groups/{groupID}/settlements/attempts",
		"DELETE /api/v1/groups/{groupID}/settlements/attempts",
		"GET /api/v1/chains/{chainRef}/tx/{txHash}",
	}

	for _, route := range expected {
		if !seen[route] {
			t.Fatalf("expected route %s to be registered", route)
		}
	}
}

func newRouterConfig(opts ...func(*RouterConfig)) RouterConfig {
	ledger := &stubLedgerService{}

	cfg := RouterConfig{
		Logger:            zerolog.Nop(),
		HealthHandler:     &handler.HealthHandler{},
		LedgerHandler:     handler.NewLedgerHandler(ledger),
		SettlementHandler: handler.NewSettlementHandler(ledger, stubSettlementService{}, nil),
		ExpenseHandler:    handler.NewExpenseHandler(stubExpenseService{}),
		ChainHandler:      handler.NewChainHandler(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

type stubLedgerService struct{}

func (stubLedgerService) GetGroupLedger(ctx context.Context, groupID string) (*usecase.GroupLedger, error) {
	return &usecase.GroupLedger{GroupID: groupID}, nil
}

func (stubLedgerService) ListSettlements(ctx context.Context, groupID string) ([]domain.Settlement, error) {
	return nil, nil
}

func (stubLedgerService) FindDebt(ctx context.Context, groupID, from, to string) (*domain.NetDebt, error) {
	return &domain.NetDebt{FromMemberID: from, ToMemberID: to, Amount: decimal.NewFromInt(10)}, nil
}

type stubSettlementService struct{}

func (stubSettlementService) SettleDebt(ctx context.Context, input usecase.SettleDebtInput) (*domain.SettlementOutcome, error) {
	return &domain.SettlementOutcome{Status: domain.OutcomeCompleted, Debt: input.Debt, Step: domain.StepRecorded}, nil
}

type stubExpenseService struct{}

func (stubExpenseService) CreateExpense(ctx context.Context, input usecase.CreateExpenseInput) (*domain.ExpenseWithSplits, error) {
	return &domain.ExpenseWithSplits{Expense: domain.Expense{ID: "e1", GroupID: input.GroupID}}, nil
}

type stubIdempotencyStore struct {
	checkedKey string
}

func (s *stubIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	s.checkedKey = key
	return false, nil, nil
}

func (s *stubIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	return nil
}

func (s *stubIdempotencyStore) Release(ctx context.Context, key string) error {
	return nil
}
