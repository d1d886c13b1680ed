package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

type ledgerServiceStub struct {
	ledgerFn      func(ctx context.Context, groupID string) (*usecase.GroupLedger, error)
	settlementsFn func(ctx context.Context, groupID string) ([]domain.Settlement, error)
	findDebtFn    func(ctx context.Context, groupID, from, to string) (*domain.NetDebt, error)
}

func (s *ledgerServiceStub) GetGroupLedger(ctx context.Context, groupID string) (*usecase.GroupLedger, error) {
	return s.ledgerFn(ctx, groupID)
}

func (s *ledgerServiceStub) ListSettlements(ctx context.Context, groupID string) ([]domain.Settlement, error) {
	return s.settlementsFn(ctx, groupID)
}

func (s *ledgerServiceStub) FindDebt(ctx context.Context, groupID, from, to string) (*domain.NetDebt, error) {
	return s.findDebtFn(ctx, groupID, from, to)
}

type settlementServiceStub struct {
	settleFn func(ctx context.Context, input usecase.SettleDebtInput) (*domain.SettlementOutcome, error)
}

func (s *settlementServiceStub) SettleDebt(ctx context.Context, input usecase.SettleDebtInput) (*domain.SettlementOutcome, error) {
	return s.settleFn(ctx, input)
}

type journalStub struct {
	latest   *domain.SettlementAttempt
	err      error
	clearErr error
	cleared  []string
	observed []usecase.StepEvent
}

func (j *journalStub) Latest(ctx context.Context, groupID, a, b string) (*domain.SettlementAttempt, error) {
	return j.latest, j.err
}

func (j *journalStub) Clear(ctx context.Context, groupID, a, b string) error {
	if j.clearErr != nil {
		return j.clearErr
	}
	j.cleared = append(j.cleared, groupID+":"+domain.PairKey(a, b))
	return nil
}

func (j *journalStub) Observer() usecase.StepObserver {
	return func(ctx context.Context, event usecase.StepEvent) {
		j.observed = append(j.observed, event)
	}
}

type expenseServiceStub struct {
	createFn func(ctx context.Context, input usecase.CreateExpenseInput) (*domain.ExpenseWithSplits, error)
}

func (s *expenseServiceStub) CreateExpense(ctx context.Context, input usecase.CreateExpenseInput) (*domain.ExpenseWithSplits, error) {
	return s.createFn(ctx, input)
}

// withURLParams attaches chi route parameters to r.
func withURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
