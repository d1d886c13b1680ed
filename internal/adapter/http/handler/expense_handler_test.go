package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/splitledger/internal/adapter/http/dto"
	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

func TestExpenseHandler_Create(t *testing.T) {
	var captured usecase.CreateExpenseInput
	h := NewExpenseHandler(&expenseServiceStub{
		createFn: func(ctx context.Context, input usecase.CreateExpenseInput) (*domain.ExpenseWithSplits, error) {
			captured = input
			return &domain.ExpenseWithSplits{
				Expense: domain.Expense{ID: "e1", GroupID: input.GroupID, PaidBy: input.PaidBy, Amount: input.Amount, Currency: "USDC"},
				Splits: []domain.ExpenseSplit{
					{ExpenseID: "e1", MemberID: "alice", ShareAmount: decimal.NewFromInt(15)},
					{ExpenseID: "e1", MemberID: "bob", ShareAmount: decimal.NewFromInt(15)},
				},
			}, nil
		},
	})

	body := `{"description":"Dinner","paid_by":"alice","amount":"30"}`
	req := withURLParams(httptest.NewRequest(http.MethodPost, "/api/v1/groups/g1/expenses", strings.NewReader(body)), "groupID", "g1")
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.GroupID != "g1" || captured.PaidBy != "alice" || !captured.Amount.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("unexpected input: %+v", captured)
	}

	var resp dto.ExpenseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode expense: %v", err)
	}
	if resp.ID != "e1" || len(resp.Splits) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestExpenseHandler_CreateErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{name: "malformed", body: `{"amount":`, wantStatus: http.StatusBadRequest},
		{name: "invalid amount", body: `{"paid_by":"alice","amount":"0"}`, err: domain.ErrInvalidAmount, wantStatus: http.StatusBadRequest},
		{name: "unknown payer", body: `{"paid_by":"zed","amount":"10"}`, err: domain.ErrMemberNotFound, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewExpenseHandler(&expenseServiceStub{
				createFn: func(ctx context.Context, input usecase.CreateExpenseInput) (*domain.ExpenseWithSplits, error) {
					return nil, tt.err
				},
			})

			req := withURLParams(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body)), "groupID", "g1")
			rec := httptest.NewRecorder()
			h.Create(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}
