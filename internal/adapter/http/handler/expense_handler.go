package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/splitledger/internal/adapter/http/dto"
	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

// ExpenseService records expenses.
type ExpenseService interface {
	CreateExpense(ctx context.Context, input usecase.CreateExpenseInput) (*domain.ExpenseWithSplits, error)
}

// ExpenseHandler handles expense requests.
type ExpenseHandler struct {
	expenses ExpenseService
}

// NewExpenseHandler creates a new ExpenseHandler.
func NewExpenseHandler(expenses ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{expenses: expenses}
}

// Create adds an equally split expense to a group.
func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	expense, err := h.expenses.CreateExpense(r.Context(), req.ToUseCaseInput(chi.URLParam(r, "groupID")))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to create expense", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.ExpenseFromDomain(expense))
}
