package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/splitledger/internal/adapter/http/dto"
	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

// LedgerService is the read side of a group ledger.
type LedgerService interface {
	GetGroupLedger(ctx context.Context, groupID string) (*usecase.GroupLedger, error)
	ListSettlements(ctx context.Context, groupID string) ([]domain.Settlement, error)
	FindDebt(ctx context.Context, groupID, from, to string) (*domain.NetDebt, error)
}

// LedgerHandler serves balances, net debts and settlement history.
type LedgerHandler struct {
	ledger LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// Get returns the full derived ledger of a group.
func (h *LedgerHandler) Get(w http.ResponseWriter, r *http.Request) {
	ledger, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dto.LedgerFromUseCase(ledger))
}

// Balances returns per-member balances.
func (h *LedgerHandler) Balances(w http.ResponseWriter, r *http.Request) {
	ledger, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dto.BalancesFromDomain(ledger.Balances))
}

// Debts returns simplified net debts.
func (h *LedgerHandler) Debts(w http.ResponseWriter, r *http.Request) {
	ledger, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dto.DebtsFromDomain(ledger.Debts))
}

// Settlements lists recorded settlements of a group.
func (h *LedgerHandler) Settlements(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	if groupID == "" {
		writeError(w, http.StatusBadRequest, "missing group ID", "")
		return
	}

	limit, offset, _ := domain.ValidatePagination(parseIntQuery(r, "limit", 50), parseIntQuery(r, "offset", 0))

	settlements, err := h.ledger.ListSettlements(r.Context(), groupID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list settlements", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.SettlementsFromDomain(paginate(settlements, limit, offset)))
}

func (h *LedgerHandler) load(w http.ResponseWriter, r *http.Request) (*usecase.GroupLedger, bool) {
	groupID := chi.URLParam(r, "groupID")
	if groupID == "" {
		writeError(w, http.StatusBadRequest, "missing group ID", "")
		return nil, false
	}

	ledger, err := h.ledger.GetGroupLedger(r.Context(), groupID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to load ledger", err.Error())
		return nil, false
	}

	return ledger, true
}
