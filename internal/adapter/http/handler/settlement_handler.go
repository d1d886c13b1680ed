package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/iho/splitledger/internal/adapter/http/dto"
	"github.com/iho/splitledger/internal/adapter/http/middleware"
	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

// SettlementService settles one net debt.
type SettlementService interface {
	SettleDebt(ctx context.Context, input usecase.SettleDebtInput) (*domain.SettlementOutcome, error)
}

// AttemptJournal keeps the latest step of settlement attempts.
type AttemptJournal interface {
	Latest(ctx context.Context, groupID, a, b string) (*domain.SettlementAttempt, error)
	Clear(ctx context.Context, groupID, a, b string) error
	Observer() usecase.StepObserver
}

// SettlementHandler handles settlement requests.
type SettlementHandler struct {
	ledger      LedgerService
	settlements SettlementService
	journal     AttemptJournal
}

// NewSettlementHandler creates a new SettlementHandler. journal may be nil.
func NewSettlementHandler(ledger LedgerService, settlements SettlementService, journal AttemptJournal) *SettlementHandler {
	return &SettlementHandler{ledger: ledger, settlements: settlements, journal: journal}
}

// Settle pays the current net debt between two members across chains.
func (h *SettlementHandler) Settle(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")

	var req dto.SettleDebtRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settlement request", err.Error())
		return
	}

	debt, err := h.ledger.FindDebt(r.Context(), groupID, req.FromMemberID, req.ToMemberID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to resolve debt", err.Error())
		return
	}
	if !req.MatchesDebt(*debt) {
		writeError(w, http.StatusConflict, "debt has changed",
			"current amount is "+debt.Amount.StringFixed(2))
		return
	}

	input := req.ToUseCaseInput(groupID, *debt)
	if h.journal != nil {
		if err := h.checkNoUnresolvedAttempt(r.Context(), groupID, *debt); err != nil {
			status := http.StatusServiceUnavailable
			if errors.Is(err, domain.ErrUnreconciledAttempt) {
				status = http.StatusConflict
			}
			writeError(w, status, "settlement blocked", err.Error())
			return
		}
		input.Observer = h.journal.Observer()
	}

	outcome, err := h.settlements.SettleDebt(r.Context(), input)
	if outcome == nil {
		if err == nil {
			err = errors.New("settlement returned no outcome")
		}
		writeError(w, mapDomainError(err), "failed to settle debt", err.Error())
		return
	}

	if outcome.TxHash != "" {
		w.Header().Set(middleware.TransactionHashHeader, outcome.TxHash)
	}
	// Only a transfer that was never sent may be retried with the same key.
	if outcome.AttemptID != "" && outcome.Status != domain.OutcomeTransferFailed {
		w.Header().Set(middleware.SettlementAttemptHeader, outcome.AttemptID)
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("status", string(outcome.Status)).Msg("settlement did not complete")
	}

	writeJSON(w, outcomeHTTPStatus(outcome), dto.OutcomeFromDomain(outcome))
}

// LatestAttempt returns the journaled state of the last attempt for a pair.
func (h *SettlementHandler) LatestAttempt(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusNotFound, "attempt journal disabled", "")
		return
	}

	groupID := chi.URLParam(r, "groupID")
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to are required", "")
		return
	}

	attempt, err := h.journal.Latest(r.Context(), groupID, from, to)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to load attempt", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.AttemptFromDomain(attempt))
}

// ResolveAttempt forgets the journaled attempt of a pair after an operator
// reconciled its transfer, unblocking new settlements for the pair.
func (h *SettlementHandler) ResolveAttempt(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusNotFound, "attempt journal disabled", "")
		return
	}

	groupID := chi.URLParam(r, "groupID")
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to are required", "")
		return
	}

	if err := h.journal.Clear(r.Context(), groupID, from, to); err != nil {
		writeError(w, mapDomainError(err), "failed to resolve attempt", err.Error())
		return
	}

	zerolog.Ctx(r.Context()).Info().
		Str("group_id", groupID).
		Str("pair", domain.PairKey(from, to)).
		Msg("settlement attempt resolved")

	w.WriteHeader(http.StatusNoContent)
}

// checkNoUnresolvedAttempt refuses a pair whose last transfer may have moved
// funds without a settlement on the ledger. A journal that cannot be read
// blocks the pair as well.
func (h *SettlementHandler) checkNoUnresolvedAttempt(ctx context.Context, groupID string, debt domain.NetDebt) error {
	attempt, err := h.journal.Latest(ctx, groupID, debt.FromMemberID, debt.ToMemberID)
	if errors.Is(err, domain.ErrAttemptNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read attempt journal: %w", err)
	}
	if attempt != nil && attempt.Unresolved {
		return fmt.Errorf("%w: attempt %s", domain.ErrUnreconciledAttempt, attempt.AttemptID)
	}
	return nil
}

func outcomeHTTPStatus(o *domain.SettlementOutcome) int {
	if o.Status == domain.OutcomeCompleted {
		return http.StatusCreated
	}
	return mapDomainError(o.Err())
}
