package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/iho/splitledger/internal/adapter/http/dto"
	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrGroupNotFound),
		errors.Is(err, domain.ErrMemberNotFound),
		errors.Is(err, domain.ErrAttemptNotFound),
		errors.Is(err, usecase.ErrDebtNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSameMember),
		errors.Is(err, domain.ErrInvalidAsset),
		errors.Is(err, domain.ErrInvalidWalletAddress),
		errors.Is(err, domain.ErrInvalidDescription),
		errors.Is(err, domain.ErrAmountTooLarge),
		errors.Is(err, domain.ErrAmountTooSmall),
		errors.Is(err, dto.ErrMissingMember):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSettlementInProgress),
		errors.Is(err, domain.ErrDuplicateSettlement),
		errors.Is(err, domain.ErrDebtChanged),
		errors.Is(err, domain.ErrUnreconciledAttempt):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRecipientWalletNotFound),
		errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrApprovalRequired):
		return http.StatusPreconditionRequired
	case errors.Is(err, domain.ErrTransferFailed):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrTransferOutcomeUnknown):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrLedgerUnavailable),
		errors.Is(err, domain.ErrChainBalanceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// paginate returns the window [offset, offset+limit) of items.
func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
