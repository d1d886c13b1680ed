package dto

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

// ErrMissingMember is returned when a request omits a member id.
var ErrMissingMember = errors.New("member id is required")

// CreateExpenseRequest represents a request to add an equally split expense.
type CreateExpenseRequest struct {
	Description  string          `json:"description"`
	Currency     string          `json:"currency,omitempty"`
	PaidBy       string          `json:"paid_by"`
	Participants []string        `json:"participants,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateExpenseRequest) ToUseCaseInput(groupID string) usecase.CreateExpenseInput {
	return usecase.CreateExpenseInput{
		GroupID:      groupID,
		Description:  strings.TrimSpace(r.Description),
		Currency:     strings.ToUpper(strings.TrimSpace(r.Currency)),
		PaidBy:       r.PaidBy,
		Participants: r.Participants,
		Amount:       r.Amount,
	}
}

// SettleDebtRequest asks to pay the current net debt between two members.
// Amount is optional; when given it must match the current debt, which
// protects against settling a stale figure.
type SettleDebtRequest struct {
	FromMemberID string           `json:"from_member_id"`
	ToMemberID   string           `json:"to_member_id"`
	Asset        string           `json:"asset,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
}

// Validate checks the member ids.
func (r *SettleDebtRequest) Validate() error {
	if r.FromMemberID == "" || r.ToMemberID == "" {
		return ErrMissingMember
	}
	if r.FromMemberID == r.ToMemberID {
		return domain.ErrSameMember
	}
	return nil
}

// MatchesDebt reports whether the requested amount, if any, is within
// tolerance of the current debt.
func (r *SettleDebtRequest) MatchesDebt(debt domain.NetDebt) bool {
	if r.Amount == nil {
		return true
	}
	return r.Amount.Sub(debt.Amount).Abs().LessThanOrEqual(domain.Epsilon)
}

// ToUseCaseInput converts to use case input for the resolved debt.
func (r *SettleDebtRequest) ToUseCaseInput(groupID string, debt domain.NetDebt) usecase.SettleDebtInput {
	return usecase.SettleDebtInput{
		GroupID: groupID,
		Asset:   strings.ToUpper(strings.TrimSpace(r.Asset)),
		Debt:    debt,
	}
}
