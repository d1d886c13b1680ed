package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementStatus is the lifecycle state of a settlement.
type SettlementStatus string

const (
	SettlementStatusPending   SettlementStatus = "pending"
	SettlementStatusCompleted SettlementStatus = "completed"
	SettlementStatusFailed    SettlementStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s SettlementStatus) IsTerminal() bool {
	return s == SettlementStatusCompleted || s == SettlementStatusFailed
}

// IsValid reports whether s is a known status.
func (s SettlementStatus) IsValid() bool {
	switch s {
	case SettlementStatusPending, SettlementStatusCompleted, SettlementStatusFailed:
		return true
	}
	return false
}

// Settlement is a recorded on-chain payment discharging some or all of a net debt.
// Only completed settlements reduce debts.
type Settlement struct {
	CreatedAt       time.Time
	ID              string
	GroupID         string
	FromMemberID    string
	ToMemberID      string
	Status          SettlementStatus
	ChainRef        string
	TransactionHash string
	Amount          decimal.Decimal
}

// Validate validates a settlement before it is written.
func (s *Settlement) Validate() error {
	if s.FromMemberID == s.ToMemberID {
		return ErrSameMember
	}
	if s.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if !s.Status.IsValid() {
		return ErrInvalidSettlementStatus
	}
	return nil
}

// CanTransition reports whether the settlement may move to next.
func (s *Settlement) CanTransition(next SettlementStatus) bool {
	return s.Status == SettlementStatusPending && next.IsTerminal()
}
