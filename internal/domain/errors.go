package domain

import (
	"errors"
	"fmt"
)

var (
	// Ledger errors
	ErrDataIntegrity     = errors.New("ledger data integrity violation")
	ErrLedgerUnavailable = errors.New("ledger store unavailable")
	ErrMemberNotFound    = errors.New("member not found")
	ErrGroupNotFound     = errors.New("group not found")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrSameMember        = errors.New("debtor and creditor must differ")

	// Settlement errors
	ErrInsufficientFunds       = errors.New("insufficient funds across chains")
	ErrTransferFailed          = errors.New("cross-chain transfer failed")
	ErrApprovalRequired        = errors.New("token spending approval failed")
	ErrRecordingFailed         = errors.New("funds moved but settlement was not recorded")
	ErrTransferOutcomeUnknown  = errors.New("transfer submitted but its outcome is unknown")
	ErrSettlementInProgress    = errors.New("settlement already in progress for this pair")
	ErrDebtChanged             = errors.New("net debt changed since it was read")
	ErrUnreconciledAttempt     = errors.New("previous settlement attempt needs reconciliation")
	ErrChainBalanceUnavailable = errors.New("chain balances unavailable")
	ErrRecipientWalletNotFound = errors.New("wallet address not found")
	ErrDuplicateSettlement     = errors.New("settlement already recorded")
	ErrInvalidSettlementStatus = errors.New("invalid settlement status")
	ErrAttemptNotFound         = errors.New("no settlement attempt recorded for pair")
)

// DataIntegrityError reports a malformed expense, split or settlement record.
// The offending record is left out of the computation; everything else still counts.
type DataIntegrityError struct {
	ExpenseID    string
	SettlementID string
	MemberID     string
	Reason       string
}

func (e *DataIntegrityError) Error() string {
	switch {
	case e.ExpenseID != "":
		return fmt.Sprintf("expense %s: %s", e.ExpenseID, e.Reason)
	case e.SettlementID != "":
		return fmt.Sprintf("settlement %s: %s", e.SettlementID, e.Reason)
	default:
		return e.Reason
	}
}

func (e *DataIntegrityError) Unwrap() error {
	return ErrDataIntegrity
}

// SettlementError carries enough context for the caller to resume or reconcile
// a failed settlement attempt.
type SettlementError struct {
	GroupID string
	Debt    NetDebt
	// Step is the last state the attempt reached successfully.
	Step SettlementStep
	// AttemptID is set once a transfer was submitted. It is the settlement id
	// and the idempotency key sent with the transfer.
	AttemptID string
	TxHash    string
	Reason    string
	Err       error
}

func (e *SettlementError) Error() string {
	msg := fmt.Sprintf("settle %s->%s %s in group %s after %s: %v",
		e.Debt.FromMemberID, e.Debt.ToMemberID, e.Debt.Amount.StringFixed(2), e.GroupID, e.Step, e.Err)
	if e.TxHash != "" {
		msg += " (tx " + e.TxHash + ")"
	} else if e.AttemptID != "" {
		msg += " (attempt " + e.AttemptID + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}
