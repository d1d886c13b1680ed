package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// SettlementStep is the last state a settlement attempt reached.
type SettlementStep int

const (
	StepInit SettlementStep = iota
	StepBalanceChecked
	StepChainsSelected
	StepTransferInFlight
	StepRecorded
	StepFailed
)

func (s SettlementStep) String() string {
	switch s {
	case StepInit:
		return "init"
	case StepBalanceChecked:
		return "balance_checked"
	case StepChainsSelected:
		return "chains_selected"
	case StepTransferInFlight:
		return "transfer_in_flight"
	case StepRecorded:
		return "recorded"
	case StepFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ParseSettlementStep is the inverse of SettlementStep.String.
func ParseSettlementStep(s string) (SettlementStep, bool) {
	for step := StepInit; step <= StepFailed; step++ {
		if step.String() == s {
			return step, true
		}
	}
	return StepInit, false
}

// IsTerminal reports whether the attempt is finished.
func (s SettlementStep) IsTerminal() bool {
	return s == StepRecorded || s == StepFailed
}

// OutcomeStatus is the result of a settlement attempt.
type OutcomeStatus string

const (
	OutcomeCompleted         OutcomeStatus = "completed"
	OutcomeInsufficientFunds OutcomeStatus = "insufficient_funds"
	OutcomeTransferFailed    OutcomeStatus = "transfer_failed"
	// OutcomeTransferUnknown means the transfer request was sent but no
	// definite answer came back. Funds may have moved.
	OutcomeTransferUnknown OutcomeStatus = "transfer_unknown"
	OutcomeRecordingFailed OutcomeStatus = "recording_failed"
)

// SettlementOutcome describes how a settlement attempt ended.
type SettlementOutcome struct {
	Settlement       *Settlement
	Status           OutcomeStatus
	GroupID          string
	AttemptID        string
	TxHash           string
	Reason           string
	Debt             NetDebt
	SourceChains     []ChainID
	Available        decimal.Decimal
	Step             SettlementStep
	DestinationChain ChainID
	ApprovalRequired bool
}

// Outcome steps record the last state reached successfully: Recorded for a
// completed settlement, BalanceChecked for insufficient funds, ChainsSelected
// for a failed transfer and TransferInFlight when the transfer outcome is
// unknown or recording failed.

// Err maps a non-completed outcome to its sentinel error, nil otherwise.
func (o *SettlementOutcome) Err() error {
	switch o.Status {
	case OutcomeInsufficientFunds:
		return ErrInsufficientFunds
	case OutcomeTransferFailed:
		if o.ApprovalRequired {
			return ErrApprovalRequired
		}
		return ErrTransferFailed
	case OutcomeTransferUnknown:
		return ErrTransferOutcomeUnknown
	case OutcomeRecordingFailed:
		return ErrRecordingFailed
	default:
		return nil
	}
}

// SettlementAttempt is the last journaled state of an attempt for a pair.
// TxHash is kept from earlier steps so a transfer that was never recorded
// can still be found.
type SettlementAttempt struct {
	UpdatedAt        time.Time
	GroupID          string
	AttemptID        string
	TxHash           string
	Error            string
	Debt             NetDebt
	SourceChains     []ChainID
	Step             SettlementStep
	DestinationChain ChainID
	// Unresolved marks an attempt that failed after its transfer was sent:
	// the funds may have moved without a settlement row.
	Unresolved bool
}

// IsUnresolvedFailure reports whether err ended an attempt after its transfer
// was submitted.
func IsUnresolvedFailure(err error) bool {
	return errors.Is(err, ErrTransferOutcomeUnknown) || errors.Is(err, ErrRecordingFailed)
}
