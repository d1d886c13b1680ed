package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// TransferInstruction is what the transfer executor needs to move funds from
// the payer's source chains to the recipient on the destination chain.
type TransferInstruction struct {
	// IdempotencyKey identifies the attempt so the executor can refuse to move
	// funds twice for it.
	IdempotencyKey   string
	Asset            string
	RecipientAddress string
	SourceChains     []ChainID
	DestinationChain ChainID
	Amount           decimal.Decimal
}

// TransferResult is the executor's definite answer for one transfer.
type TransferResult struct {
	TransactionHash string
	Error           string
	Success         bool
}

// TransferFailureKind classifies a failed transfer.
type TransferFailureKind string

const (
	// TransferFailureApproval can be retried once the user re-approves spending.
	TransferFailureApproval TransferFailureKind = "approval"
	TransferFailureOther    TransferFailureKind = "other"
)

var approvalMarkers = []string{
	"allowance",
	"erc20",
	"approval",
	"approve",
	"wallet_switchethereumchain",
	"already pending",
}

// ClassifyTransferFailure decides whether a transfer error needs user action on
// the wallet (approval or a pending prompt) or is some other failure.
func ClassifyTransferFailure(msg string) TransferFailureKind {
	lower := strings.ToLower(msg)
	for _, marker := range approvalMarkers {
		if strings.Contains(lower, marker) {
			return TransferFailureApproval
		}
	}
	return TransferFailureOther
}
