package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

// MemberResponse represents a group member in API responses.
type MemberResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// BalanceResponse represents a member balance in API responses.
type BalanceResponse struct {
	MemberID  string          `json:"member_id"`
	TotalPaid decimal.Decimal `json:"total_paid"`
	TotalOwed decimal.Decimal `json:"total_owed"`
	Net       decimal.Decimal `json:"net"`
}

// DebtResponse represents a net debt in API responses.
type DebtResponse struct {
	FromMemberID string          `json:"from_member_id"`
	ToMemberID   string          `json:"to_member_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// IssueResponse represents a data integrity problem found in the ledger.
type IssueResponse struct {
	ExpenseID    string `json:"expense_id,omitempty"`
	SettlementID string `json:"settlement_id,omitempty"`
	MemberID     string `json:"member_id,omitempty"`
	Reason       string `json:"reason"`
}

// LedgerResponse is the derived view of a group.
type LedgerResponse struct {
	GroupID  string             `json:"group_id"`
	Members  []*MemberResponse  `json:"members"`
	Balances []*BalanceResponse `json:"balances"`
	Debts    []*DebtResponse    `json:"debts"`
	Issues   []*IssueResponse   `json:"issues,omitempty"`
}

// LedgerFromUseCase converts a group ledger to response.
func LedgerFromUseCase(l *usecase.GroupLedger) *LedgerResponse {
	members := make([]*MemberResponse, len(l.Members))
	for i, m := range l.Members {
		members[i] = &MemberResponse{ID: m.ID, DisplayName: m.DisplayName}
	}

	issues := make([]*IssueResponse, len(l.Issues))
	for i, issue := range l.Issues {
		issues[i] = &IssueResponse{
			ExpenseID:    issue.ExpenseID,
			SettlementID: issue.SettlementID,
			MemberID:     issue.MemberID,
			Reason:       issue.Reason,
		}
	}

	return &LedgerResponse{
		GroupID:  l.GroupID,
		Members:  members,
		Balances: BalancesFromDomain(l.Balances),
		Debts:    DebtsFromDomain(l.Debts),
		Issues:   issues,
	}
}

// BalancesFromDomain converts domain balances to responses.
func BalancesFromDomain(balances []domain.Balance) []*BalanceResponse {
	result := make([]*BalanceResponse, len(balances))
	for i, b := range balances {
		result[i] = &BalanceResponse{
			MemberID:  b.MemberID,
			TotalPaid: b.TotalPaid,
			TotalOwed: b.TotalOwed,
			Net:       b.Net,
		}
	}
	return result
}

// DebtFromDomain converts a domain net debt to response.
func DebtFromDomain(d domain.NetDebt) *DebtResponse {
	return &DebtResponse{
		FromMemberID: d.FromMemberID,
		ToMemberID:   d.ToMemberID,
		Amount:       d.Amount,
	}
}

// DebtsFromDomain converts domain net debts to responses.
func DebtsFromDomain(debts []domain.NetDebt) []*DebtResponse {
	result := make([]*DebtResponse, len(debts))
	for i, d := range debts {
		result[i] = DebtFromDomain(d)
	}
	return result
}

// SettlementResponse represents a recorded settlement in API responses.
type SettlementResponse struct {
	ID              string          `json:"id"`
	GroupID         string          `json:"group_id"`
	FromMemberID    string          `json:"from_member_id"`
	ToMemberID      string          `json:"to_member_id"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status"`
	ChainRef        string          `json:"chain_ref,omitempty"`
	ChainName       string          `json:"chain_name,omitempty"`
	TransactionHash string          `json:"transaction_hash,omitempty"`
	ExplorerURL     string          `json:"explorer_url,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// SettlementFromDomain converts domain settlement to response.
func SettlementFromDomain(s *domain.Settlement) *SettlementResponse {
	resp := &SettlementResponse{
		ID:              s.ID,
		GroupID:         s.GroupID,
		FromMemberID:    s.FromMemberID,
		ToMemberID:      s.ToMemberID,
		Amount:          s.Amount,
		Status:          string(s.Status),
		ChainRef:        s.ChainRef,
		TransactionHash: s.TransactionHash,
		ExplorerURL:     domain.ExplorerTxURL(s.ChainRef, s.TransactionHash),
		CreatedAt:       s.CreatedAt,
	}
	if id, err := domain.ParseChainRef(s.ChainRef); err == nil {
		resp.ChainName = domain.ChainName(id)
	}
	return resp
}

// SettlementsFromDomain converts domain settlements to responses.
func SettlementsFromDomain(settlements []domain.Settlement) []*SettlementResponse {
	result := make([]*SettlementResponse, len(settlements))
	for i := range settlements {
		result[i] = SettlementFromDomain(&settlements[i])
	}
	return result
}

// OutcomeResponse describes how a settlement attempt ended.
type OutcomeResponse struct {
	Status           string              `json:"status"`
	Step             string              `json:"step"`
	GroupID          string              `json:"group_id"`
	AttemptID        string              `json:"attempt_id,omitempty"`
	Debt             *DebtResponse       `json:"debt"`
	SourceChains     []domain.ChainID    `json:"source_chains,omitempty"`
	DestinationChain domain.ChainID      `json:"destination_chain,omitempty"`
	Available        decimal.Decimal     `json:"available"`
	TxHash           string              `json:"tx_hash,omitempty"`
	ExplorerURL      string              `json:"explorer_url,omitempty"`
	Reason           string              `json:"reason,omitempty"`
	ApprovalRequired bool                `json:"approval_required,omitempty"`
	Settlement       *SettlementResponse `json:"settlement,omitempty"`
}

// OutcomeFromDomain converts a settlement outcome to response.
func OutcomeFromDomain(o *domain.SettlementOutcome) *OutcomeResponse {
	resp := &OutcomeResponse{
		Status:           string(o.Status),
		Step:             o.Step.String(),
		GroupID:          o.GroupID,
		AttemptID:        o.AttemptID,
		Debt:             DebtFromDomain(o.Debt),
		SourceChains:     o.SourceChains,
		DestinationChain: o.DestinationChain,
		Available:        o.Available,
		TxHash:           o.TxHash,
		Reason:           o.Reason,
		ApprovalRequired: o.ApprovalRequired,
	}
	if o.TxHash != "" && o.DestinationChain != 0 {
		resp.ExplorerURL = domain.ExplorerTxURL(o.DestinationChain.String(), o.TxHash)
	}
	if o.Settlement != nil {
		resp.Settlement = SettlementFromDomain(o.Settlement)
	}
	return resp
}

// AttemptResponse is the last journaled state of a settlement attempt.
type AttemptResponse struct {
	GroupID          string           `json:"group_id"`
	AttemptID        string           `json:"attempt_id,omitempty"`
	Debt             *DebtResponse    `json:"debt"`
	Step             string           `json:"step"`
	SourceChains     []domain.ChainID `json:"source_chains,omitempty"`
	DestinationChain domain.ChainID   `json:"destination_chain,omitempty"`
	TxHash           string           `json:"tx_hash,omitempty"`
	Error            string           `json:"error,omitempty"`
	Unresolved       bool             `json:"unresolved,omitempty"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// AttemptFromDomain converts a journaled attempt to response.
func AttemptFromDomain(a *domain.SettlementAttempt) *AttemptResponse {
	return &AttemptResponse{
		GroupID:          a.GroupID,
		AttemptID:        a.AttemptID,
		Debt:             DebtFromDomain(a.Debt),
		Step:             a.Step.String(),
		SourceChains:     a.SourceChains,
		DestinationChain: a.DestinationChain,
		TxHash:           a.TxHash,
		Error:            a.Error,
		Unresolved:       a.Unresolved,
		UpdatedAt:        a.UpdatedAt,
	}
}

// SplitResponse represents one member's share of an expense.
type SplitResponse struct {
	MemberID    string          `json:"member_id"`
	ShareAmount decimal.Decimal `json:"share_amount"`
}

// ExpenseResponse represents an expense in API responses.
type ExpenseResponse struct {
	ID          string           `json:"id"`
	GroupID     string           `json:"group_id"`
	Description string           `json:"description"`
	Currency    string           `json:"currency"`
	PaidBy      string           `json:"paid_by"`
	Amount      decimal.Decimal  `json:"amount"`
	Splits      []*SplitResponse `json:"splits"`
	CreatedAt   time.Time        `json:"created_at"`
}

// ExpenseFromDomain converts domain expense to response.
func ExpenseFromDomain(e *domain.ExpenseWithSplits) *ExpenseResponse {
	splits := make([]*SplitResponse, len(e.Splits))
	for i, s := range e.Splits {
		splits[i] = &SplitResponse{MemberID: s.MemberID, ShareAmount: s.ShareAmount}
	}
	return &ExpenseResponse{
		ID:          e.Expense.ID,
		GroupID:     e.Expense.GroupID,
		Description: e.Expense.Description,
		Currency:    e.Expense.Currency,
		PaidBy:      e.Expense.PaidBy,
		Amount:      e.Expense.Amount,
		Splits:      splits,
		CreatedAt:   e.Expense.CreatedAt,
	}
}

// ExplorerResponse is a block explorer link for a settlement transaction.
type ExplorerResponse struct {
	ChainID   domain.ChainID `json:"chain_id"`
	ChainName string         `json:"chain_name"`
	Testnet   bool           `json:"testnet"`
	TxHash    string         `json:"tx_hash"`
	URL       string         `json:"url,omitempty"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
