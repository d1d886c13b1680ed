package domain

import "time"

// Event types
const (
	EventTypeSettlementCompleted = "settlement.completed"
	EventTypeExpenseCreated      = "expense.created"
)

// Aggregate types
const (
	AggregateTypeSettlement = "settlement"
	AggregateTypeExpense    = "expense"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Payload       map[string]any
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Published     bool
}

// SettlementCompletedEvent payload
type SettlementCompletedEvent struct {
	SettlementID    string `json:"settlement_id"`
	GroupID         string `json:"group_id"`
	FromMemberID    string `json:"from_member_id"`
	ToMemberID      string `json:"to_member_id"`
	Amount          string `json:"amount"`
	ChainRef        string `json:"chain_ref"`
	TransactionHash string `json:"transaction_hash"`
}

// ExpenseCreatedEvent payload
type ExpenseCreatedEvent struct {
	ExpenseID string `json:"expense_id"`
	GroupID   string `json:"group_id"`
	PaidBy    string `json:"paid_by"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Splits    int    `json:"splits"`
}

// NewSettlementCompletedEvent builds the outbox event for a recorded settlement.
func NewSettlementCompletedEvent(id string, s *Settlement) *OutboxEvent {
	return &OutboxEvent{
		ID:            id,
		AggregateID:   s.ID,
		AggregateType: AggregateTypeSettlement,
		EventType:     EventTypeSettlementCompleted,
		Payload: map[string]any{
			"settlement_id":    s.ID,
			"group_id":         s.GroupID,
			"from_member_id":   s.FromMemberID,
			"to_member_id":     s.ToMemberID,
			"amount":           s.Amount.String(),
			"chain_ref":        s.ChainRef,
			"transaction_hash": s.TransactionHash,
		},
		CreatedAt: s.CreatedAt,
	}
}

// NewExpenseCreatedEvent builds the outbox event for a new expense.
func NewExpenseCreatedEvent(id string, e *ExpenseWithSplits) *OutboxEvent {
	return &OutboxEvent{
		ID:            id,
		AggregateID:   e.Expense.ID,
		AggregateType: AggregateTypeExpense,
		EventType:     EventTypeExpenseCreated,
		Payload: map[string]any{
			"expense_id": e.Expense.ID,
			"group_id":   e.Expense.GroupID,
			"paid_by":    e.Expense.PaidBy,
			"amount":     e.Expense.Amount.String(),
			"currency":   e.Expense.Currency,
			"splits":     len(e.Splits),
		},
		CreatedAt: e.Expense.CreatedAt,
	}
}
