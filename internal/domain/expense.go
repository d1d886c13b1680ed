package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is a payment made by one member on behalf of the group. Immutable once created.
type Expense struct {
	CreatedAt   time.Time
	ID          string
	GroupID     string
	Description string
	Currency    string
	PaidBy      string
	Amount      decimal.Decimal
}

// Validate validates the expense header.
func (e *Expense) Validate() error {
	if e.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	return nil
}

// ExpenseSplit is one member's share of an expense.
type ExpenseSplit struct {
	ExpenseID   string
	MemberID    string
	ShareAmount decimal.Decimal
}

// ExpenseWithSplits is an expense together with all of its split rows.
type ExpenseWithSplits struct {
	Expense Expense
	Splits  []ExpenseSplit
}

// FlattenExpenses separates expense headers from their splits.
func FlattenExpenses(records []ExpenseWithSplits) ([]Expense, []ExpenseSplit) {
	expenses := make([]Expense, 0, len(records))
	var splits []ExpenseSplit
	for _, r := range records {
		expenses = append(expenses, r.Expense)
		splits = append(splits, r.Splits...)
	}
	return expenses, splits
}
