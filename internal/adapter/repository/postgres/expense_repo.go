package postgres

import (
	"context"

	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

// ExpenseRepository implements usecase.ExpenseRepository.
type ExpenseRepository struct{}

// NewExpenseRepository creates a new ExpenseRepository.
func NewExpenseRepository() *ExpenseRepository {
	return &ExpenseRepository{}
}

// Create inserts an expense and all of its splits within a transaction.
func (r *ExpenseRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.ExpenseWithSplits) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}
	e := record.Expense

	if _, err := pgxTx.Exec(ctx, insertExpenseSQL,
		e.ID,
		e.GroupID,
		e.Description,
		decimalToNumeric(e.Amount),
		e.Currency,
		e.PaidBy,
		timeToPgTimestamptz(e.CreatedAt),
	); err != nil {
		return err
	}

	for _, s := range record.Splits {
		if _, err := pgxTx.Exec(ctx, insertSplitSQL, s.ExpenseID, s.MemberID, decimalToNumeric(s.ShareAmount)); err != nil {
			return err
		}
	}

	return nil
}
