package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/splitledger/internal/domain"
)

// ExpenseUseCase handles expense creation.
type ExpenseUseCase struct {
	txManager   TransactionManager
	store       LedgerStore
	expenseRepo ExpenseRepository
	outboxRepo  OutboxRepository
	idGen       IDGenerator
}

// NewExpenseUseCase creates a new ExpenseUseCase.
func NewExpenseUseCase(
	txManager TransactionManager,
	store LedgerStore,
	expenseRepo ExpenseRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
) *ExpenseUseCase {
	return &ExpenseUseCase{
		txManager:   txManager,
		store:       store,
		expenseRepo: expenseRepo,
		outboxRepo:  outboxRepo,
		idGen:       idGen,
	}
}

// CreateExpenseInput represents input for creating an expense.
type CreateExpenseInput struct {
	GroupID     string
	Description string
	Currency    string
	PaidBy      string
	// Participants defaults to every current group member.
	Participants []string
	Amount       decimal.Decimal
}

// CreateExpense records an expense split equally between its participants.
// Shares are whole cents; leftover cents go one each to participants in
// ascending id order so the shares add up to the amount exactly.
func (uc *ExpenseUseCase) CreateExpense(ctx context.Context, input CreateExpenseInput) (*domain.ExpenseWithSplits, error) {
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}
	if !input.Amount.Equal(input.Amount.Truncate(2)) {
		return nil, fmt.Errorf("%w: amount has more than two decimal places", domain.ErrInvalidAmount)
	}
	if err := domain.ValidateDescription(input.Description); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = DefaultSettlementAsset
	}
	if err := domain.ValidateAsset(currency); err != nil {
		return nil, err
	}

	members, err := uc.store.ListMembers(ctx, input.GroupID)
	if err != nil {
		return nil, unavailable("list members", err)
	}
	if len(members) == 0 {
		return nil, domain.ErrGroupNotFound
	}

	memberSet := domain.MemberIDs(members)
	if _, ok := memberSet[input.PaidBy]; !ok {
		return nil, fmt.Errorf("%w: payer %s", domain.ErrMemberNotFound, input.PaidBy)
	}

	participants, err := resolveParticipants(memberSet, input.Participants)
	if err != nil {
		return nil, err
	}

	expense := domain.Expense{
		ID:          uc.idGen.Generate(),
		GroupID:     input.GroupID,
		Description: strings.TrimSpace(input.Description),
		Amount:      input.Amount,
		Currency:    currency,
		PaidBy:      input.PaidBy,
		CreatedAt:   time.Now().UTC(),
	}

	record := &domain.ExpenseWithSplits{
		Expense: expense,
		Splits:  EqualSplit(expense.ID, expense.Amount, participants),
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := uc.expenseRepo.Create(ctx, tx, record); err != nil {
		return nil, err
	}

	if err := uc.outboxRepo.Create(ctx, tx, domain.NewExpenseCreatedEvent(uc.idGen.Generate(), record)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

// EqualSplit divides amount between memberIDs in whole cents.
func EqualSplit(expenseID string, amount decimal.Decimal, memberIDs []string) []domain.ExpenseSplit {
	if len(memberIDs) == 0 {
		return nil
	}

	ids := append([]string(nil), memberIDs...)
	sort.Strings(ids)

	n := decimal.NewFromInt(int64(len(ids)))
	share := amount.Div(n).Truncate(2)
	remainder := amount.Sub(share.Mul(n))
	cents := remainder.Div(domain.Epsilon).IntPart()

	splits := make([]domain.ExpenseSplit, 0, len(ids))
	for i, id := range ids {
		s := share
		if int64(i) < cents {
			s = s.Add(domain.Epsilon)
		}
		splits = append(splits, domain.ExpenseSplit{ExpenseID: expenseID, MemberID: id, ShareAmount: s})
	}
	return splits
}

func resolveParticipants(members map[string]struct{}, requested []string) ([]string, error) {
	if len(requested) == 0 {
		ids := make([]string, 0, len(members))
		for id := range members {
			ids = append(ids, id)
		}
		return ids, nil
	}

	seen := make(map[string]struct{}, len(requested))
	ids := make([]string, 0, len(requested))
	for _, id := range requested {
		if _, ok := members[id]; !ok {
			return nil, fmt.Errorf("%w: participant %s", domain.ErrMemberNotFound, id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
