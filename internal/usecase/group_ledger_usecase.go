package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/iho/splitledger/internal/domain"
)

// GroupLedgerUseCase reads a group fresh from the store and derives its
// balances and net debts.
type GroupLedgerUseCase struct {
	store LedgerStore
}

// NewGroupLedgerUseCase creates a new GroupLedgerUseCase.
func NewGroupLedgerUseCase(store LedgerStore) *GroupLedgerUseCase {
	return &GroupLedgerUseCase{store: store}
}

// GroupLedger is the derived view of one group.
type GroupLedger struct {
	GroupID  string
	Members  []domain.Member
	Balances []domain.Balance
	Debts    []domain.NetDebt
	Issues   []*domain.DataIntegrityError
}

// GetGroupLedger computes balances and net debts from a fresh read.
// Any read failure is reported as ErrLedgerUnavailable; it is never treated
// as an empty ledger.
func (uc *GroupLedgerUseCase) GetGroupLedger(ctx context.Context, groupID string) (*GroupLedger, error) {
	return readGroupLedger(ctx, uc.store, groupID)
}

// Debt returns the outstanding debt from debtor to creditor, if any.
func (l *GroupLedger) Debt(from, to string) (domain.NetDebt, bool) {
	for _, d := range l.Debts {
		if d.FromMemberID == from && d.ToMemberID == to {
			return d, true
		}
	}
	return domain.NetDebt{}, false
}

func readGroupLedger(ctx context.Context, store LedgerStore, groupID string) (*GroupLedger, error) {
	members, err := store.ListMembers(ctx, groupID)
	if err != nil {
		return nil, unavailable("list members", err)
	}
	if len(members) == 0 {
		return nil, domain.ErrGroupNotFound
	}

	records, err := store.ListExpenses(ctx, groupID)
	if err != nil {
		return nil, unavailable("list expenses", err)
	}

	settlements, err := store.ListSettlements(ctx, groupID)
	if err != nil {
		return nil, unavailable("list settlements", err)
	}

	expenses, splits := domain.FlattenExpenses(records)

	balances, issues := ComputeBalances(members, expenses, splits)
	// Simplify re-validates the same expenses; keep only its settlement issues.
	debts, debtIssues := Simplify(members, expenses, splits, settlements)
	for _, issue := range debtIssues {
		if issue.SettlementID != "" {
			issues = append(issues, issue)
		}
	}

	return &GroupLedger{
		GroupID:  groupID,
		Members:  members,
		Balances: balances,
		Debts:    debts,
		Issues:   issues,
	}, nil
}

// ListSettlements returns every settlement of the group, whatever its status.
func (uc *GroupLedgerUseCase) ListSettlements(ctx context.Context, groupID string) ([]domain.Settlement, error) {
	settlements, err := uc.store.ListSettlements(ctx, groupID)
	if err != nil {
		return nil, unavailable("list settlements", err)
	}
	return settlements, nil
}

// FindDebt returns the current net debt from debtor to creditor.
func (uc *GroupLedgerUseCase) FindDebt(ctx context.Context, groupID, from, to string) (*domain.NetDebt, error) {
	ledger, err := uc.GetGroupLedger(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if d, ok := ledger.Debt(from, to); ok {
		return &d, nil
	}
	return nil, ErrDebtNotFound
}

// ErrDebtNotFound is returned when no outstanding debt exists for a pair.
var ErrDebtNotFound = errors.New("no outstanding debt between members")

func unavailable(op string, err error) error {
	if errors.Is(err, domain.ErrGroupNotFound) || errors.Is(err, domain.ErrLedgerUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrLedgerUnavailable, op, err)
}
