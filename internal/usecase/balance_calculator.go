package usecase

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/iho/splitledger/internal/domain"
)

// ComputeBalances derives every member's paid, owed and net position.
//
// Balances are ordered by net descending (largest creditor first), ties by
// member id. Expenses failing integrity checks are reported and left out.
func ComputeBalances(
	members []domain.Member,
	expenses []domain.Expense,
	splits []domain.ExpenseSplit,
) ([]domain.Balance, []*domain.DataIntegrityError) {
	memberSet := domain.MemberIDs(members)
	ledger, issues := validateExpenses(memberSet, expenses, splits)

	acc := make(map[string]*domain.Balance, len(memberSet))
	for id := range memberSet {
		acc[id] = &domain.Balance{
			MemberID:  id,
			TotalPaid: decimal.Zero,
			TotalOwed: decimal.Zero,
		}
	}

	for _, e := range ledger.expenses {
		acc[e.PaidBy].TotalPaid = acc[e.PaidBy].TotalPaid.Add(e.Amount)
		for _, s := range ledger.splits[e.ID] {
			acc[s.MemberID].TotalOwed = acc[s.MemberID].TotalOwed.Add(s.ShareAmount)
		}
	}

	balances := make([]domain.Balance, 0, len(acc))
	for _, b := range acc {
		b.Net = b.TotalPaid.Sub(b.TotalOwed)
		balances = append(balances, *b)
	}

	sort.Slice(balances, func(i, j int) bool {
		if c := balances[i].Net.Cmp(balances[j].Net); c != 0 {
			return c > 0
		}
		return balances[i].MemberID < balances[j].MemberID
	})

	return balances, issues
}
