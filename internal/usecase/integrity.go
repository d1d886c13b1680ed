package usecase

import (
	"github.com/shopspring/decimal"

	"github.com/iho/splitledger/internal/domain"
)

// validatedLedger holds the expenses that passed integrity checks together
// with their splits.
type validatedLedger struct {
	expenses []domain.Expense
	splits   map[string][]domain.ExpenseSplit
}

// validateExpenses separates well-formed expenses from malformed ones. A
// malformed expense is excluded as a whole so the remaining contributions
// still balance to zero.
func validateExpenses(
	members map[string]struct{},
	expenses []domain.Expense,
	splits []domain.ExpenseSplit,
) (validatedLedger, []*domain.DataIntegrityError) {
	var issues []*domain.DataIntegrityError

	known := make(map[string]struct{}, len(expenses))
	for _, e := range expenses {
		known[e.ID] = struct{}{}
	}

	byExpense := make(map[string][]domain.ExpenseSplit, len(expenses))
	for _, s := range splits {
		if _, ok := known[s.ExpenseID]; !ok {
			issues = append(issues, &domain.DataIntegrityError{
				ExpenseID: s.ExpenseID,
				MemberID:  s.MemberID,
				Reason:    "split references unknown expense",
			})
			continue
		}
		byExpense[s.ExpenseID] = append(byExpense[s.ExpenseID], s)
	}

	out := validatedLedger{splits: make(map[string][]domain.ExpenseSplit, len(expenses))}
	seen := make(map[string]struct{}, len(expenses))

	for _, e := range expenses {
		if _, dup := seen[e.ID]; dup {
			issues = append(issues, &domain.DataIntegrityError{ExpenseID: e.ID, Reason: "duplicate expense id"})
			continue
		}
		seen[e.ID] = struct{}{}

		if issue := checkExpense(members, e, byExpense[e.ID]); issue != nil {
			issues = append(issues, issue)
			continue
		}

		out.expenses = append(out.expenses, e)
		out.splits[e.ID] = byExpense[e.ID]
	}

	return out, issues
}

func checkExpense(members map[string]struct{}, e domain.Expense, splits []domain.ExpenseSplit) *domain.DataIntegrityError {
	if err := e.Validate(); err != nil {
		return &domain.DataIntegrityError{ExpenseID: e.ID, Reason: "amount must be positive"}
	}

	if _, ok := members[e.PaidBy]; !ok {
		return &domain.DataIntegrityError{ExpenseID: e.ID, MemberID: e.PaidBy, Reason: "payer is not a group member"}
	}

	total := decimal.Zero
	seen := make(map[string]struct{}, len(splits))
	for _, s := range splits {
		if _, ok := members[s.MemberID]; !ok {
			return &domain.DataIntegrityError{ExpenseID: e.ID, MemberID: s.MemberID, Reason: "split member is not a group member"}
		}
		if _, dup := seen[s.MemberID]; dup {
			return &domain.DataIntegrityError{ExpenseID: e.ID, MemberID: s.MemberID, Reason: "duplicate split for member"}
		}
		if s.ShareAmount.IsNegative() {
			return &domain.DataIntegrityError{ExpenseID: e.ID, MemberID: s.MemberID, Reason: "negative split share"}
		}
		seen[s.MemberID] = struct{}{}
		total = total.Add(s.ShareAmount)
	}

	if total.Sub(e.Amount).Abs().GreaterThan(domain.Epsilon) {
		return &domain.DataIntegrityError{
			ExpenseID: e.ID,
			Reason:    "splits sum to " + total.String() + ", expense amount is " + e.Amount.String(),
		}
	}

	return nil
}
