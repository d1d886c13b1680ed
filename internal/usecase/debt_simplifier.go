package usecase

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/iho/splitledger/internal/domain"
)

// debtMatrix maps debtor -> creditor -> amount. It is built fresh for every
// computation and never shared.
type debtMatrix map[string]map[string]decimal.Decimal

func (m debtMatrix) get(from, to string) decimal.Decimal {
	return m[from][to]
}

func (m debtMatrix) add(from, to string, amount decimal.Decimal) {
	row, ok := m[from]
	if !ok {
		row = make(map[string]decimal.Decimal)
		m[from] = row
	}
	row[to] = row[to].Add(amount)
}

// reduce subtracts amount from the debt, flooring at zero. Overpayment is
// not carried anywhere else.
func (m debtMatrix) reduce(from, to string, amount decimal.Decimal) {
	row, ok := m[from]
	if !ok {
		return
	}
	left := row[to].Sub(amount)
	if left.IsNegative() {
		left = decimal.Zero
	}
	row[to] = left
}

// Simplify nets gross pairwise debts, less completed settlements, into at most
// one directional debt per unordered member pair.
//
// Settlements that are not completed are ignored. Output is ordered by the
// canonical pair (lower member id first) so repeated runs are identical.
func Simplify(
	members []domain.Member,
	expenses []domain.Expense,
	splits []domain.ExpenseSplit,
	settlements []domain.Settlement,
) ([]domain.NetDebt, []*domain.DataIntegrityError) {
	memberSet := domain.MemberIDs(members)
	ledger, issues := validateExpenses(memberSet, expenses, splits)

	gross := buildGrossDebts(ledger)
	issues = append(issues, applySettlements(gross, memberSet, settlements)...)

	ids := make([]string, 0, len(memberSet))
	for id := range memberSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var debts []domain.NetDebt
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := ids[i], ids[j]
			net := gross.get(a, b).Sub(gross.get(b, a))
			if net.Abs().LessThanOrEqual(domain.Epsilon) {
				continue
			}
			if net.IsPositive() {
				debts = append(debts, domain.NetDebt{FromMemberID: a, ToMemberID: b, Amount: net})
			} else {
				debts = append(debts, domain.NetDebt{FromMemberID: b, ToMemberID: a, Amount: net.Neg()})
			}
		}
	}

	return debts, issues
}

func buildGrossDebts(ledger validatedLedger) debtMatrix {
	gross := make(debtMatrix)
	for _, e := range ledger.expenses {
		for _, s := range ledger.splits[e.ID] {
			if s.MemberID == e.PaidBy {
				continue
			}
			gross.add(s.MemberID, e.PaidBy, s.ShareAmount)
		}
	}
	return gross
}

func applySettlements(gross debtMatrix, members map[string]struct{}, settlements []domain.Settlement) []*domain.DataIntegrityError {
	var issues []*domain.DataIntegrityError
	for _, s := range settlements {
		if s.Status != domain.SettlementStatusCompleted {
			continue
		}

		_, fromOK := members[s.FromMemberID]
		_, toOK := members[s.ToMemberID]
		switch {
		case !fromOK:
			issues = append(issues, &domain.DataIntegrityError{SettlementID: s.ID, MemberID: s.FromMemberID, Reason: "payer is not a group member"})
			continue
		case !toOK:
			issues = append(issues, &domain.DataIntegrityError{SettlementID: s.ID, MemberID: s.ToMemberID, Reason: "payee is not a group member"})
			continue
		case s.FromMemberID == s.ToMemberID || !s.Amount.IsPositive():
			issues = append(issues, &domain.DataIntegrityError{SettlementID: s.ID, Reason: "settlement must move a positive amount between two members"})
			continue
		}

		gross.reduce(s.FromMemberID, s.ToMemberID, s.Amount)
	}
	return issues
}
