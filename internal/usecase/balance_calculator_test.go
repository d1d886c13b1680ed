package usecase_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func members(ids ...string) []domain.Member {
	out := make([]domain.Member, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Member{ID: id, GroupID: "g1", DisplayName: id})
	}
	return out
}

func expense(id, paidBy, amount string) domain.Expense {
	return domain.Expense{ID: id, GroupID: "g1", PaidBy: paidBy, Amount: dec(amount), Currency: "USDC"}
}

func split(expenseID, memberID, share string) domain.ExpenseSplit {
	return domain.ExpenseSplit{ExpenseID: expenseID, MemberID: memberID, ShareAmount: dec(share)}
}

func TestComputeBalances_EqualSplit(t *testing.T) {
	balances, issues := usecase.ComputeBalances(
		members("m1", "m2", "m3"),
		[]domain.Expense{expense("e1", "m1", "30")},
		[]domain.ExpenseSplit{split("e1", "m1", "10"), split("e1", "m2", "10"), split("e1", "m3", "10")},
	)

	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}

	want := []struct {
		member string
		net    string
	}{
		{"m1", "20"},
		{"m2", "-10"},
		{"m3", "-10"},
	}
	if len(balances) != len(want) {
		t.Fatalf("expected %d balances, got %d", len(want), len(balances))
	}
	for i, w := range want {
		if balances[i].MemberID != w.member || !balances[i].Net.Equal(dec(w.net)) {
			t.Errorf("balance[%d] = %s %s, want %s %s", i, balances[i].MemberID, balances[i].Net, w.member, w.net)
		}
	}
	if !balances[0].TotalPaid.Equal(dec("30")) || !balances[0].TotalOwed.Equal(dec("10")) {
		t.Errorf("m1 paid/owed = %s/%s", balances[0].TotalPaid, balances[0].TotalOwed)
	}
}

func TestComputeBalances_NetSumsToZero(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	var expenses []domain.Expense
	var splits []domain.ExpenseSplit

	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("e%d", i)
		payer := ids[i%len(ids)]
		amount := decimal.NewFromInt(int64(7*i + 13))
		participants := ids[:2+i%3]
		splits = append(splits, usecase.EqualSplit(id, amount, participants)...)
		expenses = append(expenses, domain.Expense{ID: id, GroupID: "g1", PaidBy: payer, Amount: amount})
	}

	balances, issues := usecase.ComputeBalances(members(ids...), expenses, splits)
	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}

	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b.Net)
	}
	if total.Abs().GreaterThan(domain.Epsilon) {
		t.Fatalf("sum of net balances = %s, want 0", total)
	}
}

func TestComputeBalances_IntegrityErrors(t *testing.T) {
	tests := []struct {
		name     string
		expenses []domain.Expense
		splits   []domain.ExpenseSplit
		reason   string
	}{
		{
			name:     "unknown payer",
			expenses: []domain.Expense{expense("bad", "ghost", "10")},
			splits:   []domain.ExpenseSplit{split("bad", "m1", "5"), split("bad", "m2", "5")},
			reason:   "payer is not a group member",
		},
		{
			name:     "unknown split member",
			expenses: []domain.Expense{expense("bad", "m1", "10")},
			splits:   []domain.ExpenseSplit{split("bad", "m1", "5"), split("bad", "ghost", "5")},
			reason:   "split member is not a group member",
		},
		{
			name:     "splits do not add up",
			expenses: []domain.Expense{expense("bad", "m1", "10")},
			splits:   []domain.ExpenseSplit{split("bad", "m1", "5"), split("bad", "m2", "4")},
		},
		{
			name:     "non-positive amount",
			expenses: []domain.Expense{expense("bad", "m1", "0")},
			reason:   "amount must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			good := expense("ok", "m1", "20")
			expenses := append([]domain.Expense{good}, tt.expenses...)
			splits := append([]domain.ExpenseSplit{split("ok", "m1", "10"), split("ok", "m2", "10")}, tt.splits...)

			balances, issues := usecase.ComputeBalances(members("m1", "m2"), expenses, splits)

			if len(issues) != 1 {
				t.Fatalf("expected 1 issue, got %d: %v", len(issues), issues)
			}
			if !errors.Is(issues[0], domain.ErrDataIntegrity) || issues[0].ExpenseID != "bad" {
				t.Errorf("unexpected issue %v", issues[0])
			}
			if tt.reason != "" && issues[0].Reason != tt.reason {
				t.Errorf("reason = %q, want %q", issues[0].Reason, tt.reason)
			}

			// The well-formed expense still counts.
			if balances[0].MemberID != "m1" || !balances[0].Net.Equal(dec("10")) {
				t.Errorf("expected m1 +10 first, got %s %s", balances[0].MemberID, balances[0].Net)
			}
		})
	}
}

func TestComputeBalances_OrphanSplitReported(t *testing.T) {
	_, issues := usecase.ComputeBalances(
		members("m1", "m2"),
		nil,
		[]domain.ExpenseSplit{split("missing", "m1", "5")},
	)
	if len(issues) != 1 || issues[0].ExpenseID != "missing" {
		t.Fatalf("expected orphan split to be reported, got %v", issues)
	}
}

func TestComputeBalances_TiesOrderedByMemberID(t *testing.T) {
	balances, _ := usecase.ComputeBalances(members("zoe", "amy", "kim"), nil, nil)

	got := []string{balances[0].MemberID, balances[1].MemberID, balances[2].MemberID}
	want := []string{"amy", "kim", "zoe"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
