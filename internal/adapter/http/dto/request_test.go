package dto

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

func TestCreateExpenseRequest_ToUseCaseInput(t *testing.T) {
	req := &CreateExpenseRequest{
		Description:  "  Dinner ",
		Currency:     "usdc",
		PaidBy:       "alice",
		Participants: []string{"alice", "bob"},
		Amount:       decimal.RequireFromString("30"),
	}

	got := req.ToUseCaseInput("g1")
	want := usecase.CreateExpenseInput{
		GroupID:      "g1",
		Description:  "Dinner",
		Currency:     "USDC",
		PaidBy:       "alice",
		Participants: []string{"alice", "bob"},
		Amount:       decimal.RequireFromString("30"),
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ToUseCaseInput() = %+v, want %+v", got, want)
	}
}

func TestSettleDebtRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     SettleDebtRequest
		wantErr error
	}{
		{name: "valid", req: SettleDebtRequest{FromMemberID: "bob", ToMemberID: "alice"}},
		{name: "missing from", req: SettleDebtRequest{ToMemberID: "alice"}, wantErr: ErrMissingMember},
		{name: "missing to", req: SettleDebtRequest{FromMemberID: "bob"}, wantErr: ErrMissingMember},
		{name: "same member", req: SettleDebtRequest{FromMemberID: "bob", ToMemberID: "bob"}, wantErr: domain.ErrSameMember},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSettleDebtRequest_MatchesDebt(t *testing.T) {
	debt := domain.NetDebt{FromMemberID: "bob", ToMemberID: "alice", Amount: decimal.RequireFromString("10.00")}
	amount := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}

	tests := []struct {
		name   string
		amount *decimal.Decimal
		want   bool
	}{
		{name: "omitted", amount: nil, want: true},
		{name: "exact", amount: amount("10"), want: true},
		{name: "within tolerance", amount: amount("10.01"), want: true},
		{name: "stale", amount: amount("12"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := SettleDebtRequest{Amount: tt.amount}
			if got := req.MatchesDebt(debt); got != tt.want {
				t.Fatalf("MatchesDebt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSettleDebtRequest_ToUseCaseInput(t *testing.T) {
	debt := domain.NetDebt{FromMemberID: "bob", ToMemberID: "alice", Amount: decimal.NewFromInt(5)}
	req := SettleDebtRequest{FromMemberID: "bob", ToMemberID: "alice", Asset: " usdc"}

	got := req.ToUseCaseInput("g1", debt)
	if got.GroupID != "g1" || got.Asset != "USDC" || got.Debt != debt || got.Observer != nil {
		t.Fatalf("unexpected input: %+v", got)
	}
}
