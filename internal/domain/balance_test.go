package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNetDebt_Validate(t *testing.T) {
	tests := []struct {
		name        string
		debt        NetDebt
		expectError error
	}{
		{
			name:        "valid debt",
			debt:        NetDebt{FromMemberID: "m2", ToMemberID: "m1", Amount: decimal.NewFromInt(10)},
			expectError: nil,
		},
		{
			name:        "same member",
			debt:        NetDebt{FromMemberID: "m1", ToMemberID: "m1", Amount: decimal.NewFromInt(10)},
			expectError: ErrSameMember,
		},
		{
			name:        "zero amount",
			debt:        NetDebt{FromMemberID: "m2", ToMemberID: "m1", Amount: decimal.Zero},
			expectError: ErrInvalidAmount,
		},
		{
			name:        "amount within rounding tolerance",
			debt:        NetDebt{FromMemberID: "m2", ToMemberID: "m1", Amount: decimal.RequireFromString("0.01")},
			expectError: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.debt.Validate()
			if !errors.Is(err, tt.expectError) {
				t.Errorf("expected error %v, got %v", tt.expectError, err)
			}
		})
	}
}

func TestPairKey_IsOrderIndependent(t *testing.T) {
	if PairKey("a", "b") != PairKey("b", "a") {
		t.Fatalf("pair key depends on order: %s vs %s", PairKey("a", "b"), PairKey("b", "a"))
	}
	d := NetDebt{FromMemberID: "zed", ToMemberID: "amy"}
	if d.PairKey() != "amy:zed" {
		t.Errorf("expected amy:zed, got %s", d.PairKey())
	}
}
