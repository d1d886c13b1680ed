package domain

import (
	"github.com/shopspring/decimal"
)

// Epsilon absorbs split-division rounding: amounts within one cent are equal.
var Epsilon = decimal.New(1, -2)

// Balance is a member's derived position in a group. Never persisted.
type Balance struct {
	MemberID  string
	TotalPaid decimal.Decimal
	TotalOwed decimal.Decimal
	Net       decimal.Decimal
}

// NetDebt is the single directional residual obligation between two members.
type NetDebt struct {
	FromMemberID string
	ToMemberID   string
	Amount       decimal.Decimal
}

// Validate validates a debt selected for settlement.
func (d NetDebt) Validate() error {
	if d.FromMemberID == d.ToMemberID {
		return ErrSameMember
	}
	if d.Amount.LessThanOrEqual(Epsilon) {
		return ErrInvalidAmount
	}
	return nil
}

// PairKey returns the canonical key of the unordered member pair.
func (d NetDebt) PairKey() string {
	return PairKey(d.FromMemberID, d.ToMemberID)
}

// PairKey returns a key that is identical for (a, b) and (b, a).
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}
