package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name        string
		amount      string
		expectError error
	}{
		{"valid", "10.50", nil},
		{"zero", "0", ErrInvalidAmount},
		{"below minimum", "0.001", ErrAmountTooSmall},
		{"above maximum", "1000000001", ErrAmountTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateAmount(decimal.RequireFromString(tt.amount))
			if !errors.Is(err, tt.expectError) {
				t.Errorf("expected error %v, got %v", tt.expectError, err)
			}
		})
	}
}

func TestValidateWalletAddress(t *testing.T) {
	if err := ValidateWalletAddress("0x52908400098527886E0F7030069857D2E4169EE7"); err != nil {
		t.Errorf("expected valid address, got %v", err)
	}
	for _, addr := range []string{"", "0x1234", "52908400098527886E0F7030069857D2E4169EE7", "0xZZ908400098527886E0F7030069857D2E4169EE7"} {
		if err := ValidateWalletAddress(addr); !errors.Is(err, ErrInvalidWalletAddress) {
			t.Errorf("%q: expected ErrInvalidWalletAddress, got %v", addr, err)
		}
	}
}

func TestValidateAsset(t *testing.T) {
	if err := ValidateAsset("usdc"); err != nil {
		t.Errorf("expected usdc to be accepted, got %v", err)
	}
	if err := ValidateAsset("DOGE"); !errors.Is(err, ErrInvalidAsset) {
		t.Errorf("expected ErrInvalidAsset, got %v", err)
	}
}

func TestValidatePagination(t *testing.T) {
	limit, offset, err := ValidatePagination(0, -5)
	if err != nil || limit != 50 || offset != 0 {
		t.Errorf("defaults: got %d/%d/%v", limit, offset, err)
	}
	limit, _, _ = ValidatePagination(5000, 0)
	if limit != 1000 {
		t.Errorf("expected limit clamp to 1000, got %d", limit)
	}
}
