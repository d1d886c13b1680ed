package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidAsset         = errors.New("invalid settlement asset")
	ErrInvalidWalletAddress = errors.New("invalid wallet address")
	ErrInvalidDescription   = errors.New("invalid expense description")
	ErrAmountTooLarge       = errors.New("amount exceeds maximum allowed")
	ErrAmountTooSmall       = errors.New("amount below minimum allowed")
	ErrInvalidIDFormat      = errors.New("invalid ID format")
)

// Validation constants
const (
	MaxDescriptionLength = 255
	MaxExpenseAmount     = "1000000000" // 1 billion
	MinExpenseAmount     = "0.01"
)

var supportedAssets = map[string]bool{
	"USDC": true, "USDT": true, "ETH": true,
}

var walletRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidateAmount validates expense/settlement amount
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	minAmount, _ := decimal.NewFromString(MinExpenseAmount)
	if amount.LessThan(minAmount) {
		return fmt.Errorf("%w: minimum amount is %s", ErrAmountTooSmall, MinExpenseAmount)
	}

	maxAmount, _ := decimal.NewFromString(MaxExpenseAmount)
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxExpenseAmount)
	}

	return nil
}

// ValidateAsset validates the settlement asset symbol
func ValidateAsset(asset string) error {
	asset = strings.ToUpper(strings.TrimSpace(asset))

	if !supportedAssets[asset] {
		return fmt.Errorf("%w: %s", ErrInvalidAsset, asset)
	}

	return nil
}

// ValidateWalletAddress validates an EVM address
func ValidateWalletAddress(addr string) error {
	if !walletRegex.MatchString(addr) {
		return fmt.Errorf("%w: %q", ErrInvalidWalletAddress, addr)
	}

	return nil
}

// ValidateDescription validates expense description
func ValidateDescription(desc string) error {
	desc = strings.TrimSpace(desc)

	if desc == "" {
		return fmt.Errorf("%w: description cannot be empty", ErrInvalidDescription)
	}

	if len(desc) > MaxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidDescription, MaxDescriptionLength)
	}

	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
