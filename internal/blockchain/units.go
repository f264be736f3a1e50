package blockchain

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kelsos/approvals/internal/apperr"
)

// ParseUnits converts a human decimal amount into the token's smallest
// integer unit. Amounts with more fractional digits than the token supports
// are rejected rather than rounded.
func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, apperr.New(apperr.InvalidAmount, "Please enter an amount")
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, apperr.New(apperr.InvalidAmount, "invalid amount %q", amount)
	}
	if d.IsNegative() {
		return nil, apperr.New(apperr.InvalidAmount, "amount must not be negative: %s", amount)
	}

	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, apperr.New(apperr.InvalidAmount, "amount %s has more than %d decimal places", amount, decimals)
	}
	return shifted.BigInt(), nil
}

// FormatUnits renders a smallest-unit value as a human decimal string.
func FormatUnits(value *big.Int, decimals int32) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -decimals).String()
}
