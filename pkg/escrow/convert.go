package escrow

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ToBaseUnits converts a display amount to the token's integer base units.
// The amount must be representable without truncation at the token's
// configured precision.
func ToBaseUnits(amount decimal.Decimal, decimals int) (*big.Int, error) {
	if decimals < 0 || decimals > 30 {
		return nil, fmt.Errorf("unsupported token decimals: %d", decimals)
	}

	shifted := amount.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %s cannot be represented with %d decimals", amount, decimals)
	}
	if shifted.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative: %s", amount)
	}

	return shifted.BigInt(), nil
}

// FromBaseUnits converts integer base units back to a display amount.
func FromBaseUnits(units *big.Int, decimals int) decimal.Decimal {
	return decimal.NewFromBigInt(units, -int32(decimals))
}
