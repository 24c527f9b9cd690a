// internal/types/units.go
package types

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ParseUnits converts a human decimal string ("1.5") into base units with the
// given number of decimals. Digits beyond the precision are rejected.
func ParseUnits(s string, decimals int32) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero(), fmt.Errorf("%w: cannot parse %q", ErrInvalidAmount, s)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return Zero(), fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, s, decimals)
	}
	return AmountFromBig(scaled.BigInt())
}

// MustParseUnits is ParseUnits for constants and tests.
func MustParseUnits(s string) Amount {
	a, err := ParseUnits(s, Decimals)
	if err != nil {
		panic(err)
	}
	return a
}

// FormatUnits converts base units into a decimal value.
func FormatUnits(a Amount, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(OrZero(a).BigInt(), -decimals)
}

var bigPPM = big.NewInt(PPM)

// PPMToDecimal converts a ppm-scaled integer into its fractional value.
func PPMToDecimal(a Amount) decimal.Decimal {
	return decimal.NewFromBigInt(OrZero(a).BigInt(), 0).Div(decimal.NewFromBigInt(bigPPM, 0))
}

// WeightToDecimal converts a ppm connector weight into its fractional value.
func WeightToDecimal(weightPPM uint32) decimal.Decimal {
	return decimal.New(int64(weightPPM), -6)
}
