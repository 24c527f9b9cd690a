// internal/types/types.go
package types

import (
	"fmt"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"
)

// Address identifies an account or a token contract.
type Address string

// ZeroAddress is the empty address; used as "no referrer".
const ZeroAddress Address = ""

func (a Address) String() string { return string(a) }

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return strings.TrimSpace(string(a)) == "" }

// Amount is a non-negative integer quantity in base units (1e18 per whole token).
// Its width is bounded by sdkmath.MaxBitLen.
type Amount = sdkmath.Int

const (
	// PPM is the parts-per-million denominator (1_000_000 == 1.0).
	PPM = 1_000_000
	// MaxWeight is the largest connector weight, expressed in ppm.
	MaxWeight = PPM
	// Decimals used by the reserve asset and every economy token.
	Decimals = 18
)

// MaxBitLen is the numeric width every amount and intermediate value must fit in.
const MaxBitLen = sdkmath.MaxBitLen

// Zero returns a zero amount. The zero value of Amount is not usable.
func Zero() Amount { return sdkmath.ZeroInt() }

// NewAmount builds an amount from a uint64.
func NewAmount(v uint64) Amount { return sdkmath.NewIntFromUint64(v) }

// AmountFromBig converts a big.Int, rejecting negatives and values wider than MaxBitLen.
func AmountFromBig(v *big.Int) (Amount, error) {
	if v == nil {
		return Zero(), nil
	}
	if v.Sign() < 0 {
		return Zero(), fmt.Errorf("%w: negative amount %s", ErrInvalidAmount, v)
	}
	if v.BitLen() > MaxBitLen {
		return Zero(), fmt.Errorf("%w: %d-bit value", ErrArithmeticOverflow, v.BitLen())
	}
	return sdkmath.NewIntFromBigInt(v), nil
}

// ParseAmount parses a base-10 integer string.
func ParseAmount(s string) (Amount, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return Zero(), fmt.Errorf("%w: cannot parse %q", ErrInvalidAmount, s)
	}
	return AmountFromBig(v)
}

// OrZero guards against the unusable zero value of sdkmath.Int.
func OrZero(a Amount) Amount {
	if a.IsNil() {
		return Zero()
	}
	return a
}

// SafeAdd adds two amounts, failing with ErrArithmeticOverflow past MaxBitLen.
func SafeAdd(a, b Amount) (Amount, error) {
	return AmountFromBig(new(big.Int).Add(OrZero(a).BigInt(), OrZero(b).BigInt()))
}

// SafeSub subtracts b from a; a negative result is reported as ErrInvalidAmount.
func SafeSub(a, b Amount) (Amount, error) {
	return AmountFromBig(new(big.Int).Sub(OrZero(a).BigInt(), OrZero(b).BigInt()))
}
