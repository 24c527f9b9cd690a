// =============================
// File: internal/curve/formula.go
// =============================
package curve

import (
	"fmt"
	"math/big"

	"github.com/Musing-io/musing-protocol/internal/types"
)

// Formula prices conversions between a reserve and a continuous token.
type Formula interface {
	PurchaseReturn(reserve, supply types.Amount, weightPPM uint32, deposit types.Amount) (types.Amount, error)
	SaleReturn(reserve, supply types.Amount, weightPPM uint32, sell types.Amount) (types.Amount, error)
}

// Bancor implements the power formula
//
//	mint     = supply  * ((1 + deposit/reserve)^w - 1)
//	withdraw = reserve * (1 - (1 - sell/supply)^(1/w))
//
// in 1e36 fixed point bounded to 256 bits. Outputs are always floored and never
// exceed the exact value; for exponents below 2^8 the approximation is within
// one base unit of it.
type Bancor struct{}

// NewBancor returns the formula bound by the engine at init.
func NewBancor() *Bancor { return &Bancor{} }

var maxWeight = big.NewInt(types.MaxWeight)

// ValidateWeight checks that the weight lies in (0, 1_000_000] ppm.
func ValidateWeight(weightPPM uint32) error {
	if weightPPM == 0 || weightPPM > types.MaxWeight {
		return fmt.Errorf("%w: %d ppm", types.ErrInvalidWeight, weightPPM)
	}
	return nil
}

func validate(reserve, supply types.Amount, weightPPM uint32) error {
	if err := ValidateWeight(weightPPM); err != nil {
		return err
	}
	if !types.OrZero(reserve).IsPositive() {
		return fmt.Errorf("%w: reserve balance must be positive", types.ErrInvalidAmount)
	}
	if !types.OrZero(supply).IsPositive() {
		return fmt.Errorf("%w: supply must be positive", types.ErrInvalidAmount)
	}
	return nil
}

// PurchaseReturn returns how many tokens a deposit of reserve mints.
func (Bancor) PurchaseReturn(reserve, supply types.Amount, weightPPM uint32, deposit types.Amount) (types.Amount, error) {
	if err := validate(reserve, supply, weightPPM); err != nil {
		return types.Zero(), err
	}
	deposit = types.OrZero(deposit)
	if deposit.IsNegative() {
		return types.Zero(), fmt.Errorf("%w: negative deposit", types.ErrInvalidAmount)
	}
	if deposit.IsZero() {
		return types.Zero(), nil
	}

	r, s, d := reserve.BigInt(), supply.BigInt(), deposit.BigInt()

	if weightPPM == types.MaxWeight {
		out, err := mulDiv(s, d, r, "purchase")
		if err != nil {
			return types.Zero(), err
		}
		return types.AmountFromBig(out)
	}

	sum, err := bounded(new(big.Int).Add(r, d), "purchase")
	if err != nil {
		return types.Zero(), err
	}
	base, err := ratio(sum, r)
	if err != nil {
		return types.Zero(), err
	}
	l, err := ln(base)
	if err != nil {
		return types.Zero(), err
	}
	e, err := mulDiv(l, big.NewInt(int64(weightPPM)), maxWeight, "purchase")
	if err != nil {
		return types.Zero(), err
	}
	growth, err := exp(e)
	if err != nil {
		return types.Zero(), err
	}

	newSupply, err := mulDiv(s, growth, one, "purchase")
	if err != nil {
		return types.Zero(), err
	}
	out := newSupply.Sub(newSupply, s)
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	return types.AmountFromBig(out)
}

// SaleReturn returns how much reserve selling tokens releases.
func (Bancor) SaleReturn(reserve, supply types.Amount, weightPPM uint32, sell types.Amount) (types.Amount, error) {
	if err := validate(reserve, supply, weightPPM); err != nil {
		return types.Zero(), err
	}
	sell = types.OrZero(sell)
	if sell.IsNegative() {
		return types.Zero(), fmt.Errorf("%w: negative sell amount", types.ErrInvalidAmount)
	}
	if sell.GT(supply) {
		return types.Zero(), fmt.Errorf("%w: selling %s of %s", types.ErrSupplyUnderflow, sell, supply)
	}
	if sell.IsZero() {
		return types.Zero(), nil
	}
	if sell.Equal(supply) {
		return reserve, nil
	}

	r, s, a := reserve.BigInt(), supply.BigInt(), sell.BigInt()

	if weightPPM == types.MaxWeight {
		out, err := mulDiv(r, a, s, "sale")
		if err != nil {
			return types.Zero(), err
		}
		return types.AmountFromBig(out)
	}

	// (1 - a/s)^(1/w) = e^-(ln(s/(s-a)) / w)
	base, err := ratio(s, new(big.Int).Sub(s, a))
	if err != nil {
		return types.Zero(), err
	}
	l, err := ln(base)
	if err != nil {
		return types.Zero(), err
	}
	e, err := mulDiv(l, maxWeight, big.NewInt(int64(weightPPM)), "sale")
	if err != nil {
		return types.Zero(), err
	}
	remaining, err := expNeg(e)
	if err != nil {
		return types.Zero(), err
	}

	out, err := mulDiv(r, new(big.Int).Sub(one, remaining), one, "sale")
	if err != nil {
		return types.Zero(), err
	}
	return types.AmountFromBig(out)
}

// PricePPM returns reserve / (supply * weight) scaled by 1e6, rounded down.
func PricePPM(reserve, supply types.Amount, weightPPM uint32) (types.Amount, error) {
	if err := ValidateWeight(weightPPM); err != nil {
		return types.Zero(), err
	}
	if !types.OrZero(supply).IsPositive() {
		return types.Zero(), fmt.Errorf("%w: supply must be positive", types.ErrInvalidAmount)
	}
	scale := big.NewInt(types.PPM * types.PPM)
	den, err := mul(supply.BigInt(), big.NewInt(int64(weightPPM)), "price")
	if err != nil {
		return types.Zero(), err
	}
	out, err := mulDiv(types.OrZero(reserve).BigInt(), scale, den, "price")
	if err != nil {
		return types.Zero(), err
	}
	return types.AmountFromBig(out)
}
