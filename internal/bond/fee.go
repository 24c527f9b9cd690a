// internal/bond/fee.go
package bond

import (
	"fmt"

	"github.com/Musing-io/musing-protocol/internal/types"
)

// FeePolicy decides the fee taken on a trade and who receives it.
//
// BuyFee is deducted from the deposit before the curve is evaluated. SellFee
// is deducted from the reserve withdrawn by the curve. A fee must not exceed
// the amount it is taken from, and a positive fee needs a recipient.
type FeePolicy interface {
	BuyFee(token types.Address, deposit types.Amount, referrer types.Address) (fee types.Amount, recipient types.Address)
	SellFee(token types.Address, withdraw types.Amount) (fee types.Amount, recipient types.Address)
}

// NoFee charges nothing. It is the default policy.
type NoFee struct{}

func (NoFee) BuyFee(types.Address, types.Amount, types.Address) (types.Amount, types.Address) {
	return types.Zero(), types.ZeroAddress
}

func (NoFee) SellFee(types.Address, types.Amount) (types.Amount, types.Address) {
	return types.Zero(), types.ZeroAddress
}

// FeePolicyByName resolves a configured policy name.
func FeePolicyByName(name string) (FeePolicy, error) {
	switch name {
	case "", "none":
		return NoFee{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown fee policy %q", types.ErrInvalidParams, name)
	}
}

func checkFee(fee, base types.Amount, recipient types.Address) (types.Amount, error) {
	fee = types.OrZero(fee)
	if fee.IsNegative() || fee.GT(base) {
		return types.Zero(), fmt.Errorf("%w: fee %s out of range for %s", types.ErrInvalidAmount, fee, base)
	}
	if fee.IsPositive() && recipient.IsZero() {
		return types.Zero(), fmt.Errorf("%w: fee without recipient", types.ErrInvalidParams)
	}
	return fee, nil
}
