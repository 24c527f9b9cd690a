// internal/types/errors.go
package types

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the bond engine and its collaborators.
var (
	ErrUninitialized        = errors.New("bond engine is not initialized")
	ErrAlreadyInitialized   = errors.New("bond engine is already initialized")
	ErrInsufficientApproval = errors.New("insufficient approval")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrDuplicateEconomy     = errors.New("economy already exists")
	ErrTokenNotFound        = errors.New("token not found")
	ErrSlippageExceeded     = errors.New("slippage exceeded")
	ErrSupplyCapExceeded    = errors.New("supply cap exceeded")
	ErrSupplyUnderflow      = errors.New("supply underflow")
	ErrReserveUnderflow     = errors.New("reserve underflow")
	ErrInvalidWeight        = errors.New("invalid connector weight")
	ErrArithmeticOverflow   = errors.New("arithmetic overflow")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidParams        = errors.New("invalid parameters")
	ErrReentrantCall        = errors.New("reentrant call")
	ErrUnauthorized         = errors.New("unauthorized")
)

// SlippageExceededError carries the computed output that fell short of the
// caller's minimum.
type SlippageExceededError struct {
	Expected Amount
	Minimum  Amount
}

func (e *SlippageExceededError) Error() string {
	return fmt.Sprintf("slippage exceeded: computed return %s is below minimum %s", e.Expected, e.Minimum)
}

// Is makes errors.Is(err, ErrSlippageExceeded) hold.
func (e *SlippageExceededError) Is(target error) bool {
	return target == ErrSlippageExceeded
}

// SupplyCapError reports a supply change that would leave the economy out of bounds.
type SupplyCapError struct {
	Supply Amount
	Delta  string
	Max    Amount
	kind   error
}

// NewSupplyCapError builds a SupplyCapError of the given kind
// (ErrSupplyCapExceeded or ErrSupplyUnderflow).
func NewSupplyCapError(kind error, supply Amount, delta string, max Amount) *SupplyCapError {
	return &SupplyCapError{Supply: supply, Delta: delta, Max: max, kind: kind}
}

func (e *SupplyCapError) Error() string {
	return fmt.Sprintf("%v: supply %s, delta %s, max %s", e.kind, e.Supply, e.Delta, e.Max)
}

func (e *SupplyCapError) Unwrap() error { return e.kind }

// Kind returns the taxonomy entry matching err, or nil if err is not one of ours.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range []error{
		ErrUninitialized, ErrAlreadyInitialized, ErrInsufficientApproval, ErrInsufficientBalance,
		ErrDuplicateEconomy, ErrTokenNotFound, ErrSlippageExceeded, ErrSupplyCapExceeded,
		ErrSupplyUnderflow, ErrReserveUnderflow, ErrInvalidWeight, ErrArithmeticOverflow,
		ErrInvalidAmount, ErrInvalidParams, ErrReentrantCall, ErrUnauthorized,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
