// internal/api/errors.go
package api

import (
	"errors"
	"net/http"

	"github.com/Musing-io/musing-protocol/internal/storage"
	"github.com/Musing-io/musing-protocol/internal/types"
)

var errMissingAccount = errors.New("missing " + AccountHeader + " header")

// statusFor maps an engine error kind to an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch kind := types.Kind(err); kind {
	case types.ErrTokenNotFound:
		return http.StatusNotFound, "token_not_found"
	case types.ErrDuplicateEconomy:
		return http.StatusConflict, "duplicate_economy"
	case types.ErrAlreadyInitialized:
		return http.StatusConflict, "already_initialized"
	case types.ErrReentrantCall:
		return http.StatusConflict, "reentrant_call"
	case types.ErrSlippageExceeded:
		return http.StatusPreconditionFailed, "slippage_exceeded"
	case types.ErrInsufficientApproval:
		return http.StatusForbidden, "insufficient_approval"
	case types.ErrUnauthorized:
		return http.StatusForbidden, "unauthorized"
	case types.ErrUninitialized:
		return http.StatusServiceUnavailable, "uninitialized"
	case types.ErrSupplyCapExceeded, types.ErrSupplyUnderflow, types.ErrReserveUnderflow,
		types.ErrInsufficientBalance, types.ErrArithmeticOverflow, types.ErrInvalidWeight,
		types.ErrInvalidAmount, types.ErrInvalidParams:
		return http.StatusUnprocessableEntity, codeOf(kind)
	}
	switch {
	case errors.Is(err, errMissingAccount):
		return http.StatusUnauthorized, "missing_account"
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "not_found"
	}
	return http.StatusInternalServerError, "internal_error"
}

func codeOf(kind error) string {
	switch kind {
	case types.ErrSupplyCapExceeded:
		return "supply_cap_exceeded"
	case types.ErrSupplyUnderflow:
		return "supply_underflow"
	case types.ErrReserveUnderflow:
		return "reserve_underflow"
	case types.ErrInsufficientBalance:
		return "insufficient_balance"
	case types.ErrArithmeticOverflow:
		return "arithmetic_overflow"
	case types.ErrInvalidWeight:
		return "invalid_weight"
	case types.ErrInvalidAmount:
		return "invalid_amount"
	}
	return "invalid_params"
}
