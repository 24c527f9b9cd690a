// internal/types/slippage.go
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SlippageType определяет тип политики проскальзывания
type SlippageType string

const (
	// SlippageFixed использует фиксированное значение minReturn
	SlippageFixed SlippageType = "fixed"
	// SlippagePercent использует процент от ожидаемого выхода
	SlippagePercent SlippageType = "percent"
	// SlippageNone не использует ограничение minReturn
	SlippageNone SlippageType = "none"
)

// SlippageConfig конфигурирует политику проскальзывания
type SlippageConfig struct {
	// Type определяет тип политики проскальзывания
	Type SlippageType `json:"type" yaml:"type"`
	// Value содержит значение для выбранной политики:
	// - для SlippageFixed: точное значение minReturn в базовых единицах
	// - для SlippagePercent: процент допустимого проскальзывания (например, "1.5" = 1.5%)
	// - для SlippageNone: игнорируется
	Value string `json:"value" yaml:"value"`
}

// MinReturn вычисляет minReturn на основе ожидаемого выхода и политики проскальзывания.
// Результат округляется вниз.
func MinReturn(expected Amount, cfg SlippageConfig) (Amount, error) {
	switch cfg.Type {
	case SlippageFixed:
		return ParseAmount(cfg.Value)
	case SlippagePercent:
		pct, err := decimal.NewFromString(cfg.Value)
		if err != nil {
			return Zero(), fmt.Errorf("%w: slippage percent %q", ErrInvalidParams, cfg.Value)
		}
		if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
			return Zero(), fmt.Errorf("%w: slippage percent must be within [0, 100]", ErrInvalidParams)
		}
		// Например, при 1% минимум будет 99% от ожидаемого
		multiplier := decimal.NewFromInt(1).Sub(pct.Div(decimal.NewFromInt(100)))
		minOut := decimal.NewFromBigInt(OrZero(expected).BigInt(), 0).Mul(multiplier).Floor()
		return AmountFromBig(minOut.BigInt())
	case SlippageNone, "":
		return Zero(), nil
	default:
		return Zero(), fmt.Errorf("%w: unknown slippage type %q", ErrInvalidParams, cfg.Type)
	}
}

// CheckSlippage returns a *SlippageExceededError when got < minimum.
func CheckSlippage(got, minimum Amount) error {
	minimum = OrZero(minimum)
	if OrZero(got).LT(minimum) {
		return &SlippageExceededError{Expected: OrZero(got), Minimum: minimum}
	}
	return nil
}
