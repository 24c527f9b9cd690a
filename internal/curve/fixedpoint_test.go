package curve

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Musing-io/musing-protocol/internal/types"
)

func TestLn(t *testing.T) {
	v, err := ln(one)
	require.NoError(t, err)
	assert.Zero(t, v.Sign())

	v, err = ln(new(big.Int).Mul(one, big.NewInt(2)))
	require.NoError(t, err)
	assert.Equal(t, ln2Floor.String(), v.String())

	// ln(8) = 3 ln(2)
	v, err = ln(new(big.Int).Mul(one, big.NewInt(8)))
	require.NoError(t, err)
	assert.Equal(t, new(big.Int).Mul(ln2Floor, big.NewInt(3)).String(), v.String())

	_, err = ln(big.NewInt(1))
	assert.ErrorIs(t, err, types.ErrInvalidAmount)
}

func TestLn_NeverOverestimates(t *testing.T) {
	// ln(1.5) = 0.405465108108164381978013115464349136...
	exact, _ := new(big.Int).SetString("405465108108164381978013115464349136", 10)
	x := new(big.Int).Quo(new(big.Int).Mul(one, big.NewInt(3)), big.NewInt(2))

	v, err := ln(x)
	require.NoError(t, err)
	assert.True(t, v.Cmp(exact) <= 0, "ln(1.5) overestimated: %s", v)

	diff := new(big.Int).Sub(exact, v)
	assert.True(t, diff.Cmp(big.NewInt(1000)) < 0, "ln(1.5) error too large: %s", diff)
}

func TestExp(t *testing.T) {
	v, err := exp(new(big.Int))
	require.NoError(t, err)
	assert.Equal(t, one.String(), v.String())

	two := new(big.Int).Mul(one, big.NewInt(2))
	v, err = exp(ln2Floor)
	require.NoError(t, err)
	assert.True(t, v.Cmp(two) <= 0)
	assert.True(t, new(big.Int).Sub(two, v).Cmp(big.NewInt(1000)) < 0, "exp(ln2) = %s", v)

	_, err = exp(new(big.Int).Mul(one, big.NewInt(200)))
	assert.ErrorIs(t, err, types.ErrArithmeticOverflow)
}

func TestExpNeg(t *testing.T) {
	v, err := expNeg(new(big.Int))
	require.NoError(t, err)
	assert.Equal(t, one.String(), v.String())

	half := new(big.Int).Quo(one, big.NewInt(2))
	v, err = expNeg(ln2Floor)
	require.NoError(t, err)
	assert.True(t, v.Cmp(half) >= 0, "e^-ln2 must not be underestimated: %s", v)

	v, err = expNeg(new(big.Int).Mul(one, big.NewInt(100000)))
	require.NoError(t, err)
	assert.Equal(t, "1", v.String())
}

func TestCeilHelpers(t *testing.T) {
	assert.Equal(t, "4", ceilDiv(big.NewInt(7), big.NewInt(2)).String())
	assert.Equal(t, "3", ceilDiv(big.NewInt(6), big.NewInt(2)).String())
	assert.Equal(t, "2", ceilShift(big.NewInt(5), 2).String())
	assert.Equal(t, "1", ceilShift(big.NewInt(4), 2).String())
}
