// =============================
// File: internal/curve/fixedpoint.go
// =============================
package curve

import (
	"fmt"
	"math/big"

	"github.com/Musing-io/musing-protocol/internal/types"
)

// Fixed-point numbers are *big.Int scaled by one (1e36). Every helper truncates
// towards the side that makes the final curve output smaller, so callers can
// floor the result without ever exceeding the exact formula.
var (
	one = new(big.Int).Exp(big.NewInt(10), big.NewInt(36), nil)

	// ln(2) * 1e36, rounded down and up respectively.
	ln2Floor, _ = new(big.Int).SetString("693147180559945309417232121458176568", 10)
	ln2Ceil, _  = new(big.Int).SetString("693147180559945309417232121458176569", 10)

	// exponent bound for exp(): 2^maxShift already exceeds the numeric width.
	maxShift = int64(types.MaxBitLen)
)

// bounded fails when v no longer fits the numeric width.
func bounded(v *big.Int, op string) (*big.Int, error) {
	if v.BitLen() > types.MaxBitLen {
		return nil, fmt.Errorf("%w: %s needs %d bits", types.ErrArithmeticOverflow, op, v.BitLen())
	}
	return v, nil
}

func mul(a, b *big.Int, op string) (*big.Int, error) {
	return bounded(new(big.Int).Mul(a, b), op)
}

// mulDiv computes floor(a*b/c) with the product bounded.
func mulDiv(a, b, c *big.Int, op string) (*big.Int, error) {
	p, err := mul(a, b, op)
	if err != nil {
		return nil, err
	}
	return p.Quo(p, c), nil
}

// ratio returns floor(n * one / d).
func ratio(n, d *big.Int) (*big.Int, error) {
	return mulDiv(n, one, d, "ratio")
}

// ln returns ln(x) for a fixed-point x >= 1, rounded down.
//
// x is normalised to y * 2^k with y in [1, 2); ln(y) comes from the atanh
// series 2 * (z + z^3/3 + z^5/5 + ...), z = (y-1)/(y+1) < 1/3.
func ln(x *big.Int) (*big.Int, error) {
	if x.Cmp(one) < 0 {
		return nil, fmt.Errorf("%w: ln argument below one", types.ErrInvalidAmount)
	}

	whole := new(big.Int).Quo(x, one)
	k := whole.BitLen() - 1
	y := new(big.Int).Rsh(x, uint(k))

	res, err := mul(big.NewInt(int64(k)), ln2Floor, "ln")
	if err != nil {
		return nil, err
	}

	num := new(big.Int).Sub(y, one)
	if num.Sign() == 0 {
		return res, nil
	}
	z, err := mulDiv(num, one, new(big.Int).Add(y, one), "ln")
	if err != nil {
		return nil, err
	}
	z2, err := mulDiv(z, z, one, "ln")
	if err != nil {
		return nil, err
	}

	sum := new(big.Int)
	term := new(big.Int).Set(z)
	for n := int64(1); term.Sign() > 0; n += 2 {
		sum.Add(sum, new(big.Int).Quo(term, big.NewInt(n)))
		if term, err = mulDiv(term, z2, one, "ln"); err != nil {
			return nil, err
		}
	}

	res.Add(res, sum.Lsh(sum, 1))
	return bounded(res, "ln")
}

// expTaylor returns e^r for 0 <= r < ln2, rounded down.
func expTaylor(r *big.Int) (*big.Int, error) {
	sum := new(big.Int).Set(one)
	term := new(big.Int).Set(one)
	var err error
	for i := int64(1); ; i++ {
		if term, err = mulDiv(term, r, one, "exp"); err != nil {
			return nil, err
		}
		term.Quo(term, big.NewInt(i))
		if term.Sign() == 0 {
			return sum, nil
		}
		sum.Add(sum, term)
	}
}

// reduce splits x into k*ln2 + r using the rounded-up ln2, so r is never
// larger than the exact remainder.
func reduce(x *big.Int) (k int64, r *big.Int, err error) {
	q := new(big.Int).Quo(x, ln2Ceil)
	if !q.IsInt64() || q.Int64() >= maxShift {
		return 0, nil, fmt.Errorf("%w: exponent too large", types.ErrArithmeticOverflow)
	}
	k = q.Int64()
	r = new(big.Int).Sub(x, new(big.Int).Mul(q, ln2Ceil))
	return k, r, nil
}

// exp returns e^x for a fixed-point x >= 0, rounded down.
func exp(x *big.Int) (*big.Int, error) {
	if x.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative exponent", types.ErrInvalidAmount)
	}
	k, r, err := reduce(x)
	if err != nil {
		return nil, err
	}
	v, err := expTaylor(r)
	if err != nil {
		return nil, err
	}
	return bounded(v.Lsh(v, uint(k)), "exp")
}

// expNeg returns e^-x for a fixed-point x >= 0, rounded up and capped at one.
// Very large x yields the smallest positive value instead of overflowing.
func expNeg(x *big.Int) (*big.Int, error) {
	if x.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative exponent", types.ErrInvalidAmount)
	}
	q := new(big.Int).Quo(x, ln2Ceil)
	if !q.IsInt64() || q.Int64() >= maxShift {
		return big.NewInt(1), nil
	}
	k := q.Int64()
	r := new(big.Int).Sub(x, new(big.Int).Mul(q, ln2Ceil))

	er, err := expTaylor(r)
	if err != nil {
		return nil, err
	}
	sq, err := mul(one, one, "exp")
	if err != nil {
		return nil, err
	}
	v := ceilDiv(sq, er)
	v = ceilShift(v, uint(k))
	if v.Cmp(one) > 0 {
		v.Set(one)
	}
	return v, nil
}

func ceilDiv(a, b *big.Int) *big.Int {
	q, m := new(big.Int).QuoRem(a, b, new(big.Int))
	if m.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

func ceilShift(v *big.Int, k uint) *big.Int {
	if k == 0 {
		return v
	}
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), k), big.NewInt(1))
	rem := new(big.Int).And(v, mask)
	out := new(big.Int).Rsh(v, k)
	if rem.Sign() != 0 {
		out.Add(out, big.NewInt(1))
	}
	return out
}
