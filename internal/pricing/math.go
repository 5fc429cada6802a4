// internal/pricing/math.go
package pricing

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/bondcurve/internal/curve"
)

// All intermediate products are carried in 256 bits and narrowed to uint64
// only at the end, so a product of two uint64 values can never wrap.

func u256(x uint64) *uint256.Int {
	return uint256.NewInt(x)
}

// narrow converts x back to the working width.
func narrow(x *uint256.Int) (uint64, error) {
	if !x.IsUint64() {
		return 0, fmt.Errorf("%w: %s does not fit in 64 bits", curve.ErrMathOverflow, x.Dec())
	}
	return x.Uint64(), nil
}

// ceilDiv returns x/y rounded up. y must be non-zero.
func ceilDiv(x, y *uint256.Int) *uint256.Int {
	q, m := new(uint256.Int).DivMod(x, y, new(uint256.Int))
	if !m.IsZero() {
		q.AddUint64(q, 1)
	}
	return q
}

// MulDiv returns a*b/d with a 256-bit intermediate, truncating.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, fmt.Errorf("%w: division by zero", curve.ErrInsufficientLiquidity)
	}
	z := new(uint256.Int).Mul(u256(a), u256(b))
	z.Div(z, u256(d))
	return narrow(z)
}

// CheckedAdd adds two uint64 values, failing on wrap.
func CheckedAdd(a, b uint64) (uint64, error) {
	s := a + b
	if s < a {
		return 0, fmt.Errorf("%w: %d + %d", curve.ErrMathOverflow, a, b)
	}
	return s, nil
}

// CheckedSub subtracts b from a, failing with ErrInsufficientLiquidity when
// the result would be negative.
func CheckedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, fmt.Errorf("%w: %d - %d", curve.ErrInsufficientLiquidity, a, b)
	}
	return a - b, nil
}
