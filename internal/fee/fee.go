// internal/fee/fee.go
package fee

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/bondcurve/internal/curve"
)

// Calculator applies the protocol trade fee. The rate is protocol-wide and is
// never read from a curve.
type Calculator struct {
	Bps uint64
}

// New returns a Calculator for bps, rejecting rates above 100%.
func New(bps uint64) (Calculator, error) {
	if bps > curve.BpsDenominator {
		return Calculator{}, fmt.Errorf("%w: fee rate %d bps exceeds %d", curve.ErrInvalidFee, bps, curve.BpsDenominator)
	}
	return Calculator{Bps: bps}, nil
}

// Fee returns base*Bps/10000, truncated. A discounted trade pays nothing.
func (c Calculator) Fee(base uint64, discount bool) (uint64, error) {
	if discount || c.Bps == 0 || base == 0 {
		return 0, nil
	}
	z := new(uint256.Int).Mul(uint256.NewInt(base), uint256.NewInt(c.Bps))
	z.Div(z, uint256.NewInt(curve.BpsDenominator))
	if !z.IsUint64() {
		return 0, fmt.Errorf("%w: fee on %d", curve.ErrMathOverflow, base)
	}
	return z.Uint64(), nil
}

// BuyTotal returns the fee and the amount a buyer pays for base.
func (c Calculator) BuyTotal(base uint64, discount bool) (fee, total uint64, err error) {
	fee, err = c.Fee(base, discount)
	if err != nil {
		return 0, 0, err
	}
	total = base + fee
	if total < base {
		return 0, 0, fmt.Errorf("%w: %d + fee %d", curve.ErrMathOverflow, base, fee)
	}
	return fee, total, nil
}

// SellPayout returns the fee and the amount a seller receives for base.
func (c Calculator) SellPayout(base uint64, discount bool) (fee, payout uint64, err error) {
	fee, err = c.Fee(base, discount)
	if err != nil {
		return 0, 0, err
	}
	if fee > base {
		return 0, 0, fmt.Errorf("%w: fee %d on %d", curve.ErrInvalidFee, fee, base)
	}
	return fee, base - fee, nil
}
