// internal/pricing/linear.go
package pricing

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/bondcurve/internal/curve"
)

// Linear prices the i-th sold token at (Base + Slope*i) / PricePrecision.
// It is kept for compatibility with early curves; new curves use
// ConstantProduct.
type Linear struct {
	Base   uint64
	Slope  uint64
	Supply uint64
}

// cost sums the price of tokens sold..sold+amount-1.
//
//	Base*a + Slope*a*(2s+a-1)/2
//
// a*(2s+a-1) is always even, so the halving is exact.
func (l Linear) cost(sold, amount uint64) (uint64, error) {
	a := u256(amount)
	base := new(uint256.Int).Mul(u256(l.Base), a)

	span := new(uint256.Int).Mul(u256(sold), u256(2))
	span.Add(span, a)
	span.Sub(span, u256(1))
	span.Mul(span, a)
	span.Rsh(span, 1)
	slope, overflow := new(uint256.Int).MulOverflow(span, u256(l.Slope))
	if overflow {
		return 0, curve.ErrMathOverflow
	}

	total, overflow := new(uint256.Int).AddOverflow(base, slope)
	if overflow {
		return 0, curve.ErrMathOverflow
	}
	return narrow(total.Div(total, u256(curve.PricePrecision)))
}

func (l Linear) BuyPrice(r curve.Reserves, amount uint64) (uint64, error) {
	sold, err := soldSupply(l.Supply, r)
	if err != nil {
		return 0, err
	}
	if err := checkBuy(r, amount); err != nil {
		return 0, err
	}
	return l.cost(sold, amount)
}

func (l Linear) SellPrice(r curve.Reserves, amount uint64) (uint64, error) {
	sold, err := soldSupply(l.Supply, r)
	if err != nil {
		return 0, err
	}
	if err := checkSell(sold, amount); err != nil {
		return 0, err
	}
	return l.cost(sold-amount, amount)
}

func (l Linear) TokensForValue(r curve.Reserves, value uint64) (uint64, error) {
	return searchTokens(l, r, value)
}

// soldSupply is the number of tokens that have left the vault.
func soldSupply(supply uint64, r curve.Reserves) (uint64, error) {
	if r.RealTokens > supply {
		return 0, fmt.Errorf("%w: vault holds %d tokens, supply is %d",
			curve.ErrInvalidCurveConfig, r.RealTokens, supply)
	}
	return supply - r.RealTokens, nil
}

func checkBuy(r curve.Reserves, amount uint64) error {
	if amount == 0 {
		return curve.ErrInvalidAmount
	}
	if amount >= r.RealTokens {
		return fmt.Errorf("%w: buy of %d needs more than %d tokens in vault",
			curve.ErrInsufficientLiquidity, amount, r.RealTokens)
	}
	return nil
}

func checkSell(sold, amount uint64) error {
	if amount == 0 {
		return curve.ErrInvalidAmount
	}
	if amount > sold {
		return fmt.Errorf("%w: sell of %d exceeds %d sold tokens",
			curve.ErrInsufficientLiquidity, amount, sold)
	}
	return nil
}

// searchTokens finds the largest buy whose price does not exceed value.
// BuyPrice is non-decreasing in amount for every supply-based strategy.
func searchTokens(s Strategy, r curve.Reserves, value uint64) (uint64, error) {
	if value == 0 {
		return 0, curve.ErrInvalidAmount
	}
	if r.RealTokens <= 1 {
		return 0, fmt.Errorf("%w: vault holds %d tokens", curve.ErrInsufficientLiquidity, r.RealTokens)
	}

	lo, hi := uint64(0), r.RealTokens-1
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		price, err := s.BuyPrice(r, mid)
		if err != nil {
			return 0, err
		}
		if price <= value {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, nil
}
