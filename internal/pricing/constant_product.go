// =============================
// File: internal/pricing/constant_product.go
// =============================
package pricing

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/bondcurve/internal/curve"
)

// ConstantProduct prices trades so that
//
//	k = (RealValue + Virtual) * RealTokens
//
// is preserved across a single trade. Virtual pads the value side so the
// price stays finite while the real value balance is near zero. Every
// division truncates, which leaves rounding dust with the curve.
type ConstantProduct struct {
	Virtual uint64
}

// effective returns the padded value balance, the token balance and k.
func (cp ConstantProduct) effective(r curve.Reserves) (ev, et, k *uint256.Int, err error) {
	ev = new(uint256.Int).Add(u256(r.RealValue), u256(cp.Virtual))
	et = u256(r.RealTokens)
	if ev.IsZero() || et.IsZero() {
		return nil, nil, nil, fmt.Errorf("%w: zero reserves (value %d, tokens %d)",
			curve.ErrInsufficientLiquidity, r.RealValue, r.RealTokens)
	}
	k = new(uint256.Int).Mul(et, ev)
	return ev, et, k, nil
}

// BuyPrice returns k/(tokens-amount) - effectiveValue.
func (cp ConstantProduct) BuyPrice(r curve.Reserves, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, curve.ErrInvalidAmount
	}
	ev, et, k, err := cp.effective(r)
	if err != nil {
		return 0, err
	}
	if amount >= r.RealTokens {
		return 0, fmt.Errorf("%w: buy of %d needs more than %d tokens in vault",
			curve.ErrInsufficientLiquidity, amount, r.RealTokens)
	}

	newTokens := new(uint256.Int).Sub(et, u256(amount))
	newValue := new(uint256.Int).Div(k, newTokens)
	return narrow(newValue.Sub(newValue, ev))
}

// SellPrice returns effectiveValue - k/(tokens+amount). The new value
// balance is rounded up, so the payout is rounded down and a buy followed
// by a sell of the same amount never returns more than was paid.
func (cp ConstantProduct) SellPrice(r curve.Reserves, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, curve.ErrInvalidAmount
	}
	ev, et, k, err := cp.effective(r)
	if err != nil {
		return 0, err
	}

	newTokens := new(uint256.Int).Add(et, u256(amount))
	// Must stay a ceiling. A floor here pays 30_001 back for a 30_000 buy of
	// 1e6 tokens at the default reserves, breaking the round-trip bound.
	newValue := ceilDiv(k, newTokens)
	return narrow(new(uint256.Int).Sub(ev, newValue))
}

// TokensForValue returns tokens - k/(effectiveValue+value).
func (cp ConstantProduct) TokensForValue(r curve.Reserves, value uint64) (uint64, error) {
	if value == 0 {
		return 0, curve.ErrInvalidAmount
	}
	ev, et, k, err := cp.effective(r)
	if err != nil {
		return 0, err
	}

	newValue := new(uint256.Int).Add(ev, u256(value))
	newTokens := new(uint256.Int).Div(k, newValue)
	return narrow(new(uint256.Int).Sub(et, newTokens))
}

// SpotPrice returns the marginal price of one whole token (10^decimals
// units) in value units.
func (cp ConstantProduct) SpotPrice(r curve.Reserves, decimals uint8) (uint64, error) {
	ev, et, _, err := cp.effective(r)
	if err != nil {
		return 0, err
	}
	scale := new(uint256.Int).Exp(u256(10), u256(uint64(decimals)))
	z := new(uint256.Int).Mul(ev, scale)
	return narrow(z.Div(z, et))
}
