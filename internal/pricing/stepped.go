// internal/pricing/stepped.go
package pricing

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/bondcurve/internal/curve"
)

// fixedOne is the fixed-point unit of the exponential growth factor.
const fixedOne = 1_000_000_000_000_000_000

// stepped prices tokens in blocks of step tokens. Every token of block n
// costs price(n) / PricePrecision.
type stepped struct {
	step   uint64
	supply uint64
	price  func(n uint64) (*uint256.Int, error)
}

func (s stepped) cost(sold, amount uint64) (uint64, error) {
	if s.step == 0 {
		return 0, fmt.Errorf("%w: step size is zero", curve.ErrInvalidCurveConfig)
	}

	total := new(uint256.Int)
	pos, end := sold, sold+amount
	if end < sold {
		return 0, curve.ErrMathOverflow
	}
	for pos < end {
		n := pos / s.step
		stepEnd := (n + 1) * s.step
		if stepEnd < pos || stepEnd > end {
			stepEnd = end
		}

		p, err := s.price(n)
		if err != nil {
			return 0, err
		}
		term, overflow := new(uint256.Int).MulOverflow(p, u256(stepEnd-pos))
		if overflow {
			return 0, curve.ErrMathOverflow
		}
		if _, overflow = total.AddOverflow(total, term); overflow {
			return 0, curve.ErrMathOverflow
		}
		pos = stepEnd
	}
	return narrow(total.Div(total, u256(curve.PricePrecision)))
}

func (s stepped) buy(r curve.Reserves, amount uint64) (uint64, error) {
	sold, err := soldSupply(s.supply, r)
	if err != nil {
		return 0, err
	}
	if err := checkBuy(r, amount); err != nil {
		return 0, err
	}
	return s.cost(sold, amount)
}

func (s stepped) sell(r curve.Reserves, amount uint64) (uint64, error) {
	sold, err := soldSupply(s.supply, r)
	if err != nil {
		return 0, err
	}
	if err := checkSell(sold, amount); err != nil {
		return 0, err
	}
	return s.cost(sold-amount, amount)
}

// Exponential raises the price by Exponent basis points per step:
//
//	price(n) = Base * (10000+Exponent)^n / 10000^n
//
// The growth factor is accumulated in 18-decimal fixed point, so the result
// can differ from the exact closed form in the last unit.
type Exponential struct {
	stepped
	factors []*uint256.Int // fixed-point growth factor per step, nil past overflow
	base    uint64
}

// NewExponential precomputes the growth factor for every step of supply.
func NewExponential(base, exponent, step, supply uint64) *Exponential {
	e := &Exponential{base: base}
	e.stepped = stepped{step: step, supply: supply, price: e.priceAt}
	if step == 0 {
		return e
	}

	steps := supply/step + 1
	if steps > curve.MaxSteps+1 {
		steps = curve.MaxSteps + 1
	}
	limit := new(uint256.Int).Lsh(u256(1), 160)
	mul := u256(curve.BpsDenominator + exponent)
	den := u256(curve.BpsDenominator)

	e.factors = make([]*uint256.Int, steps)
	f := u256(fixedOne)
	for n := range e.factors {
		if f == nil || f.Gt(limit) {
			f = nil
			continue
		}
		e.factors[n] = new(uint256.Int).Set(f)
		f = new(uint256.Int).Mul(f, mul)
		f.Div(f, den)
	}
	return e
}

func (e *Exponential) priceAt(n uint64) (*uint256.Int, error) {
	if n >= uint64(len(e.factors)) {
		return nil, fmt.Errorf("%w: step %d beyond curve", curve.ErrInvalidCurveConfig, n)
	}
	f := e.factors[n]
	if f == nil {
		return nil, fmt.Errorf("%w: price at step %d", curve.ErrMathOverflow, n)
	}
	p := new(uint256.Int).Mul(u256(e.base), f)
	return p.Div(p, u256(fixedOne)), nil
}

func (e *Exponential) BuyPrice(r curve.Reserves, amount uint64) (uint64, error) {
	return e.buy(r, amount)
}

func (e *Exponential) SellPrice(r curve.Reserves, amount uint64) (uint64, error) {
	return e.sell(r, amount)
}

func (e *Exponential) TokensForValue(r curve.Reserves, value uint64) (uint64, error) {
	return searchTokens(e, r, value)
}

// Logarithmic adds one Base per power of LogBase:
//
//	price(n) = Base * (1 + floor(log_LogBase(n+1)))
type Logarithmic struct {
	stepped
	base    uint64
	logBase uint64
}

func NewLogarithmic(base, logBase, step, supply uint64) *Logarithmic {
	l := &Logarithmic{base: base, logBase: logBase}
	l.stepped = stepped{step: step, supply: supply, price: l.priceAt}
	return l
}

func (l *Logarithmic) priceAt(n uint64) (*uint256.Int, error) {
	if l.logBase <= 1 {
		return nil, fmt.Errorf("%w: log base %d", curve.ErrInvalidCurveConfig, l.logBase)
	}
	return new(uint256.Int).Mul(u256(l.base), u256(1+ilog(n+1, l.logBase))), nil
}

func (l *Logarithmic) BuyPrice(r curve.Reserves, amount uint64) (uint64, error) {
	return l.buy(r, amount)
}

func (l *Logarithmic) SellPrice(r curve.Reserves, amount uint64) (uint64, error) {
	return l.sell(r, amount)
}

func (l *Logarithmic) TokensForValue(r curve.Reserves, value uint64) (uint64, error) {
	return searchTokens(l, r, value)
}

// ilog returns the largest k with b^k <= x, for x >= 1 and b >= 2.
func ilog(x, b uint64) uint64 {
	var k uint64
	for x >= b {
		x /= b
		k++
	}
	return k
}
