// =============================
// File: internal/pricing/strategy.go
// =============================
package pricing

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/bondcurve/internal/curve"
)

// Strategy prices trades against the current reserves of a curve. Strategies
// are pure: they hold only immutable shape parameters and never cache reserves.
type Strategy interface {
	// BuyPrice returns the value that must enter the reserves to take amount
	// tokens out of the vault.
	BuyPrice(r curve.Reserves, amount uint64) (uint64, error)
	// SellPrice returns the value the reserves pay out for amount tokens
	// returned to the vault.
	SellPrice(r curve.Reserves, amount uint64) (uint64, error)
	// TokensForValue returns how many tokens value buys before fees.
	TokensForValue(r curve.Reserves, value uint64) (uint64, error)
}

// ForCurve returns the pricing strategy configured for c.
func ForCurve(c *curve.Curve, params curve.Params) (Strategy, error) {
	cfg := c.Config
	switch cfg.Type {
	case curve.TypeConstantProduct, "":
		return ConstantProduct{Virtual: params.VirtualValue}, nil
	case curve.TypeLinear:
		return Linear{Base: cfg.BasePrice, Slope: cfg.Slope, Supply: c.TotalSupply}, nil
	case curve.TypeExponential:
		return NewExponential(cfg.BasePrice, cfg.Exponent, cfg.StepSize, c.TotalSupply), nil
	case curve.TypeLogarithmic:
		return NewLogarithmic(cfg.BasePrice, cfg.LogBase, cfg.StepSize, c.TotalSupply), nil
	default:
		return nil, fmt.Errorf("%w: no pricing for curve type %q", curve.ErrInvalidCurveConfig, cfg.Type)
	}
}

// shape is the part of a curve a strategy is built from.
type shape struct {
	typ       curve.Type
	basePrice uint64
	slope     uint64
	exponent  uint64
	logBase   uint64
	stepSize  uint64
	supply    uint64
}

func shapeOf(c *curve.Curve) shape {
	return shape{
		typ:       c.Config.Type,
		basePrice: c.Config.BasePrice,
		slope:     c.Config.Slope,
		exponent:  c.Config.Exponent,
		logBase:   c.Config.LogBase,
		stepSize:  c.Config.StepSize,
		supply:    c.TotalSupply,
	}
}

type cachedStrategy struct {
	shape shape
	strat Strategy
}

// Cache keeps one strategy per mint so precomputed step tables are built
// once. An entry is rebuilt if the stored shape no longer matches.
type Cache struct {
	params curve.Params

	mu     sync.RWMutex
	byMint map[solana.PublicKey]cachedStrategy
}

func NewCache(params curve.Params) *Cache {
	return &Cache{
		params: params,
		byMint: make(map[solana.PublicKey]cachedStrategy),
	}
}

// ForCurve returns the cached strategy for c, building it on first use.
func (sc *Cache) ForCurve(c *curve.Curve) (Strategy, error) {
	key := shapeOf(c)

	sc.mu.RLock()
	entry, ok := sc.byMint[c.Mint]
	sc.mu.RUnlock()
	if ok && entry.shape == key {
		return entry.strat, nil
	}

	strat, err := ForCurve(c, sc.params)
	if err != nil {
		return nil, err
	}
	sc.mu.Lock()
	sc.byMint[c.Mint] = cachedStrategy{shape: key, strat: strat}
	sc.mu.Unlock()
	return strat, nil
}
