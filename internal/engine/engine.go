// =============================
// File: internal/engine/engine.go
// =============================
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondcurve/internal/curve"
	"github.com/rovshanmuradov/bondcurve/internal/fee"
	"github.com/rovshanmuradov/bondcurve/internal/ledger"
	"github.com/rovshanmuradov/bondcurve/internal/pricing"
	"github.com/rovshanmuradov/bondcurve/internal/venue"
)

// Engine executes trades and migrations against a ledger. Every mutating
// call holds the curve's exclusive lock and runs in one ledger transaction.
type Engine struct {
	store     ledger.Store
	venue     venue.Venue
	params    curve.Params
	fees      fee.Calculator
	publisher Publisher
	logger    *zap.Logger
	locks     *lockMap
	strats    *pricing.Cache
	now       func() time.Time
}

// New creates an Engine. A nil publisher discards records.
func New(store ledger.Store, v venue.Venue, params curve.Params, publisher Publisher, logger *zap.Logger) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid protocol params: %w", err)
	}
	fees, err := fee.New(params.TradeFeeBps)
	if err != nil {
		return nil, err
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &Engine{
		store:     store,
		venue:     v,
		params:    params,
		fees:      fees,
		publisher: publisher,
		logger:    logger.Named("engine"),
		locks:     newLockMap(),
		strats:    pricing.NewCache(params),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Params returns the protocol parameters the engine was built with.
func (e *Engine) Params() curve.Params {
	return e.params
}

// CreateCurve validates req, opens the curve's vaults and mints the whole
// supply into the token vault.
func (e *Engine) CreateCurve(ctx context.Context, req CreateRequest) (*curve.Curve, error) {
	cfg := req.Config
	if cfg.Type == "" {
		cfg.Type = curve.TypeConstantProduct
	}
	if cfg.MigrationStatus == "" {
		cfg.MigrationStatus = curve.StatusActive
	}
	if req.Mint.IsZero() {
		return nil, &curve.TradeError{Op: "create", Mint: req.Mint, Err: fmt.Errorf("%w: mint is required", curve.ErrInvalidCurveConfig)}
	}
	if err := cfg.Validate(req.TotalSupply); err != nil {
		return nil, &curve.TradeError{Op: "create", Mint: req.Mint, Err: err}
	}

	e.locks.Lock(req.Mint)
	defer e.locks.Unlock(req.Mint)

	c := &curve.Curve{
		Mint:        req.Mint,
		Creator:     req.Creator,
		Config:      cfg,
		TotalSupply: req.TotalSupply,
		CreatedAt:   e.now(),
	}
	err := e.store.Atomic(ctx, func(tx ledger.Tx) error {
		if _, err := tx.Curve(ctx, req.Mint); err == nil {
			return fmt.Errorf("%w: %s", curve.ErrCurveExists, req.Mint)
		} else if !errors.Is(err, curve.ErrCurveNotFound) {
			return err
		}

		vault, err := tx.OpenVault(ctx, req.Mint)
		if err != nil {
			return fmt.Errorf("failed to open vault: %w", err)
		}
		if err := tx.MintTo(ctx, vault, req.TotalSupply); err != nil {
			return fmt.Errorf("failed to mint supply: %w", err)
		}
		c.Vault = vault
		return tx.PutCurve(ctx, c)
	})
	if err != nil {
		e.logger.Warn("Curve creation failed",
			zap.String("mint", req.Mint.String()),
			zap.Error(err))
		return nil, &curve.TradeError{Op: "create", Mint: req.Mint, Err: err}
	}

	e.logger.Info("Curve created",
		zap.String("mint", c.Mint.String()),
		zap.String("creator", c.Creator.String()),
		zap.String("curve_type", string(c.Config.Type)),
		zap.Uint64("total_supply", c.TotalSupply),
		zap.Bool("is_subscribed", c.Config.IsSubscribed))
	return c, nil
}

// Curve returns the stored curve for mint.
func (e *Engine) Curve(ctx context.Context, mint solana.PublicKey) (*curve.Curve, error) {
	var c *curve.Curve
	err := e.view(ctx, mint, func(tx ledger.Tx) error {
		var err error
		c, err = tx.Curve(ctx, mint)
		return err
	})
	return c, err
}

// Reserves returns the current real reserves of the curve for mint.
func (e *Engine) Reserves(ctx context.Context, mint solana.PublicKey) (curve.Reserves, error) {
	var r curve.Reserves
	err := e.view(ctx, mint, func(tx ledger.Tx) error {
		c, err := tx.Curve(ctx, mint)
		if err != nil {
			return err
		}
		r, err = tx.Reserves(ctx, c.Vault)
		return err
	})
	return r, err
}

// MigrationStatus returns the lifecycle state of the curve for mint.
func (e *Engine) MigrationStatus(ctx context.Context, mint solana.PublicKey) (curve.MigrationStatus, error) {
	c, err := e.Curve(ctx, mint)
	if err != nil {
		return "", err
	}
	return c.Config.MigrationStatus, nil
}

// SpotPrice returns the marginal price of one whole token.
func (e *Engine) SpotPrice(ctx context.Context, mint solana.PublicKey) (uint64, error) {
	var price uint64
	err := e.view(ctx, mint, func(tx ledger.Tx) error {
		_, strat, r, err := e.load(ctx, tx, mint)
		if err != nil {
			return err
		}
		price, err = e.spotPrice(strat, r)
		return err
	})
	return price, err
}

func (e *Engine) spotPrice(strat pricing.Strategy, r curve.Reserves) (uint64, error) {
	if cp, ok := strat.(pricing.ConstantProduct); ok {
		return cp.SpotPrice(r, e.params.TokenDecimals)
	}
	// supply-based curves: average price of the next whole token
	if r.RealTokens < 2 {
		return 0, fmt.Errorf("%w: vault holds %d tokens", curve.ErrInsufficientLiquidity, r.RealTokens)
	}
	unit := pow10(e.params.TokenDecimals)
	if unit >= r.RealTokens {
		unit = r.RealTokens - 1
	}
	base, err := strat.BuyPrice(r, unit)
	if err != nil {
		return 0, err
	}
	return pricing.MulDiv(base, pow10(e.params.TokenDecimals), unit)
}

// view runs fn under the curve's shared lock in a read-only transaction.
func (e *Engine) view(ctx context.Context, mint solana.PublicKey, fn func(tx ledger.Tx) error) error {
	e.locks.RLock(mint)
	defer e.locks.RUnlock(mint)

	return e.store.View(ctx, fn)
}

// load reads the curve, its strategy and its current reserves.
func (e *Engine) load(ctx context.Context, tx ledger.Tx, mint solana.PublicKey) (*curve.Curve, pricing.Strategy, curve.Reserves, error) {
	c, err := tx.Curve(ctx, mint)
	if err != nil {
		return nil, nil, curve.Reserves{}, err
	}
	strat, err := e.strats.ForCurve(c)
	if err != nil {
		return nil, nil, curve.Reserves{}, err
	}
	r, err := tx.Reserves(ctx, c.Vault)
	if err != nil {
		return nil, nil, curve.Reserves{}, fmt.Errorf("failed to read reserves: %w", err)
	}
	return c, strat, r, nil
}

func pow10(n uint8) uint64 {
	v := uint64(1)
	for i := uint8(0); i < n; i++ {
		v *= 10
	}
	return v
}
