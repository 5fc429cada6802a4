// =============================
// File: internal/engine/migration.go
// =============================
package engine

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondcurve/internal/curve"
	"github.com/rovshanmuradov/bondcurve/internal/ledger"
	"github.com/rovshanmuradov/bondcurve/internal/pricing"
	"github.com/rovshanmuradov/bondcurve/internal/venue"
)

// Migrate moves the reserves of an Active curve that already holds at least
// the migration threshold to the venue. Buys normally migrate on their own;
// this covers curves that crossed the threshold under different params.
func (e *Engine) Migrate(ctx context.Context, mint solana.PublicKey) (MigrationRecord, error) {
	e.locks.Lock(mint)
	defer e.locks.Unlock(mint)

	var (
		rec        MigrationRecord
		poolOpened bool
	)
	err := e.store.Atomic(ctx, func(tx ledger.Tx) error {
		c, _, r, err := e.load(ctx, tx, mint)
		if err != nil {
			return err
		}
		if !c.Active() {
			return curve.ErrMigrationComplete
		}
		if r.RealValue < e.params.MigrationThreshold {
			return fmt.Errorf("%w: %d of %d", curve.ErrThresholdNotReached, r.RealValue, e.params.MigrationThreshold)
		}
		rec, err = e.migrate(ctx, tx, c, r, &poolOpened)
		return err
	})
	if err != nil {
		e.abandonPool(ctx, mint, poolOpened)
		e.logger.Warn("Migration failed",
			zap.String("mint", mint.String()),
			zap.String("code", curve.Code(err)),
			zap.Error(err))
		return MigrationRecord{}, &curve.TradeError{Op: "migrate", Mint: mint, Err: err}
	}

	e.publisher.CurveMigrated(rec)
	return rec, nil
}

// migrate drains the curve's vaults into the venue and flips its status.
// It runs inside the caller's transaction, so any failure undoes the
// transfers made so far.
func (e *Engine) migrate(ctx context.Context, tx ledger.Tx, c *curve.Curve, r curve.Reserves, poolOpened *bool) (MigrationRecord, error) {
	p := e.params

	available, err := pricing.CheckedSub(r.RealValue, p.RentFloor)
	if err != nil {
		return MigrationRecord{}, fmt.Errorf("rent floor: %w", err)
	}
	var devFee uint64
	if c.Config.IsSubscribed {
		devFee = p.DeveloperFee
	}
	remaining, err := pricing.CheckedSub(available, devFee)
	if err != nil {
		return MigrationRecord{}, fmt.Errorf("developer fee: %w", err)
	}
	remaining, err = pricing.CheckedSub(remaining, p.ListingFee)
	if err != nil {
		return MigrationRecord{}, fmt.Errorf("listing fee: %w", err)
	}

	// venue tokens keep the pool price equal to the curve's last price
	effective, err := pricing.CheckedAdd(r.RealValue, p.VirtualValue)
	if err != nil {
		return MigrationRecord{}, err
	}
	venueTokens, err := pricing.MulDiv(remaining, r.RealTokens, effective)
	if err != nil {
		return MigrationRecord{}, err
	}
	// remaining < RealValue + VirtualValue because VirtualValue > 0, so this
	// cannot fire; it guards future changes to the formula above.
	if venueTokens > r.RealTokens {
		return MigrationRecord{}, fmt.Errorf("%w: venue needs %d tokens, vault holds %d",
			curve.ErrInsufficientLiquidity, venueTokens, r.RealTokens)
	}
	leftover := r.RealTokens - venueTokens

	accounts, err := e.venue.PoolAccounts(c.Mint)
	if err != nil {
		return MigrationRecord{}, fmt.Errorf("failed to resolve pool accounts: %w", err)
	}

	vault := &c.Vault
	steps := []struct {
		what string
		run  func() error
	}{
		{"pool tokens", func() error {
			return transferTokens(ctx, tx, c.Mint, ledger.Transfer{From: vault.TokenAccount, To: accounts.TokenAccount, Amount: venueTokens, Vault: vault})
		}},
		{"pool value", func() error {
			return transferValue(ctx, tx, ledger.Transfer{From: vault.ValueAccount, To: accounts.ValueAccount, Amount: remaining, Vault: vault})
		}},
		{"developer fee", func() error {
			return transferValue(ctx, tx, ledger.Transfer{From: vault.ValueAccount, To: c.Config.Developer, Amount: devFee, Vault: vault})
		}},
		{"listing fee", func() error {
			return transferValue(ctx, tx, ledger.Transfer{From: vault.ValueAccount, To: accounts.FeeAccount, Amount: p.ListingFee, Vault: vault})
		}},
		{"leftover tokens", func() error {
			return transferTokens(ctx, tx, c.Mint, ledger.Transfer{From: vault.TokenAccount, To: p.MigrationAdmin, Amount: leftover, Vault: vault})
		}},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			return MigrationRecord{}, fmt.Errorf("failed to transfer %s: %w", s.what, err)
		}
	}

	var price uint64
	if venueTokens > 0 {
		if price, err = pricing.MulDiv(remaining, pow10(p.TokenDecimals), venueTokens); err != nil {
			return MigrationRecord{}, err
		}
	}

	pool, err := e.venue.OpenPool(ctx, venue.PoolSeed{
		Mint:     c.Mint,
		Accounts: accounts,
		Tokens:   venueTokens,
		Value:    remaining,
		Price:    price,
	})
	if err != nil {
		return MigrationRecord{}, fmt.Errorf("failed to open pool: %w", err)
	}
	*poolOpened = true

	now := e.now()
	c.Config.MigrationStatus = curve.StatusMigrated
	c.MigratedAt = &now
	if err := tx.PutCurve(ctx, c); err != nil {
		return MigrationRecord{}, fmt.Errorf("failed to store migrated curve: %w", err)
	}

	e.logger.Info("Curve migrated",
		zap.String("mint", c.Mint.String()),
		zap.String("pool", pool.Accounts.Pool.String()),
		zap.Uint64("real_value_moved", remaining),
		zap.Uint64("tokens_moved", venueTokens),
		zap.Uint64("effective_price", price),
		zap.Uint64("developer_fee", devFee),
		zap.Uint64("listing_fee", p.ListingFee),
		zap.Uint64("leftover_tokens", leftover))

	return MigrationRecord{
		Mint:           c.Mint,
		Pool:           accounts.Pool,
		RealValueMoved: remaining,
		VirtualValue:   p.VirtualValue,
		TokensMoved:    venueTokens,
		EffectivePrice: price,
		Developer:      c.Config.Developer,
		IsSubscribed:   c.Config.IsSubscribed,
		DeveloperFee:   devFee,
		ListingFee:     p.ListingFee,
		LeftoverTokens: leftover,
		MigratedAt:     now,
	}, nil
}

// abandonPool withdraws a pool opened by a transaction that did not commit.
func (e *Engine) abandonPool(ctx context.Context, mint solana.PublicKey, opened bool) {
	if !opened {
		return
	}
	if err := e.venue.CancelPool(context.WithoutCancel(ctx), mint); err != nil {
		e.logger.Error("Failed to cancel pool",
			zap.String("mint", mint.String()),
			zap.Error(err))
	}
}
