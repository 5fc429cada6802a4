// =============================
// File: internal/engine/trade.go
// =============================
package engine

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondcurve/internal/curve"
	"github.com/rovshanmuradov/bondcurve/internal/ledger"
	"github.com/rovshanmuradov/bondcurve/internal/pricing"
)

// Buy takes req.Amount tokens out of the curve in exchange for value. A buy
// that lifts the real value balance to the migration threshold migrates the
// curve in the same transaction; if migration fails the buy fails too.
func (e *Engine) Buy(ctx context.Context, req BuyRequest) (BuyResult, error) {
	if req.Amount == 0 {
		return BuyResult{}, &curve.TradeError{Op: "buy", Mint: req.Mint, Err: curve.ErrInvalidAmount}
	}

	e.locks.Lock(req.Mint)
	defer e.locks.Unlock(req.Mint)

	var (
		res        BuyResult
		trade      TradeRecord
		migration  *MigrationRecord
		poolOpened bool
	)
	err := e.store.Atomic(ctx, func(tx ledger.Tx) error {
		c, strat, r, err := e.load(ctx, tx, req.Mint)
		if err != nil {
			return err
		}
		if !c.Active() {
			return curve.ErrMigrationComplete
		}

		base, err := strat.BuyPrice(r, req.Amount)
		if err != nil {
			return err
		}
		fee, total, err := e.fees.BuyTotal(base, req.Discount)
		if err != nil {
			return err
		}
		if total > req.MaxValueCost {
			return &curve.SlippageError{Amount: req.Amount, Limit: req.MaxValueCost, Actual: total, Err: curve.ErrPriceExceedsMaxCost}
		}

		if err := transferValue(ctx, tx, ledger.Transfer{From: req.Buyer, To: c.Vault.ValueAccount, Amount: base}); err != nil {
			return fmt.Errorf("failed to pay curve: %w", err)
		}
		if err := transferValue(ctx, tx, ledger.Transfer{From: req.Buyer, To: e.params.FeeCollector, Amount: fee}); err != nil {
			return fmt.Errorf("failed to pay fee: %w", err)
		}
		if err := transferTokens(ctx, tx, c.Mint, ledger.Transfer{From: c.Vault.TokenAccount, To: req.Buyer, Amount: req.Amount, Vault: &c.Vault}); err != nil {
			return fmt.Errorf("failed to deliver tokens: %w", err)
		}

		after, err := tx.Reserves(ctx, c.Vault)
		if err != nil {
			return fmt.Errorf("failed to read reserves: %w", err)
		}
		res = BuyResult{TokensBought: req.Amount, ValuePaid: total, Fee: fee}
		trade = TradeRecord{
			ID:         uuid.NewString(),
			Side:       SideBuy,
			Mint:       c.Mint,
			Trader:     req.Buyer,
			Amount:     req.Amount,
			Value:      total,
			Fee:        fee,
			Discount:   req.Discount,
			Reserves:   after,
			ExecutedAt: e.now(),
		}

		if after.RealValue < e.params.MigrationThreshold {
			return nil
		}
		rec, err := e.migrate(ctx, tx, c, after, &poolOpened)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		migration = &rec
		res.Migrated = true
		return nil
	})
	if err != nil {
		e.abandonPool(ctx, req.Mint, poolOpened)
		e.logger.Warn("Buy failed",
			zap.String("mint", req.Mint.String()),
			zap.String("buyer", req.Buyer.String()),
			zap.Uint64("amount", req.Amount),
			zap.String("code", curve.Code(err)),
			zap.Error(err))
		return BuyResult{}, &curve.TradeError{Op: "buy", Mint: req.Mint, Err: err}
	}

	e.logger.Info("Buy executed",
		zap.String("mint", req.Mint.String()),
		zap.String("buyer", req.Buyer.String()),
		zap.Uint64("amount", res.TokensBought),
		zap.Uint64("value_paid", res.ValuePaid),
		zap.Uint64("fee", res.Fee),
		zap.Bool("migrated", res.Migrated))

	e.publisher.TradeExecuted(trade)
	if migration != nil {
		e.publisher.CurveMigrated(*migration)
	}
	return res, nil
}

// Sell returns req.Amount tokens to the curve. Payout and fee both leave the
// value vault.
func (e *Engine) Sell(ctx context.Context, req SellRequest) (SellResult, error) {
	if req.Amount == 0 {
		return SellResult{}, &curve.TradeError{Op: "sell", Mint: req.Mint, Err: curve.ErrInvalidAmount}
	}

	e.locks.Lock(req.Mint)
	defer e.locks.Unlock(req.Mint)

	var (
		res   SellResult
		trade TradeRecord
	)
	err := e.store.Atomic(ctx, func(tx ledger.Tx) error {
		c, strat, r, err := e.load(ctx, tx, req.Mint)
		if err != nil {
			return err
		}
		if !c.Active() {
			return curve.ErrMigrationComplete
		}

		base, err := strat.SellPrice(r, req.Amount)
		if err != nil {
			return err
		}
		fee, payout, err := e.fees.SellPayout(base, req.Discount)
		if err != nil {
			return err
		}
		if payout < req.MinValueReturn {
			return &curve.SlippageError{Amount: req.Amount, Limit: req.MinValueReturn, Actual: payout, Err: curve.ErrPriceBelowMinReturn}
		}
		if base > r.RealValue {
			return fmt.Errorf("%w: sell pays %d, vault holds %d", curve.ErrInsufficientLiquidity, base, r.RealValue)
		}

		if err := transferTokens(ctx, tx, c.Mint, ledger.Transfer{From: req.Seller, To: c.Vault.TokenAccount, Amount: req.Amount}); err != nil {
			return fmt.Errorf("failed to return tokens: %w", err)
		}
		if err := transferValue(ctx, tx, ledger.Transfer{From: c.Vault.ValueAccount, To: req.Seller, Amount: payout, Vault: &c.Vault}); err != nil {
			return fmt.Errorf("failed to pay seller: %w", err)
		}
		if err := transferValue(ctx, tx, ledger.Transfer{From: c.Vault.ValueAccount, To: e.params.FeeCollector, Amount: fee, Vault: &c.Vault}); err != nil {
			return fmt.Errorf("failed to pay fee: %w", err)
		}

		after, err := tx.Reserves(ctx, c.Vault)
		if err != nil {
			return fmt.Errorf("failed to read reserves: %w", err)
		}
		res = SellResult{ValueReturned: payout, Fee: fee}
		trade = TradeRecord{
			ID:         uuid.NewString(),
			Side:       SideSell,
			Mint:       c.Mint,
			Trader:     req.Seller,
			Amount:     req.Amount,
			Value:      payout,
			Fee:        fee,
			Discount:   req.Discount,
			Reserves:   after,
			ExecutedAt: e.now(),
		}
		return nil
	})
	if err != nil {
		e.logger.Warn("Sell failed",
			zap.String("mint", req.Mint.String()),
			zap.String("seller", req.Seller.String()),
			zap.Uint64("amount", req.Amount),
			zap.String("code", curve.Code(err)),
			zap.Error(err))
		return SellResult{}, &curve.TradeError{Op: "sell", Mint: req.Mint, Err: err}
	}

	e.logger.Info("Sell executed",
		zap.String("mint", req.Mint.String()),
		zap.String("seller", req.Seller.String()),
		zap.Uint64("amount", req.Amount),
		zap.Uint64("value_returned", res.ValueReturned),
		zap.Uint64("fee", res.Fee))

	e.publisher.TradeExecuted(trade)
	return res, nil
}

// QuoteBuy prices a buy of amount tokens without executing it.
func (e *Engine) QuoteBuy(ctx context.Context, mint solana.PublicKey, amount uint64) (Quote, error) {
	q := Quote{Amount: amount}
	err := e.quote(ctx, "quote_buy", mint, func(tx ledger.Tx) error {
		_, strat, r, err := e.activeCurve(ctx, tx, mint)
		if err != nil {
			return err
		}
		if q.Base, err = strat.BuyPrice(r, amount); err != nil {
			return err
		}
		q.Fee, q.Total, err = e.fees.BuyTotal(q.Base, false)
		return err
	})
	return q, err
}

// QuoteSell prices a sell of amount tokens without executing it.
func (e *Engine) QuoteSell(ctx context.Context, mint solana.PublicKey, amount uint64) (Quote, error) {
	q := Quote{Amount: amount}
	err := e.quote(ctx, "quote_sell", mint, func(tx ledger.Tx) error {
		_, strat, r, err := e.activeCurve(ctx, tx, mint)
		if err != nil {
			return err
		}
		if q.Base, err = strat.SellPrice(r, amount); err != nil {
			return err
		}
		q.Fee, q.Total, err = e.fees.SellPayout(q.Base, false)
		return err
	})
	return q, err
}

// QuoteTokensForValue returns how many tokens value buys before fees.
func (e *Engine) QuoteTokensForValue(ctx context.Context, mint solana.PublicKey, value uint64) (uint64, error) {
	var tokens uint64
	err := e.quote(ctx, "quote_tokens", mint, func(tx ledger.Tx) error {
		_, strat, r, err := e.activeCurve(ctx, tx, mint)
		if err != nil {
			return err
		}
		tokens, err = strat.TokensForValue(r, value)
		return err
	})
	return tokens, err
}

func (e *Engine) quote(ctx context.Context, op string, mint solana.PublicKey, fn func(tx ledger.Tx) error) error {
	if err := e.view(ctx, mint, fn); err != nil {
		e.logger.Debug("Quote rejected",
			zap.String("op", op),
			zap.String("mint", mint.String()),
			zap.Error(err))
		return &curve.TradeError{Op: op, Mint: mint, Err: err}
	}
	return nil
}

func (e *Engine) activeCurve(ctx context.Context, tx ledger.Tx, mint solana.PublicKey) (*curve.Curve, pricing.Strategy, curve.Reserves, error) {
	c, strat, r, err := e.load(ctx, tx, mint)
	if err != nil {
		return nil, nil, curve.Reserves{}, err
	}
	if !c.Active() {
		return nil, nil, curve.Reserves{}, curve.ErrMigrationComplete
	}
	return c, strat, r, nil
}

// transferValue and transferTokens skip empty transfers.
func transferValue(ctx context.Context, tx ledger.Tx, t ledger.Transfer) error {
	if t.Amount == 0 {
		return nil
	}
	_, err := tx.TransferValue(ctx, t)
	return err
}

func transferTokens(ctx context.Context, tx ledger.Tx, mint solana.PublicKey, t ledger.Transfer) error {
	if t.Amount == 0 {
		return nil
	}
	_, err := tx.TransferTokens(ctx, mint, t)
	return err
}
