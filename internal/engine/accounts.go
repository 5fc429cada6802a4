// internal/engine/accounts.go
package engine

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondcurve/internal/curve"
	"github.com/rovshanmuradov/bondcurve/internal/ledger"
)

// Balance is what one account holds. Tokens is set only when Mint is.
type Balance struct {
	Account solana.PublicKey  `json:"account"`
	Value   uint64            `json:"value"`
	Mint    *solana.PublicKey `json:"mint,omitempty"`
	Tokens  uint64            `json:"tokens,omitempty"`
}

// Deposit credits settlement value to a plain account and returns its new
// balance. Vault accounts cannot be funded this way.
func (e *Engine) Deposit(ctx context.Context, account solana.PublicKey, amount uint64) (uint64, error) {
	if amount == 0 || account.IsZero() {
		return 0, fmt.Errorf("deposit to %s: %w", account, curve.ErrInvalidAmount)
	}

	var bal uint64
	err := e.store.Atomic(ctx, func(tx ledger.Tx) error {
		var err error
		bal, err = tx.Deposit(ctx, account, amount)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("deposit to %s: %w", account, err)
	}

	e.logger.Info("Deposit credited",
		zap.String("account", account.String()),
		zap.Uint64("amount", amount),
		zap.Uint64("balance", bal))
	return bal, nil
}

// Balance reads the value balance of account and, for a non-zero mint, its
// token balance of that mint.
func (e *Engine) Balance(ctx context.Context, account, mint solana.PublicKey) (Balance, error) {
	b := Balance{Account: account}
	err := e.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		if b.Value, err = tx.ValueBalance(ctx, account); err != nil {
			return err
		}
		if mint.IsZero() {
			return nil
		}
		b.Mint = &mint
		b.Tokens, err = tx.TokenBalance(ctx, mint, account)
		return err
	})
	return b, err
}
