// internal/storage/gormstore/tx.go
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rovshanmuradov/bondcurve/internal/curve"
	"github.com/rovshanmuradov/bondcurve/internal/ledger"
	"github.com/rovshanmuradov/bondcurve/internal/storage/models"
)

const (
	vaultKindValue = "value"
	vaultKindToken = "token"
)

// gormTx implements ledger.Tx on one database transaction. Debits are
// conditional updates and credits are increments, so concurrent
// transactions touching the same account never lose an update.
type gormTx struct {
	db       *gorm.DB
	store    *Store
	readOnly bool
}

func (tx *gormTx) writable() error {
	if tx.readOnly {
		return ledger.ErrReadOnly
	}
	return nil
}

// curveQuery selects curve rows. Writable postgres transactions lock the row
// so instances sharing the database serialize trades on the same curve;
// sqlite already holds a database-wide write lock.
func (tx *gormTx) curveQuery(ctx context.Context) *gorm.DB {
	q := tx.db.WithContext(ctx)
	if !tx.readOnly && tx.store.driver == DriverPostgres {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (tx *gormTx) Curve(ctx context.Context, mint solana.PublicKey) (*curve.Curve, error) {
	var m models.Curve
	err := tx.curveQuery(ctx).Where("mint = ?", mint.String()).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", curve.ErrCurveNotFound, mint)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load curve: %w", err)
	}
	return curveFromModel(&m)
}

func (tx *gormTx) PutCurve(ctx context.Context, c *curve.Curve) error {
	if err := tx.writable(); err != nil {
		return err
	}
	m := curveToModel(c)

	var existing models.Curve
	err := tx.db.WithContext(ctx).Select("id", "created_at").Where("mint = ?", m.Mint).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = tx.db.WithContext(ctx).Create(m).Error
	case err == nil:
		m.ID = existing.ID
		m.CreatedAt = existing.CreatedAt
		err = tx.db.WithContext(ctx).Save(m).Error
	}
	if err != nil {
		return fmt.Errorf("failed to save curve: %w", err)
	}
	return nil
}

func (tx *gormTx) OpenVault(ctx context.Context, mint solana.PublicKey) (curve.Vault, error) {
	if err := tx.writable(); err != nil {
		return curve.Vault{}, err
	}
	v, err := ledger.DeriveVault(tx.store.programID, mint)
	if err != nil {
		return curve.Vault{}, err
	}

	var count int64
	if err := tx.db.WithContext(ctx).Model(&models.Vault{}).Where("mint = ?", mint.String()).Count(&count).Error; err != nil {
		return curve.Vault{}, fmt.Errorf("failed to check vault: %w", err)
	}
	if count > 0 {
		return curve.Vault{}, fmt.Errorf("%w: vault for %s already open", curve.ErrCurveExists, mint)
	}

	v.Grant = uuid.NewString()
	rows := []models.Vault{
		{Account: v.ValueAccount.String(), Mint: mint.String(), Kind: vaultKindValue, Grant: v.Grant},
		{Account: v.TokenAccount.String(), Mint: mint.String(), Kind: vaultKindToken, Grant: v.Grant},
	}
	if err := tx.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return curve.Vault{}, fmt.Errorf("failed to open vault: %w", err)
	}
	return v, nil
}

func (tx *gormTx) MintTo(ctx context.Context, vault curve.Vault, amount uint64) error {
	if err := tx.writable(); err != nil {
		return err
	}
	if err := tx.authorize(ctx, ledger.Transfer{From: vault.TokenAccount, Vault: &vault}); err != nil {
		return err
	}
	_, err := tx.creditTokens(ctx, vault.Mint, vault.TokenAccount, amount)
	return err
}

func (tx *gormTx) Reserves(ctx context.Context, vault curve.Vault) (curve.Reserves, error) {
	value, err := tx.ValueBalance(ctx, vault.ValueAccount)
	if err != nil {
		return curve.Reserves{}, err
	}
	tokens, err := tx.TokenBalance(ctx, vault.Mint, vault.TokenAccount)
	if err != nil {
		return curve.Reserves{}, err
	}
	return curve.Reserves{RealValue: value, RealTokens: tokens}, nil
}

func (tx *gormTx) TransferValue(ctx context.Context, t ledger.Transfer) (uint64, error) {
	if err := tx.writable(); err != nil {
		return 0, err
	}
	if err := tx.authorize(ctx, t); err != nil {
		return 0, err
	}
	if t.From.Equals(t.To) || t.Amount == 0 {
		return tx.ValueBalance(ctx, t.To)
	}

	res := tx.db.WithContext(ctx).Model(&models.ValueBalance{}).
		Where("account = ? AND amount >= ?", t.From.String(), t.Amount).
		Update("amount", gorm.Expr("amount - ?", t.Amount))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to debit %s: %w", t.From, res.Error)
	}
	if res.RowsAffected == 0 {
		have, _ := tx.ValueBalance(ctx, t.From)
		return 0, fmt.Errorf("%w: %s holds %d, needs %d", curve.ErrInsufficientFunds, t.From, have, t.Amount)
	}
	return tx.creditValue(ctx, t.To, t.Amount)
}

func (tx *gormTx) TransferTokens(ctx context.Context, mint solana.PublicKey, t ledger.Transfer) (uint64, error) {
	if err := tx.writable(); err != nil {
		return 0, err
	}
	if err := tx.authorize(ctx, t); err != nil {
		return 0, err
	}
	if t.From.Equals(t.To) || t.Amount == 0 {
		return tx.TokenBalance(ctx, mint, t.To)
	}

	res := tx.db.WithContext(ctx).Model(&models.TokenBalance{}).
		Where("mint = ? AND account = ? AND amount >= ?", mint.String(), t.From.String(), t.Amount).
		Update("amount", gorm.Expr("amount - ?", t.Amount))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to debit %s: %w", t.From, res.Error)
	}
	if res.RowsAffected == 0 {
		have, _ := tx.TokenBalance(ctx, mint, t.From)
		return 0, fmt.Errorf("%w: %s holds %d of %s, needs %d", curve.ErrInsufficientFunds, t.From, have, mint, t.Amount)
	}
	return tx.creditTokens(ctx, mint, t.To, t.Amount)
}

func (tx *gormTx) Deposit(ctx context.Context, account solana.PublicKey, amount uint64) (uint64, error) {
	if err := tx.writable(); err != nil {
		return 0, err
	}
	owner, err := tx.vaultOwner(ctx, account)
	if err != nil {
		return 0, err
	}
	if owner != nil {
		return 0, fmt.Errorf("%w: deposit into vault %s", curve.ErrUnauthorizedVault, account)
	}
	return tx.creditValue(ctx, account, amount)
}

func (tx *gormTx) ValueBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	var row models.ValueBalance
	err := tx.db.WithContext(ctx).Where("account = ?", account.String()).Limit(1).Find(&row).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read balance of %s: %w", account, err)
	}
	return row.Amount, nil
}

func (tx *gormTx) TokenBalance(ctx context.Context, mint, account solana.PublicKey) (uint64, error) {
	var row models.TokenBalance
	err := tx.db.WithContext(ctx).Where("mint = ? AND account = ?", mint.String(), account.String()).Limit(1).Find(&row).Error
	if err != nil {
		return 0, fmt.Errorf("failed to read token balance of %s: %w", account, err)
	}
	return row.Amount, nil
}

// Balances are int64 columns on every supported driver.
func checkCredit(have, amount uint64) error {
	if have+amount < have || have+amount > math.MaxInt64 {
		return fmt.Errorf("%w: credit %d onto %d", curve.ErrMathOverflow, amount, have)
	}
	return nil
}

func (tx *gormTx) creditValue(ctx context.Context, account solana.PublicKey, amount uint64) (uint64, error) {
	have, err := tx.ValueBalance(ctx, account)
	if err != nil {
		return 0, err
	}
	if err := checkCredit(have, amount); err != nil {
		return 0, err
	}
	row := models.ValueBalance{Account: account.String(), Amount: amount}
	err = tx.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"amount":     gorm.Expr("value_balances.amount + ?", amount),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&row).Error
	if err != nil {
		return 0, fmt.Errorf("failed to credit %s: %w", account, err)
	}
	return tx.ValueBalance(ctx, account)
}

func (tx *gormTx) creditTokens(ctx context.Context, mint, account solana.PublicKey, amount uint64) (uint64, error) {
	have, err := tx.TokenBalance(ctx, mint, account)
	if err != nil {
		return 0, err
	}
	if err := checkCredit(have, amount); err != nil {
		return 0, err
	}
	row := models.TokenBalance{Mint: mint.String(), Account: account.String(), Amount: amount}
	err = tx.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "mint"}, {Name: "account"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"amount":     gorm.Expr("token_balances.amount + ?", amount),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&row).Error
	if err != nil {
		return 0, fmt.Errorf("failed to credit %s: %w", account, err)
	}
	return tx.TokenBalance(ctx, mint, account)
}

// vaultOwner returns the vault that owns account, or nil for a plain account.
func (tx *gormTx) vaultOwner(ctx context.Context, account solana.PublicKey) (*curve.Vault, error) {
	var rows []models.Vault
	if err := tx.db.WithContext(ctx).Where("account = ?", account.String()).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to look up vault %s: %w", account, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	mint, err := solana.PublicKeyFromBase58(rows[0].Mint)
	if err != nil {
		return nil, fmt.Errorf("corrupt vault mint %q: %w", rows[0].Mint, err)
	}
	return &curve.Vault{Mint: mint, Grant: rows[0].Grant}, nil
}

func (tx *gormTx) authorize(ctx context.Context, t ledger.Transfer) error {
	owner, err := tx.vaultOwner(ctx, t.From)
	if err != nil {
		return err
	}
	return ledger.Authorize(owner, t)
}
