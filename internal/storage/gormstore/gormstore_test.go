package gormstore

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/rovshanmuradov/bondcurve/internal/curve"
	"github.com/rovshanmuradov/bondcurve/internal/engine"
	"github.com/rovshanmuradov/bondcurve/internal/ledger"
	"github.com/rovshanmuradov/bondcurve/internal/storage"
	"github.com/rovshanmuradov/bondcurve/internal/storage/models"
	"github.com/rovshanmuradov/bondcurve/internal/venue"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, ":memory:", curve.DefaultProgramID, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func openVault(t *testing.T, s *Store, mint solana.PublicKey, supply uint64) curve.Vault {
	t.Helper()
	var v curve.Vault
	require.NoError(t, s.Atomic(context.Background(), func(tx ledger.Tx) error {
		var err error
		if v, err = tx.OpenVault(context.Background(), mint); err != nil {
			return err
		}
		return tx.MintTo(context.Background(), v, supply)
	}))
	return v
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "", curve.DefaultProgramID, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestCurveRowLocking(t *testing.T) {
	ctx := context.Background()
	pg, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=127.0.0.1 user=bondcurve dbname=bondcurve sslmode=disable"}),
		&gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	pgStore := &Store{db: pg, driver: DriverPostgres}

	sqlite := newTestStore(t)
	sqliteStore := &Store{db: sqlite.db.Session(&gorm.Session{DryRun: true}), driver: DriverSQLite}

	tests := []struct {
		name     string
		tx       *gormTx
		wantLock bool
	}{
		{"postgres write", &gormTx{db: pgStore.db, store: pgStore}, true},
		{"postgres read", &gormTx{db: pgStore.db, store: pgStore, readOnly: true}, false},
		{"sqlite write", &gormTx{db: sqliteStore.db, store: sqliteStore}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := tt.tx.curveQuery(ctx).Where("mint = ?", "mint").First(&models.Curve{}).Statement
			sql := stmt.SQL.String()
			assert.Contains(t, sql, "curves")
			if tt.wantLock {
				assert.Contains(t, sql, "FOR UPDATE")
			} else {
				assert.NotContains(t, sql, "FOR UPDATE")
			}
		})
	}
}

func TestCurveRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mint := solana.NewWallet().PublicKey()
	v := openVault(t, s, mint, 1_000)

	c := &curve.Curve{
		Mint:    mint,
		Creator: solana.NewWallet().PublicKey(),
		Config: curve.Config{
			Type:            curve.TypeLinear,
			BasePrice:       10,
			Slope:           3,
			MigrationStatus: curve.StatusActive,
			IsSubscribed:    true,
			Developer:       solana.NewWallet().PublicKey(),
		},
		TotalSupply: 1_000,
		Vault:       v,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.Atomic(ctx, func(tx ledger.Tx) error { return tx.PutCurve(ctx, c) }))

	var got *curve.Curve
	require.NoError(t, s.View(ctx, func(tx ledger.Tx) error {
		var err error
		got, err = tx.Curve(ctx, mint)
		return err
	}))
	assert.Equal(t, c.Config, got.Config)
	assert.Equal(t, c.Vault, got.Vault)
	assert.True(t, c.CreatedAt.Equal(got.CreatedAt))
	assert.Nil(t, got.MigratedAt)

	// update in place
	now := time.Now().UTC().Truncate(time.Second)
	c.Config.MigrationStatus = curve.StatusMigrated
	c.MigratedAt = &now
	require.NoError(t, s.Atomic(ctx, func(tx ledger.Tx) error { return tx.PutCurve(ctx, c) }))
	require.NoError(t, s.View(ctx, func(tx ledger.Tx) error {
		var err error
		got, err = tx.Curve(ctx, mint)
		return err
	}))
	assert.Equal(t, curve.StatusMigrated, got.Config.MigrationStatus)
	require.NotNil(t, got.MigratedAt)
	assert.True(t, now.Equal(*got.MigratedAt))

	err := s.View(ctx, func(tx ledger.Tx) error {
		_, err := tx.Curve(ctx, solana.NewWallet().PublicKey())
		return err
	})
	assert.ErrorIs(t, err, curve.ErrCurveNotFound)
}

func TestTransfersAndAuthority(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mint := solana.NewWallet().PublicKey()
	v := openVault(t, s, mint, 1_000)
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()

	require.NoError(t, s.Atomic(ctx, func(tx ledger.Tx) error {
		bal, err := tx.Deposit(ctx, alice, 500)
		require.NoError(t, err)
		assert.Equal(t, uint64(500), bal)

		bal, err = tx.TransferValue(ctx, ledger.Transfer{From: alice, To: v.ValueAccount, Amount: 200})
		require.NoError(t, err)
		assert.Equal(t, uint64(200), bal)

		bal, err = tx.TransferTokens(ctx, mint, ledger.Transfer{From: v.TokenAccount, To: bob, Amount: 300, Vault: &v})
		require.NoError(t, err)
		assert.Equal(t, uint64(300), bal)
		return nil
	}))

	err := s.Atomic(ctx, func(tx ledger.Tx) error {
		_, err := tx.TransferTokens(ctx, mint, ledger.Transfer{From: v.TokenAccount, To: bob, Amount: 1})
		return err
	})
	assert.ErrorIs(t, err, curve.ErrUnauthorizedVault)

	forged := v
	forged.Grant = uuid.NewString()
	err = s.Atomic(ctx, func(tx ledger.Tx) error {
		_, err := tx.TransferValue(ctx, ledger.Transfer{From: v.ValueAccount, To: bob, Amount: 1, Vault: &forged})
		return err
	})
	assert.ErrorIs(t, err, curve.ErrUnauthorizedVault)

	err = s.Atomic(ctx, func(tx ledger.Tx) error {
		_, err := tx.Deposit(ctx, v.ValueAccount, 1)
		return err
	})
	assert.ErrorIs(t, err, curve.ErrUnauthorizedVault)

	err = s.Atomic(ctx, func(tx ledger.Tx) error {
		_, err := tx.TransferValue(ctx, ledger.Transfer{From: alice, To: bob, Amount: 301})
		return err
	})
	assert.ErrorIs(t, err, curve.ErrInsufficientFunds)

	err = s.Atomic(ctx, func(tx ledger.Tx) error {
		_, err := tx.Deposit(ctx, bob, math.MaxUint64)
		return err
	})
	assert.ErrorIs(t, err, curve.ErrMathOverflow)

	require.NoError(t, s.View(ctx, func(tx ledger.Tx) error {
		r, err := tx.Reserves(ctx, v)
		require.NoError(t, err)
		assert.Equal(t, curve.Reserves{RealValue: 200, RealTokens: 700}, r)

		a, err := tx.ValueBalance(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, uint64(300), a)

		_, err = tx.Deposit(ctx, alice, 1)
		assert.ErrorIs(t, err, ledger.ErrReadOnly)
		return nil
	}))
}

func TestOpenVaultTwice(t *testing.T) {
	s := newTestStore(t)
	mint := solana.NewWallet().PublicKey()
	openVault(t, s, mint, 10)

	err := s.Atomic(context.Background(), func(tx ledger.Tx) error {
		_, err := tx.OpenVault(context.Background(), mint)
		return err
	})
	assert.ErrorIs(t, err, curve.ErrCurveExists)
}

func TestAtomicRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acct := solana.NewWallet().PublicKey()
	boom := errors.New("boom")

	err := s.Atomic(ctx, func(tx ledger.Tx) error {
		if _, err := tx.Deposit(ctx, acct, 100); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(tx ledger.Tx) error {
		bal, err := tx.ValueBalance(ctx, acct)
		require.NoError(t, err)
		assert.Zero(t, bal)
		return nil
	}))
}

func TestEngineMigrationOnSQL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	params := curve.DefaultParams()
	params.FeeCollector = solana.NewWallet().PublicKey()
	params.MigrationAdmin = solana.NewWallet().PublicKey()
	v := venue.NewStatic(params.VenueProgramID, logger)

	e, err := engine.New(s, v, params, nil, logger)
	require.NoError(t, err)

	c, err := e.CreateCurve(ctx, engine.CreateRequest{
		Mint:        solana.NewWallet().PublicKey(),
		Creator:     solana.NewWallet().PublicKey(),
		Config:      curve.Config{Type: curve.TypeConstantProduct, BasePrice: 1},
		TotalSupply: 1_000_000_000_000,
	})
	require.NoError(t, err)

	buyer := solana.NewWallet().PublicKey()
	require.NoError(t, s.Atomic(ctx, func(tx ledger.Tx) error {
		_, err := tx.Deposit(ctx, buyer, 200_000_000_000)
		return err
	}))

	res, err := e.Buy(ctx, engine.BuyRequest{Mint: c.Mint, Buyer: buyer, Amount: 800_000_000_000, MaxValueCost: math.MaxUint64})
	require.NoError(t, err)
	assert.True(t, res.Migrated)
	assert.Equal(t, uint64(121_200_000_000), res.ValuePaid)

	status, err := e.MigrationStatus(ctx, c.Mint)
	require.NoError(t, err)
	assert.Equal(t, curve.StatusMigrated, status)

	accounts, err := v.PoolAccounts(c.Mint)
	require.NoError(t, err)
	require.NoError(t, s.View(ctx, func(tx ledger.Tx) error {
		pooled, err := tx.TokenBalance(ctx, c.Mint, accounts.TokenAccount)
		require.NoError(t, err)
		assert.Equal(t, uint64(159_798_051_200), pooled)

		buyerValue, err := tx.ValueBalance(ctx, buyer)
		require.NoError(t, err)
		assert.Equal(t, uint64(200_000_000_000-121_200_000_000), buyerValue)
		return nil
	}))
}

func TestHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mint := solana.NewWallet().PublicKey()
	trader := solana.NewWallet().PublicKey()
	start := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.SaveTrade(ctx, engine.TradeRecord{
			ID:         uuid.NewString(),
			Side:       engine.SideBuy,
			Mint:       mint,
			Trader:     trader,
			Amount:     uint64(i + 1),
			Value:      10,
			Reserves:   curve.Reserves{RealValue: 10, RealTokens: 5},
			ExecutedAt: start.Add(time.Duration(i) * time.Minute),
		}))
	}

	trades, err := s.ListTrades(ctx, mint, 2, 0)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, uint64(3), trades[0].Amount)
	assert.Equal(t, uint64(2), trades[1].Amount)
	assert.Equal(t, trader, trades[0].Trader)
	assert.Equal(t, curve.Reserves{RealValue: 10, RealTokens: 5}, trades[0].Reserves)

	trades, err = s.ListTrades(ctx, mint, 0, 2)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, uint64(1), trades[0].Amount)

	_, err = s.Migration(ctx, mint)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	rec := engine.MigrationRecord{
		Mint:           mint,
		Pool:           solana.NewWallet().PublicKey(),
		RealValueMoved: 100,
		TokensMoved:    200,
		EffectivePrice: 500_000,
		MigratedAt:     start,
	}
	require.NoError(t, s.SaveMigration(ctx, rec))
	got, err := s.Migration(ctx, mint)
	require.NoError(t, err)
	assert.Equal(t, rec.Pool, got.Pool)
	assert.Equal(t, rec.EffectivePrice, got.EffectivePrice)
	assert.True(t, rec.MigratedAt.Equal(got.MigratedAt))

	assert.Error(t, s.SaveMigration(ctx, rec))
}
