package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/bondcurve/internal/curve"
)

func newVault(t *testing.T, s *MemoryStore, mint solana.PublicKey, supply uint64) curve.Vault {
	t.Helper()
	var v curve.Vault
	err := s.Atomic(context.Background(), func(tx Tx) error {
		var err error
		if v, err = tx.OpenVault(context.Background(), mint); err != nil {
			return err
		}
		return tx.MintTo(context.Background(), v, supply)
	})
	require.NoError(t, err)
	return v
}

func TestDeriveVaultDeterministic(t *testing.T) {
	mint := solana.NewWallet().PublicKey()

	a, err := DeriveVault(curve.DefaultProgramID, mint)
	require.NoError(t, err)
	b, err := DeriveVault(curve.DefaultProgramID, mint)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.False(t, a.ValueAccount.Equals(a.TokenAccount))
	assert.Empty(t, a.Grant)
}

func TestMemoryStoreVaultLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(curve.DefaultProgramID)
	mint := solana.NewWallet().PublicKey()
	v := newVault(t, s, mint, 1_000)
	assert.NotEmpty(t, v.Grant)

	err := s.View(ctx, func(tx Tx) error {
		r, err := tx.Reserves(ctx, v)
		require.NoError(t, err)
		assert.Equal(t, curve.Reserves{RealValue: 0, RealTokens: 1_000}, r)
		return nil
	})
	require.NoError(t, err)

	err = s.Atomic(ctx, func(tx Tx) error {
		_, err := tx.OpenVault(ctx, mint)
		return err
	})
	assert.ErrorIs(t, err, curve.ErrCurveExists)
}

func TestMemoryStoreVaultAuthority(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(curve.DefaultProgramID)
	mint := solana.NewWallet().PublicKey()
	v := newVault(t, s, mint, 1_000)
	thief := solana.NewWallet().PublicKey()

	forged := v
	forged.Grant = "forged"

	tests := []struct {
		name  string
		vault *curve.Vault
		err   error
	}{
		{name: "no capability", vault: nil, err: curve.ErrUnauthorizedVault},
		{name: "forged grant", vault: &forged, err: curve.ErrUnauthorizedVault},
		{name: "issued grant", vault: &v},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Atomic(ctx, func(tx Tx) error {
				_, err := tx.TransferTokens(ctx, mint, Transfer{From: v.TokenAccount, To: thief, Amount: 1, Vault: tt.vault})
				return err
			})
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			assert.NoError(t, err)
		})
	}

	err := s.Atomic(ctx, func(tx Tx) error {
		_, err := tx.Deposit(ctx, v.ValueAccount, 10)
		return err
	})
	assert.ErrorIs(t, err, curve.ErrUnauthorizedVault)
}

func TestMemoryStoreTransfers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(curve.DefaultProgramID)
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()

	err := s.Atomic(ctx, func(tx Tx) error {
		bal, err := tx.Deposit(ctx, alice, 100)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), bal)

		got, err := tx.TransferValue(ctx, Transfer{From: alice, To: bob, Amount: 40})
		require.NoError(t, err)
		assert.Equal(t, uint64(40), got)

		_, err = tx.TransferValue(ctx, Transfer{From: alice, To: bob, Amount: 61})
		assert.ErrorIs(t, err, curve.ErrInsufficientFunds)
		return nil
	})
	require.NoError(t, err)

	err = s.View(ctx, func(tx Tx) error {
		a, _ := tx.ValueBalance(ctx, alice)
		b, _ := tx.ValueBalance(ctx, bob)
		assert.Equal(t, uint64(60), a)
		assert.Equal(t, uint64(40), b)

		_, err := tx.Deposit(ctx, alice, 1)
		assert.ErrorIs(t, err, ErrReadOnly)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStoreRollback(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(curve.DefaultProgramID)
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()

	require.NoError(t, s.Atomic(ctx, func(tx Tx) error {
		_, err := tx.Deposit(ctx, alice, 100)
		return err
	}))

	boom := errors.New("boom")
	err := s.Atomic(ctx, func(tx Tx) error {
		if _, err := tx.TransferValue(ctx, Transfer{From: alice, To: bob, Amount: 70}); err != nil {
			return err
		}
		v, err := tx.OpenVault(ctx, mint)
		if err != nil {
			return err
		}
		if err := tx.MintTo(ctx, v, 5); err != nil {
			return err
		}
		if err := tx.PutCurve(ctx, &curve.Curve{Mint: mint, Vault: v}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.View(ctx, func(tx Tx) error {
		a, _ := tx.ValueBalance(ctx, alice)
		b, _ := tx.ValueBalance(ctx, bob)
		assert.Equal(t, uint64(100), a)
		assert.Zero(t, b)

		_, err := tx.Curve(ctx, mint)
		assert.ErrorIs(t, err, curve.ErrCurveNotFound)
		return nil
	})
	require.NoError(t, err)

	// the vault can be opened again after the rollback
	newVault(t, s, mint, 5)
}

func TestMemoryStoreCurveCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(curve.DefaultProgramID)
	c := &curve.Curve{Mint: solana.NewWallet().PublicKey(), TotalSupply: 10}

	require.NoError(t, s.Atomic(ctx, func(tx Tx) error { return tx.PutCurve(ctx, c) }))
	c.TotalSupply = 99

	require.NoError(t, s.View(ctx, func(tx Tx) error {
		got, err := tx.Curve(ctx, c.Mint)
		require.NoError(t, err)
		assert.Equal(t, uint64(10), got.TotalSupply)
		return nil
	}))
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemoryStore(curve.DefaultProgramID)
	err := s.Atomic(ctx, func(Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
