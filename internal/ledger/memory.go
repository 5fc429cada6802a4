// internal/ledger/memory.go
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/rovshanmuradov/bondcurve/internal/curve"
)

type tokenKey struct {
	mint    solana.PublicKey
	account solana.PublicKey
}

// MemoryStore is an in-process ledger. Atomic transactions are serialized
// and journaled; a failed transaction replays its journal backwards.
type MemoryStore struct {
	mu        sync.RWMutex
	programID solana.PublicKey

	curves map[solana.PublicKey]*curve.Curve
	vaults map[solana.PublicKey]*curve.Vault // vault account -> owning vault
	value  map[solana.PublicKey]uint64
	tokens map[tokenKey]uint64
}

// NewMemoryStore creates an empty ledger deriving vaults under programID.
func NewMemoryStore(programID solana.PublicKey) *MemoryStore {
	return &MemoryStore{
		programID: programID,
		curves:    make(map[solana.PublicKey]*curve.Curve),
		vaults:    make(map[solana.PublicKey]*curve.Vault),
		value:     make(map[solana.PublicKey]uint64),
		tokens:    make(map[tokenKey]uint64),
	}
}

func (s *MemoryStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *MemoryStore) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&memTx{store: s, readOnly: true})
}

type memTx struct {
	store    *MemoryStore
	readOnly bool
	undo     []func()
}

func (tx *memTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *memTx) writable() error {
	if tx.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (tx *memTx) setValue(account solana.PublicKey, v uint64) {
	prev, ok := tx.store.value[account]
	tx.undo = append(tx.undo, func() {
		if ok {
			tx.store.value[account] = prev
		} else {
			delete(tx.store.value, account)
		}
	})
	tx.store.value[account] = v
}

func (tx *memTx) setTokens(key tokenKey, v uint64) {
	prev, ok := tx.store.tokens[key]
	tx.undo = append(tx.undo, func() {
		if ok {
			tx.store.tokens[key] = prev
		} else {
			delete(tx.store.tokens, key)
		}
	})
	tx.store.tokens[key] = v
}

func copyCurve(c *curve.Curve) *curve.Curve {
	cp := *c
	if c.MigratedAt != nil {
		t := *c.MigratedAt
		cp.MigratedAt = &t
	}
	return &cp
}

func (tx *memTx) Curve(_ context.Context, mint solana.PublicKey) (*curve.Curve, error) {
	c, ok := tx.store.curves[mint]
	if !ok {
		return nil, fmt.Errorf("%w: %s", curve.ErrCurveNotFound, mint)
	}
	return copyCurve(c), nil
}

func (tx *memTx) PutCurve(_ context.Context, c *curve.Curve) error {
	if err := tx.writable(); err != nil {
		return err
	}
	prev, ok := tx.store.curves[c.Mint]
	tx.undo = append(tx.undo, func() {
		if ok {
			tx.store.curves[c.Mint] = prev
		} else {
			delete(tx.store.curves, c.Mint)
		}
	})
	tx.store.curves[c.Mint] = copyCurve(c)
	return nil
}

func (tx *memTx) OpenVault(_ context.Context, mint solana.PublicKey) (curve.Vault, error) {
	if err := tx.writable(); err != nil {
		return curve.Vault{}, err
	}
	v, err := DeriveVault(tx.store.programID, mint)
	if err != nil {
		return curve.Vault{}, err
	}
	if _, exists := tx.store.vaults[v.ValueAccount]; exists {
		return curve.Vault{}, fmt.Errorf("%w: vault for %s already open", curve.ErrCurveExists, mint)
	}
	v.Grant = uuid.NewString()

	owner := v
	tx.store.vaults[v.ValueAccount] = &owner
	tx.store.vaults[v.TokenAccount] = &owner
	tx.undo = append(tx.undo, func() {
		delete(tx.store.vaults, v.ValueAccount)
		delete(tx.store.vaults, v.TokenAccount)
	})
	return v, nil
}

func (tx *memTx) MintTo(_ context.Context, vault curve.Vault, amount uint64) error {
	if err := tx.writable(); err != nil {
		return err
	}
	if err := Authorize(tx.store.vaults[vault.TokenAccount], Transfer{From: vault.TokenAccount, Vault: &vault}); err != nil {
		return err
	}
	key := tokenKey{mint: vault.Mint, account: vault.TokenAccount}
	bal := tx.store.tokens[key]
	if bal+amount < bal {
		return fmt.Errorf("%w: mint %d onto %d", curve.ErrMathOverflow, amount, bal)
	}
	tx.setTokens(key, bal+amount)
	return nil
}

func (tx *memTx) Reserves(_ context.Context, vault curve.Vault) (curve.Reserves, error) {
	return curve.Reserves{
		RealValue:  tx.store.value[vault.ValueAccount],
		RealTokens: tx.store.tokens[tokenKey{mint: vault.Mint, account: vault.TokenAccount}],
	}, nil
}

func (tx *memTx) TransferValue(_ context.Context, t Transfer) (uint64, error) {
	if err := tx.writable(); err != nil {
		return 0, err
	}
	if err := Authorize(tx.store.vaults[t.From], t); err != nil {
		return 0, err
	}
	from, to := tx.store.value[t.From], tx.store.value[t.To]
	if t.From.Equals(t.To) {
		return to, nil
	}
	if from < t.Amount {
		return 0, fmt.Errorf("%w: %s holds %d, needs %d", curve.ErrInsufficientFunds, t.From, from, t.Amount)
	}
	if to+t.Amount < to {
		return 0, fmt.Errorf("%w: credit %d to %s", curve.ErrMathOverflow, t.Amount, t.To)
	}
	tx.setValue(t.From, from-t.Amount)
	tx.setValue(t.To, to+t.Amount)
	return to + t.Amount, nil
}

func (tx *memTx) TransferTokens(_ context.Context, mint solana.PublicKey, t Transfer) (uint64, error) {
	if err := tx.writable(); err != nil {
		return 0, err
	}
	if err := Authorize(tx.store.vaults[t.From], t); err != nil {
		return 0, err
	}
	fromKey := tokenKey{mint: mint, account: t.From}
	toKey := tokenKey{mint: mint, account: t.To}
	from, to := tx.store.tokens[fromKey], tx.store.tokens[toKey]
	if t.From.Equals(t.To) {
		return to, nil
	}
	if from < t.Amount {
		return 0, fmt.Errorf("%w: %s holds %d of %s, needs %d", curve.ErrInsufficientFunds, t.From, from, mint, t.Amount)
	}
	if to+t.Amount < to {
		return 0, fmt.Errorf("%w: credit %d to %s", curve.ErrMathOverflow, t.Amount, t.To)
	}
	tx.setTokens(fromKey, from-t.Amount)
	tx.setTokens(toKey, to+t.Amount)
	return to + t.Amount, nil
}

func (tx *memTx) Deposit(_ context.Context, account solana.PublicKey, amount uint64) (uint64, error) {
	if err := tx.writable(); err != nil {
		return 0, err
	}
	if _, isVault := tx.store.vaults[account]; isVault {
		return 0, fmt.Errorf("%w: deposit into vault %s", curve.ErrUnauthorizedVault, account)
	}
	bal := tx.store.value[account]
	if bal+amount < bal {
		return 0, fmt.Errorf("%w: deposit %d to %s", curve.ErrMathOverflow, amount, account)
	}
	tx.setValue(account, bal+amount)
	return bal + amount, nil
}

func (tx *memTx) ValueBalance(_ context.Context, account solana.PublicKey) (uint64, error) {
	return tx.store.value[account], nil
}

func (tx *memTx) TokenBalance(_ context.Context, mint, account solana.PublicKey) (uint64, error) {
	return tx.store.tokens[tokenKey{mint: mint, account: account}], nil
}
