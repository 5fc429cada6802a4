// =============================
// File: internal/ledger/ledger.go
// =============================
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/bondcurve/internal/curve"
)

// Seeds used to derive the per-curve accounts under the program id.
var (
	SeedValueVault = []byte("sol_vault")
	SeedTokenVault = []byte("token_vault")
)

// ErrReadOnly is returned when a View transaction attempts a mutation.
var ErrReadOnly = errors.New("ledger: read-only transaction")

// Transfer moves Amount from From to To. Vault must be set when From is one
// of a curve's vault accounts.
type Transfer struct {
	From   solana.PublicKey
	To     solana.PublicKey
	Amount uint64
	Vault  *curve.Vault
}

// Tx is a unit of work against the ledger. Every method observes the
// writes made earlier in the same transaction.
type Tx interface {
	// Curve returns a copy of the stored curve or curve.ErrCurveNotFound.
	Curve(ctx context.Context, mint solana.PublicKey) (*curve.Curve, error)
	PutCurve(ctx context.Context, c *curve.Curve) error

	// OpenVault creates the value and token vaults for mint and returns the
	// capability that authorizes outflows from them.
	OpenVault(ctx context.Context, mint solana.PublicKey) (curve.Vault, error)
	// MintTo creates amount new token units in the vault's token account.
	MintTo(ctx context.Context, vault curve.Vault, amount uint64) error

	// Reserves reads the current real balances of a curve's vaults.
	Reserves(ctx context.Context, vault curve.Vault) (curve.Reserves, error)

	// TransferValue and TransferTokens return the receiver's balance after
	// the transfer, or fail without moving anything.
	TransferValue(ctx context.Context, t Transfer) (uint64, error)
	TransferTokens(ctx context.Context, mint solana.PublicKey, t Transfer) (uint64, error)

	// Deposit credits external value to an account.
	Deposit(ctx context.Context, account solana.PublicKey, amount uint64) (uint64, error)
	ValueBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	TokenBalance(ctx context.Context, mint, account solana.PublicKey) (uint64, error)
}

// Store runs transactions. Atomic commits every write made by fn or none of
// them; View runs fn against a read-only snapshot.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
}

// DeriveVault computes the deterministic vault accounts for mint.
func DeriveVault(programID, mint solana.PublicKey) (curve.Vault, error) {
	value, _, err := solana.FindProgramAddress([][]byte{SeedValueVault, mint.Bytes()}, programID)
	if err != nil {
		return curve.Vault{}, fmt.Errorf("failed to derive value vault: %w", err)
	}
	token, _, err := solana.FindProgramAddress([][]byte{SeedTokenVault, mint.Bytes()}, programID)
	if err != nil {
		return curve.Vault{}, fmt.Errorf("failed to derive token vault: %w", err)
	}
	return curve.Vault{Mint: mint, ValueAccount: value, TokenAccount: token}, nil
}

// Authorize checks that t carries the grant of owner, the vault that owns
// t.From. A nil owner means t.From is a plain account.
func Authorize(owner *curve.Vault, t Transfer) error {
	if owner == nil {
		return nil
	}
	if t.Vault == nil || t.Vault.Grant != owner.Grant || !t.Vault.Mint.Equals(owner.Mint) {
		return fmt.Errorf("%w: transfer out of %s", curve.ErrUnauthorizedVault, t.From)
	}
	return nil
}
