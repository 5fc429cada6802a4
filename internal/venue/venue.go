// =============================
// File: internal/venue/venue.go
// =============================
package venue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// ErrPoolExists is returned when a pool for the mint is already open.
var ErrPoolExists = errors.New("venue: pool already exists")

// PoolAccounts are the venue-side accounts that receive migrated liquidity.
type PoolAccounts struct {
	Pool         solana.PublicKey `json:"pool"`
	TokenAccount solana.PublicKey `json:"token_account"`
	ValueAccount solana.PublicKey `json:"value_account"`
	FeeAccount   solana.PublicKey `json:"fee_account"`
}

// PoolSeed describes the liquidity deposited into a new pool.
type PoolSeed struct {
	Mint     solana.PublicKey
	Accounts PoolAccounts
	Tokens   uint64
	Value    uint64
	Price    uint64 // value per whole token at migration
}

// Pool is an opened venue pool.
type Pool struct {
	PoolSeed
	OpenedAt time.Time
}

// Venue is the external liquidity venue curves migrate to.
type Venue interface {
	PoolAccounts(mint solana.PublicKey) (PoolAccounts, error)
	OpenPool(ctx context.Context, seed PoolSeed) (Pool, error)
	// CancelPool withdraws a pool whose opening transaction did not commit.
	CancelPool(ctx context.Context, mint solana.PublicKey) error
}

// Static is a venue that derives pool accounts from its program id and keeps
// opened pools in memory.
type Static struct {
	programID solana.PublicKey
	logger    *zap.Logger

	mu    sync.RWMutex
	pools map[solana.PublicKey]Pool
}

func NewStatic(programID solana.PublicKey, logger *zap.Logger) *Static {
	return &Static{
		programID: programID,
		logger:    logger.Named("venue"),
		pools:     make(map[solana.PublicKey]Pool),
	}
}

func (s *Static) PoolAccounts(mint solana.PublicKey) (PoolAccounts, error) {
	derive := func(seed string, extra ...[]byte) (solana.PublicKey, error) {
		seeds := append([][]byte{[]byte(seed)}, extra...)
		addr, _, err := solana.FindProgramAddress(seeds, s.programID)
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("failed to derive %s address: %w", seed, err)
		}
		return addr, nil
	}

	var (
		acc PoolAccounts
		err error
	)
	if acc.Pool, err = derive("pool", mint.Bytes()); err != nil {
		return PoolAccounts{}, err
	}
	if acc.TokenAccount, err = derive("pool_vault", acc.Pool.Bytes(), mint.Bytes()); err != nil {
		return PoolAccounts{}, err
	}
	if acc.ValueAccount, err = derive("pool_vault", acc.Pool.Bytes(), solana.SolMint.Bytes()); err != nil {
		return PoolAccounts{}, err
	}
	if acc.FeeAccount, err = derive("create_pool_fee"); err != nil {
		return PoolAccounts{}, err
	}
	return acc, nil
}

func (s *Static) OpenPool(_ context.Context, seed PoolSeed) (Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.pools[seed.Mint]; exists {
		return Pool{}, fmt.Errorf("%w: %s", ErrPoolExists, seed.Mint)
	}
	p := Pool{PoolSeed: seed, OpenedAt: time.Now().UTC()}
	s.pools[seed.Mint] = p

	s.logger.Info("Pool opened",
		zap.String("mint", seed.Mint.String()),
		zap.String("pool", seed.Accounts.Pool.String()),
		zap.Uint64("tokens", seed.Tokens),
		zap.Uint64("value", seed.Value),
		zap.Uint64("price", seed.Price))
	return p, nil
}

// Pool returns the pool opened for mint, if any.
func (s *Static) Pool(mint solana.PublicKey) (Pool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pools[mint]
	return p, ok
}

func (s *Static) CancelPool(_ context.Context, mint solana.PublicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pools[mint]; ok {
		delete(s.pools, mint)
		s.logger.Warn("Pool cancelled", zap.String("mint", mint.String()))
	}
	return nil
}
