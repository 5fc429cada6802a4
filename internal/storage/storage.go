// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/bondcurve/internal/engine"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// History определяет интерфейс для журнала сделок и миграций
type History interface {
	SaveTrade(ctx context.Context, rec engine.TradeRecord) error
	// ListTrades returns trades of mint, newest first.
	ListTrades(ctx context.Context, mint solana.PublicKey, limit, offset int) ([]engine.TradeRecord, error)

	SaveMigration(ctx context.Context, rec engine.MigrationRecord) error
	Migration(ctx context.Context, mint solana.PublicKey) (engine.MigrationRecord, error)
}

// MemoryHistory keeps records in process memory.
type MemoryHistory struct {
	mu         sync.RWMutex
	trades     map[solana.PublicKey][]engine.TradeRecord
	migrations map[solana.PublicKey]engine.MigrationRecord
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{
		trades:     make(map[solana.PublicKey][]engine.TradeRecord),
		migrations: make(map[solana.PublicKey]engine.MigrationRecord),
	}
}

func (h *MemoryHistory) SaveTrade(_ context.Context, rec engine.TradeRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trades[rec.Mint] = append(h.trades[rec.Mint], rec)
	return nil
}

func (h *MemoryHistory) ListTrades(_ context.Context, mint solana.PublicKey, limit, offset int) ([]engine.TradeRecord, error) {
	h.mu.RLock()
	saved := h.trades[mint]
	all := make([]engine.TradeRecord, len(saved))
	for i, rec := range saved {
		all[len(saved)-1-i] = rec
	}
	h.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].ExecutedAt.After(all[j].ExecutedAt)
	})
	return page(all, limit, offset), nil
}

func (h *MemoryHistory) SaveMigration(_ context.Context, rec engine.MigrationRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.migrations[rec.Mint]; exists {
		return fmt.Errorf("migration of %s already recorded", rec.Mint)
	}
	h.migrations[rec.Mint] = rec
	return nil
}

func (h *MemoryHistory) Migration(_ context.Context, mint solana.PublicKey) (engine.MigrationRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rec, ok := h.migrations[mint]
	if !ok {
		return engine.MigrationRecord{}, fmt.Errorf("%w: migration of %s", ErrNotFound, mint)
	}
	return rec, nil
}

func page(all []engine.TradeRecord, limit, offset int) []engine.TradeRecord {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []engine.TradeRecord{}
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}
