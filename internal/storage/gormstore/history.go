// internal/storage/gormstore/history.go
package gormstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"gorm.io/gorm"

	"github.com/rovshanmuradov/bondcurve/internal/engine"
	"github.com/rovshanmuradov/bondcurve/internal/storage"
	"github.com/rovshanmuradov/bondcurve/internal/storage/models"
)

var _ storage.History = (*Store)(nil)

func (s *Store) SaveTrade(ctx context.Context, rec engine.TradeRecord) error {
	return s.db.WithContext(ctx).Create(tradeToModel(rec)).Error
}

func (s *Store) ListTrades(ctx context.Context, mint solana.PublicKey, limit, offset int) ([]engine.TradeRecord, error) {
	q := s.db.WithContext(ctx).
		Where("mint = ?", mint.String()).
		Order("executed_at desc").
		Order("id desc").
		Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []*models.Trade
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	out := make([]engine.TradeRecord, 0, len(rows))
	for _, m := range rows {
		rec, err := tradeFromModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) SaveMigration(ctx context.Context, rec engine.MigrationRecord) error {
	return s.db.WithContext(ctx).Create(migrationToModel(rec)).Error
}

func (s *Store) Migration(ctx context.Context, mint solana.PublicKey) (engine.MigrationRecord, error) {
	var m models.Migration
	err := s.db.WithContext(ctx).Where("mint = ?", mint.String()).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return engine.MigrationRecord{}, fmt.Errorf("%w: migration of %s", storage.ErrNotFound, mint)
	}
	if err != nil {
		return engine.MigrationRecord{}, fmt.Errorf("failed to load migration: %w", err)
	}
	return migrationFromModel(&m)
}
