// internal/storage/recorder.go
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondcurve/internal/engine"
	"github.com/rovshanmuradov/bondcurve/internal/events"
)

// Recorder persists trade and migration events from the bus.
type Recorder struct {
	history History
	logger  *zap.Logger
	subs    []events.Subscription
}

// NewRecorder subscribes to bus and writes every record to history.
func NewRecorder(bus *events.Bus, history History, logger *zap.Logger) *Recorder {
	r := &Recorder{history: history, logger: logger.Named("recorder")}
	r.subs = append(r.subs,
		bus.Subscribe(events.TradeExecuted, events.OnTrade(r.saveTrade)),
		bus.Subscribe(events.CurveMigrated, events.OnMigration(r.saveMigration)),
	)
	return r
}

func (r *Recorder) saveTrade(ctx context.Context, rec engine.TradeRecord) error {
	if err := r.history.SaveTrade(ctx, rec); err != nil {
		return fmt.Errorf("failed to save trade %s: %w", rec.ID, err)
	}
	return nil
}

func (r *Recorder) saveMigration(ctx context.Context, rec engine.MigrationRecord) error {
	if err := r.history.SaveMigration(ctx, rec); err != nil {
		return fmt.Errorf("failed to save migration of %s: %w", rec.Mint, err)
	}
	r.logger.Debug("Migration recorded", zap.String("mint", rec.Mint.String()))
	return nil
}

// Close unsubscribes the recorder from the bus.
func (r *Recorder) Close() {
	for _, s := range r.subs {
		s.Unsubscribe()
	}
	r.subs = nil
}
