// internal/events/publisher.go
package events

import (
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondcurve/internal/engine"
)

// Publisher turns engine records into bus events.
type Publisher struct {
	bus    *Bus
	logger *zap.Logger
}

var _ engine.Publisher = (*Publisher)(nil)

func NewPublisher(bus *Bus, logger *zap.Logger) *Publisher {
	return &Publisher{bus: bus, logger: logger.Named("publisher")}
}

func (p *Publisher) TradeExecuted(rec engine.TradeRecord) {
	p.publish(&TradeExecutedEvent{
		BaseEvent: BaseEvent{EventType: TradeExecuted, EventTime: rec.ExecutedAt},
		Trade:     rec,
	})
}

func (p *Publisher) CurveMigrated(rec engine.MigrationRecord) {
	p.publish(&CurveMigratedEvent{
		BaseEvent: BaseEvent{EventType: CurveMigrated, EventTime: rec.MigratedAt},
		Migration: rec,
	})
}

func (p *Publisher) publish(e Event) {
	if err := p.bus.Publish(e); err != nil {
		p.logger.Warn("Failed to publish event",
			zap.String("event_type", string(e.Type())),
			zap.Error(err))
	}
}
