// internal/events/handler.go
package events

import (
	"context"
	"fmt"

	"github.com/rovshanmuradov/bondcurve/internal/engine"
)

// Handler processes events of a specific type.
type Handler interface {
	// Handle processes an event. Should not block.
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc is an adapter to allow the use of ordinary functions as event handlers.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// OnTrade adapts a trade record callback to a TradeExecuted handler.
func OnTrade(fn func(ctx context.Context, rec engine.TradeRecord) error) Handler {
	return HandlerFunc(func(ctx context.Context, event Event) error {
		e, ok := event.(*TradeExecutedEvent)
		if !ok {
			return fmt.Errorf("unexpected event %T for %s", event, TradeExecuted)
		}
		return fn(ctx, e.Trade)
	})
}

// OnMigration adapts a migration record callback to a CurveMigrated handler.
func OnMigration(fn func(ctx context.Context, rec engine.MigrationRecord) error) Handler {
	return HandlerFunc(func(ctx context.Context, event Event) error {
		e, ok := event.(*CurveMigratedEvent)
		if !ok {
			return fmt.Errorf("unexpected event %T for %s", event, CurveMigrated)
		}
		return fn(ctx, e.Migration)
	})
}

// Subscription represents a subscription to events.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	id       string
	eventBus *Bus
	typ      EventType
}

func (s *subscription) Unsubscribe() {
	s.eventBus.unsubscribe(s.id, s.typ)
}
