// internal/events/types.go
package events

import (
	"time"

	"github.com/rovshanmuradov/bondcurve/internal/engine"
)

// EventType represents the type of event.
type EventType string

const (
	TradeExecuted EventType = "trade.executed"
	CurveMigrated EventType = "curve.migrated"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

func (e BaseEvent) Type() EventType {
	return e.EventType
}

func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// TradeExecutedEvent is emitted after a buy or sell commits.
type TradeExecutedEvent struct {
	BaseEvent
	Trade engine.TradeRecord
}

// CurveMigratedEvent is emitted after a migration commits.
type CurveMigratedEvent struct {
	BaseEvent
	Migration engine.MigrationRecord
}
