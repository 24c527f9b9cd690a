// internal/events/types.go
package events

import (
	"time"

	"github.com/Musing-io/musing-protocol/internal/types"
)

// EventType represents the type of event.
type EventType string

const (
	// Economy lifecycle
	EconomyCreated EventType = "economy.created"

	// Trades
	TokensBought EventType = "trade.bought"
	TokensSold   EventType = "trade.sold"

	// Periodic snapshots
	SnapshotTaken EventType = "economy.snapshot"
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

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// EconomyCreatedEvent is emitted once a new economy has been committed.
type EconomyCreatedEvent struct {
	BaseEvent
	Token     types.Address
	Name      string
	Symbol    string
	Creator   types.Address
	WeightPPM uint32
	MaxSupply types.Amount
	Reserve   types.Amount
	Supply    types.Amount
	PricePPM  types.Amount
}

// TradeEvent is emitted after a committed buy or sell.
type TradeEvent struct {
	BaseEvent
	Token        types.Address
	Account      types.Address
	Referrer     types.Address
	AmountIn     types.Amount // reserve deposited (buy) or tokens sold (sell)
	AmountOut    types.Amount // tokens minted (buy) or reserve paid out (sell)
	Fee          types.Amount
	FeeRecipient types.Address
	ReserveAfter types.Amount
	SupplyAfter  types.Amount
	PricePPM     types.Amount
}

// Side returns "buy" or "sell".
func (e TradeEvent) Side() string {
	if e.EventType == TokensSold {
		return "sell"
	}
	return "buy"
}

// SnapshotEvent carries the periodic state of one economy.
type SnapshotEvent struct {
	BaseEvent
	Token    types.Address
	Reserve  types.Amount
	Supply   types.Amount
	PricePPM types.Amount
}
