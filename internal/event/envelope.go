package event

import (
	"time"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypePositionOpened
	EventTypePositionClosed
	EventTypePositionLiquidated
	EventTypeBatchLiquidation
	EventTypeLiquidityAdded
	EventTypeLiquidityRemoved
)

// Envelope wraps every event the ledger emits.
type Envelope struct {
	// Global monotonic sequence assigned by the emitter
	Sequence int64 `json:"sequence"`

	// Event type discriminator
	EventType EventType `json:"event_type"`

	// Emission wall-clock time
	Timestamp time.Time `json:"timestamp"`

	// Typed payload
	Payload Event `json:"payload"`
}

// Event is the interface all event payloads implement.
type Event interface {
	EventType() EventType
}

func (et EventType) String() string {
	switch et {
	case EventTypePositionOpened:
		return "PositionOpened"
	case EventTypePositionClosed:
		return "PositionClosed"
	case EventTypePositionLiquidated:
		return "PositionLiquidated"
	case EventTypeBatchLiquidation:
		return "BatchLiquidation"
	case EventTypeLiquidityAdded:
		return "LiquidityAdded"
	case EventTypeLiquidityRemoved:
		return "LiquidityRemoved"
	default:
		return "Unknown"
	}
}
