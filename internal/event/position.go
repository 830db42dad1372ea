package event

import (
	"github.com/google/uuid"
)

// PositionOpened is emitted when a position is created.
type PositionOpened struct {
	PositionID uint64    `json:"position_id"`
	Owner      uuid.UUID `json:"owner"`
	Collateral int64     `json:"collateral"`
	Size       int64     `json:"size"`
	IsLong     bool      `json:"is_long"`
	EntryPrice int64     `json:"entry_price"`
}

func (PositionOpened) EventType() EventType { return EventTypePositionOpened }

// PositionClosed is emitted on a voluntary close by the owner.
type PositionClosed struct {
	PositionID uint64    `json:"position_id"`
	Owner      uuid.UUID `json:"owner"`
	PnL        int64     `json:"pnl"`
	Payout     int64     `json:"payout"`
	ExitPrice  int64     `json:"exit_price"`
}

func (PositionClosed) EventType() EventType { return EventTypePositionClosed }

// PositionLiquidated is emitted on a forced close of an underwater position.
type PositionLiquidated struct {
	PositionID uint64    `json:"position_id"`
	Owner      uuid.UUID `json:"owner"`
	Liquidator uuid.UUID `json:"liquidator"`
	Collateral int64     `json:"collateral"`
	PnL        int64     `json:"pnl"`
	Fee        int64     `json:"fee"`
	Refund     int64     `json:"refund"`
	MarkPrice  int64     `json:"mark_price"`
}

func (PositionLiquidated) EventType() EventType { return EventTypePositionLiquidated }

// BatchLiquidation summarizes one batchLiquidate call. Per-position
// PositionLiquidated events are emitted alongside it.
type BatchLiquidation struct {
	Liquidator uuid.UUID   `json:"liquidator"`
	Accounts   []uuid.UUID `json:"accounts"`
	Count      int         `json:"count"`
	MarkPrice  int64       `json:"mark_price"`
}

func (BatchLiquidation) EventType() EventType { return EventTypeBatchLiquidation }
