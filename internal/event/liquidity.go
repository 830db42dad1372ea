package event

import (
	"github.com/google/uuid"
)

// LiquidityAdded is emitted when the pool owner deposits liquidity.
type LiquidityAdded struct {
	Provider   uuid.UUID `json:"provider"`
	Amount     int64     `json:"amount"`
	NewBalance int64     `json:"new_balance"`
}

func (LiquidityAdded) EventType() EventType { return EventTypeLiquidityAdded }

// LiquidityRemoved is emitted when the pool owner withdraws liquidity,
// including emergency withdrawals.
type LiquidityRemoved struct {
	Provider   uuid.UUID `json:"provider"`
	Amount     int64     `json:"amount"`
	NewBalance int64     `json:"new_balance"`
}

func (LiquidityRemoved) EventType() EventType { return EventTypeLiquidityRemoved }
