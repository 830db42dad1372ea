package query

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PositionHistoryEntry is one position lifecycle transition from
// ledger.position_history.
type PositionHistoryEntry struct {
	Sequence   int64     `json:"sequence"`
	PositionID uint64    `json:"position_id"`
	Owner      uuid.UUID `json:"owner"`
	Size       int64     `json:"size"`
	Collateral int64     `json:"collateral"`
	EntryPrice int64     `json:"entry_price"`
	IsLong     bool      `json:"is_long"`
	Status     string    `json:"status"`
	PnL        *int64    `json:"pnl,omitempty"`
	Payout     *int64    `json:"payout,omitempty"`
	MarkPrice  *int64    `json:"mark_price,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventEntry is one row from the ledger.events log.
type EventEntry struct {
	Sequence  int64           `json:"sequence"`
	EventType string          `json:"event_type"`
	Owner     *string         `json:"owner,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}
