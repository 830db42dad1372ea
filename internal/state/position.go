package state

import (
	"github.com/google/uuid"
)

// Position is a leveraged position record. Records are never deleted
// and position IDs are never reused: closing or liquidating a position
// flips IsActive and stamps ClosedAt, the record itself stays
// queryable by ID forever.
type Position struct {
	// ID is the globally unique position id, assigned at open, starting at 1
	ID uint64

	// Owner is the account that opened the position
	Owner uuid.UUID

	// Size is the notional exposure in collateral token units (6 decimals)
	Size int64

	// Collateral locked at open (6 decimals)
	Collateral int64

	// EntryPrice is the mark price at open (6 decimals)
	EntryPrice int64

	// IsLong is the direction: true = long, false = short
	IsLong bool

	// IsActive is false once the position is closed or liquidated
	IsActive bool

	// OpenedAt / ClosedAt are unix microseconds; ClosedAt is 0 while active
	OpenedAt int64
	ClosedAt int64
}

// SideSign returns +1 for long, -1 for short.
func (p *Position) SideSign() int64 {
	if p.IsLong {
		return 1
	}
	return -1
}
