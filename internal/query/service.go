package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

const maxQueryLimit = 1000

// Service reads position history and the event log from Postgres.
// Reads go against persisted state, so results trail the in-memory
// ledger by the persistence flush interval.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// PositionHistory returns the owner's lifecycle transitions, newest first.
func (s *Service) PositionHistory(ctx context.Context, owner uuid.UUID, limit int) ([]PositionHistoryEntry, error) {
	limit = clampLimit(limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, position_id, owner, size, collateral, entry_price,
		       is_long, status, pnl, payout, mark_price, timestamp
		FROM ledger.position_history
		WHERE owner = $1
		ORDER BY sequence DESC
		LIMIT $2`,
		owner.String(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query position history: %w", err)
	}
	defer rows.Close()

	var entries []PositionHistoryEntry
	for rows.Next() {
		var e PositionHistoryEntry
		var ownerStr string
		var positionID int64
		if err := rows.Scan(
			&e.Sequence, &positionID, &ownerStr, &e.Size, &e.Collateral,
			&e.EntryPrice, &e.IsLong, &e.Status, &e.PnL, &e.Payout,
			&e.MarkPrice, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan position history: %w", err)
		}
		e.PositionID = uint64(positionID)
		if e.Owner, err = uuid.Parse(ownerStr); err != nil {
			return nil, fmt.Errorf("parse owner %q: %w", ownerStr, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Events returns event log rows with sequence >= fromSequence, in
// sequence order.
func (s *Service) Events(ctx context.Context, fromSequence int64, limit int) ([]EventEntry, error) {
	limit = clampLimit(limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, event_type, owner, payload, timestamp
		FROM ledger.events
		WHERE sequence >= $1
		ORDER BY sequence
		LIMIT $2`,
		fromSequence, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var entries []EventEntry
	for rows.Next() {
		var e EventEntry
		if err := rows.Scan(&e.Sequence, &e.EventType, &e.Owner, (*[]byte)(&e.Payload), &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}
