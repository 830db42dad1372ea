package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
)

// EventLogWriter writes the event log and position history to Postgres
// using multi-row INSERTs. Inserts are keyed on sequence with
// ON CONFLICT DO NOTHING, so replays and retries are idempotent.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow represents a row in ledger.events
type EventRow struct {
	Sequence  int64
	EventType string
	Owner     *string // account the event concerns, nil for batch summaries
	Payload   []byte  // JSON-encoded event payload
	Timestamp time.Time
}

// PositionRow represents a row in ledger.position_history. One row per
// position lifecycle transition (opened / closed / liquidated).
type PositionRow struct {
	Sequence   int64
	PositionID uint64
	Owner      string
	Size       int64
	Collateral int64
	EntryPrice int64
	IsLong     bool
	Status     string
	PnL        *int64
	Payout     *int64
	MarkPrice  *int64
	Timestamp  time.Time
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteEventBatch writes a batch of events inside tx.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO ledger.events
		(sequence, event_type, owner, payload, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*5)

	for i, e := range events {
		base := i * 5
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5,
		))
		args = append(args, e.Sequence, e.EventType, e.Owner, e.Payload, e.Timestamp)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WritePositionBatch writes a batch of position transitions inside tx.
func (w *EventLogWriter) WritePositionBatch(ctx context.Context, tx *sql.Tx, rows []PositionRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO ledger.position_history
		(sequence, position_id, owner, size, collateral, entry_price, is_long, status, pnl, payout, mark_price, timestamp)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*12)

	for i, r := range rows {
		base := i * 12
		placeholders := make([]string, 12)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		values = append(values, "("+strings.Join(placeholders, ", ")+")")
		args = append(args,
			r.Sequence, int64(r.PositionID), r.Owner, r.Size, r.Collateral,
			r.EntryPrice, r.IsLong, r.Status, r.PnL, r.Payout, r.MarkPrice, r.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// MarshalPayload serializes an event payload to JSON for storage.
func MarshalPayload(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("WARN: failed to marshal payload: %v", err)
		return []byte("{}")
	}
	return data
}
