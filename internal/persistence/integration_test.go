package persistence

import (
	"context"
	"testing"
	"time"

	"LevVault/internal/event"
	"LevVault/internal/testutil"

	"github.com/google/uuid"
)

func TestWriterRoundTrip(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := NewMigrator(db, "../../migrations").Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	owner := uuid.New()
	envs := []event.Envelope{
		{
			Sequence:  1,
			EventType: event.EventTypePositionOpened,
			Timestamp: time.Now().UTC(),
			Payload: event.PositionOpened{
				PositionID: 1, Owner: owner, Collateral: 10_000_000,
				Size: 500_000_000, IsLong: true, EntryPrice: 70_000,
			},
		},
		{
			Sequence:  2,
			EventType: event.EventTypePositionClosed,
			Timestamp: time.Now().UTC(),
			Payload: event.PositionClosed{
				PositionID: 1, Owner: owner, PnL: 100_000_000,
				Payout: 110_000_000, ExitPrice: 84_000,
			},
		},
	}

	writer := NewEventLogWriter(db)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	var eventRows []EventRow
	var posRows []PositionRow
	for _, env := range envs {
		er, pr := BuildRows(env)
		eventRows = append(eventRows, er)
		if pr != nil {
			posRows = append(posRows, *pr)
		}
	}
	if err := writer.WriteEventBatch(ctx, tx, eventRows); err != nil {
		t.Fatalf("write events: %v", err)
	}
	if err := writer.WritePositionBatch(ctx, tx, posRows); err != nil {
		t.Fatalf("write positions: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// Re-writing the same batch must be a no-op (idempotent on sequence)
	tx2, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := writer.WriteEventBatch(ctx, tx2, eventRows); err != nil {
		t.Fatalf("rewrite events: %v", err)
	}
	if err := tx2.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ledger.events").Scan(&count); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 2 {
		t.Errorf("event count = %d, want 2", count)
	}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ledger.position_history").Scan(&count); err != nil {
		t.Fatalf("count positions: %v", err)
	}
	if count != 2 {
		t.Errorf("position history count = %d, want 2", count)
	}
}
