package persistence

import (
	"encoding/json"
	"testing"
	"time"

	"LevVault/internal/event"

	"github.com/google/uuid"
)

func TestBuildRowsPositionOpened(t *testing.T) {
	owner := uuid.New()
	env := event.Envelope{
		Sequence:  7,
		EventType: event.EventTypePositionOpened,
		Timestamp: time.Now(),
		Payload: event.PositionOpened{
			PositionID: 3,
			Owner:      owner,
			Collateral: 10_000_000,
			Size:       500_000_000,
			IsLong:     true,
			EntryPrice: 70_000,
		},
	}

	eventRow, posRow := BuildRows(env)
	if eventRow.Sequence != 7 || eventRow.EventType != "PositionOpened" {
		t.Errorf("event row wrong: %+v", eventRow)
	}
	if eventRow.Owner == nil || *eventRow.Owner != owner.String() {
		t.Error("event row owner not set")
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(eventRow.Payload, &payload); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if payload["position_id"].(float64) != 3 {
		t.Errorf("payload position_id = %v, want 3", payload["position_id"])
	}

	if posRow == nil {
		t.Fatal("no position row for PositionOpened")
	}
	if posRow.Status != "opened" || posRow.PositionID != 3 || posRow.Collateral != 10_000_000 {
		t.Errorf("position row wrong: %+v", posRow)
	}
	if posRow.PnL != nil {
		t.Error("opened row must have nil pnl")
	}
}

func TestBuildRowsLiquidated(t *testing.T) {
	env := event.Envelope{
		Sequence:  9,
		EventType: event.EventTypePositionLiquidated,
		Timestamp: time.Now(),
		Payload: event.PositionLiquidated{
			PositionID: 3,
			Owner:      uuid.New(),
			Liquidator: uuid.New(),
			Collateral: 10_000_000,
			PnL:        -9_000_000,
			Fee:        50_000,
			Refund:     950_000,
			MarkPrice:  68_740,
		},
	}

	_, posRow := BuildRows(env)
	if posRow == nil {
		t.Fatal("no position row for PositionLiquidated")
	}
	if posRow.Status != "liquidated" {
		t.Errorf("status = %q, want liquidated", posRow.Status)
	}
	if posRow.PnL == nil || *posRow.PnL != -9_000_000 {
		t.Errorf("pnl = %v, want -9000000", posRow.PnL)
	}
	if posRow.MarkPrice == nil || *posRow.MarkPrice != 68_740 {
		t.Errorf("mark price = %v, want 68740", posRow.MarkPrice)
	}
}

func TestBuildRowsBatchSummaryHasNoPositionRow(t *testing.T) {
	env := event.Envelope{
		Sequence:  11,
		EventType: event.EventTypeBatchLiquidation,
		Timestamp: time.Now(),
		Payload: event.BatchLiquidation{
			Liquidator: uuid.New(),
			Accounts:   []uuid.UUID{uuid.New()},
			Count:      1,
			MarkPrice:  60_000,
		},
	}

	eventRow, posRow := BuildRows(env)
	if posRow != nil {
		t.Error("batch summary produced a position row")
	}
	if eventRow.Owner != nil {
		t.Error("batch summary should have nil owner")
	}
}
