package persistence

import (
	"context"
	"database/sql"
	"log"
	"time"

	"LevVault/internal/event"
	"LevVault/internal/observability"
)

// Worker drains the persist channel and batch-writes the event log and
// position history to Postgres. The channel uses BLOCKING sends from
// the engine, so if this worker falls behind, emitters stall and no
// event is ever lost.
type Worker struct {
	writer       *EventLogWriter
	inputChan    <-chan event.Envelope
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
}

func NewWorker(
	db *sql.DB,
	inputChan <-chan event.Envelope,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		writer:       NewEventLogWriter(db),
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
	}
}

// Run starts the worker loop. It batches incoming envelopes and
// flushes either when the batch is full or the flush timeout expires.
// Blocks until ctx is cancelled or the channel closes.
func (w *Worker) Run(ctx context.Context) error {
	eventBatch := make([]EventRow, 0, w.batchSize)
	positionBatch := make([]PositionRow, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			// Graceful shutdown: flush remaining
			if len(eventBatch) > 0 {
				if err := w.flush(context.Background(), eventBatch, positionBatch); err != nil {
					log.Printf("ERROR: final flush failed: %v", err)
				}
			}
			return ctx.Err()

		case env, ok := <-w.inputChan:
			if !ok {
				if len(eventBatch) > 0 {
					if err := w.flush(context.Background(), eventBatch, positionBatch); err != nil {
						log.Printf("ERROR: final flush failed: %v", err)
					}
				}
				return nil
			}

			eventRow, positionRow := BuildRows(env)
			eventBatch = append(eventBatch, eventRow)
			if positionRow != nil {
				positionBatch = append(positionBatch, *positionRow)
			}

			if len(eventBatch) >= w.batchSize {
				if err := w.flushWithRetry(ctx, eventBatch, positionBatch); err != nil {
					log.Printf("ERROR: batch flush failed after retries: %v", err)
				}
				eventBatch = eventBatch[:0]
				positionBatch = positionBatch[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(eventBatch) > 0 {
				if err := w.flushWithRetry(ctx, eventBatch, positionBatch); err != nil {
					log.Printf("ERROR: timeout flush failed after retries: %v", err)
				}
				eventBatch = eventBatch[:0]
				positionBatch = positionBatch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry attempts to flush with exponential backoff. The
// worker never drops events: it retries until the write succeeds or
// the context is cancelled, and even then attempts one final flush.
func (w *Worker) flushWithRetry(ctx context.Context, events []EventRow, positions []PositionRow) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			log.Printf("WARN: persistence retry attempt %d (backoff=%v, events=%d)",
				attempt, backoff, len(events))
			select {
			case <-ctx.Done():
				if finalErr := w.flush(context.Background(), events, positions); finalErr != nil {
					return finalErr
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := w.flush(ctx, events, positions)
		if err == nil {
			if attempt > 0 {
				log.Printf("INFO: persistence flush succeeded after %d retries", attempt)
			}
			return nil
		}

		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("retry").Inc()
		}
	}
}

// flush writes both batches in a single transaction.
func (w *Worker) flush(ctx context.Context, events []EventRow, positions []PositionRow) error {
	start := time.Now()

	tx, err := w.writer.db.BeginTx(ctx, nil)
	if err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return err
	}
	defer tx.Rollback()

	if err := w.writer.WriteEventBatch(ctx, tx, events); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_events").Inc()
		}
		return err
	}

	if err := w.writer.WritePositionBatch(ctx, tx, positions); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("write_positions").Inc()
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistBatchSize.Observe(float64(len(events)))
		w.metrics.PersistEventsWritten.Add(float64(len(events)))
		if len(events) > 0 {
			w.metrics.PersistLastSequence.Set(float64(events[len(events)-1].Sequence))
		}
	}

	return nil
}

// BuildRows converts an envelope into its event row plus, for position
// lifecycle events, a position history row.
func BuildRows(env event.Envelope) (EventRow, *PositionRow) {
	row := EventRow{
		Sequence:  env.Sequence,
		EventType: env.EventType.String(),
		Payload:   MarshalPayload(env.Payload),
		Timestamp: env.Timestamp,
	}

	switch p := env.Payload.(type) {
	case event.PositionOpened:
		owner := p.Owner.String()
		row.Owner = &owner
		return row, &PositionRow{
			Sequence:   env.Sequence,
			PositionID: p.PositionID,
			Owner:      owner,
			Size:       p.Size,
			Collateral: p.Collateral,
			EntryPrice: p.EntryPrice,
			IsLong:     p.IsLong,
			Status:     "opened",
			Timestamp:  env.Timestamp,
		}

	case event.PositionClosed:
		owner := p.Owner.String()
		row.Owner = &owner
		pnl, payout := p.PnL, p.Payout
		exit := p.ExitPrice
		return row, &PositionRow{
			Sequence:   env.Sequence,
			PositionID: p.PositionID,
			Owner:      owner,
			Status:     "closed",
			PnL:        &pnl,
			Payout:     &payout,
			MarkPrice:  &exit,
			Timestamp:  env.Timestamp,
		}

	case event.PositionLiquidated:
		owner := p.Owner.String()
		row.Owner = &owner
		pnl, refund := p.PnL, p.Refund
		mark := p.MarkPrice
		return row, &PositionRow{
			Sequence:   env.Sequence,
			PositionID: p.PositionID,
			Owner:      owner,
			Collateral: p.Collateral,
			Status:     "liquidated",
			PnL:        &pnl,
			Payout:     &refund,
			MarkPrice:  &mark,
			Timestamp:  env.Timestamp,
		}

	case event.LiquidityAdded:
		owner := p.Provider.String()
		row.Owner = &owner

	case event.LiquidityRemoved:
		owner := p.Provider.String()
		row.Owner = &owner
	}

	return row, nil
}
