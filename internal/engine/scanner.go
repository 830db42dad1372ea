package engine

import (
	"errors"
	"fmt"
	"time"

	"LevVault/internal/event"
	"LevVault/internal/observability"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Scan and batch caps bound the work done under the ledger lock per
// call.
const (
	MaxScanLimit = 100
	MaxBatchSize = 50
)

// Scanner walks the active-position index looking for liquidatable
// positions. Scans are read-only; BatchLiquidate holds the ledger's
// write lock for the whole batch so the batch is atomic with respect
// to every other mutator. Both read the mark price exactly once per
// call, so all positions in a call are judged against one snapshot.
type Scanner struct {
	ledger  *Ledger
	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewScanner(ledger *Ledger, metrics *observability.Metrics) *Scanner {
	return &Scanner{
		ledger:  ledger,
		metrics: metrics,
		log:     observability.NewLogger("scanner"),
	}
}

// ScanLiquidatable checks up to maxCheck active positions in index
// order (front to back) and returns the accounts holding liquidatable
// ones. It mutates nothing.
func (s *Scanner) ScanLiquidatable(maxCheck int) ([]uuid.UUID, error) {
	if maxCheck <= 0 || maxCheck > MaxScanLimit {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, maxCheck)
	}

	start := time.Now()
	l := s.ledger
	l.mu.RLock()
	defer l.mu.RUnlock()

	price, _, err := l.prices.Price()
	if err != nil {
		return nil, fmt.Errorf("read mark price: %w", err)
	}

	checked := l.book.ActiveCount()
	if maxCheck < checked {
		checked = maxCheck
	}

	var liquidatable []uuid.UUID
	for i := 0; i < checked; i++ {
		pos := l.book.Active(l.book.ActiveOwnerAt(i))
		if liquidatableAt(pos, pnlAt(pos, price)) {
			liquidatable = append(liquidatable, pos.Owner)
		}
	}

	if s.metrics != nil {
		s.metrics.ScanDuration.Observe(time.Since(start).Seconds())
		s.metrics.ScanChecked.Observe(float64(checked))
	}
	return liquidatable, nil
}

// BatchLiquidate walks the index back to front, liquidating up to
// maxLiquidations underwater positions on behalf of caller. Reverse
// iteration keeps the walk safe against swap-remove compaction: the
// element swapped into a vacated slot always comes from the
// already-visited tail. A position whose individual transfers fail is
// rolled back, logged and skipped; the batch keeps going.
func (s *Scanner) BatchLiquidate(maxLiquidations int, caller uuid.UUID) ([]uuid.UUID, error) {
	if maxLiquidations <= 0 || maxLiquidations > MaxBatchSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, maxLiquidations)
	}

	l := s.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	price, _, err := l.prices.Price()
	if err != nil {
		return nil, fmt.Errorf("read mark price: %w", err)
	}

	liquidated := make([]uuid.UUID, 0, maxLiquidations)
	for i := l.book.ActiveCount() - 1; i >= 0 && len(liquidated) < maxLiquidations; i-- {
		owner := l.book.ActiveOwnerAt(i)
		pos := l.book.Active(owner)

		if _, _, _, err := l.liquidateLocked(pos, caller, price); err != nil {
			if errors.Is(err, ErrNotLiquidatable) {
				continue
			}
			s.log.Warn().Err(err).Str("owner", owner.String()).Msg("batch liquidation skipped position")
			continue
		}
		liquidated = append(liquidated, owner)
	}

	l.emitter.Emit(event.BatchLiquidation{
		Liquidator: caller,
		Accounts:   liquidated,
		Count:      len(liquidated),
		MarkPrice:  price,
	})

	if s.metrics != nil {
		s.metrics.BatchLiquidationSize.Observe(float64(len(liquidated)))
		s.metrics.ActivePositions.Set(float64(l.book.ActiveCount()))
	}
	return liquidated, nil
}
