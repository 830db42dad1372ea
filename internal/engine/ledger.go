package engine

import (
	"fmt"
	"sync"
	"time"

	fpmath "LevVault/internal/math"

	"LevVault/internal/event"
	"LevVault/internal/observability"
	"LevVault/internal/oracle"
	"LevVault/internal/state"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Risk parameters. Leverage bounds are unitless multiples, collateral
// bounds and amounts are 6-decimal token units, percentages are
// integer percent.
const (
	MinLeverage             = 10
	MaxLeverage             = 200
	LiquidationThresholdPct = 90
	LiquidatorFeePct        = 5
	MinCollateral           = 1_000_000
	MaxCollateral           = 1_000_000_000
)

// Ledger is the single-writer position engine. One RWMutex guards the
// position book, the active index and pool collateral flows: mutating
// operations hold it exclusively for their entire call, including the
// collateral transfers, so every mutation is atomic and no nested
// reentry can observe intermediate state. Queries take the read lock.
type Ledger struct {
	mu      sync.RWMutex
	book    *state.Book
	pool    *Pool
	prices  oracle.PriceSource
	emitter *event.Emitter
	metrics *observability.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

func NewLedger(pool *Pool, prices oracle.PriceSource, emitter *event.Emitter, metrics *observability.Metrics) *Ledger {
	return &Ledger{
		book:    state.NewBook(),
		pool:    pool,
		prices:  prices,
		emitter: emitter,
		metrics: metrics,
		log:     observability.NewLogger("ledger"),
		now:     time.Now,
	}
}

// Open creates a leveraged position for owner, pulling margin into the
// pool and stamping the position with the current mark price.
//
// Collateral is pulled before the price read, so a failed price read
// triggers a compensating transfer back to the owner.
func (l *Ledger) Open(owner uuid.UUID, margin, size int64, isLong bool) (uint64, error) {
	start := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.book.Active(owner) != nil {
		l.reject("open", "position_exists")
		return 0, ErrPositionExists
	}
	if margin < MinCollateral || margin > MaxCollateral {
		l.reject("open", "collateral_range")
		return 0, fmt.Errorf("%w: %d", ErrCollateralOutOfRange, margin)
	}
	// size/margin in [MinLeverage, MaxLeverage]; margin <= 1e9 so the
	// products stay well inside int64
	if size < MinLeverage*margin || size > MaxLeverage*margin {
		l.reject("open", "leverage_range")
		return 0, fmt.Errorf("%w: size %d, collateral %d", ErrLeverageOutOfRange, size, margin)
	}

	if err := l.pool.transferIn(owner, margin); err != nil {
		l.reject("open", "transfer")
		return 0, fmt.Errorf("pull collateral: %w", err)
	}

	price, _, err := l.prices.Price()
	if err != nil {
		// Undo the pull so the failed open leaves no trace
		if rbErr := l.pool.transferOut(owner, margin); rbErr != nil {
			l.log.Error().Err(rbErr).Str("owner", owner.String()).
				Int64("amount", margin).Msg("collateral rollback failed")
		}
		l.reject("open", "price")
		return 0, fmt.Errorf("read mark price: %w", err)
	}

	pos := l.book.Open(owner, size, margin, price, isLong, l.now().UnixMicro())

	l.emitter.Emit(event.PositionOpened{
		PositionID: pos.ID,
		Owner:      owner,
		Collateral: margin,
		Size:       size,
		IsLong:     isLong,
		EntryPrice: price,
	})
	l.applied("open", start)

	l.log.Info().Uint64("position_id", pos.ID).Str("owner", owner.String()).
		Int64("collateral", margin).Int64("size", size).Bool("is_long", isLong).
		Int64("entry_price", price).Msg("position opened")
	return pos.ID, nil
}

// Close settles the owner's active position at the current mark price
// and pays out collateral plus PnL, floored at zero. If the payout
// transfer fails the whole call rolls back and the position stays
// active.
func (l *Ledger) Close(owner uuid.UUID) (pnl, payout int64, err error) {
	start := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	pos := l.book.Active(owner)
	if pos == nil {
		l.reject("close", "no_position")
		return 0, 0, ErrNoActivePosition
	}

	price, _, err := l.prices.Price()
	if err != nil {
		l.reject("close", "price")
		return 0, 0, fmt.Errorf("read mark price: %w", err)
	}

	pnl = pnlAt(pos, price)
	payout = pos.Collateral + pnl
	if payout < 0 {
		payout = 0
	}

	l.book.Close(pos, l.now().UnixMicro())

	if payout > 0 {
		if err := l.pool.transferOut(owner, payout); err != nil {
			l.book.Reopen(pos)
			l.reject("close", "transfer")
			return 0, 0, fmt.Errorf("pay out %d: %w", payout, err)
		}
	}

	l.emitter.Emit(event.PositionClosed{
		PositionID: pos.ID,
		Owner:      owner,
		PnL:        pnl,
		Payout:     payout,
		ExitPrice:  price,
	})
	l.applied("close", start)

	l.log.Info().Uint64("position_id", pos.ID).Str("owner", owner.String()).
		Int64("pnl", pnl).Int64("payout", payout).Msg("position closed")
	return pnl, payout, nil
}

// Liquidate force-closes owner's position if its loss has consumed at
// least LiquidationThresholdPct of collateral. The caller earns
// LiquidatorFeePct of the remaining collateral, the rest is refunded
// to the owner, and the consumed loss stays in the pool.
func (l *Ledger) Liquidate(owner, caller uuid.UUID) (pnl, fee, refund int64, err error) {
	start := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	pos := l.book.Active(owner)
	if pos == nil {
		l.reject("liquidate", "no_position")
		return 0, 0, 0, ErrNoActivePosition
	}

	price, _, err := l.prices.Price()
	if err != nil {
		l.reject("liquidate", "price")
		return 0, 0, 0, fmt.Errorf("read mark price: %w", err)
	}

	pnl, fee, refund, err = l.liquidateLocked(pos, caller, price)
	if err != nil {
		return 0, 0, 0, err
	}
	l.applied("liquidate", start)
	return pnl, fee, refund, nil
}

// liquidateLocked performs one liquidation at the given price. The
// caller must hold l.mu exclusively.
func (l *Ledger) liquidateLocked(pos *state.Position, caller uuid.UUID, price int64) (pnl, fee, refund int64, err error) {
	pnl = pnlAt(pos, price)
	if !liquidatableAt(pos, pnl) {
		l.reject("liquidate", "not_liquidatable")
		return 0, 0, 0, ErrNotLiquidatable
	}

	// Loss already capped the position: whatever collateral the loss
	// did not consume is split fee/refund, the rest stays in the pool.
	remaining := int64(0)
	if loss := -pnl; loss < pos.Collateral {
		remaining = pos.Collateral - loss
	}
	fee = remaining * LiquidatorFeePct / 100
	refund = remaining - fee

	l.book.Close(pos, l.now().UnixMicro())

	if fee > 0 {
		if terr := l.pool.transferOut(caller, fee); terr != nil {
			l.book.Reopen(pos)
			l.reject("liquidate", "transfer")
			return 0, 0, 0, fmt.Errorf("pay liquidator fee %d: %w", fee, terr)
		}
	}
	if refund > 0 {
		if terr := l.pool.transferOut(pos.Owner, refund); terr != nil {
			// Claw the fee back before rolling back the close
			if fee > 0 {
				if rbErr := l.pool.transferIn(caller, fee); rbErr != nil {
					l.log.Error().Err(rbErr).Str("liquidator", caller.String()).
						Int64("fee", fee).Msg("fee rollback failed")
				}
			}
			l.book.Reopen(pos)
			l.reject("liquidate", "transfer")
			return 0, 0, 0, fmt.Errorf("refund owner %d: %w", refund, terr)
		}
	}

	l.emitter.Emit(event.PositionLiquidated{
		PositionID: pos.ID,
		Owner:      pos.Owner,
		Liquidator: caller,
		Collateral: pos.Collateral,
		PnL:        pnl,
		Fee:        fee,
		Refund:     refund,
		MarkPrice:  price,
	})

	if l.metrics != nil {
		l.metrics.LiquidationsTotal.Inc()
		l.metrics.LiquidatorFees.Add(float64(fee))
		l.metrics.CollateralForfeited.Add(float64(pos.Collateral - fee - refund))
	}
	l.log.Info().Uint64("position_id", pos.ID).Str("owner", pos.Owner.String()).
		Str("liquidator", caller.String()).Int64("pnl", pnl).Int64("fee", fee).
		Int64("refund", refund).Msg("position liquidated")
	return pnl, fee, refund, nil
}

// PnL returns the owner's unrealized PnL at the current mark price.
func (l *Ledger) PnL(owner uuid.UUID) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos := l.book.Active(owner)
	if pos == nil {
		return 0, ErrNoActivePosition
	}
	price, _, err := l.prices.Price()
	if err != nil {
		return 0, fmt.Errorf("read mark price: %w", err)
	}
	return pnlAt(pos, price), nil
}

// IsLiquidatable reports whether the owner's active position can be
// liquidated at the current mark price. An account without an active
// position is simply not liquidatable.
func (l *Ledger) IsLiquidatable(owner uuid.UUID) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos := l.book.Active(owner)
	if pos == nil {
		return false, nil
	}
	price, _, err := l.prices.Price()
	if err != nil {
		return false, fmt.Errorf("read mark price: %w", err)
	}
	return liquidatableAt(pos, pnlAt(pos, price)), nil
}

// pnlAt computes signed PnL with int128 intermediates and truncating
// division.
func pnlAt(pos *state.Position, price int64) int64 {
	return fpmath.ComputePnL(pos.SideSign(), pos.EntryPrice, price, pos.Size)
}

// liquidatableAt: loss >= collateral * threshold / 100, integer math
// truncating like the payout path.
func liquidatableAt(pos *state.Position, pnl int64) bool {
	if pnl >= 0 {
		return false
	}
	return -pnl >= pos.Collateral*LiquidationThresholdPct/100
}

// --- Query surface ---

// Position returns a copy of the owner's latest position record,
// active or not.
func (l *Ledger) Position(owner uuid.UUID) (state.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.book.Get(owner)
	if !ok {
		return state.Position{}, false
	}
	return *p, true
}

// PositionByID returns a copy of the position record with the given id.
func (l *Ledger) PositionByID(id uint64) (state.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.book.ByID(id)
	if !ok {
		return state.Position{}, false
	}
	return *p, true
}

// PositionOwner returns the account that opened position id.
func (l *Ledger) PositionOwner(id uint64) (uuid.UUID, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.book.ByID(id)
	if !ok {
		return uuid.Nil, false
	}
	return p.Owner, true
}

// NextPositionID returns the id the next opened position will receive.
func (l *Ledger) NextPositionID() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.book.NextID()
}

// IsPositionActive reports whether position id exists and is active.
func (l *Ledger) IsPositionActive(id uint64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.book.ByID(id)
	return ok && p.IsActive
}

// ActivePositionCount returns the number of active positions.
func (l *Ledger) ActivePositionCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.book.ActiveCount()
}

// ActiveOwners returns the active accounts in index order.
func (l *Ledger) ActiveOwners() []uuid.UUID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.book.ActiveOwners()
}

// PoolBalance returns the pool's collateral balance.
func (l *Ledger) PoolBalance() int64 {
	return l.pool.Balance()
}

func (l *Ledger) reject(op, reason string) {
	if l.metrics != nil {
		l.metrics.OpsRejected.WithLabelValues(op, reason).Inc()
	}
}

func (l *Ledger) applied(op string, start time.Time) {
	if l.metrics != nil {
		l.metrics.OpsApplied.WithLabelValues(op).Inc()
		l.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		l.metrics.ActivePositions.Set(float64(l.book.ActiveCount()))
		l.metrics.LedgerSequence.Set(float64(l.emitter.Sequence()))
	}
}
