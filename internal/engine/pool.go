package engine

import (
	"fmt"
	"sync"

	"LevVault/internal/collateral"
	"LevVault/internal/event"
	"LevVault/internal/observability"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Pool is the shared liquidity that backs trader payouts. All
// collateral flows through a single pool account on the Asset:
// opened-position collateral flows in, payouts, fees and refunds flow
// out. Deposit, Withdraw and EmergencyWithdraw are owner-only.
type Pool struct {
	mu      sync.Mutex
	asset   collateral.Asset
	account uuid.UUID
	owner   uuid.UUID
	emitter *event.Emitter
	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewPool(asset collateral.Asset, account, owner uuid.UUID, emitter *event.Emitter, metrics *observability.Metrics) *Pool {
	return &Pool{
		asset:   asset,
		account: account,
		owner:   owner,
		emitter: emitter,
		metrics: metrics,
		log:     observability.NewLogger("pool"),
	}
}

// Account returns the pool's account id on the Asset.
func (p *Pool) Account() uuid.UUID {
	return p.account
}

// Owner returns the pool owner.
func (p *Pool) Owner() uuid.UUID {
	return p.owner
}

// Balance returns the pool's current collateral balance.
func (p *Pool) Balance() int64 {
	return p.asset.BalanceOf(p.account)
}

// Deposit moves liquidity from the owner into the pool.
func (p *Pool) Deposit(caller uuid.UUID, amount int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.owner {
		return ErrNotOwner
	}
	if amount <= 0 {
		return collateral.ErrInvalidAmount
	}

	if err := p.asset.Transfer(caller, p.account, amount); err != nil {
		return fmt.Errorf("deposit %d: %w", amount, err)
	}

	balance := p.asset.BalanceOf(p.account)
	p.emitter.Emit(event.LiquidityAdded{
		Provider:   caller,
		Amount:     amount,
		NewBalance: balance,
	})
	p.observeBalance(balance)
	p.log.Info().Int64("amount", amount).Int64("balance", balance).Msg("liquidity deposited")
	return nil
}

// Withdraw moves liquidity from the pool back to the owner.
func (p *Pool) Withdraw(caller uuid.UUID, amount int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.owner {
		return ErrNotOwner
	}
	if amount <= 0 {
		return collateral.ErrInvalidAmount
	}
	if amount > p.asset.BalanceOf(p.account) {
		return ErrInsufficientPoolBalance
	}

	if err := p.asset.Transfer(p.account, caller, amount); err != nil {
		return fmt.Errorf("withdraw %d: %w", amount, err)
	}

	balance := p.asset.BalanceOf(p.account)
	p.emitter.Emit(event.LiquidityRemoved{
		Provider:   caller,
		Amount:     amount,
		NewBalance: balance,
	})
	p.observeBalance(balance)
	p.log.Info().Int64("amount", amount).Int64("balance", balance).Msg("liquidity withdrawn")
	return nil
}

// EmergencyWithdraw sweeps the entire pool balance to the owner and
// returns the amount moved.
func (p *Pool) EmergencyWithdraw(caller uuid.UUID) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.owner {
		return 0, ErrNotOwner
	}

	amount := p.asset.BalanceOf(p.account)
	if amount <= 0 {
		return 0, nil
	}

	if err := p.asset.Transfer(p.account, caller, amount); err != nil {
		return 0, fmt.Errorf("emergency withdraw %d: %w", amount, err)
	}

	p.emitter.Emit(event.LiquidityRemoved{
		Provider:   caller,
		Amount:     amount,
		NewBalance: 0,
	})
	p.observeBalance(0)
	p.log.Warn().Int64("amount", amount).Msg("emergency withdrawal drained pool")
	return amount, nil
}

// transferIn pulls collateral from an account into the pool. Called by
// the ledger while it holds its own lock.
func (p *Pool) transferIn(from uuid.UUID, amount int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.asset.Transfer(from, p.account, amount); err != nil {
		return err
	}
	p.observeBalance(p.asset.BalanceOf(p.account))
	return nil
}

// transferOut pays collateral from the pool to an account. Called by
// the ledger while it holds its own lock.
func (p *Pool) transferOut(to uuid.UUID, amount int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if amount > p.asset.BalanceOf(p.account) {
		return ErrInsufficientPoolBalance
	}
	if err := p.asset.Transfer(p.account, to, amount); err != nil {
		return err
	}
	p.observeBalance(p.asset.BalanceOf(p.account))
	return nil
}

func (p *Pool) observeBalance(balance int64) {
	if p.metrics != nil {
		p.metrics.PoolBalance.Set(float64(balance))
	}
}
