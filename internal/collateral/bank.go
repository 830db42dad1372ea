package collateral

import (
	"sync"

	"github.com/google/uuid"
)

// Bank is an in-memory Asset backed by a balance map. It serves dev
// deployments and tests; a chain- or custodian-backed Asset slots in
// behind the same interface.
type Bank struct {
	mu       sync.RWMutex
	balances map[uuid.UUID]int64
}

func NewBank() *Bank {
	return &Bank{
		balances: make(map[uuid.UUID]int64),
	}
}

// Mint credits an account out of thin air. Seeding only.
func (b *Bank) Mint(id uuid.UUID, amount int64) {
	if amount <= 0 {
		return
	}
	b.mu.Lock()
	b.balances[id] += amount
	b.mu.Unlock()
}

// Transfer moves amount between accounts, all-or-nothing.
func (b *Bank) Transfer(from, to uuid.UUID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.balances[from] < amount {
		return ErrInsufficientBalance
	}

	b.balances[from] -= amount
	b.balances[to] += amount
	return nil
}

// BalanceOf returns the current balance of an account.
func (b *Bank) BalanceOf(id uuid.UUID) int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balances[id]
}

// TotalSupply sums all balances. Transfers conserve it; only Mint
// moves it. Tests use this as a conservation check.
func (b *Bank) TotalSupply() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var total int64
	for _, bal := range b.balances {
		total += bal
	}
	return total
}
