package collateral

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrInvalidAmount is returned for zero or negative transfer amounts.
	ErrInvalidAmount = errors.New("collateral amount must be positive")

	// ErrInsufficientBalance is returned when the source account cannot
	// cover the transfer.
	ErrInsufficientBalance = errors.New("insufficient collateral balance")
)

// Asset moves collateral between accounts. Amounts are 6-decimal
// fixed-point token units. Implementations must be safe for concurrent
// use; the engine calls Transfer while holding its own lock.
type Asset interface {
	// Transfer moves amount from one account to another. It either
	// fully succeeds or leaves both balances untouched.
	Transfer(from, to uuid.UUID, amount int64) error

	// BalanceOf returns the current balance of an account.
	BalanceOf(id uuid.UUID) int64
}
