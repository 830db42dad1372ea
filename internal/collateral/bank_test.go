package collateral

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestBankTransfer(t *testing.T) {
	b := NewBank()
	a1, a2 := uuid.New(), uuid.New()
	b.Mint(a1, 1000)

	if err := b.Transfer(a1, a2, 400); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := b.BalanceOf(a1); got != 600 {
		t.Errorf("from balance = %d, want 600", got)
	}
	if got := b.BalanceOf(a2); got != 400 {
		t.Errorf("to balance = %d, want 400", got)
	}
}

func TestBankTransferInsufficient(t *testing.T) {
	b := NewBank()
	a1, a2 := uuid.New(), uuid.New()
	b.Mint(a1, 100)

	err := b.Transfer(a1, a2, 101)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	// Failed transfer leaves balances untouched
	if b.BalanceOf(a1) != 100 || b.BalanceOf(a2) != 0 {
		t.Errorf("balances changed on failed transfer: %d / %d", b.BalanceOf(a1), b.BalanceOf(a2))
	}
}

func TestBankTransferInvalidAmount(t *testing.T) {
	b := NewBank()
	a1, a2 := uuid.New(), uuid.New()
	b.Mint(a1, 100)

	for _, amount := range []int64{0, -5} {
		if err := b.Transfer(a1, a2, amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("amount %d: err = %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestBankConcurrentTransfersConserveSupply(t *testing.T) {
	b := NewBank()
	accounts := make([]uuid.UUID, 8)
	for i := range accounts {
		accounts[i] = uuid.New()
		b.Mint(accounts[i], 10_000)
	}
	supply := b.TotalSupply()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from := accounts[i]
			to := accounts[(i+1)%len(accounts)]
			for j := 0; j < 1000; j++ {
				b.Transfer(from, to, 1)
				b.Transfer(to, from, 1)
			}
		}(i)
	}
	wg.Wait()

	if got := b.TotalSupply(); got != supply {
		t.Errorf("total supply = %d, want %d", got, supply)
	}
}
