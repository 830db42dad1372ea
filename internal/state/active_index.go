package state

import (
	"fmt"

	"github.com/google/uuid"
)

// ActiveIndex tracks which accounts currently hold an active position.
// It pairs a dense array (for bounded iteration by liquidation scans)
// with a sparse map from account to array slot. Removal swap-removes:
// the last element is moved into the vacated slot and the array
// shrinks by one, so the array never has holes.
//
// Invariant: for every account a in slots, owners[slots[a]] == a, and
// len(slots) == len(owners).
type ActiveIndex struct {
	owners []uuid.UUID
	slots  map[uuid.UUID]int
}

func NewActiveIndex() *ActiveIndex {
	return &ActiveIndex{
		slots: make(map[uuid.UUID]int),
	}
}

// Insert adds an account to the index. Inserting an account that is
// already present is a no-op.
func (ix *ActiveIndex) Insert(account uuid.UUID) {
	if _, ok := ix.slots[account]; ok {
		return
	}
	ix.slots[account] = len(ix.owners)
	ix.owners = append(ix.owners, account)
}

// Remove deletes an account via swap-remove. Removing an absent
// account is a no-op.
func (ix *ActiveIndex) Remove(account uuid.UUID) {
	slot, ok := ix.slots[account]
	if !ok {
		return
	}

	last := len(ix.owners) - 1
	if slot != last {
		moved := ix.owners[last]
		ix.owners[slot] = moved
		ix.slots[moved] = slot
	}
	ix.owners = ix.owners[:last]
	delete(ix.slots, account)
}

// Contains reports whether the account is indexed.
func (ix *ActiveIndex) Contains(account uuid.UUID) bool {
	_, ok := ix.slots[account]
	return ok
}

// Len returns the number of indexed accounts.
func (ix *ActiveIndex) Len() int {
	return len(ix.owners)
}

// At returns the account at array position i. Callers must bound i by Len.
func (ix *ActiveIndex) At(i int) uuid.UUID {
	return ix.owners[i]
}

// Owners returns a copy of the dense array in index order.
func (ix *ActiveIndex) Owners() []uuid.UUID {
	out := make([]uuid.UUID, len(ix.owners))
	copy(out, ix.owners)
	return out
}

// Verify checks the array/map reverse-lookup invariant.
func (ix *ActiveIndex) Verify() error {
	if len(ix.owners) != len(ix.slots) {
		return fmt.Errorf("index size mismatch: %d owners, %d slots", len(ix.owners), len(ix.slots))
	}
	for account, slot := range ix.slots {
		if slot < 0 || slot >= len(ix.owners) {
			return fmt.Errorf("slot %d for %s out of range", slot, account)
		}
		if ix.owners[slot] != account {
			return fmt.Errorf("owners[%d] = %s, want %s", slot, ix.owners[slot], account)
		}
	}
	return nil
}
