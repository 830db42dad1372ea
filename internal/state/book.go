package state

import (
	"github.com/google/uuid"
)

// Book holds all position records plus the active-position index.
// It is not safe for concurrent use; the engine serializes access
// behind its own lock.
type Book struct {
	nextID  uint64
	byID    map[uint64]*Position
	byOwner map[uuid.UUID]*Position // latest position per account
	active  *ActiveIndex
}

func NewBook() *Book {
	return &Book{
		nextID:  1,
		byID:    make(map[uint64]*Position),
		byOwner: make(map[uuid.UUID]*Position),
		active:  NewActiveIndex(),
	}
}

// NextID returns the id the next opened position will get.
func (b *Book) NextID() uint64 {
	return b.nextID
}

// Open allocates a fresh id and records a new active position.
// The caller must have verified the owner has no active position.
func (b *Book) Open(owner uuid.UUID, size, collateral, entryPrice int64, isLong bool, now int64) *Position {
	p := &Position{
		ID:         b.nextID,
		Owner:      owner,
		Size:       size,
		Collateral: collateral,
		EntryPrice: entryPrice,
		IsLong:     isLong,
		IsActive:   true,
		OpenedAt:   now,
	}
	b.nextID++

	b.byID[p.ID] = p
	b.byOwner[owner] = p
	b.active.Insert(owner)
	return p
}

// Close marks the position terminal and drops it from the active index.
func (b *Book) Close(p *Position, now int64) {
	p.IsActive = false
	p.ClosedAt = now
	b.active.Remove(p.Owner)
}

// Reopen reverses Close. Used to roll back a terminal transition when
// the accompanying collateral transfer fails.
func (b *Book) Reopen(p *Position) {
	p.IsActive = true
	p.ClosedAt = 0
	b.active.Insert(p.Owner)
}

// Get returns the owner's latest position, active or not.
func (b *Book) Get(owner uuid.UUID) (*Position, bool) {
	p, ok := b.byOwner[owner]
	return p, ok
}

// Active returns the owner's position if one is currently active.
func (b *Book) Active(owner uuid.UUID) *Position {
	p, ok := b.byOwner[owner]
	if !ok || !p.IsActive {
		return nil
	}
	return p
}

// ByID returns the position record with the given id.
func (b *Book) ByID(id uint64) (*Position, bool) {
	p, ok := b.byID[id]
	return p, ok
}

// ActiveCount returns the number of active positions.
func (b *Book) ActiveCount() int {
	return b.active.Len()
}

// ActiveOwnerAt returns the account at index position i.
func (b *Book) ActiveOwnerAt(i int) uuid.UUID {
	return b.active.At(i)
}

// ActiveOwners returns the active accounts in index order.
func (b *Book) ActiveOwners() []uuid.UUID {
	return b.active.Owners()
}

// VerifyIndex checks that the active index agrees with position state.
func (b *Book) VerifyIndex() error {
	return b.active.Verify()
}
