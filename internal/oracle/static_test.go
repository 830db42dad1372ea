package oracle

import (
	"errors"
	"testing"
)

func TestStaticSourceEmpty(t *testing.T) {
	s := NewStaticSource(0)
	if _, _, err := s.Price(); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("err = %v, want ErrPriceUnavailable", err)
	}
}

func TestStaticSourceSet(t *testing.T) {
	s := NewStaticSource(70_000)
	price, ts, err := s.Price()
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price != 70_000 {
		t.Errorf("price = %d, want 70000", price)
	}
	if ts == 0 {
		t.Error("timestamp not set")
	}

	s.Set(84_000)
	if price, _, _ = s.Price(); price != 84_000 {
		t.Errorf("price after set = %d, want 84000", price)
	}
}

func TestNATSFeedStaleSequenceDropped(t *testing.T) {
	f := NewNATSFeed(nil, nil)

	f.apply(PriceUpdate{Price: 70_000, Sequence: 10, Timestamp: 1})
	f.apply(PriceUpdate{Price: 65_000, Sequence: 9, Timestamp: 2})  // stale
	f.apply(PriceUpdate{Price: 66_000, Sequence: 10, Timestamp: 3}) // duplicate

	price, _, err := f.Price()
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price != 70_000 {
		t.Errorf("price = %d, want 70000 (stale updates must not apply)", price)
	}

	f.apply(PriceUpdate{Price: 71_000, Sequence: 11, Timestamp: 4})
	if price, _, _ = f.Price(); price != 71_000 {
		t.Errorf("price = %d, want 71000", price)
	}
}

func TestNATSFeedRejectsNonPositivePrice(t *testing.T) {
	f := NewNATSFeed(nil, nil)
	f.apply(PriceUpdate{Price: 0, Sequence: 1})
	f.apply(PriceUpdate{Price: -5, Sequence: 2})

	if _, _, err := f.Price(); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("err = %v, want ErrPriceUnavailable", err)
	}
}
