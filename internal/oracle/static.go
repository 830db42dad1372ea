package oracle

import (
	"sync"
	"time"
)

// StaticSource is a manually set PriceSource for tests and offline runs.
type StaticSource struct {
	mu        sync.RWMutex
	price     int64
	timestamp int64
}

// NewStaticSource creates a source preloaded with price. A zero or
// negative price means "no price yet".
func NewStaticSource(price int64) *StaticSource {
	s := &StaticSource{}
	if price > 0 {
		s.Set(price)
	}
	return s
}

// Set updates the price and stamps it with the current time.
func (s *StaticSource) Set(price int64) {
	s.mu.Lock()
	s.price = price
	s.timestamp = time.Now().UnixMicro()
	s.mu.Unlock()
}

func (s *StaticSource) Price() (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.price <= 0 {
		return 0, 0, ErrPriceUnavailable
	}
	return s.price, s.timestamp, nil
}
