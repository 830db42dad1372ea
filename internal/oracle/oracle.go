package oracle

import (
	"errors"
)

// ErrPriceUnavailable is returned when no mark price has been
// received yet or the feed only holds a non-positive price.
var ErrPriceUnavailable = errors.New("mark price unavailable")

// PriceSource serves the current mark price in 6-decimal fixed point.
// Every engine operation that needs a price reads it exactly once, so
// a whole batch liquidation evaluates against one snapshot.
type PriceSource interface {
	// Price returns the current mark price and its unix-microsecond
	// timestamp, or ErrPriceUnavailable.
	Price() (price int64, timestamp int64, err error)
}
