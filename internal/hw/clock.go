package hw

import (
	"github.com/benbjohnson/clock"
)

// MillisClock reports milliseconds elapsed since it was created, truncated
// to 32 bits.
type MillisClock struct {
	clk   clock.Clock
	start int64
}

// NewMillisClock creates a clock anchored at clk's current time
func NewMillisClock(clk clock.Clock) *MillisClock {
	return &MillisClock{clk: clk, start: clk.Now().UnixMilli()}
}

// Now returns the elapsed milliseconds
func (c *MillisClock) Now() uint32 {
	return uint32(c.clk.Now().UnixMilli() - c.start)
}
