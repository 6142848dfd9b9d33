package hw

// Counter is a free-running 16-bit hardware tick counter
type Counter interface {
	Raw() uint16
}

// WrapEncoder turns a wrapping 16-bit counter into an Encoder. Each read
// accumulates the signed difference to the previous raw value, so the
// counter may wrap any number of times as long as it moves less than half
// its range between reads.
type WrapEncoder struct {
	counter Counter
	lastRaw uint16
	count   int32
}

// NewWrapEncoder creates an encoder that counts from the counter's current value
func NewWrapEncoder(counter Counter) *WrapEncoder {
	return &WrapEncoder{counter: counter, lastRaw: counter.Raw()}
}

// Count returns the ticks accumulated since creation or the last Reset
func (e *WrapEncoder) Count() int32 {
	raw := e.counter.Raw()
	e.count += int32(int16(raw - e.lastRaw))
	e.lastRaw = raw
	return e.count
}

// Reset zeroes the accumulated count
func (e *WrapEncoder) Reset() {
	e.lastRaw = e.counter.Raw()
	e.count = 0
}

// TickDelta returns cur - prev for two readings of a wrapping int32 counter
func TickDelta(cur, prev int32) int32 {
	return int32(uint32(cur) - uint32(prev))
}
