// Package hw defines the hardware collaborators consumed by the motion core
// and the small non-blocking drivers that sit between them and raw devices.
package hw

// Encoder reports accumulated wheel ticks since the last Reset
type Encoder interface {
	Count() int32
	Reset()
}

// Motor accepts a signed drive power. Implementations saturate out-of-range
// values.
type Motor interface {
	ChangePower(power int32)
}

// DistanceSensor exposes the last measured range in millimeters. Update
// advances the measurement cycle and must never block.
type DistanceSensor interface {
	Range() uint8
	Update()
}

// Battery reports the raw ADC reading and whether the pack is considered dead
type Battery interface {
	Raw() uint16
	IsDead() bool
}

// Clock is a monotonic millisecond time source. It wraps at 2^32.
type Clock interface {
	Now() uint32
}
