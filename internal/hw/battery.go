package hw

const (
	// DefaultDeadVoltage is the raw ADC reading at or below which the pack is flat
	DefaultDeadVoltage uint16 = 2000
	// DefaultDeadTime is how long, in ms, the reading may stay low before the
	// pack is declared dead
	DefaultDeadTime uint32 = 5000
)

// ADC is a single analog channel
type ADC interface {
	Read() uint16
}

// BatteryMonitor samples an ADC channel and derives a dead flag with a
// timeout, so brief sags under motor load do not trip it.
type BatteryMonitor struct {
	adc         ADC
	deadVoltage uint16
	deadTime    uint32

	raw        uint16
	lastAlive  uint32
	lastUpdate uint32
	seenAlive  bool
	updated    bool
}

// NewBatteryMonitor creates a monitor; zero thresholds select the defaults
func NewBatteryMonitor(adc ADC, deadVoltage uint16, deadTime uint32) *BatteryMonitor {
	if deadVoltage == 0 {
		deadVoltage = DefaultDeadVoltage
	}
	if deadTime == 0 {
		deadTime = DefaultDeadTime
	}
	return &BatteryMonitor{adc: adc, deadVoltage: deadVoltage, deadTime: deadTime}
}

// Update samples the ADC at time now
func (b *BatteryMonitor) Update(now uint32) {
	b.raw = b.adc.Read()
	if b.raw > b.deadVoltage {
		b.lastAlive = now
		b.seenAlive = true
	}
	b.lastUpdate = now
	b.updated = true
}

// Raw returns the last sampled value
func (b *BatteryMonitor) Raw() uint16 {
	return b.raw
}

// IsDead reports true until a healthy sample has been seen, and after the
// reading has stayed low for longer than the dead time.
func (b *BatteryMonitor) IsDead() bool {
	if !b.updated || !b.seenAlive {
		return true
	}
	return b.lastUpdate-b.lastAlive > b.deadTime
}
