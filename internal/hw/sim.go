package hw

import "sync"

// SimWheel is a motor and encoder pair with first-order dynamics: the wheel
// speed in ticks per ms is power * Gain.
type SimWheel struct {
	Gain  float64
	Limit int32

	power int32
	ticks float64
}

// ChangePower sets the drive power, saturating at ±Limit
func (w *SimWheel) ChangePower(power int32) {
	if w.Limit > 0 {
		power = max(-w.Limit, min(w.Limit, power))
	}
	w.power = power
}

// Power returns the applied power
func (w *SimWheel) Power() int32 { return w.power }

// Count returns the simulated tick count
func (w *SimWheel) Count() int32 { return int32(w.ticks) }

// Reset zeroes the tick count
func (w *SimWheel) Reset() { w.ticks = 0 }

// Raw returns the low 16 bits of the tick count, as a timer peripheral
// would
func (w *SimWheel) Raw() uint16 { return uint16(int32(w.ticks)) }

// Step advances the wheel by dt milliseconds
func (w *SimWheel) Step(dt uint32) {
	w.ticks += float64(w.power) * w.Gain * float64(dt)
}

// SimRanger is a RangeDevice whose result is set by the caller. It needs
// one poll after starting before the result is ready.
type SimRanger struct {
	mu       sync.Mutex
	distance uint8
	started  bool
	polls    int
}

// NewSimRanger creates a ranger that reports distance
func NewSimRanger(distance uint8) *SimRanger {
	return &SimRanger{distance: distance}
}

// Set changes the distance reported by later measurements
func (r *SimRanger) Set(distance uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.distance = distance
}

func (r *SimRanger) StartRanging() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
	r.polls = 0
	return nil
}

func (r *SimRanger) ResultReady() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls++
	return r.started && r.polls > 1, nil
}

func (r *SimRanger) ReadRange() (uint8, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.distance, nil
}

func (r *SimRanger) ClearInterrupt() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = false
	return nil
}

// SimADC returns a settable value
type SimADC struct {
	mu    sync.Mutex
	value uint16
}

// NewSimADC creates an ADC reading value
func NewSimADC(value uint16) *SimADC {
	return &SimADC{value: value}
}

func (a *SimADC) Set(value uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.value = value
}

func (a *SimADC) Read() uint16 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.value
}

// Sim is a complete simulated drivetrain and sensor set
type Sim struct {
	Left  *SimWheel
	Right *SimWheel

	LeftRanger  *SimRanger
	FrontRanger *SimRanger
	RightRanger *SimRanger

	ADC *SimADC

	last    uint32
	stepped bool
}

// NewSim creates a simulation with open walls and a healthy battery
func NewSim(gain float64, limit int32) *Sim {
	return &Sim{
		Left:        &SimWheel{Gain: gain, Limit: limit},
		Right:       &SimWheel{Gain: gain, Limit: limit},
		LeftRanger:  NewSimRanger(255),
		FrontRanger: NewSimRanger(255),
		RightRanger: NewSimRanger(255),
		ADC:         NewSimADC(3000),
	}
}

// Step advances both wheels to time now
func (s *Sim) Step(now uint32) {
	if s.stepped {
		dt := now - s.last
		s.Left.Step(dt)
		s.Right.Step(dt)
	}
	s.last = now
	s.stepped = true
}
