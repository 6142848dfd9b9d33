package hw

// RangeDevice is the register-level surface of a time-of-flight ranger.
// Every call is a short bus transaction; none of them wait for a measurement.
type RangeDevice interface {
	StartRanging() error
	ResultReady() (bool, error)
	ReadRange() (uint8, error)
	ClearInterrupt() error
}

// Phase is the step a RangeSensor will perform on its next Update
type Phase int

const (
	PhaseStart Phase = iota
	PhasePoll
	PhaseRead
)

func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhasePoll:
		return "poll"
	case PhaseRead:
		return "read"
	default:
		return "unknown"
	}
}

// RangeSensor drives a RangeDevice through start, poll and read phases, one
// phase per Update, and re-arms itself after each result.
type RangeSensor struct {
	dev   RangeDevice
	phase Phase
	rng   uint8
	err   error

	errors int
}

// NewRangeSensor wraps dev. The first Update starts a measurement.
func NewRangeSensor(dev RangeDevice) *RangeSensor {
	return &RangeSensor{dev: dev, rng: 255}
}

// Update performs at most one phase of the measurement cycle. A failing bus
// transaction restarts the cycle on the next call; the last good range is
// kept.
func (s *RangeSensor) Update() {
	switch s.phase {
	case PhaseStart:
		if err := s.dev.StartRanging(); err != nil {
			s.fail(err)
			return
		}
		s.phase = PhasePoll
	case PhasePoll:
		ready, err := s.dev.ResultReady()
		if err != nil {
			s.fail(err)
			return
		}
		if ready {
			s.phase = PhaseRead
		}
	case PhaseRead:
		r, err := s.dev.ReadRange()
		if err != nil {
			s.fail(err)
			return
		}
		if err := s.dev.ClearInterrupt(); err != nil {
			s.fail(err)
			return
		}
		s.rng = r
		s.err = nil
		s.phase = PhaseStart
	}
}

func (s *RangeSensor) fail(err error) {
	s.err = err
	s.errors++
	s.phase = PhaseStart
}

// Range returns the last completed measurement in millimeters
func (s *RangeSensor) Range() uint8 { return s.rng }

// Phase returns the next phase to run
func (s *RangeSensor) Phase() Phase { return s.phase }

// Err returns the last bus error, cleared by the next good reading
func (s *RangeSensor) Err() error { return s.err }

// Errors returns the number of failed bus transactions
func (s *RangeSensor) Errors() int { return s.errors }
