// Package motion generates trapezoidal velocity profiles and uses them to
// drive the bot directly from queued velocity and distance targets.
package motion

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"micromouse/internal/pid"
	"micromouse/internal/ring"
)

// TargetBufferSize is the number of targets a Profile can hold
const TargetBufferSize = 64

// ErrTargetBufferFull is returned by Queue when the buffer is at capacity
var ErrTargetBufferFull = errors.New("target buffer full")

// Target is one profile segment. The sign of Velocity gives the direction of
// travel; Distance is the unsigned length of the segment.
type Target struct {
	Velocity float64
	Distance float64
}

// Phase is the part of the trapezoid a profile is in
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAccelerate
	PhaseCruise
	PhaseDecelerate
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAccelerate:
		return "accelerate"
	case PhaseCruise:
		return "cruise"
	case PhaseDecelerate:
		return "decelerate"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Profile integrates a trapezoidal velocity ramp into a reference position
// and closes a PID loop on it. Time is in seconds; the distance unit is
// whatever the caller measures in.
type Profile struct {
	pid     *pid.Controller
	targets *ring.Buffer[Target]
	config  ProfileConfig

	target    Target
	phase     Phase
	position  float64
	velocity  float64
	direction float64

	started  bool
	lastTime float64

	accelEnd  float64
	cruiseEnd float64
	decelEnd  float64
}

// NewProfile creates an idle profile
func NewProfile(config ProfileConfig) *Profile {
	p := &Profile{
		pid:       pid.New(config.P, config.I, config.D),
		targets:   ring.New[Target](TargetBufferSize),
		config:    config,
		direction: 1,
	}
	p.pid.SetMode(pid.OnMeasurement)
	return p
}

// Queue appends a target behind the ones already waiting
func (p *Profile) Queue(t Target) error {
	if err := p.targets.Push(t); err != nil {
		return ErrTargetBufferFull
	}
	return nil
}

// Update advances the profile to now and returns the velocity command for
// the measured position: the profile velocity plus the PID correction.
func (p *Profile) Update(now, measured float64) float64 {
	dt := 0.0
	if p.started {
		dt = now - p.lastTime
	}
	p.started = true
	p.lastTime = now

	acc := p.config.Acc
	switch {
	case now < p.accelEnd:
		p.phase = PhaseAccelerate
		p.velocity += acc * dt
	case now < p.cruiseEnd:
		p.phase = PhaseCruise
	case now < p.decelEnd:
		p.phase = PhaseDecelerate
		p.velocity = math.Max(p.velocity-acc*dt, 0)
	default:
		p.next(now)
	}

	p.position += p.velocity * dt * p.direction

	p.pid.SetTarget(p.position)
	return p.velocity*p.direction + p.pid.Update(measured, dt)
}

// next starts the oldest waiting target, planning the ramp so that the
// segment ends at the speed of the target after it.
func (p *Profile) next(now float64) {
	p.target, _ = p.targets.Pop()
	following, _ := p.targets.Peek(0)

	vi := p.velocity
	vm := math.Abs(p.target.Velocity)
	vf := math.Min(math.Abs(following.Velocity), vm)
	a := p.config.Acc
	d := math.Abs(p.target.Distance)

	if vm == 0 || d == 0 || a <= 0 {
		p.phase = PhaseIdle
		p.velocity = 0
		p.accelEnd, p.cruiseEnd, p.decelEnd = now, now, now
		return
	}

	if p.target.Velocity < 0 {
		p.direction = -1
	} else {
		p.direction = 1
	}

	v := math.Min(0.5*math.Sqrt(2*(2*d*a+vf*vf+vi*vi)), vm)
	if vi > v {
		p.velocity = v
		vi = v
	}

	t1 := math.Max((v-vi)/a, 0)
	t3 := math.Max((v-vf)/a, 0)
	covered := vi*t1 + 0.5*(v-vi)*t1 + vf*t3 + 0.5*(v-vf)*t3
	t2 := math.Max((d-covered)/v, 0)

	p.accelEnd = now + t1
	p.cruiseEnd = p.accelEnd + t2
	p.decelEnd = p.cruiseEnd + t3
	p.phase = PhaseAccelerate
}

// Reset drops every target and returns the profile to rest at position 0
func (p *Profile) Reset() {
	p.targets.Clear()
	p.target = Target{}
	p.phase = PhaseIdle
	p.position = 0
	p.velocity = 0
	p.direction = 1
	p.started = false
	p.accelEnd, p.cruiseEnd, p.decelEnd = 0, 0, 0
	p.pid.Reset()
}

// Config returns the gains and acceleration in use
func (p *Profile) Config() ProfileConfig { return p.config }

// SetConfig retunes the loop. The running segment keeps its timing.
func (p *Profile) SetConfig(c ProfileConfig) {
	p.config = c
	p.pid.SetGains(c.P, c.I, c.D)
}

func (p *Profile) Target() Target    { return p.target }
func (p *Profile) Phase() Phase      { return p.phase }
func (p *Profile) Position() float64 { return p.position }
func (p *Profile) Velocity() float64 { return p.velocity * p.direction }
func (p *Profile) Pending() int      { return p.targets.Len() }
