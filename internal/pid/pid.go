// Package pid implements the single-loop PID controller shared by the wheel
// velocity loops and the move position loops.
package pid

import (
	"math"
)

// DerivativeMode selects what the derivative term differentiates
type DerivativeMode int

const (
	// OnError differentiates the error. Target steps produce a derivative kick.
	OnError DerivativeMode = iota
	// OnMeasurement differentiates the negated measurement, so changing the
	// target does not kick the output.
	OnMeasurement
)

// Controller implements a PID controller with output clamping
type Controller struct {
	// PID gains
	Kp float64
	Ki float64
	Kd float64

	target float64
	mode   DerivativeMode

	// Internal state
	integral        float64
	prevError       float64
	prevMeasurement float64
	hasPrev         bool // false until the first update after New or Reset

	// Output limits
	minOutput float64
	maxOutput float64

	// Optional integral clamp, 0 disables it
	integralMax float64

	terms Terms
}

// Terms contains the individual PID components of the last update
type Terms struct {
	P     float64 // Proportional term
	I     float64 // Integral term
	D     float64 // Derivative term
	Error float64 // Current error
}

// New creates a controller with zero state and unbounded output
func New(kp, ki, kd float64) *Controller {
	return &Controller{
		Kp:        kp,
		Ki:        ki,
		Kd:        kd,
		minOutput: math.Inf(-1),
		maxOutput: math.Inf(1),
	}
}

// Update computes the clamped output for a measurement taken dt after the
// previous one. A non-positive or non-finite dt skips the integral and
// derivative contributions.
func (c *Controller) Update(measurement, dt float64) float64 {
	err := c.target - measurement

	validDt := dt > 0 && !math.IsInf(dt, 0) && !math.IsNaN(dt)

	if validDt {
		c.integral += err * dt
		if c.integralMax > 0 {
			c.integral = clamp(c.integral, -c.integralMax, c.integralMax)
		}
	}

	var derivative float64
	if validDt && c.hasPrev {
		switch c.mode {
		case OnMeasurement:
			derivative = -(measurement - c.prevMeasurement) / dt
		default:
			derivative = (err - c.prevError) / dt
		}
	}

	c.terms = Terms{
		P:     c.Kp * err,
		I:     c.Ki * c.integral,
		D:     c.Kd * derivative,
		Error: err,
	}

	c.prevError = err
	c.prevMeasurement = measurement
	c.hasPrev = true

	output := c.terms.P + c.terms.I + c.terms.D
	if math.IsNaN(output) {
		output = 0
	}
	return clamp(output, c.minOutput, c.maxOutput)
}

// Reset clears the integral and derivative memory. Gains, target and limits
// are kept.
func (c *Controller) Reset() {
	c.integral = 0
	c.prevError = 0
	c.prevMeasurement = 0
	c.hasPrev = false
	c.terms = Terms{}
}

// SetTarget updates the setpoint
func (c *Controller) SetTarget(target float64) {
	c.target = target
}

// Target returns the setpoint
func (c *Controller) Target() float64 {
	return c.target
}

// SetGains updates the PID gains
func (c *Controller) SetGains(kp, ki, kd float64) {
	c.Kp = kp
	c.Ki = ki
	c.Kd = kd
}

// SetLimits updates the output limits
func (c *Controller) SetLimits(minOutput, maxOutput float64) {
	c.minOutput = minOutput
	c.maxOutput = maxOutput
}

// Limits returns the output limits
func (c *Controller) Limits() (float64, float64) {
	return c.minOutput, c.maxOutput
}

// SetMode selects the derivative mode
func (c *Controller) SetMode(mode DerivativeMode) {
	c.mode = mode
}

// SetIntegralLimit bounds the accumulated integral to [-m, m]. Zero disables
// the bound, which is the default.
func (c *Controller) SetIntegralLimit(m float64) {
	c.integralMax = math.Abs(m)
}

// Integral returns the accumulated error integral
func (c *Controller) Integral() float64 {
	return c.integral
}

// Terms returns the components of the last update
func (c *Controller) Terms() Terms {
	return c.terms
}

func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
