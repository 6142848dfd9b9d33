// Package bot models the differential drivetrain: two wheel velocity loops
// over two encoders and two motors, plus the three distance sensors.
package bot

import (
	"micromouse/internal/hw"
	"micromouse/internal/pid"
)

// Hardware is the set of collaborators a Bot drives
type Hardware struct {
	LeftEncoder  hw.Encoder
	RightEncoder hw.Encoder
	LeftMotor    hw.Motor
	RightMotor   hw.Motor

	LeftDistance  hw.DistanceSensor
	FrontDistance hw.DistanceSensor
	RightDistance hw.DistanceSensor
}

// Bot runs the wheel velocity loops. Positions are in encoder ticks,
// velocities in ticks per ms. Positive spin turns clockwise.
type Bot struct {
	hw     Hardware
	config *Config

	leftPID  *pid.Controller
	rightPID *pid.Controller

	lastLeftCount  int32
	lastRightCount int32
	leftVelocity   float64
	rightVelocity  float64
	leftPower      float64
	rightPower     float64

	lastUpdate uint32
}

// New creates a Bot. config is shared: later edits to it retune the wheel
// loops on the next control tick.
func New(hardware Hardware, config *Config) *Bot {
	b := &Bot{
		hw:       hardware,
		config:   config,
		leftPID:  pid.New(config.LeftP, config.LeftI, config.LeftD),
		rightPID: pid.New(config.RightP, config.RightI, config.RightD),
	}
	b.applyLimits()
	return b
}

func (b *Bot) applyLimits() {
	limit := b.config.WheelPowerLimit
	b.leftPID.SetLimits(-limit, limit)
	b.rightPID.SetLimits(-limit, limit)
}

// ChangeVelocity sets the wheel targets for a linear and an angular velocity.
// A full stop also clears both wheel loops.
func (b *Bot) ChangeVelocity(linear, angular float64) {
	b.leftPID.SetTarget(linear + angular/2)
	b.rightPID.SetTarget(linear - angular/2)

	if linear == 0 && angular == 0 {
		b.leftPID.Reset()
		b.rightPID.Reset()
	}
}

// Update runs one wheel control step once at least MinTickMS has passed since
// the previous one.
func (b *Bot) Update(now uint32) {
	dt := now - b.lastUpdate
	if dt < b.config.MinTickMS {
		return
	}

	b.leftPID.SetGains(b.config.LeftP, b.config.LeftI, b.config.LeftD)
	b.rightPID.SetGains(b.config.RightP, b.config.RightI, b.config.RightD)
	b.applyLimits()

	left := b.hw.LeftEncoder.Count()
	b.leftVelocity = float64(hw.TickDelta(left, b.lastLeftCount)) / float64(dt)
	b.leftPower = b.leftPID.Update(b.leftVelocity, float64(dt))
	b.hw.LeftMotor.ChangePower(int32(b.leftPower))
	b.lastLeftCount = left

	right := b.hw.RightEncoder.Count()
	b.rightVelocity = float64(hw.TickDelta(right, b.lastRightCount)) / float64(dt)
	b.rightPower = b.rightPID.Update(b.rightVelocity, float64(dt))
	b.hw.RightMotor.ChangePower(int32(b.rightPower))
	b.lastRightCount = right

	b.lastUpdate = now
}

// Reset zeroes both encoders together with the wheel loop memory
func (b *Bot) Reset() {
	b.hw.LeftEncoder.Reset()
	b.hw.RightEncoder.Reset()
	b.lastLeftCount = 0
	b.lastRightCount = 0

	b.leftPID.Reset()
	b.rightPID.Reset()
}

// Config returns the live configuration
func (b *Bot) Config() *Config { return b.config }

func (b *Bot) LeftPos() float64  { return float64(b.hw.LeftEncoder.Count()) }
func (b *Bot) RightPos() float64 { return float64(b.hw.RightEncoder.Count()) }

// LinearPos is the mean wheel travel
func (b *Bot) LinearPos() float64 { return (b.LeftPos() + b.RightPos()) / 2 }

// SpinPos is half the wheel travel difference
func (b *Bot) SpinPos() float64 { return (b.LeftPos() - b.RightPos()) / 2 }

func (b *Bot) LinearVelocity() float64 { return (b.leftVelocity + b.rightVelocity) / 2 }
func (b *Bot) SpinVelocity() float64   { return b.leftVelocity - b.rightVelocity }

func (b *Bot) LeftVelocity() float64  { return b.leftVelocity }
func (b *Bot) RightVelocity() float64 { return b.rightVelocity }
func (b *Bot) LeftTarget() float64    { return b.leftPID.Target() }
func (b *Bot) RightTarget() float64   { return b.rightPID.Target() }
func (b *Bot) LeftPower() float64     { return b.leftPower }
func (b *Bot) RightPower() float64    { return b.rightPower }

func (b *Bot) LeftTerms() pid.Terms  { return b.leftPID.Terms() }
func (b *Bot) RightTerms() pid.Terms { return b.rightPID.Terms() }

func (b *Bot) LeftDistance() uint8  { return b.hw.LeftDistance.Range() }
func (b *Bot) FrontDistance() uint8 { return b.hw.FrontDistance.Range() }
func (b *Bot) RightDistance() uint8 { return b.hw.RightDistance.Range() }
