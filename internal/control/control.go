// Package control executes discrete moves on top of the drivetrain. Exactly
// one move is active at a time and a running move is never preempted except
// by Stop.
package control

import (
	"go.uber.org/zap"

	"micromouse/internal/bot"
)

// Move is the active move: Idle, *SpinMove or *LinearMove.
type Move interface {
	isMove()
}

// Idle is the state with no move in progress
type Idle struct{}

func (Idle) isMove()        {}
func (*SpinMove) isMove()   {}
func (*LinearMove) isMove() {}

// Control owns the Bot and the current move
type Control struct {
	bot     *bot.Bot
	current Move
	logger  *zap.Logger

	lastUpdate uint32
	finished   uint64
}

// New creates an idle Control
func New(b *bot.Bot, logger *zap.Logger) *Control {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Control{bot: b, current: Idle{}, logger: logger}
}

// Spin starts a spin to target ticks of spin position. It is ignored unless
// Control is idle; the return value reports whether the move started.
func (c *Control) Spin(target float64) bool {
	if !c.IsIdle() {
		return false
	}
	c.current = newSpinMove(target, c.bot.Config())
	c.logger.Debug("move started", zap.String("move", "spin"), zap.Float64("target", target))
	return true
}

// Linear starts a straight move of target ticks. It is ignored unless
// Control is idle.
func (c *Control) Linear(target float64) bool {
	if !c.IsIdle() {
		return false
	}
	c.current = newLinearMove(target, c.bot.Config())
	c.logger.Debug("move started", zap.String("move", "linear"), zap.Float64("target", target))
	return true
}

// TurnLeft spins a quarter turn counter-clockwise
func (c *Control) TurnLeft() bool {
	return c.Spin(-c.bot.Config().TicksPerSpin / 4)
}

// TurnRight spins a quarter turn clockwise
func (c *Control) TurnRight() bool {
	return c.Spin(c.bot.Config().TicksPerSpin / 4)
}

// TurnAround spins half a turn
func (c *Control) TurnAround() bool {
	return c.Spin(c.bot.Config().TicksPerSpin / 2)
}

// Forward drives one cell
func (c *Control) Forward() bool {
	return c.Linear(c.bot.Config().TicksPerCell)
}

// Update advances the active move once per control period and always runs
// the wheel loops. A finished move leaves Control idle with the drivetrain
// reset.
func (c *Control) Update(now uint32) {
	if now-c.lastUpdate >= c.bot.Config().MinTickMS {
		var done bool
		switch m := c.current.(type) {
		case *SpinMove:
			done = m.update(now, c.bot)
		case *LinearMove:
			done = m.update(now, c.bot)
		case Idle:
		}

		if done {
			c.logger.Debug("move finished", zap.String("move", c.CurrentMoveName()), zap.Uint32("now", now))
			c.current = Idle{}
			c.finished++
			c.bot.Reset()
		}

		c.lastUpdate = now
	}

	c.bot.Update(now)
}

// Stop abandons any move, zeroes the velocity and resets the drivetrain
func (c *Control) Stop() {
	if !c.IsIdle() {
		c.logger.Info("move stopped", zap.String("move", c.CurrentMoveName()))
	}
	c.bot.ChangeVelocity(0, 0)
	c.bot.Reset()
	c.current = Idle{}
}

// IsIdle reports whether no move is active
func (c *Control) IsIdle() bool {
	_, idle := c.current.(Idle)
	return idle
}

// Current returns the active move
func (c *Control) Current() Move { return c.current }

// CurrentMoveName returns "idle", "spin" or "linear"
func (c *Control) CurrentMoveName() string {
	switch c.current.(type) {
	case *SpinMove:
		return "spin"
	case *LinearMove:
		return "linear"
	default:
		return "idle"
	}
}

// Finished returns the number of moves that ran to completion
func (c *Control) Finished() uint64 { return c.finished }

// Bot returns the drivetrain
func (c *Control) Bot() *bot.Bot { return c.bot }
