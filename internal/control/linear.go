package control

import (
	"math"

	"micromouse/internal/bot"
	"micromouse/internal/pid"
)

// LinearMove drives straight for a number of ticks while holding the heading.
// Near a front wall it switches to ranging off the wall, and the side sensors
// steer it back to the centre of the cell.
type LinearMove struct {
	linearPID *pid.Controller
	spinPID   *pid.Controller
	target    float64

	tolerance     float64
	wallTolerance float64
	settle        uint32

	ticksPerMM      float64
	cellWidth       float64
	cellOffset      float64
	wallThreshold   float64
	frontWallTarget float64
	centeringGain   float64

	started      bool
	lastOK       uint32
	lastUpdate   uint32
	lastLinearOK bool
	lastSpinOK   bool
	wallMode     bool
}

func newLinearMove(target float64, cfg *bot.Config) *LinearMove {
	limit := cfg.MoveOutputLimit

	linearPID := pid.New(cfg.LinearP, cfg.LinearI, cfg.LinearD)
	linearPID.SetLimits(-limit, limit)
	linearPID.SetMode(pid.OnMeasurement)
	linearPID.SetTarget(target)

	spinPID := pid.New(cfg.LinearSpinP, cfg.LinearSpinI, cfg.LinearSpinD)
	spinPID.SetLimits(-limit, limit)
	spinPID.SetMode(pid.OnMeasurement)

	return &LinearMove{
		linearPID:       linearPID,
		spinPID:         spinPID,
		target:          target,
		tolerance:       cfg.LinearErr,
		wallTolerance:   cfg.LinearWallErr,
		settle:          cfg.LinearSettle,
		ticksPerMM:      cfg.TicksPerMM,
		cellWidth:       cfg.CellWidth,
		cellOffset:      cfg.CellOffset,
		wallThreshold:   cfg.WallThreshold,
		frontWallTarget: cfg.FrontWallTarget,
		centeringGain:   cfg.CenteringGain,
	}
}

// Target returns the encoder target in ticks
func (m *LinearMove) Target() float64 { return m.target }

// WallMode reports whether the last update ranged off a front wall
func (m *LinearMove) WallMode() bool { return m.wallMode }

func (m *LinearMove) update(now uint32, b *bot.Bot) bool {
	if !m.started {
		m.started = true
		m.lastOK = now
		m.lastUpdate = now
	}

	// Encoder-referenced by default. With a wall close ahead, position is
	// the negated wall distance in ticks, so it still grows going forward.
	measured, target, tolerance := b.LinearPos(), m.target, m.tolerance
	front := float64(b.FrontDistance())
	wall := front < m.cellWidth
	if wall {
		measured = -front * m.ticksPerMM
		target = -m.frontWallTarget * m.ticksPerMM
		tolerance = m.wallTolerance
	}
	if wall != m.wallMode {
		m.linearPID.Reset()
		m.wallMode = wall
	}
	m.linearPID.SetTarget(target)

	spinPos := b.SpinPos()
	spinTarget := m.centering(float64(b.LeftDistance()), float64(b.RightDistance()))
	m.spinPID.SetTarget(spinTarget)

	linearOK := math.Abs(measured-target) <= tolerance
	spinOK := math.Abs(spinPos-spinTarget) <= m.tolerance

	if linearOK && !m.lastLinearOK {
		m.linearPID.Reset()
	}
	if spinOK && !m.lastSpinOK {
		m.spinPID.Reset()
	}
	m.lastLinearOK = linearOK
	m.lastSpinOK = spinOK

	if !linearOK || !spinOK {
		m.lastOK = now
	}

	if now-m.lastOK > m.settle {
		b.ChangeVelocity(0, 0)
		return true
	}

	dt := float64(now - m.lastUpdate)
	linear := m.linearPID.Update(measured, dt)
	spin := m.spinPID.Update(spinPos, dt)
	b.ChangeVelocity(linear, spin)
	m.lastUpdate = now
	return false
}

// centering returns the spin target that steers back to the middle of the
// cell. Positive turns clockwise, away from the left wall.
func (m *LinearMove) centering(left, right float64) float64 {
	leftWall := left <= m.wallThreshold
	rightWall := right <= m.wallThreshold

	switch {
	case left+right <= m.cellWidth:
		return (right - left) * m.centeringGain
	case leftWall && (!rightWall || left <= right):
		return (m.cellOffset - left) * m.centeringGain
	case rightWall:
		return (right - m.cellOffset) * m.centeringGain
	default:
		return 0
	}
}
