package control

import (
	"math"

	"micromouse/internal/bot"
	"micromouse/internal/pid"
)

// SpinMove turns in place until the spin position has stayed within
// tolerance of the target for the settle time.
type SpinMove struct {
	pid       *pid.Controller
	tolerance float64
	settle    uint32

	started    bool
	lastOK     uint32 // last time the error was out of tolerance
	lastUpdate uint32
}

// Gains are copied here; later config edits do not affect a running move.
func newSpinMove(target float64, cfg *bot.Config) *SpinMove {
	p := pid.New(cfg.SpinP, cfg.SpinI, cfg.SpinD)
	p.SetLimits(-cfg.MoveOutputLimit, cfg.MoveOutputLimit)
	p.SetMode(pid.OnMeasurement)
	p.SetTarget(target)

	return &SpinMove{
		pid:       p,
		tolerance: cfg.SpinErr,
		settle:    cfg.SpinSettle,
	}
}

// Target returns the spin target in ticks
func (m *SpinMove) Target() float64 { return m.pid.Target() }

func (m *SpinMove) update(now uint32, b *bot.Bot) bool {
	if !m.started {
		m.started = true
		m.lastOK = now
		m.lastUpdate = now
	}

	spinPos := b.SpinPos()
	if math.Abs(spinPos-m.pid.Target()) > m.tolerance {
		m.lastOK = now
	}

	if now-m.lastOK > m.settle {
		b.ChangeVelocity(0, 0)
		return true
	}

	spin := m.pid.Update(spinPos, float64(now-m.lastUpdate))
	b.ChangeVelocity(0, spin)
	m.lastUpdate = now
	return false
}
