// Package session applies messages received from the host and streams the
// telemetry the host asked for.
package session

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"micromouse/internal/motion"
	"micromouse/internal/msgs"
)

// Link is the message side of transport.Link
type Link interface {
	Receive(now uint32) (msgs.Message, error)
	Send(m msgs.Message) error
	TxLen() int
}

// Provider accepts sensor values supplied by the host in place of hardware
// readings
type Provider interface {
	ProvideDistance(tag msgs.Tag, mm uint8)
	ProvideBattery(raw float32)
}

// Snapshot is the telemetry available for streaming. Positions are in mm,
// time in seconds.
type Snapshot struct {
	Time float32

	LeftPos    float32
	RightPos   float32
	LeftPower  float32
	RightPower float32
	Battery    float32

	LeftDistance  uint8
	FrontDistance uint8
	RightDistance uint8

	LinearPos    float32
	AngularPos   float32
	LinearPower  float32
	AngularPower float32

	Linear  motion.ProfileConfig
	Angular motion.ProfileConfig
}

// Message returns the telemetry message for tag
func (s Snapshot) Message(tag msgs.Tag) (msgs.Message, bool) {
	scalar := func(v float32) (msgs.Message, bool) { return msgs.Scalar{ID: tag, Value: v}, true }
	distance := func(v uint8) (msgs.Message, bool) { return msgs.Distance{ID: tag, MM: v}, true }

	switch tag {
	case msgs.Time:
		return scalar(s.Time)
	case msgs.LeftPos:
		return scalar(s.LeftPos)
	case msgs.RightPos:
		return scalar(s.RightPos)
	case msgs.LeftPower:
		return scalar(s.LeftPower)
	case msgs.RightPower:
		return scalar(s.RightPower)
	case msgs.Battery:
		return scalar(s.Battery)
	case msgs.LeftDistance:
		return distance(s.LeftDistance)
	case msgs.FrontDistance:
		return distance(s.FrontDistance)
	case msgs.RightDistance:
		return distance(s.RightDistance)
	case msgs.LinearPos:
		return scalar(s.LinearPos)
	case msgs.AngularPos:
		return scalar(s.AngularPos)
	case msgs.LinearPower:
		return scalar(s.LinearPower)
	case msgs.AngularPower:
		return scalar(s.AngularPower)
	case msgs.LinearP:
		return scalar(float32(s.Linear.P))
	case msgs.LinearI:
		return scalar(float32(s.Linear.I))
	case msgs.LinearD:
		return scalar(float32(s.Linear.D))
	case msgs.LinearAcc:
		return scalar(float32(s.Linear.Acc))
	case msgs.AngularP:
		return scalar(float32(s.Angular.P))
	case msgs.AngularI:
		return scalar(float32(s.Angular.I))
	case msgs.AngularD:
		return scalar(float32(s.Angular.D))
	case msgs.AngularAcc:
		return scalar(float32(s.Angular.Acc))
	default:
		return nil, false
	}
}

// Session ties a link to the remote driver
type Session struct {
	link     Link
	remote   *motion.Remote
	provider Provider
	logger   *zap.Logger

	logged   []msgs.Tag
	provided []msgs.Tag

	handled    uint64
	unexpected uint64
}

// New creates a session. provider may be nil when the host never supplies
// sensor values.
func New(link Link, remote *motion.Remote, provider Provider, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		link:     link,
		remote:   remote,
		provider: provider,
		logger:   logger,
	}
}

// Update receives and applies at most one message. Running out of bytes is
// not an error.
func (s *Session) Update(now uint32) error {
	m, err := s.link.Receive(now)
	if err != nil {
		if errors.Is(err, msgs.ErrNeedMoreBytes) {
			return nil
		}
		return err
	}
	return s.Handle(m)
}

// Handle applies one message
func (s *Session) Handle(m msgs.Message) error {
	s.handled++

	switch m := m.(type) {
	case msgs.TagList:
		switch m.ID {
		case msgs.Logged:
			s.logged = append(s.logged[:0], m.Tags...)
			s.logger.Info("logged tags changed", zap.Stringers("tags", m.Tags))
		case msgs.Provided:
			s.provided = append(s.provided[:0], m.Tags...)
			s.logger.Info("provided tags changed", zap.Stringers("tags", m.Tags))
		}
		return nil

	case msgs.Pair:
		if m.ID == msgs.AddLinear {
			return s.remote.AddLinear(float64(m.Velocity), float64(m.Distance))
		}
		return s.remote.AddAngular(float64(m.Velocity), float64(m.Distance))

	case msgs.Scalar:
		if m.ID == msgs.Battery && s.isProvided(m.ID) {
			s.provider.ProvideBattery(m.Value)
			return nil
		}
		if s.tune(m.ID, float64(m.Value)) {
			return nil
		}

	case msgs.Distance:
		if s.isProvided(m.ID) {
			s.provider.ProvideDistance(m.ID, m.MM)
			return nil
		}
	}

	s.unexpected++
	s.logger.Debug("unexpected message", zap.Stringer("tag", m.Tag()))
	return nil
}

func (s *Session) isProvided(tag msgs.Tag) bool {
	if s.provider == nil {
		return false
	}
	for _, t := range s.provided {
		if t == tag {
			return true
		}
	}
	return false
}

// tune applies a gain message and reports whether tag was a gain. Values
// that fail validation are ignored.
func (s *Session) tune(tag msgs.Tag, v float64) bool {
	cfg := motion.Config{Linear: s.remote.Linear().Config(), Angular: s.remote.Angular().Config()}

	var field *float64
	switch tag {
	case msgs.LinearP:
		field = &cfg.Linear.P
	case msgs.LinearI:
		field = &cfg.Linear.I
	case msgs.LinearD:
		field = &cfg.Linear.D
	case msgs.LinearAcc:
		field = &cfg.Linear.Acc
	case msgs.AngularP:
		field = &cfg.Angular.P
	case msgs.AngularI:
		field = &cfg.Angular.I
	case msgs.AngularD:
		field = &cfg.Angular.D
	case msgs.AngularAcc:
		field = &cfg.Angular.Acc
	default:
		return false
	}

	*field = v
	if err := cfg.Validate(); err != nil {
		s.logger.Warn("gain rejected", zap.Stringer("tag", tag), zap.Float64("value", v), zap.Error(err))
		return true
	}
	s.remote.Linear().SetConfig(cfg.Linear)
	s.remote.Angular().SetConfig(cfg.Angular)
	return true
}

// Stream sends one message per logged tag, but only once the previous batch
// has left the transmit buffer
func (s *Session) Stream(snap Snapshot) error {
	if len(s.logged) == 0 || s.link.TxLen() != 0 {
		return nil
	}
	for _, tag := range s.logged {
		m, ok := snap.Message(tag)
		if !ok {
			continue
		}
		if err := s.link.Send(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) Logged() []msgs.Tag   { return append([]msgs.Tag(nil), s.logged...) }
func (s *Session) Provided() []msgs.Tag { return append([]msgs.Tag(nil), s.provided...) }
func (s *Session) Handled() uint64      { return s.handled }
func (s *Session) Unexpected() uint64   { return s.unexpected }
