package motion

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"micromouse/internal/bot"
)

// run steps the profile every 10ms over ticks from..to, feeding back the
// previous reference as the measurement
func run(p *Profile, from, to int) []float64 {
	var commands []float64
	for i := from; i <= to; i++ {
		commands = append(commands, p.Update(float64(i)/100, p.Position()))
	}
	return commands
}

// TestProfile_Update_Trapezoid tests a full accelerate, cruise, decelerate segment
func TestProfile_Update_Trapezoid(t *testing.T) {
	// Arrange - 500mm at 500mm/s with 1000mm/s^2: 0.5s per phase
	p := NewProfile(ProfileConfig{P: 1, Acc: 1000})
	require.NoError(t, p.Queue(Target{Velocity: 500, Distance: 500}))

	// Act & Assert
	run(p, 0, 20)
	assert.Equal(t, PhaseAccelerate, p.Phase())
	assert.InDelta(t, 200, p.Velocity(), 1e-6)

	run(p, 21, 70)
	assert.Equal(t, PhaseCruise, p.Phase())
	assert.InDelta(t, 490, p.Velocity(), 1e-6)

	run(p, 71, 120)
	assert.Equal(t, PhaseDecelerate, p.Phase())

	run(p, 121, 200)
	assert.Equal(t, PhaseIdle, p.Phase())
	assert.Equal(t, 0.0, p.Velocity())
	assert.InDelta(t, 500, p.Position(), 25)
	assert.Equal(t, 0, p.Pending())
}

// TestProfile_Update_Reverse tests that a negative velocity travels backwards
func TestProfile_Update_Reverse(t *testing.T) {
	p := NewProfile(ProfileConfig{Acc: 1000})
	require.NoError(t, p.Queue(Target{Velocity: -200, Distance: 100}))

	run(p, 0, 200)

	assert.InDelta(t, -100, p.Position(), 10)
}

// TestProfile_Update_FeedForward tests that without gains the command is the
// profile velocity
func TestProfile_Update_FeedForward(t *testing.T) {
	p := NewProfile(ProfileConfig{Acc: 1000})
	require.NoError(t, p.Queue(Target{Velocity: 300, Distance: 300}))

	commands := run(p, 0, 10)

	assert.InDelta(t, p.Velocity(), commands[len(commands)-1], 1e-6)
}

// TestProfile_Update_PositionError tests the PID correction on lag
func TestProfile_Update_PositionError(t *testing.T) {
	p := NewProfile(ProfileConfig{P: 2, Acc: 1000})
	require.NoError(t, p.Queue(Target{Velocity: 300, Distance: 300}))

	p.Update(0, 0)
	cmd := p.Update(0.01, 0)

	// velocity 10, reference 0.1mm ahead of a stationary wheel
	assert.InDelta(t, 10+2*0.1, cmd, 1e-6)
}

// TestProfile_Update_Sequence tests that targets run oldest first
func TestProfile_Update_Sequence(t *testing.T) {
	p := NewProfile(ProfileConfig{Acc: 1000})
	require.NoError(t, p.Queue(Target{Velocity: 100, Distance: 10}))
	require.NoError(t, p.Queue(Target{Velocity: 400, Distance: 200}))

	p.Update(0, 0)
	assert.Equal(t, Target{Velocity: 100, Distance: 10}, p.Target())
	assert.Equal(t, 1, p.Pending())

	run(p, 1, 400)
	assert.Equal(t, 0, p.Pending())
	assert.InDelta(t, 210, p.Position(), 20)
}

// TestProfile_Update_NoTarget tests that an empty profile stays at rest
func TestProfile_Update_NoTarget(t *testing.T) {
	p := NewProfile(ProfileConfig{P: 1, Acc: 1000})

	commands := run(p, 0, 10)

	for _, c := range commands {
		assert.Equal(t, 0.0, c)
	}
	assert.Equal(t, PhaseIdle, p.Phase())
}

// TestProfile_Queue_Full tests the bounded target buffer
func TestProfile_Queue_Full(t *testing.T) {
	p := NewProfile(ProfileConfig{Acc: 1000})
	for i := 0; i < TargetBufferSize; i++ {
		require.NoError(t, p.Queue(Target{Velocity: 1, Distance: 1}))
	}

	err := p.Queue(Target{Velocity: 1, Distance: 1})

	assert.True(t, errors.Is(err, ErrTargetBufferFull))
	assert.Equal(t, TargetBufferSize, p.Pending())
}

// TestProfile_Reset tests returning to rest
func TestProfile_Reset(t *testing.T) {
	p := NewProfile(ProfileConfig{Acc: 1000})
	require.NoError(t, p.Queue(Target{Velocity: 100, Distance: 100}))
	require.NoError(t, p.Queue(Target{Velocity: 100, Distance: 100}))
	run(p, 0, 20)

	p.Reset()

	assert.Equal(t, 0, p.Pending())
	assert.Equal(t, 0.0, p.Position())
	assert.Equal(t, 0.0, p.Velocity())
	assert.Equal(t, PhaseIdle, p.Phase())
}

// TestConfig_Validate tests aggregated validation errors
func TestConfig_Validate(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Validate())

	c.Linear.P = -1
	c.Angular.Acc = 0
	err := c.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "motion.linear.p")
	assert.Contains(t, err.Error(), "motion.angular.acc")
}

// TestConfig_ApplyDefaults tests filling zero accelerations
func TestConfig_ApplyDefaults(t *testing.T) {
	c := Config{Linear: ProfileConfig{P: 3}}

	c.ApplyDefaults()

	assert.Equal(t, 3.0, c.Linear.P)
	assert.Equal(t, DefaultConfig().Linear.Acc, c.Linear.Acc)
	assert.Equal(t, DefaultConfig().Angular.Acc, c.Angular.Acc)
}

type fakeEncoder struct{ count int32 }

func (e *fakeEncoder) Count() int32 { return e.count }
func (e *fakeEncoder) Reset()       { e.count = 0 }

type fakeMotor struct{ power int32 }

func (m *fakeMotor) ChangePower(p int32) { m.power = p }

type fakeDistance struct{}

func (fakeDistance) Range() uint8 { return 255 }
func (fakeDistance) Update()      {}

func newRemote(config Config) (*Remote, *bot.Bot) {
	cfg := bot.DefaultConfig()
	b := bot.New(bot.Hardware{
		LeftEncoder:   &fakeEncoder{},
		RightEncoder:  &fakeEncoder{},
		LeftMotor:     &fakeMotor{},
		RightMotor:    &fakeMotor{},
		LeftDistance:  fakeDistance{},
		FrontDistance: fakeDistance{},
		RightDistance: fakeDistance{},
	}, &cfg)
	return NewRemote(b, config, nil), b
}

// TestRemote_Update_Linear tests converting a linear command to wheel targets
func TestRemote_Update_Linear(t *testing.T) {
	// Arrange
	r, b := newRemote(Config{
		Linear:  ProfileConfig{P: 2, Acc: 1000},
		Angular: ProfileConfig{Acc: 1000},
	})
	require.NoError(t, r.AddLinear(500, 100))

	// Act
	r.Update(0)
	r.Update(10)

	// Assert - 10.2mm/s at 9 ticks/mm
	assert.InDelta(t, 10.2, r.LinearCommand(), 1e-6)
	assert.InDelta(t, 10.2*9/1000, b.LeftTarget(), 1e-9)
	assert.InDelta(t, 10.2*9/1000, b.RightTarget(), 1e-9)
}

// TestRemote_Update_Angular tests that spin commands drive the wheels apart
func TestRemote_Update_Angular(t *testing.T) {
	r, b := newRemote(DefaultConfig())
	require.NoError(t, r.AddAngular(100, 50))

	r.Update(0)
	r.Update(10)

	assert.Greater(t, b.LeftTarget(), 0.0)
	assert.InDelta(t, -b.LeftTarget(), b.RightTarget(), 1e-9)
	assert.InDelta(t, r.AngularCommand()*9/1000, b.LeftTarget(), 1e-9)
}

// TestRemote_Update_MinTick tests that profiles only advance once per period
func TestRemote_Update_MinTick(t *testing.T) {
	r, _ := newRemote(DefaultConfig())
	require.NoError(t, r.AddLinear(500, 100))

	r.Update(0)
	r.Update(5)

	assert.Equal(t, 0.0, r.Linear().Position())
}

// TestRemote_Stop tests discarding targets
func TestRemote_Stop(t *testing.T) {
	r, b := newRemote(DefaultConfig())
	require.NoError(t, r.AddLinear(500, 100))
	require.NoError(t, r.AddLinear(500, 100))
	r.Update(0)
	r.Update(10)

	r.Stop()

	assert.Equal(t, 0, r.Linear().Pending())
	assert.Equal(t, 0.0, b.LeftTarget())
	assert.Equal(t, 0.0, b.RightTarget())
	assert.Equal(t, 0.0, r.LinearCommand())
}
