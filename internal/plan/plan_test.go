package plan

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"micromouse/internal/bot"
	"micromouse/internal/control"
	"micromouse/internal/ring"
)

type fakeEncoder struct{ count int32 }

func (e *fakeEncoder) Count() int32 { return e.count }
func (e *fakeEncoder) Reset()       { e.count = 0 }

type fakeMotor struct{}

func (fakeMotor) ChangePower(int32) {}

type fakeDistance struct{ mm uint8 }

func (d *fakeDistance) Range() uint8 { return d.mm }
func (d *fakeDistance) Update()      {}

type rig struct {
	left, front, right *fakeDistance
	plan               *Plan
}

func newRig(nav Navigator, maze Maze) *rig {
	cfg := bot.DefaultConfig()
	r := &rig{
		left:  &fakeDistance{mm: 255},
		front: &fakeDistance{mm: 255},
		right: &fakeDistance{mm: 255},
	}
	b := bot.New(bot.Hardware{
		LeftEncoder:   &fakeEncoder{},
		RightEncoder:  &fakeEncoder{},
		LeftMotor:     fakeMotor{},
		RightMotor:    fakeMotor{},
		LeftDistance:  r.left,
		FrontDistance: r.front,
		RightDistance: r.right,
	}, &cfg)
	r.plan = New(control.New(b, nil), nav, maze, nil)
	return r
}

// step runs one plan update and then abandons whatever move it started, so
// the next update dispatches again.
func (r *rig) step(now uint32) error {
	err := r.plan.Update(now)
	r.plan.Control().Stop()
	return err
}

// TestPlan_Update_LeftWallScenario tests exploring with only the left side open
func TestPlan_Update_LeftWallScenario(t *testing.T) {
	// Arrange
	r := newRig(LeftWallNavigator{}, Maze{Width: 16, Height: 16})
	r.front.mm = 30
	r.right.mm = 30
	r.plan.Go()

	// Act
	require.NoError(t, r.plan.Update(10))

	// Assert
	assert.Equal(t, []Move{TurnLeft, Forward}, r.plan.Queued())
	assert.Equal(t, Options{Left: true}, r.plan.Walls())
	assert.Equal(t, Up, r.plan.Heading())

	// Act - dispatch the turn
	require.NoError(t, r.plan.Update(20))

	// Assert
	assert.Equal(t, Left, r.plan.Heading())
	assert.Equal(t, []Move{Forward}, r.plan.Queued())
	spin, ok := r.plan.Control().Current().(*control.SpinMove)
	require.True(t, ok)
	assert.InDelta(t, -bot.DefaultConfig().TicksPerSpin/4, spin.Target(), 1e-9)
}

// TestPlan_Update_WaitsForIdleControl tests that queued moves wait for the
// running move
func TestPlan_Update_WaitsForIdleControl(t *testing.T) {
	r := newRig(LeftWallNavigator{}, Maze{Width: 16, Height: 16})
	require.NoError(t, r.plan.AddMoves(Forward, Forward))

	require.NoError(t, r.plan.Update(10))
	require.NoError(t, r.plan.Update(20))

	assert.Equal(t, 1, r.plan.QueueLen())
	assert.Equal(t, 1, r.plan.Y())
}

// TestPlan_Update_NotGoingDoesNothing tests the manual start gate
func TestPlan_Update_NotGoingDoesNothing(t *testing.T) {
	r := newRig(LeftWallNavigator{}, Maze{Width: 16, Height: 16})

	require.NoError(t, r.plan.Update(10))

	assert.Equal(t, 0, r.plan.QueueLen())
	assert.True(t, r.plan.Control().IsIdle())
}

// TestPlan_Dispatch_Odometry tests grid position and heading bookkeeping
func TestPlan_Dispatch_Odometry(t *testing.T) {
	// Arrange
	r := newRig(LeftWallNavigator{}, Maze{Width: 16, Height: 16})
	require.NoError(t, r.plan.AddMoves(Forward, TurnRight, Forward, Forward, TurnAround, Forward, TurnLeft, Forward))

	// Act
	now := uint32(10)
	for r.plan.QueueLen() > 0 {
		require.NoError(t, r.step(now))
		now += 10
	}

	// Assert - (0,1) (1,1) (2,1) (1,1) (1,0)
	assert.Equal(t, 1, r.plan.X())
	assert.Equal(t, 0, r.plan.Y())
	assert.Equal(t, Down, r.plan.Heading())
}

// TestPlan_AddMoves_QueueFull tests that overflow is surfaced and nothing is dropped silently
func TestPlan_AddMoves_QueueFull(t *testing.T) {
	// Arrange
	r := newRig(LeftWallNavigator{}, Maze{Width: 16, Height: 16})
	for i := 0; i < QueueCapacity-1; i++ {
		require.NoError(t, r.plan.AddMoves(Forward))
	}

	// Act
	err := r.plan.AddMoves(TurnLeft, Forward)

	// Assert
	assert.True(t, errors.Is(err, ErrQueueFull))
	assert.True(t, errors.Is(err, ring.ErrFull))
	assert.Equal(t, QueueCapacity-1, r.plan.QueueLen())
	assert.NoError(t, r.plan.AddMoves(TurnLeft))
}

// TestPlan_Stop tests that stop clears the queue and the gate
func TestPlan_Stop(t *testing.T) {
	r := newRig(LeftWallNavigator{}, Maze{Width: 16, Height: 16})
	r.plan.Go()
	require.NoError(t, r.plan.AddMoves(Forward, Forward))
	require.NoError(t, r.plan.Update(10))

	r.plan.Stop()

	assert.False(t, r.plan.Going())
	assert.Equal(t, 0, r.plan.QueueLen())
	assert.True(t, r.plan.Control().IsIdle())
}

// TestPlan_StopAtGoal tests that reaching the centre ends exploration
func TestPlan_StopAtGoal(t *testing.T) {
	// Arrange
	r := newRig(LeftWallNavigator{}, Maze{Width: 4, Height: 4})
	r.plan.SetStopAtGoal(true)
	r.plan.Go()
	require.NoError(t, r.plan.AddMoves(Forward, TurnRight, Forward))

	// Act
	for now := uint32(10); r.plan.QueueLen() > 0; now += 10 {
		require.NoError(t, r.step(now))
	}

	// Assert
	assert.True(t, r.plan.InGoal())
	assert.False(t, r.plan.Going())
}

// TestMaze_InGoal tests the centre region derived from the maze size
func TestMaze_InGoal(t *testing.T) {
	tests := []struct {
		name     string
		maze     Maze
		x, y     int
		expected bool
	}{
		{"16x16 lower centre", Maze{16, 16}, 7, 7, true},
		{"16x16 upper centre", Maze{16, 16}, 8, 8, true},
		{"16x16 mixed", Maze{16, 16}, 7, 8, true},
		{"16x16 outside", Maze{16, 16}, 6, 7, false},
		{"16x16 outside high", Maze{16, 16}, 9, 8, false},
		{"5x5 centre", Maze{5, 5}, 2, 2, true},
		{"5x5 beside centre", Maze{5, 5}, 3, 2, false},
		{"start corner", Maze{16, 16}, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.maze.InGoal(tt.x, tt.y))
		})
	}
}

// TestHeading_Turns tests heading arithmetic
func TestHeading_Turns(t *testing.T) {
	assert.Equal(t, Left, Up.TurnLeft())
	assert.Equal(t, Down, Left.TurnLeft())
	assert.Equal(t, Right, Up.TurnRight())
	assert.Equal(t, Up, Left.TurnRight())
	assert.Equal(t, Down, Up.Reverse())
	assert.Equal(t, Right, Left.Reverse())

	dx, dy := Left.Delta()
	assert.Equal(t, -1, dx)
	assert.Equal(t, 0, dy)
	dx, dy = Down.Delta()
	assert.Equal(t, 0, dx)
	assert.Equal(t, -1, dy)
}
