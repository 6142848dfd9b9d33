// Package plan turns wall readings into discrete moves and tracks the
// robot's cell and heading on the maze grid.
package plan

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"micromouse/internal/control"
	"micromouse/internal/ring"
)

// QueueCapacity is the number of moves that may be waiting
const QueueCapacity = 32

// ErrQueueFull is returned when moves do not fit in the queue
var ErrQueueFull = errors.Wrap(ring.ErrFull, "move queue")

// Plan owns Control, the move queue and the grid pose
type Plan struct {
	control  *control.Control
	nav      Navigator
	maze     Maze
	queue    *ring.Buffer[Move]
	logger   *zap.Logger

	going      bool
	stopAtGoal bool

	x, y    int
	heading Heading
	walls   Options
}

// New creates a stopped plan at (0, 0) facing up
func New(c *control.Control, nav Navigator, maze Maze, logger *zap.Logger) *Plan {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Plan{
		control: c,
		nav:     nav,
		maze:    maze,
		queue:   ring.New[Move](QueueCapacity),
		logger:  logger,
		heading: Up,
	}
}

// SetStopAtGoal makes the plan stop navigating once a move lands in the goal
func (p *Plan) SetStopAtGoal(stop bool) {
	p.stopAtGoal = stop
}

// Update dispatches the next queued move when Control is idle, or asks the
// navigator for more moves while going. Control is updated on every call.
// A full queue is reported after Control has run.
func (p *Plan) Update(now uint32) error {
	var err error
	if p.control.IsIdle() {
		if next, ok := p.queue.Pop(); ok {
			p.dispatch(next)
		} else if p.going {
			err = p.explore()
		}
	}

	p.control.Update(now)
	return err
}

func (p *Plan) dispatch(m Move) {
	switch m {
	case TurnLeft:
		p.control.TurnLeft()
		p.heading = p.heading.TurnLeft()
	case TurnRight:
		p.control.TurnRight()
		p.heading = p.heading.TurnRight()
	case TurnAround:
		p.control.TurnAround()
		p.heading = p.heading.Reverse()
	case Forward:
		p.control.Forward()
		dx, dy := p.heading.Delta()
		p.x += dx
		p.y += dy
		if p.maze.InGoal(p.x, p.y) {
			p.logger.Info("goal reached", zap.Int("x", p.x), zap.Int("y", p.y))
			if p.stopAtGoal {
				p.going = false
			}
		}
	}
	p.logger.Debug("dispatched move",
		zap.Stringer("move", m),
		zap.Int("x", p.x),
		zap.Int("y", p.y),
		zap.Stringer("heading", p.heading))
}

func (p *Plan) explore() error {
	b := p.control.Bot()
	threshold := b.Config().WallThreshold
	p.walls = Options{
		Left:    float64(b.LeftDistance()) > threshold,
		Forward: float64(b.FrontDistance()) > threshold,
		Right:   float64(b.RightDistance()) > threshold,
	}

	next := p.nav.Navigate(p.x, p.y, p.heading, p.walls)
	return p.AddMoves(next...)
}

// AddMoves queues moves in order. Nothing is queued if they do not all fit.
func (p *Plan) AddMoves(moves ...Move) error {
	if err := p.queue.PushAll(moves...); err != nil {
		p.logger.Warn("move queue full", zap.Int("queued", p.queue.Len()), zap.Int("dropped", len(moves)))
		return errors.Wrapf(ErrQueueFull, "%d moves dropped", len(moves))
	}
	return nil
}

// SetNavigator replaces the navigator used for the next decision
func (p *Plan) SetNavigator(nav Navigator) {
	p.nav = nav
	p.logger.Info("navigator changed", zap.String("navigator", nav.Name()))
}

// Go starts autonomous navigation
func (p *Plan) Go() {
	p.going = true
}

// Stop halts navigation and the current move. Queued moves are discarded.
func (p *Plan) Stop() {
	p.going = false
	p.queue.Clear()
	p.control.Stop()
}

func (p *Plan) Control() *control.Control { return p.control }
func (p *Plan) Navigator() Navigator       { return p.nav }
func (p *Plan) Maze() Maze                 { return p.maze }
func (p *Plan) Going() bool                { return p.going }
func (p *Plan) X() int                     { return p.x }
func (p *Plan) Y() int                     { return p.y }
func (p *Plan) Heading() Heading           { return p.heading }
func (p *Plan) Walls() Options             { return p.walls }
func (p *Plan) QueueLen() int              { return p.queue.Len() }
func (p *Plan) InGoal() bool               { return p.maze.InGoal(p.x, p.y) }

// Queued returns the waiting moves, oldest first
func (p *Plan) Queued() []Move {
	out := make([]Move, p.queue.Len())
	p.queue.PeekInto(out)
	return out
}
