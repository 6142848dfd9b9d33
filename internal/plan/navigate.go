package plan

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
)

// Navigator chooses the next moves from the robot's pose and the open
// neighbours. It returns at most two moves.
type Navigator interface {
	Navigate(x, y int, heading Heading, options Options) []Move
	Name() string
}

// Navigator kinds accepted by NewNavigator
const (
	KindLeftWall = "left_wall"
	KindRandom   = "random"
	KindCounting = "counting"
)

// NewNavigator builds the navigator named by kind
func NewNavigator(kind string, seed uint64, maze Maze) (Navigator, error) {
	switch kind {
	case KindLeftWall, "":
		return LeftWallNavigator{}, nil
	case KindRandom:
		return NewRandomNavigator(seed), nil
	case KindCounting:
		return NewCountingNavigator(maze), nil
	default:
		return nil, errors.Errorf("unknown navigator %q", kind)
	}
}

var (
	leftThenForward  = []Move{TurnLeft, Forward}
	rightThenForward = []Move{TurnRight, Forward}
	forwardOnly      = []Move{Forward}
	aroundThenFwd    = []Move{TurnAround, Forward}
)

func moves(m []Move) []Move {
	return append([]Move(nil), m...)
}

// LeftWallNavigator follows the left wall: left, then forward, then right,
// then back the way it came.
type LeftWallNavigator struct{}

func (LeftWallNavigator) Name() string { return KindLeftWall }

func (LeftWallNavigator) Navigate(_, _ int, _ Heading, o Options) []Move {
	switch {
	case o.Left:
		return moves(leftThenForward)
	case o.Forward:
		return moves(forwardOnly)
	case o.Right:
		return moves(rightThenForward)
	default:
		return moves(aroundThenFwd)
	}
}

// RandomNavigator picks uniformly among the open directions. The sequence is
// fully determined by the seed.
type RandomNavigator struct {
	rng *rand.Rand
}

// NewRandomNavigator creates a navigator seeded with seed
func NewRandomNavigator(seed uint64) *RandomNavigator {
	return &RandomNavigator{rng: rand.New(rand.NewSource(seed))}
}

func (*RandomNavigator) Name() string { return KindRandom }

func (n *RandomNavigator) Navigate(_, _ int, _ Heading, o Options) []Move {
	var choices [][]Move
	if o.Left {
		choices = append(choices, leftThenForward)
	}
	if o.Right {
		choices = append(choices, rightThenForward)
	}
	if o.Forward {
		choices = append(choices, forwardOnly)
	}

	switch len(choices) {
	case 0:
		return moves(aroundThenFwd)
	case 1:
		return moves(choices[0])
	default:
		return moves(choices[n.rng.Intn(len(choices))])
	}
}

// CountingNavigator prefers the open neighbour it has visited least. Ties go
// to left, then forward, then right. Neighbours off the grid are treated as
// closed.
type CountingNavigator struct {
	maze   Maze
	visits [][]uint8
}

// NewCountingNavigator creates a navigator with a zeroed visit grid
func NewCountingNavigator(maze Maze) *CountingNavigator {
	visits := make([][]uint8, maze.Width)
	for x := range visits {
		visits[x] = make([]uint8, maze.Height)
	}
	return &CountingNavigator{maze: maze, visits: visits}
}

func (*CountingNavigator) Name() string { return KindCounting }

// Visits returns the visit count of (x, y), 0 off the grid
func (n *CountingNavigator) Visits(x, y int) uint8 {
	if !n.maze.Contains(x, y) {
		return 0
	}
	return n.visits[x][y]
}

// Visit counts one more visit to (x, y), saturating at 255
func (n *CountingNavigator) Visit(x, y int) {
	if !n.maze.Contains(x, y) {
		return
	}
	if n.visits[x][y] < math.MaxUint8 {
		n.visits[x][y]++
	}
}

// Clear zeroes the visit grid
func (n *CountingNavigator) Clear() {
	for x := range n.visits {
		clear(n.visits[x])
	}
}

func (n *CountingNavigator) Navigate(x, y int, h Heading, o Options) []Move {
	n.Visit(x, y)

	type candidate struct {
		open    bool
		heading Heading
		moves   []Move
	}
	candidates := []candidate{
		{o.Left, h.TurnLeft(), leftThenForward},
		{o.Forward, h, forwardOnly},
		{o.Right, h.TurnRight(), rightThenForward},
	}

	var best []Move
	bestCount := math.MaxInt
	for _, c := range candidates {
		if !c.open {
			continue
		}
		dx, dy := c.heading.Delta()
		if !n.maze.Contains(x+dx, y+dy) {
			continue
		}
		if count := int(n.visits[x+dx][y+dy]); count < bestCount {
			best, bestCount = c.moves, count
		}
	}

	if best == nil {
		return moves(aroundThenFwd)
	}
	return moves(best)
}
