package plan

import "fmt"

// Move is one discrete step of the planner
type Move int

const (
	TurnLeft Move = iota
	TurnRight
	TurnAround
	Forward
)

func (m Move) String() string {
	switch m {
	case TurnLeft:
		return "left"
	case TurnRight:
		return "right"
	case TurnAround:
		return "around"
	case Forward:
		return "forward"
	default:
		return fmt.Sprintf("move(%d)", int(m))
	}
}

// Heading is the absolute direction the robot faces on the grid. Up is +y.
type Heading int

const (
	Up Heading = iota
	Right
	Down
	Left
)

func (h Heading) String() string {
	switch h {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	default:
		return fmt.Sprintf("heading(%d)", int(h))
	}
}

// TurnLeft returns the heading after a quarter turn counter-clockwise
func (h Heading) TurnLeft() Heading { return (h + 3) % 4 }

// TurnRight returns the heading after a quarter turn clockwise
func (h Heading) TurnRight() Heading { return (h + 1) % 4 }

// Reverse returns the opposite heading
func (h Heading) Reverse() Heading { return (h + 2) % 4 }

// Delta returns the grid step for one cell forward
func (h Heading) Delta() (dx, dy int) {
	switch h {
	case Up:
		return 0, 1
	case Down:
		return 0, -1
	case Left:
		return -1, 0
	default:
		return 1, 0
	}
}

// Options reports which neighbouring cells are open, relative to the heading
type Options struct {
	Left    bool
	Forward bool
	Right   bool
}

func (o Options) String() string {
	mark := func(open bool, c byte) byte {
		if open {
			return c
		}
		return '-'
	}
	return string([]byte{mark(o.Left, 'L'), mark(o.Forward, 'F'), mark(o.Right, 'R')})
}

// Maze is the grid size; (0, 0) is the start corner
type Maze struct {
	Width  int
	Height int
}

// Contains reports whether (x, y) is on the grid
func (m Maze) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.Width && y < m.Height
}

// InGoal reports whether (x, y) is in the central goal: the middle 2x2 cells,
// or the single middle cell along an odd dimension.
func (m Maze) InGoal(x, y int) bool {
	return inCentre(x, m.Width) && inCentre(y, m.Height)
}

func inCentre(v, size int) bool {
	if size%2 == 1 {
		return v == size/2
	}
	return v == size/2-1 || v == size/2
}
