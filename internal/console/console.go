// Package console is the interactive debug command line. Each input line
// produces zero or more lines of text; nothing typed here can stop the loop.
package console

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"micromouse/internal/plan"
)

// Command is one top-level console command
type Command struct {
	Name        string
	Args        string
	Description string
	Run         func(c *Console, args []string) []string
}

// Console dispatches text commands to the plan and everything under it
type Console struct {
	plan     *plan.Plan
	logger   *zap.Logger
	commands map[string]*Command
}

// New creates a console driving p
func New(p *plan.Plan, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Console{plan: p, logger: logger}
	c.commands = lo.SliceToMap(commands(), func(cmd *Command) (string, *Command) {
		return cmd.Name, cmd
	})
	return c
}

func leaf(name, description string) *Command {
	return &Command{
		Name:        name,
		Description: description,
		Run: func(c *Console, args []string) []string {
			return c.planCommand(append([]string{name}, args...))
		},
	}
}

func commands() []*Command {
	return []*Command{
		{
			Name:        "plan",
			Args:        "control|nav|left|right|around|forward|go|stop",
			Description: "Queue moves, start or stop exploring.",
			Run:         (*Console).planCommand,
		},
		{
			Name:        "control",
			Args:        "bot|stop|spin <ticks>|linear <ticks>|turn left|right|around",
			Description: "Start a single move or stop the current one.",
			Run:         (*Console).controlCommand,
		},
		{
			Name:        "bot",
			Args:        "config|spin <vel>|linear <vel>",
			Description: "Set wheel velocities directly.",
			Run:         (*Console).botCommand,
		},
		{
			Name:        "nav",
			Args:        "[use <kind> [seed]|clear|visits]",
			Description: "Show or change the navigator.",
			Run:         (*Console).navCommand,
		},
		{
			Name:        "config",
			Args:        "<key> [value]",
			Description: "Read or set a tuning value.",
			Run:         (*Console).configCommand,
		},
		leaf("left", "Queue a left turn."),
		leaf("right", "Queue a right turn."),
		leaf("around", "Queue a half turn."),
		leaf("forward", "Queue one cell forward."),
		leaf("go", "Start exploring."),
		leaf("stop", "Stop exploring and drop queued moves."),
		{
			Name:        "status",
			Description: "Print the robot state.",
			Run:         (*Console).statusCommand,
		},
		{
			Name:        "help",
			Description: "List commands.",
			Run:         (*Console).helpCommand,
		},
	}
}

// Execute runs one line of input
func (c *Console) Execute(line string) []string {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}

	cmd, ok := c.commands[args[0]]
	if !ok {
		return []string{fmt.Sprintf("unknown command: %s (try help)", args[0])}
	}
	c.logger.Debug("console command", zap.Strings("args", args))
	return cmd.Run(c, args[1:])
}

func first(args []string) (string, []string) {
	if len(args) == 0 {
		return "", nil
	}
	return args[0], args[1:]
}

func (c *Console) planCommand(args []string) []string {
	cmd, rest := first(args)

	var move plan.Move
	switch cmd {
	case "control":
		return c.controlCommand(rest)
	case "nav":
		return c.navCommand(rest)
	case "left":
		move = plan.TurnLeft
	case "right":
		move = plan.TurnRight
	case "around":
		move = plan.TurnAround
	case "forward":
		move = plan.Forward
	case "go":
		c.plan.Go()
		return nil
	case "stop":
		c.plan.Stop()
		return nil
	default:
		return []string{"plan: unknown command"}
	}

	if err := c.plan.AddMoves(move); err != nil {
		return []string{"plan: " + err.Error()}
	}
	return nil
}

func (c *Console) controlCommand(args []string) []string {
	ctl := c.plan.Control()
	cmd, rest := first(args)

	switch cmd {
	case "bot":
		return c.botCommand(rest)
	case "stop":
		ctl.Stop()
		return nil
	case "spin", "linear":
		if len(rest) == 0 {
			return []string{"No target!"}
		}
		target, err := cast.ToFloat64E(rest[0])
		if err != nil {
			return []string{"No target!"}
		}
		var started bool
		if cmd == "spin" {
			started = ctl.Spin(target)
		} else {
			started = ctl.Linear(target)
		}
		if !started {
			return []string{"control: busy with " + ctl.CurrentMoveName()}
		}
		return nil
	case "turn":
		turn, _ := first(rest)
		var started bool
		switch turn {
		case "left":
			started = ctl.TurnLeft()
		case "right":
			started = ctl.TurnRight()
		case "around":
			started = ctl.TurnAround()
		default:
			return []string{"control: unknown turn!"}
		}
		if !started {
			return []string{"control: busy with " + ctl.CurrentMoveName()}
		}
		return nil
	default:
		return []string{"control: unknown command"}
	}
}

func (c *Console) botCommand(args []string) []string {
	b := c.plan.Control().Bot()
	cmd, rest := first(args)

	switch cmd {
	case "":
		return []string{"bot: no command"}
	case "config":
		return c.configCommand(rest)
	case "spin", "linear":
		if len(rest) == 0 {
			return []string{"bot: value needed"}
		}
		v, err := cast.ToFloat64E(rest[0])
		if err != nil {
			return []string{"bot: value needed"}
		}
		if cmd == "spin" {
			b.ChangeVelocity(0, v)
		} else {
			b.ChangeVelocity(v, 0)
		}
		return nil
	default:
		return []string{"bot: unknown command: " + cmd}
	}
}

func (c *Console) configCommand(args []string) []string {
	cfg := c.plan.Control().Bot().Config()
	key, rest := first(args)
	if key == "" {
		return []string{"config: Need a key"}
	}

	current, err := cfg.Get(key)
	if err != nil {
		return []string{"config: unknown key"}
	}
	if len(rest) == 0 {
		return []string{fmt.Sprintf("%s: %s", key, current)}
	}

	if err := cfg.Set(key, rest[0]); err != nil {
		c.logger.Debug("config rejected", zap.String("key", key), zap.String("value", rest[0]), zap.Error(err))
		return []string{"invalid value"}
	}
	return nil
}

func (c *Console) navCommand(args []string) []string {
	cmd, rest := first(args)

	switch cmd {
	case "":
		return []string{"nav: " + c.plan.Navigator().Name()}
	case "use":
		kind, rest := first(rest)
		seed := uint64(0)
		if s, _ := first(rest); s != "" {
			v, err := cast.ToUint64E(s)
			if err != nil {
				return []string{"invalid value"}
			}
			seed = v
		}
		nav, err := plan.NewNavigator(kind, seed, c.plan.Maze())
		if err != nil {
			return []string{"nav: " + err.Error()}
		}
		c.plan.SetNavigator(nav)
		return nil
	case "clear", "visits":
		counting, ok := c.plan.Navigator().(*plan.CountingNavigator)
		if !ok {
			return []string{"nav: no visit counts for " + c.plan.Navigator().Name()}
		}
		if cmd == "clear" {
			counting.Clear()
			return nil
		}
		return visitGrid(counting, c.plan.Maze())
	default:
		return []string{"nav: unknown command"}
	}
}

// visitGrid prints the visit counts with the far row first
func visitGrid(n *plan.CountingNavigator, maze plan.Maze) []string {
	lines := make([]string, 0, maze.Height)
	for y := maze.Height - 1; y >= 0; y-- {
		row := lo.Map(lo.Range(maze.Width), func(x int, _ int) string {
			return fmt.Sprintf("%3d", n.Visits(x, y))
		})
		lines = append(lines, strings.Join(row, " "))
	}
	return lines
}

func (c *Console) statusCommand([]string) []string {
	p := c.plan
	b := p.Control().Bot()
	return []string{
		fmt.Sprintf("move: %s finished=%d", p.Control().CurrentMoveName(), p.Control().Finished()),
		fmt.Sprintf("plan: x=%d y=%d heading=%s going=%t queued=%d", p.X(), p.Y(), p.Heading(), p.Going(), p.QueueLen()),
		fmt.Sprintf("walls: %s nav=%s", p.Walls(), p.Navigator().Name()),
		fmt.Sprintf("left: pos=%.0f vel=%.3f target=%.3f power=%.0f", b.LeftPos(), b.LeftVelocity(), b.LeftTarget(), b.LeftPower()),
		fmt.Sprintf("right: pos=%.0f vel=%.3f target=%.3f power=%.0f", b.RightPos(), b.RightVelocity(), b.RightTarget(), b.RightPower()),
		fmt.Sprintf("distance: left=%d front=%d right=%d", b.LeftDistance(), b.FrontDistance(), b.RightDistance()),
	}
}

func (c *Console) helpCommand([]string) []string {
	names := lo.Keys(c.commands)
	slices.Sort(names)

	return lo.Map(names, func(name string, _ int) string {
		cmd := c.commands[name]
		usage := strings.TrimSpace(cmd.Name + " " + cmd.Args)
		return fmt.Sprintf("%-28s %s", usage, cmd.Description)
	})
}
