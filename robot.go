package main

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"micromouse/internal/bot"
	"micromouse/internal/console"
	"micromouse/internal/control"
	"micromouse/internal/hw"
	"micromouse/internal/motion"
	"micromouse/internal/plan"
	"micromouse/internal/session"
	"micromouse/internal/transport"
)

const (
	// summaryIntervalMS is how often the status line is logged
	summaryIntervalMS = 10000
	// consoleBacklog is the number of input lines that may wait for the loop
	consoleBacklog = 16
)

// Robot owns every part of the controller and runs the superloop. Only the
// loop goroutine touches the motion state; other goroutines talk to it
// through the console channel and the link buffers.
type Robot struct {
	config *Config
	logger *zap.Logger

	clk    clock.Clock
	millis *hw.MillisClock

	hw      Hardware
	bot     *bot.Bot
	control *control.Control
	plan    *plan.Plan
	remote  *motion.Remote
	link    *transport.Link
	session *session.Session
	console *console.Console
	metrics *Metrics

	input  chan string
	output io.Writer

	errLimiter *rate.Limiter

	linkStarted bool
	lastLink    uint32
	lastSummary uint32
	halted      bool
	resume      bool

	// batteryDead mirrors the monitor for readers outside the loop
	batteryDead atomic.Bool
}

// NewRobot wires the controller on top of hardware. metrics may be nil.
func NewRobot(config *Config, hardware Hardware, clk clock.Clock, metrics *Metrics, output io.Writer, logger *zap.Logger) (*Robot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if output == nil {
		output = io.Discard
	}

	nav, err := plan.NewNavigator(config.Navigator.Kind, config.Navigator.Seed, plan.Maze{
		Width:  config.Maze.Width,
		Height: config.Maze.Height,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create navigator")
	}

	b := bot.New(hardware.Bot(), &config.Bot)
	ctl := control.New(b, logger.Named("control"))
	p := plan.New(ctl, nav, plan.Maze{Width: config.Maze.Width, Height: config.Maze.Height}, logger.Named("plan"))
	p.SetStopAtGoal(config.Maze.StopAtGoal)

	remote := motion.NewRemote(b, config.Motion, logger.Named("motion"))
	link := transport.New(transport.Config{
		RxCapacity:   config.Serial.RxCapacity,
		TxCapacity:   config.Serial.TxCapacity,
		FlushTimeout: config.Serial.FlushTimeoutMS,
	}, logger.Named("link"))

	provider, _ := hardware.(session.Provider)

	r := &Robot{
		config:     config,
		logger:     logger,
		clk:        clk,
		millis:     hw.NewMillisClock(clk),
		hw:         hardware,
		bot:        b,
		control:    ctl,
		plan:       p,
		remote:     remote,
		link:       link,
		session:    session.New(link, remote, provider, logger.Named("session")),
		console:    console.New(p, logger.Named("console")),
		metrics:    metrics,
		input:      make(chan string, consoleBacklog),
		output:     output,
		errLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	r.batteryDead.Store(hardware.Battery().IsDead())
	return r, nil
}

// Input is where console lines are sent. Lines beyond the backlog block the
// sender, never the loop.
func (r *Robot) Input() chan<- string { return r.input }

// Link is the host message link
func (r *Robot) Link() *transport.Link { return r.link }

// BatteryDead reports the battery state seen by the last loop iteration.
// It is safe to call from any goroutine.
func (r *Robot) BatteryDead() bool { return r.batteryDead.Load() }

// Run executes the superloop every tick until ctx is done, then stops the
// robot
func (r *Robot) Run(ctx context.Context) error {
	tick := time.Duration(r.config.Loop.TickMS) * time.Millisecond
	ticker := r.clk.Ticker(tick)
	defer ticker.Stop()

	r.logger.Info("superloop started",
		zap.String("mode", r.config.Loop.Mode),
		zap.Duration("tick", tick),
		zap.String("navigator", r.plan.Navigator().Name()))

	for {
		r.iterate()

		select {
		case <-ctx.Done():
			r.Stop()
			r.logger.Info("superloop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Robot) iterate() {
	start := r.clk.Now()
	now := r.millis.Now()

	r.step(now)

	tel := r.Telemetry()
	tel.LoopDuration = r.clk.Since(start)
	if r.metrics != nil {
		r.metrics.Update(tel)
	}
	if now-r.lastSummary >= summaryIntervalMS {
		LogMetricsSummary(r.logger, GetMetricsSummary(tel))
		r.lastSummary = now
	}
}

// step is one superloop iteration. Sensors advance every call; the link is
// serviced once per control period.
func (r *Robot) step(now uint32) {
	r.hw.Update(now)
	r.pollConsole()

	linkTick := !r.linkStarted || now-r.lastLink >= r.bot.Config().MinTickMS
	if linkTick {
		r.receive(now)
	}

	if r.checkBattery() {
		r.drive(now)
	}

	if linkTick {
		if err := r.session.Stream(r.Snapshot(now)); err != nil {
			r.reportError("link_tx", err)
		}
		r.linkStarted = true
		r.lastLink = now
	}
}

func (r *Robot) pollConsole() {
	select {
	case line := <-r.input:
		for _, out := range r.console.Execute(line) {
			fmt.Fprintln(r.output, out)
		}
	default:
	}
}

func (r *Robot) receive(now uint32) {
	if err := r.session.Update(now); err != nil {
		r.reportError("link_rx", err)
	}
}

// checkBattery halts all motion once the battery is dead and picks the
// exploration back up when it recovers. It reports whether motion may run.
func (r *Robot) checkBattery() bool {
	battery := r.hw.Battery()
	dead := battery.IsDead()
	r.batteryDead.Store(dead)

	if !dead {
		if r.halted {
			r.logger.Info("battery recovered", zap.Uint16("raw", battery.Raw()), zap.Bool("resume", r.resume))
			if r.resume {
				r.plan.Go()
			}
		}
		r.halted = false
		r.resume = false
		return true
	}

	if !r.halted {
		r.logger.Warn("battery dead, halting", zap.Uint16("raw", battery.Raw()))
		RecordError("battery")
		r.resume = r.plan.Going()
		r.Stop()
		r.halted = true
	}
	return false
}

func (r *Robot) drive(now uint32) {
	switch r.config.Loop.Mode {
	case modeRemote:
		r.remote.Update(now)
	default:
		if err := r.plan.Update(now); err != nil {
			r.reportError("plan", err)
		}
	}
}

// reportError counts every error but logs at most one per second
func (r *Robot) reportError(kind string, err error) {
	RecordError(kind)
	if r.errLimiter.Allow() {
		r.logger.Warn("loop error", zap.String("type", kind), zap.Error(err))
	}
}

// Stop ends exploration, discards remote targets and cuts motor power
func (r *Robot) Stop() {
	r.plan.Stop()
	r.remote.Stop()

	motors := r.hw.Bot()
	motors.LeftMotor.ChangePower(0)
	motors.RightMotor.ChangePower(0)
}

// Snapshot collects the telemetry that can be streamed to the host
func (r *Robot) Snapshot(now uint32) session.Snapshot {
	b := r.bot
	ticksPerMM := b.Config().TicksPerMM
	mm := func(ticks float64) float32 { return float32(ticks / ticksPerMM) }

	return session.Snapshot{
		Time:          float32(now) / 1000,
		LeftPos:       mm(b.LeftPos()),
		RightPos:      mm(b.RightPos()),
		LeftPower:     float32(b.LeftPower()),
		RightPower:    float32(b.RightPower()),
		Battery:       float32(r.hw.Battery().Raw()),
		LeftDistance:  b.LeftDistance(),
		FrontDistance: b.FrontDistance(),
		RightDistance: b.RightDistance(),
		LinearPos:     mm(b.LinearPos()),
		AngularPos:    mm(b.SpinPos()),
		LinearPower:   float32(r.remote.LinearCommand()),
		AngularPower:  float32(r.remote.AngularCommand()),
		Linear:        r.remote.Linear().Config(),
		Angular:       r.remote.Angular().Config(),
	}
}

// Telemetry collects the state reflected in metrics
func (r *Robot) Telemetry() Telemetry {
	b := r.bot
	battery := r.hw.Battery()
	return Telemetry{
		Left: WheelTelemetry{
			Power:    b.LeftPower(),
			Velocity: b.LeftVelocity(),
			Target:   b.LeftTarget(),
			Terms:    b.LeftTerms(),
		},
		Right: WheelTelemetry{
			Power:    b.RightPower(),
			Velocity: b.RightVelocity(),
			Target:   b.RightTarget(),
			Terms:    b.RightTerms(),
		},
		LinearPos:     b.LinearPos(),
		SpinPos:       b.SpinPos(),
		LeftDistance:  b.LeftDistance(),
		FrontDistance: b.FrontDistance(),
		RightDistance: b.RightDistance(),
		BatteryRaw:    battery.Raw(),
		BatteryDead:   battery.IsDead(),
		Move:          r.control.CurrentMoveName(),
		MovesFinished: r.control.Finished(),
		PlanX:         r.plan.X(),
		PlanY:         r.plan.Y(),
		Heading:       int(r.plan.Heading()),
		Queued:        r.plan.QueueLen(),
		Going:         r.plan.Going(),
		Link:          r.link.Status(),
	}
}
