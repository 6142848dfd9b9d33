package motion

import (
	"go.uber.org/zap"

	"micromouse/internal/bot"
)

// Remote drives the bot from host-supplied linear and angular targets
// instead of from the planner. Profiles work in mm and seconds; the bot
// works in ticks and ms.
type Remote struct {
	bot     *bot.Bot
	linear  *Profile
	angular *Profile
	logger  *zap.Logger

	started    bool
	start      uint32
	lastUpdate uint32

	linearCommand  float64
	angularCommand float64
}

// NewRemote creates a remote driver at rest
func NewRemote(b *bot.Bot, config Config, logger *zap.Logger) *Remote {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Remote{
		bot:     b,
		linear:  NewProfile(config.Linear),
		angular: NewProfile(config.Angular),
		logger:  logger,
	}
}

// AddLinear queues a straight segment in mm/s and mm
func (r *Remote) AddLinear(velocity, distance float64) error {
	if err := r.linear.Queue(Target{Velocity: velocity, Distance: distance}); err != nil {
		r.logger.Warn("linear target dropped", zap.Error(err))
		return err
	}
	return nil
}

// AddAngular queues a spin segment measured as wheel travel in mm/s and mm
func (r *Remote) AddAngular(velocity, distance float64) error {
	if err := r.angular.Queue(Target{Velocity: velocity, Distance: distance}); err != nil {
		r.logger.Warn("angular target dropped", zap.Error(err))
		return err
	}
	return nil
}

// Update advances both profiles once per control period and hands their
// commands to the bot. The bot's wheel loops run on every call.
func (r *Remote) Update(now uint32) {
	if !r.started {
		r.started = true
		r.start = now
		r.lastUpdate = now
		r.step(now)
	} else if now-r.lastUpdate >= r.bot.Config().MinTickMS {
		r.lastUpdate = now
		r.step(now)
	}

	r.bot.Update(now)
}

func (r *Remote) step(now uint32) {
	seconds := float64(now-r.start) / 1000
	ticksPerMM := r.bot.Config().TicksPerMM

	r.linearCommand = r.linear.Update(seconds, r.bot.LinearPos()/ticksPerMM)
	r.angularCommand = r.angular.Update(seconds, r.bot.SpinPos()/ticksPerMM)

	// mm/s to ticks/ms; the bot splits angular evenly across both wheels
	scale := ticksPerMM / 1000
	r.bot.ChangeVelocity(r.linearCommand*scale, 2*r.angularCommand*scale)
}

// Stop discards all targets and brings the wheels to rest
func (r *Remote) Stop() {
	r.linear.Reset()
	r.angular.Reset()
	r.linearCommand = 0
	r.angularCommand = 0
	r.started = false
	r.bot.ChangeVelocity(0, 0)
	r.bot.Reset()
}

func (r *Remote) Linear() *Profile  { return r.linear }
func (r *Remote) Angular() *Profile { return r.angular }

// LinearCommand is the last linear velocity command in mm/s
func (r *Remote) LinearCommand() float64 { return r.linearCommand }

// AngularCommand is the last angular velocity command in mm/s
func (r *Remote) AngularCommand() float64 { return r.angularCommand }
