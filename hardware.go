package main

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"micromouse/internal/bot"
	"micromouse/internal/hw"
	"micromouse/internal/msgs"
)

// simWheelGain is the simulated wheel speed in ticks/ms per unit of power.
// The default wheel loop is only stable while Kp * simWheelGain stays below one.
const simWheelGain = 0.0003

// ErrNoHardware is returned when real peripherals are requested
var ErrNoHardware = errors.New("no hardware backend available, run with --simulate")

// Hardware is the set of drivers the superloop updates every tick
type Hardware interface {
	Bot() bot.Hardware
	Battery() hw.Battery
	// Update advances every driver to time now
	Update(now uint32)
}

// simHardware drives the simulated drivetrain and sensors. It also accepts
// sensor values supplied by the host.
type simHardware struct {
	sim    *hw.Sim
	logger *zap.Logger

	left  *hw.WrapEncoder
	right *hw.WrapEncoder

	leftRange  *hw.RangeSensor
	frontRange *hw.RangeSensor
	rightRange *hw.RangeSensor

	battery *hw.BatteryMonitor
}

// NewHardware returns the hardware backend selected by config
func NewHardware(config *Config, logger *zap.Logger) (Hardware, error) {
	if !config.Loop.Simulate {
		return nil, ErrNoHardware
	}
	return newSimHardware(config, logger), nil
}

func newSimHardware(config *Config, logger *zap.Logger) *simHardware {
	sim := hw.NewSim(simWheelGain, int32(config.Bot.WheelPowerLimit))
	logger.Info("using simulated hardware",
		zap.Float64("wheel_gain", simWheelGain),
		zap.Float64("power_limit", config.Bot.WheelPowerLimit))

	return &simHardware{
		sim:        sim,
		logger:     logger,
		left:       hw.NewWrapEncoder(sim.Left),
		right:      hw.NewWrapEncoder(sim.Right),
		leftRange:  hw.NewRangeSensor(sim.LeftRanger),
		frontRange: hw.NewRangeSensor(sim.FrontRanger),
		rightRange: hw.NewRangeSensor(sim.RightRanger),
		battery:    hw.NewBatteryMonitor(sim.ADC, config.Battery.DeadVoltage, config.Battery.DeadTimeMS),
	}
}

func (h *simHardware) Bot() bot.Hardware {
	return bot.Hardware{
		LeftEncoder:   h.left,
		RightEncoder:  h.right,
		LeftMotor:     h.sim.Left,
		RightMotor:    h.sim.Right,
		LeftDistance:  h.leftRange,
		FrontDistance: h.frontRange,
		RightDistance: h.rightRange,
	}
}

func (h *simHardware) Battery() hw.Battery { return h.battery }

func (h *simHardware) Update(now uint32) {
	h.sim.Step(now)
	h.leftRange.Update()
	h.frontRange.Update()
	h.rightRange.Update()
	h.battery.Update(now)
}

// ProvideDistance replaces the simulated range for the sensor named by tag
func (h *simHardware) ProvideDistance(tag msgs.Tag, mm uint8) {
	switch tag {
	case msgs.LeftDistance:
		h.sim.LeftRanger.Set(mm)
	case msgs.FrontDistance:
		h.sim.FrontRanger.Set(mm)
	case msgs.RightDistance:
		h.sim.RightRanger.Set(mm)
	default:
		h.logger.Debug("ignoring provided value", zap.Stringer("tag", tag))
	}
}

// ProvideBattery replaces the simulated battery reading
func (h *simHardware) ProvideBattery(raw float32) {
	v := math.Round(float64(raw))
	if math.IsNaN(v) {
		return
	}
	h.sim.ADC.Set(uint16(max(0, min(math.MaxUint16, v))))
}
