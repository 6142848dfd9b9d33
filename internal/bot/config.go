package bot

import (
	"fmt"
	"math"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"go.uber.org/multierr"
)

// ErrUnknownKey is returned by Get and Set for names that are not tunable
var ErrUnknownKey = errors.New("unknown key")

// Config holds every tunable of the drivetrain and the move controllers.
// Wheel gains are read on each control tick, the rest when a move starts.
type Config struct {
	// Wheel velocity loops
	LeftP  float64 `yaml:"left_p"`
	LeftI  float64 `yaml:"left_i"`
	LeftD  float64 `yaml:"left_d"`
	RightP float64 `yaml:"right_p"`
	RightI float64 `yaml:"right_i"`
	RightD float64 `yaml:"right_d"`

	// Spin moves
	SpinP      float64 `yaml:"spin_p"`
	SpinI      float64 `yaml:"spin_i"`
	SpinD      float64 `yaml:"spin_d"`
	SpinErr    float64 `yaml:"spin_err"`    // tolerance in ticks
	SpinSettle uint32  `yaml:"spin_settle"` // ms

	// Linear moves
	LinearP       float64 `yaml:"linear_p"`
	LinearI       float64 `yaml:"linear_i"`
	LinearD       float64 `yaml:"linear_d"`
	LinearSpinP   float64 `yaml:"linear_spin_p"`
	LinearSpinI   float64 `yaml:"linear_spin_i"`
	LinearSpinD   float64 `yaml:"linear_spin_d"`
	CenteringGain float64 `yaml:"centering_gain"` // spin ticks per mm of off-centre
	LinearErr     float64 `yaml:"linear_err"`      // tolerance in ticks
	LinearWallErr float64 `yaml:"linear_wall_err"` // tolerance in ticks against a front wall
	LinearSettle  uint32  `yaml:"linear_settle"`   // ms

	// Mechanics
	TicksPerSpin    float64 `yaml:"ticks_per_spin"`
	TicksPerCell    float64 `yaml:"ticks_per_cell"`
	TicksPerMM      float64 `yaml:"ticks_per_mm"`
	CellWidth       float64 `yaml:"cell_width"`        // mm
	CellOffset      float64 `yaml:"cell_offset"`       // mm from a side sensor to its wall when centred
	WallThreshold   float64 `yaml:"wall_threshold"`    // mm; farther readings are open
	FrontWallTarget float64 `yaml:"front_wall_target"` // mm to stop short of a front wall

	WheelPowerLimit float64 `yaml:"wheel_power_limit"`
	MoveOutputLimit float64 `yaml:"move_output_limit"`
	MinTickMS       uint32  `yaml:"min_tick_ms"`
}

// DefaultConfig returns the tuning used on the reference chassis
func DefaultConfig() Config {
	return Config{
		LeftP:  1500,
		LeftI:  5,
		RightP: 1500,
		RightI: 5,

		SpinP:      0.01,
		SpinErr:    10,
		SpinSettle: 200,

		LinearP:       0.01,
		LinearSpinP:   0.02,
		CenteringGain: 2,
		LinearErr:     20,
		LinearWallErr: 9,
		LinearSettle:  200,

		TicksPerSpin:    2064.03,
		TicksPerCell:    1620,
		TicksPerMM:      9,
		CellWidth:       180,
		CellOffset:      50,
		WallThreshold:   100,
		FrontWallTarget: 40,

		WheelPowerLimit: 5000,
		MoveOutputLimit: 2,
		MinTickMS:       10,
	}
}

// ApplyDefaults fills zero-valued mechanics and limits from DefaultConfig.
// Gains may legitimately be zero and are left alone.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	for _, f := range c.fields() {
		switch {
		case f.f64 != nil && f.mechanical && *f.f64 == 0:
			*f.f64 = *d.field(f.name).f64
		case f.u32 != nil && *f.u32 == 0:
			*f.u32 = *d.field(f.name).u32
		}
	}
}

// Validate checks that gains and tolerances are finite and non-negative, and
// that durations and mechanics are positive. Every violation is reported.
func (c *Config) Validate() error {
	var err error
	for _, f := range c.fields() {
		switch {
		case f.f64 != nil:
			v := *f.f64
			if math.IsNaN(v) || math.IsInf(v, 0) {
				err = multierr.Append(err, errors.Errorf("%s must be finite, got %v", f.name, v))
			} else if v < 0 {
				err = multierr.Append(err, errors.Errorf("%s must be non-negative, got %.3f", f.name, v))
			} else if f.mechanical && v == 0 {
				err = multierr.Append(err, errors.Errorf("%s must be positive, got %.3f", f.name, v))
			}
		case f.u32 != nil:
			if *f.u32 == 0 {
				err = multierr.Append(err, errors.Errorf("%s must be positive, got 0", f.name))
			}
		}
	}
	return err
}

// Keys lists the tunable names in display order
func (c *Config) Keys() []string {
	fields := c.fields()
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.name
	}
	return keys
}

// Get formats the current value of key
func (c *Config) Get(key string) (string, error) {
	f := c.field(key)
	if f == nil {
		return "", errors.Wrap(ErrUnknownKey, key)
	}
	if f.f64 != nil {
		return strconv.FormatFloat(*f.f64, 'g', -1, 64), nil
	}
	return fmt.Sprint(*f.u32), nil
}

// Set parses value into key. The previous value is restored when the result
// would not validate.
func (c *Config) Set(key, value string) error {
	f := c.field(key)
	if f == nil {
		return errors.Wrap(ErrUnknownKey, key)
	}

	if f.f64 != nil {
		v, err := cast.ToFloat64E(value)
		if err != nil {
			return errors.Wrapf(err, "invalid value for %s", key)
		}
		old := *f.f64
		*f.f64 = v
		if err := c.Validate(); err != nil {
			*f.f64 = old
			return err
		}
		return nil
	}

	v, err := cast.ToUint32E(value)
	if err != nil {
		return errors.Wrapf(err, "invalid value for %s", key)
	}
	old := *f.u32
	*f.u32 = v
	if err := c.Validate(); err != nil {
		*f.u32 = old
		return err
	}
	return nil
}

type field struct {
	name       string
	f64        *float64
	u32        *uint32
	mechanical bool // must be strictly positive
}

func (c *Config) fields() []field {
	return []field{
		{name: "left_p", f64: &c.LeftP},
		{name: "left_i", f64: &c.LeftI},
		{name: "left_d", f64: &c.LeftD},
		{name: "right_p", f64: &c.RightP},
		{name: "right_i", f64: &c.RightI},
		{name: "right_d", f64: &c.RightD},
		{name: "spin_p", f64: &c.SpinP},
		{name: "spin_i", f64: &c.SpinI},
		{name: "spin_d", f64: &c.SpinD},
		{name: "spin_err", f64: &c.SpinErr},
		{name: "spin_settle", u32: &c.SpinSettle},
		{name: "linear_p", f64: &c.LinearP},
		{name: "linear_i", f64: &c.LinearI},
		{name: "linear_d", f64: &c.LinearD},
		{name: "linear_spin_p", f64: &c.LinearSpinP},
		{name: "linear_spin_i", f64: &c.LinearSpinI},
		{name: "linear_spin_d", f64: &c.LinearSpinD},
		{name: "centering_gain", f64: &c.CenteringGain},
		{name: "linear_err", f64: &c.LinearErr},
		{name: "linear_wall_err", f64: &c.LinearWallErr},
		{name: "linear_settle", u32: &c.LinearSettle},
		{name: "ticks_per_spin", f64: &c.TicksPerSpin, mechanical: true},
		{name: "ticks_per_cell", f64: &c.TicksPerCell, mechanical: true},
		{name: "ticks_per_mm", f64: &c.TicksPerMM, mechanical: true},
		{name: "cell_width", f64: &c.CellWidth, mechanical: true},
		{name: "cell_offset", f64: &c.CellOffset, mechanical: true},
		{name: "wall_threshold", f64: &c.WallThreshold, mechanical: true},
		{name: "front_wall_target", f64: &c.FrontWallTarget, mechanical: true},
		{name: "wheel_power_limit", f64: &c.WheelPowerLimit, mechanical: true},
		{name: "move_output_limit", f64: &c.MoveOutputLimit, mechanical: true},
		{name: "min_tick_ms", u32: &c.MinTickMS},
	}
}

func (c *Config) field(name string) *field {
	for _, f := range c.fields() {
		if f.name == name {
			return &f
		}
	}
	return nil
}
