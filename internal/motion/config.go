package motion

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ProfileConfig holds the position loop gains and the ramp acceleration of
// one profile. Acc is in distance units per second squared.
type ProfileConfig struct {
	P   float64 `yaml:"p"`
	I   float64 `yaml:"i"`
	D   float64 `yaml:"d"`
	Acc float64 `yaml:"acc"`
}

// Config configures the remote drive mode
type Config struct {
	Linear  ProfileConfig `yaml:"linear"`
	Angular ProfileConfig `yaml:"angular"`
}

// DefaultConfig returns the gains used when the config file leaves the
// motion section out
func DefaultConfig() Config {
	return Config{
		Linear:  ProfileConfig{P: 2, Acc: 1000},
		Angular: ProfileConfig{P: 2, Acc: 500},
	}
}

// ApplyDefaults fills in a zero acceleration
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Linear.Acc == 0 {
		c.Linear.Acc = d.Linear.Acc
	}
	if c.Angular.Acc == 0 {
		c.Angular.Acc = d.Angular.Acc
	}
}

// Validate reports every gain that is negative or not finite and every
// acceleration that is not positive
func (c *Config) Validate() error {
	return multierr.Combine(
		c.Linear.validate("linear"),
		c.Angular.validate("angular"),
	)
}

func (c ProfileConfig) validate(name string) error {
	var err error
	for _, g := range []struct {
		key string
		v   float64
	}{{"p", c.P}, {"i", c.I}, {"d", c.D}} {
		if math.IsNaN(g.v) || math.IsInf(g.v, 0) || g.v < 0 {
			err = multierr.Append(err, errors.Errorf("motion.%s.%s must be finite and non-negative, got %v", name, g.key, g.v))
		}
	}
	if math.IsNaN(c.Acc) || math.IsInf(c.Acc, 0) || c.Acc <= 0 {
		err = multierr.Append(err, errors.Errorf("motion.%s.acc must be positive, got %v", name, c.Acc))
	}
	return err
}
