package main

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"micromouse/internal/bot"
	"micromouse/internal/hw"
	"micromouse/internal/motion"
	"micromouse/internal/plan"
)

// Config represents the complete configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Serial    SerialConfig    `yaml:"serial"`
	Loop      LoopConfig      `yaml:"loop"`
	Bot       bot.Config      `yaml:"bot"`
	Maze      MazeConfig      `yaml:"maze"`
	Navigator NavigatorConfig `yaml:"navigator"`
	Battery   BatteryConfig   `yaml:"battery"`
	Motion    motion.Config   `yaml:"motion"`
}

// ServerConfig contains server-related settings
type ServerConfig struct {
	MetricsPort int    `yaml:"metrics_port"`
	LogLevel    string `yaml:"log_level"`
}

// SerialConfig contains the host link settings
type SerialConfig struct {
	Port           string `yaml:"port"`             // Empty disables the link
	Baud           int    `yaml:"baud"`
	RxCapacity     int    `yaml:"rx_capacity"`      // Receive buffer size (bytes)
	TxCapacity     int    `yaml:"tx_capacity"`      // Transmit buffer size (bytes)
	FlushTimeoutMS uint32 `yaml:"flush_timeout_ms"` // Receive buffer flush after this long without a message
}

// LoopConfig selects how the superloop runs
type LoopConfig struct {
	Mode     string `yaml:"mode"`     // plan or remote
	TickMS   int    `yaml:"tick_ms"`  // Superloop sleep between iterations (ms)
	Simulate bool   `yaml:"simulate"` // Drive simulated hardware
}

// MazeConfig contains the grid size
type MazeConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	StopAtGoal bool `yaml:"stop_at_goal"`
}

// NavigatorConfig picks the exploration strategy
type NavigatorConfig struct {
	Kind string `yaml:"kind"` // left_wall, random or counting
	Seed uint64 `yaml:"seed"`
}

// BatteryConfig contains the low battery cut-off
type BatteryConfig struct {
	DeadVoltage uint16 `yaml:"dead_voltage"` // Raw ADC reading considered dead
	DeadTimeMS  uint32 `yaml:"dead_time_ms"` // How long below DeadVoltage before reporting dead
}

const (
	modePlan   = "plan"
	modeRemote = "remote"
)

// LoadConfig loads and parses the configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %s", path)
	}

	// Set defaults for any missing values
	setDefaults(&config)

	// Validate the configuration
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &config, nil
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	var config Config
	setDefaults(&config)
	return &config
}

// setDefaults sets default values for any missing configuration fields
func setDefaults(config *Config) {
	if config.Server.MetricsPort == 0 {
		config.Server.MetricsPort = 9090
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}
	if config.Serial.Baud == 0 {
		config.Serial.Baud = 115200
	}
	if config.Serial.RxCapacity == 0 {
		config.Serial.RxCapacity = 256
	}
	if config.Serial.TxCapacity == 0 {
		config.Serial.TxCapacity = 256
	}
	if config.Serial.FlushTimeoutMS == 0 {
		config.Serial.FlushTimeoutMS = 1000
	}
	if config.Loop.Mode == "" {
		config.Loop.Mode = modePlan
	}
	if config.Loop.TickMS == 0 {
		config.Loop.TickMS = 1
	}
	if config.Maze.Width == 0 {
		config.Maze.Width = 16
	}
	if config.Maze.Height == 0 {
		config.Maze.Height = 16
	}
	if config.Navigator.Kind == "" {
		config.Navigator.Kind = plan.KindLeftWall
	}
	if config.Battery.DeadVoltage == 0 {
		config.Battery.DeadVoltage = hw.DefaultDeadVoltage
	}
	if config.Battery.DeadTimeMS == 0 {
		config.Battery.DeadTimeMS = hw.DefaultDeadTime
	}

	if config.Bot == (bot.Config{}) {
		config.Bot = bot.DefaultConfig()
	} else {
		config.Bot.ApplyDefaults()
	}
	if config.Motion == (motion.Config{}) {
		config.Motion = motion.DefaultConfig()
	} else {
		config.Motion.ApplyDefaults()
	}
}

// Validate checks all configuration values and reports every violation
func (c *Config) Validate() error {
	var err error

	// Server validation
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		err = multierr.Append(err, errors.Errorf("metrics_port must be between 1-65535, got %d", c.Server.MetricsPort))
	}
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, errors.Errorf("log_level must be one of: debug, info, warn, error, got %s", c.Server.LogLevel))
	}

	// Serial validation
	if c.Serial.Baud <= 0 {
		err = multierr.Append(err, errors.Errorf("baud must be positive, got %d", c.Serial.Baud))
	}
	if c.Serial.RxCapacity < 16 {
		err = multierr.Append(err, errors.Errorf("rx_capacity must be at least 16, got %d", c.Serial.RxCapacity))
	}
	if c.Serial.TxCapacity < 16 {
		err = multierr.Append(err, errors.Errorf("tx_capacity must be at least 16, got %d", c.Serial.TxCapacity))
	}

	// Loop validation
	if c.Loop.Mode != modePlan && c.Loop.Mode != modeRemote {
		err = multierr.Append(err, errors.Errorf("mode must be one of: plan, remote, got %s", c.Loop.Mode))
	}
	if c.Loop.TickMS <= 0 {
		err = multierr.Append(err, errors.Errorf("tick_ms must be positive, got %d", c.Loop.TickMS))
	}

	// Maze validation
	if c.Maze.Width <= 0 || c.Maze.Width > 32 {
		err = multierr.Append(err, errors.Errorf("maze width must be between 1-32, got %d", c.Maze.Width))
	}
	if c.Maze.Height <= 0 || c.Maze.Height > 32 {
		err = multierr.Append(err, errors.Errorf("maze height must be between 1-32, got %d", c.Maze.Height))
	}

	// Navigator validation
	if _, navErr := plan.NewNavigator(c.Navigator.Kind, c.Navigator.Seed, plan.Maze{Width: 1, Height: 1}); navErr != nil {
		err = multierr.Append(err, navErr)
	}

	return multierr.Combine(err, c.Bot.Validate(), c.Motion.Validate())
}
