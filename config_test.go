package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"micromouse/internal/bot"
	"micromouse/internal/motion"
)

// TestLoadConfig_ValidFile tests loading a valid configuration file
func TestLoadConfig_ValidFile(t *testing.T) {
	// Arrange
	content := `
server:
  metrics_port: 9100
  log_level: debug
serial:
  port: /dev/ttyUSB0
  baud: 57600
  rx_capacity: 128
  tx_capacity: 512
  flush_timeout_ms: 500
loop:
  mode: remote
  tick_ms: 2
  simulate: true
bot:
  left_p: 1200
  left_i: 4
  right_p: 1200
  right_i: 4
  spin_p: 0.02
  spin_err: 12
  spin_settle: 150
  linear_p: 0.015
  linear_err: 25
  linear_settle: 250
  ticks_per_spin: 2100
  ticks_per_cell: 1600
  ticks_per_mm: 8.9
maze:
  width: 8
  height: 8
  stop_at_goal: true
navigator:
  kind: random
  seed: 42
battery:
  dead_voltage: 2100
  dead_time_ms: 3000
motion:
  linear:
    p: 1.5
    acc: 800
  angular:
    p: 2.5
    d: 0.1
    acc: 400
`
	tmpFile := createTempConfig(t, content)
	defer os.Remove(tmpFile)

	// Act
	config, err := LoadConfig(tmpFile)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 9100, config.Server.MetricsPort)
	assert.Equal(t, "debug", config.Server.LogLevel)
	assert.Equal(t, "/dev/ttyUSB0", config.Serial.Port)
	assert.Equal(t, 57600, config.Serial.Baud)
	assert.Equal(t, 128, config.Serial.RxCapacity)
	assert.Equal(t, 512, config.Serial.TxCapacity)
	assert.Equal(t, uint32(500), config.Serial.FlushTimeoutMS)
	assert.Equal(t, "remote", config.Loop.Mode)
	assert.Equal(t, 2, config.Loop.TickMS)
	assert.True(t, config.Loop.Simulate)
	assert.Equal(t, 1200.0, config.Bot.LeftP)
	assert.Equal(t, 0.02, config.Bot.SpinP)
	assert.Equal(t, uint32(150), config.Bot.SpinSettle)
	assert.Equal(t, uint32(250), config.Bot.LinearSettle)
	assert.Equal(t, 2100.0, config.Bot.TicksPerSpin)
	assert.Equal(t, 8.9, config.Bot.TicksPerMM)
	assert.Equal(t, 8, config.Maze.Width)
	assert.True(t, config.Maze.StopAtGoal)
	assert.Equal(t, "random", config.Navigator.Kind)
	assert.Equal(t, uint64(42), config.Navigator.Seed)
	assert.Equal(t, uint16(2100), config.Battery.DeadVoltage)
	assert.Equal(t, uint32(3000), config.Battery.DeadTimeMS)
	assert.Equal(t, motion.ProfileConfig{P: 1.5, Acc: 800}, config.Motion.Linear)
	assert.Equal(t, motion.ProfileConfig{P: 2.5, D: 0.1, Acc: 400}, config.Motion.Angular)
}

// TestLoadConfig_InvalidYAML tests loading a file with invalid YAML
func TestLoadConfig_InvalidYAML(t *testing.T) {
	// Arrange
	content := `
server:
  metrics_port: 9090
  invalid yaml here: [unclosed
`
	tmpFile := createTempConfig(t, content)
	defer os.Remove(tmpFile)

	// Act
	_, err := LoadConfig(tmpFile)

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

// TestLoadConfig_MissingFile tests loading a non-existent file
func TestLoadConfig_MissingFile(t *testing.T) {
	// Act
	_, err := LoadConfig("/nonexistent/path/config.yaml")

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

// TestLoadConfig_PartialConfig_UsesDefaults tests partial config with defaults
func TestLoadConfig_PartialConfig_UsesDefaults(t *testing.T) {
	// Arrange - only tune two gains and the navigator
	content := `
bot:
  spin_p: 0.05
  linear_p: 0.03
navigator:
  kind: counting
`
	tmpFile := createTempConfig(t, content)
	defer os.Remove(tmpFile)

	// Act
	config, err := LoadConfig(tmpFile)

	// Assert
	require.NoError(t, err)
	// Check custom values
	assert.Equal(t, 0.05, config.Bot.SpinP)
	assert.Equal(t, 0.03, config.Bot.LinearP)
	assert.Equal(t, "counting", config.Navigator.Kind)
	// Check defaults were applied
	assert.Equal(t, 9090, config.Server.MetricsPort)
	assert.Equal(t, "info", config.Server.LogLevel)
	assert.Equal(t, 115200, config.Serial.Baud)
	assert.Equal(t, "plan", config.Loop.Mode)
	assert.Equal(t, 16, config.Maze.Width)
	assert.Equal(t, 16, config.Maze.Height)
	assert.Equal(t, 2064.03, config.Bot.TicksPerSpin)
	assert.Equal(t, uint32(200), config.Bot.SpinSettle)
	assert.Equal(t, uint32(10), config.Bot.MinTickMS)
	assert.Equal(t, 0.0, config.Bot.LeftP) // gains are never defaulted once the section exists
	assert.Equal(t, motion.DefaultConfig(), config.Motion)
}

// TestSetDefaults_EmptyConfig tests that an empty config gets full defaults
func TestSetDefaults_EmptyConfig(t *testing.T) {
	// Arrange
	config := &Config{}

	// Act
	setDefaults(config)

	// Assert
	assert.Equal(t, 9090, config.Server.MetricsPort)
	assert.Equal(t, "info", config.Server.LogLevel)
	assert.Equal(t, 256, config.Serial.RxCapacity)
	assert.Equal(t, 256, config.Serial.TxCapacity)
	assert.Equal(t, uint32(1000), config.Serial.FlushTimeoutMS)
	assert.Equal(t, 1, config.Loop.TickMS)
	assert.Equal(t, "left_wall", config.Navigator.Kind)
	assert.Equal(t, uint16(2000), config.Battery.DeadVoltage)
	assert.Equal(t, uint32(5000), config.Battery.DeadTimeMS)
	assert.Equal(t, bot.DefaultConfig(), config.Bot)
	assert.Equal(t, motion.DefaultConfig(), config.Motion)
	assert.NoError(t, config.Validate())
}

// TestSetDefaults_KeepsValues tests that set fields are not overwritten
func TestSetDefaults_KeepsValues(t *testing.T) {
	// Arrange
	config := &Config{
		Server: ServerConfig{MetricsPort: 8080, LogLevel: "warn"},
		Loop:   LoopConfig{Mode: "remote", TickMS: 5},
		Maze:   MazeConfig{Width: 5, Height: 7},
	}

	// Act
	setDefaults(config)

	// Assert
	assert.Equal(t, 8080, config.Server.MetricsPort)
	assert.Equal(t, "warn", config.Server.LogLevel)
	assert.Equal(t, "remote", config.Loop.Mode)
	assert.Equal(t, 5, config.Loop.TickMS)
	assert.Equal(t, 5, config.Maze.Width)
	assert.Equal(t, 7, config.Maze.Height)
}

// TestValidate_Errors tests each configuration violation
func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		expected string
	}{
		{"negative port", func(c *Config) { c.Server.MetricsPort = -100 }, "metrics_port must be between 1-65535"},
		{"port too high", func(c *Config) { c.Server.MetricsPort = 70000 }, "metrics_port must be between 1-65535"},
		{"log level", func(c *Config) { c.Server.LogLevel = "verbose" }, "log_level must be one of"},
		{"baud", func(c *Config) { c.Serial.Baud = -1 }, "baud must be positive"},
		{"rx capacity", func(c *Config) { c.Serial.RxCapacity = 4 }, "rx_capacity must be at least 16"},
		{"tx capacity", func(c *Config) { c.Serial.TxCapacity = 4 }, "tx_capacity must be at least 16"},
		{"mode", func(c *Config) { c.Loop.Mode = "manual" }, "mode must be one of: plan, remote"},
		{"tick", func(c *Config) { c.Loop.TickMS = -1 }, "tick_ms must be positive"},
		{"maze width", func(c *Config) { c.Maze.Width = 40 }, "maze width must be between 1-32"},
		{"maze height", func(c *Config) { c.Maze.Height = -2 }, "maze height must be between 1-32"},
		{"navigator", func(c *Config) { c.Navigator.Kind = "flood" }, "unknown navigator"},
		{"negative gain", func(c *Config) { c.Bot.SpinP = -1 }, "spin_p must be non-negative"},
		{"zero settle", func(c *Config) { c.Bot.LinearSettle = 0 }, "linear_settle must be positive"},
		{"motion acc", func(c *Config) { c.Motion.Linear.Acc = -5 }, "motion.linear.acc must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			config := DefaultConfig()
			tt.mutate(config)

			// Act
			err := config.Validate()

			// Assert
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expected)
		})
	}
}

// TestValidate_ReportsEveryViolation tests that errors are aggregated
func TestValidate_ReportsEveryViolation(t *testing.T) {
	// Arrange
	config := DefaultConfig()
	config.Server.LogLevel = "loud"
	config.Maze.Width = 0
	config.Bot.SpinErr = -3

	// Act
	err := config.Validate()

	// Assert
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
}

// TestValidate_AllFieldsValid tests that valid config passes validation
func TestValidate_AllFieldsValid(t *testing.T) {
	// Arrange
	config := DefaultConfig()

	// Act
	err := config.Validate()

	// Assert
	assert.NoError(t, err)
}

// TestLoadConfig_ValidationFailure tests that a bad file fails fast
func TestLoadConfig_ValidationFailure(t *testing.T) {
	// Arrange
	content := `
bot:
  spin_settle: 0
  spin_err: -1
`
	tmpFile := createTempConfig(t, content)
	defer os.Remove(tmpFile)

	// Act
	_, err := LoadConfig(tmpFile)

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
	assert.Contains(t, err.Error(), "spin_err must be non-negative")
}

// Helper function to create a temporary config file for testing
func createTempConfig(t *testing.T, content string) string {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "config.yaml")
	err := os.WriteFile(tmpFile, []byte(strings.TrimSpace(content)), 0644)
	require.NoError(t, err)
	return tmpFile
}

// TestLoadConfig_ExampleFile tests that the shipped example is valid
func TestLoadConfig_ExampleFile(t *testing.T) {
	// Act
	config, err := LoadConfig("config.example.yaml")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, bot.DefaultConfig(), config.Bot)
	assert.Equal(t, motion.DefaultConfig(), config.Motion)
	assert.True(t, config.Loop.Simulate)
	assert.Empty(t, config.Serial.Port)
}
