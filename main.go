package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// CLI flags
	configPath = flag.String("config", "", "Path to configuration file (built-in defaults when empty)")
	simulate   = flag.Bool("simulate", false, "Drive simulated hardware")
	serialPort = flag.String("port", "", "Override the serial port of the host link")
	logLevel   = flag.String("log-level", "", "Override log level (debug, info, warn, error)")
	devLog     = flag.Bool("dev-log", false, "Human readable console logging")
)

// overrides are the command line values that replace configuration
type overrides struct {
	simulate *bool
	port     string
	logLevel string
}

func main() {
	flag.Parse()

	// Load configuration
	config, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	o := overrides{port: *serialPort, logLevel: *logLevel}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "simulate" {
			o.simulate = simulate
		}
	})
	applyOverrides(config, o)

	logger, err := NewLogger(config.Server.LogLevel, *devLog)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting micromouse controller",
		zap.String("config", *configPath),
		zap.String("mode", config.Loop.Mode),
		zap.Bool("simulate", config.Loop.Simulate))

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config, os.Stdin, os.Stdout, logger); err != nil {
		logger.Fatal("controller failed", zap.Error(err))
	}
	logger.Info("micromouse controller stopped")
}

// loadConfig reads path, or returns the defaults when no path is given
func loadConfig(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

func applyOverrides(config *Config, o overrides) {
	if o.simulate != nil {
		config.Loop.Simulate = *o.simulate
	}
	if o.port != "" {
		config.Serial.Port = o.port
	}
	if o.logLevel != "" {
		config.Server.LogLevel = o.logLevel
	}
}

// run wires the robot and blocks until ctx is done or a component fails.
// The robot is stopped before run returns.
func run(ctx context.Context, config *Config, in io.Reader, out io.Writer, logger *zap.Logger) error {
	hardware, err := NewHardware(config, logger.Named("hw"))
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := InitMetrics(reg)

	robot, err := NewRobot(config, hardware, clock.New(), m, out, logger)
	if err != nil {
		return err
	}

	server := StartMetricsServer(config.Server.MetricsPort, reg, robot.BatteryDead, logger.Named("metrics"))
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return robot.Run(ctx) })
	if config.Serial.Port != "" {
		g.Go(func() error {
			return runSerial(ctx, config.Serial, robot.Link(), logger.Named("serial"))
		})
	} else {
		logger.Info("no serial port configured, host link disabled")
	}

	// Reading stdin cannot be cancelled, so the reader is left to exit with
	// the process
	go readConsole(ctx, in, robot.Input(), logger)

	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "controller stopped")
	}
	return nil
}

// readConsole forwards non-empty input lines to lines until in is exhausted
// or ctx is done
func readConsole(ctx context.Context, in io.Reader, lines chan<- string, logger *zap.Logger) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case lines <- line:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("console input closed", zap.Error(err))
	}
}
