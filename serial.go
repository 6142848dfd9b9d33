package main

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.uber.org/zap"

	"micromouse/internal/transport"
)

// openPort opens the host link. Tests replace it.
var openPort = func(name string, baud int) (io.ReadWriteCloser, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", name)
	}
	return port, nil
}

// runSerial pumps bytes between the configured port and link until ctx is
// done. Closing the port on cancel unblocks the pending read.
func runSerial(ctx context.Context, config SerialConfig, link *transport.Link, logger *zap.Logger) error {
	port, err := openPort(config.Port, config.Baud)
	if err != nil {
		return err
	}
	logger.Info("serial link open", zap.String("port", config.Port), zap.Int("baud", config.Baud))

	stop := context.AfterFunc(ctx, func() {
		if err := port.Close(); err != nil {
			logger.Debug("serial close", zap.Error(err))
		}
	})

	err = link.Pump(ctx, port)
	if stop() {
		if err := port.Close(); err != nil {
			logger.Debug("serial close", zap.Error(err))
		}
	}
	if err != nil {
		return errors.Wrap(err, "serial link")
	}
	return nil
}
