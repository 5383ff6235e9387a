package container

import (
	"fmt"

	"github.com/mir00r/giftcert-router/internal/config"
	"github.com/mir00r/giftcert-router/pkg/logger"
)

// NewLogger builds the service logger and attaches the log shipper when
// enabled. The returned close function releases the shipper.
func NewLogger(cfg *config.Config) (*logger.Logger, func() error, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		File:        cfg.Logging.File,
		Environment: cfg.Environment,
		Service:     cfg.ServiceName,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	noop := func() error { return nil }
	if !cfg.Logging.Shipper.Enabled {
		return log, noop, nil
	}

	hook, err := logger.NewShipperHook(logger.ShipperConfig{
		Host:        cfg.Logging.Shipper.Host,
		UDPPort:     cfg.Logging.Shipper.UDPPort,
		HTTPPort:    cfg.Logging.Shipper.HTTPPort,
		Environment: cfg.Environment,
		Service:     cfg.ServiceName,
		Timeout:     cfg.Logging.Shipper.Timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize log shipper: %w", err)
	}
	log.AddHook(hook)

	return log, hook.Close, nil
}
