// Package logging builds the application's zap logger.
package logging

import (
	"context"
	"fmt"

	"github.com/ronappleton/rubricflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func Module() fx.Option {
	return fx.Provide(newFx)
}

// New builds a logger from cfg. The returned stop func flushes the
// forwarder when one is configured and syncs the logger.
func New(cfg config.LoggingConfig) (*zap.Logger, func(context.Context) error, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("logging level %q: %w", cfg.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return nil, nil, err
	}

	var fwd *forwarder
	if cfg.ForwardURL != "" {
		fwd = newForwarder(cfg.ForwardURL, cfg.ForwardAPIKey, cfg.Source, nil)
		fwd.start()
		logger = attachForwarder(logger, fwd)
	}
	if cfg.Source != "" {
		logger = logger.With(zap.String("service", cfg.Source))
	}

	return logger, func(ctx context.Context) error {
		_ = logger.Sync()
		if fwd == nil {
			return nil
		}
		return fwd.stop(ctx)
	}, nil
}

func newFx(lc fx.Lifecycle, cfg config.Config) (*zap.Logger, error) {
	logger, stop, err := New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: stop})
	return logger, nil
}
