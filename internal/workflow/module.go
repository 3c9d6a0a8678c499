package workflow

import (
	"context"

	"github.com/ronappleton/rubricflow/internal/config"
	"github.com/ronappleton/rubricflow/internal/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module wires the repository, run store, engine and service. A Generator
// must be provided elsewhere in the graph.
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewRepository,
			NewRunStore,
			NewEngine,
			newNotifier,
			newService,
		),
	)
}

func newNotifier(cfg config.Config, runs *RunStore, logger *zap.Logger, m *metrics.Metrics) *Notifier {
	return NewNotifier(runs, logger, m, cfg.Events.WebhookURL, cfg.Events.Timeout)
}

func newService(lc fx.Lifecycle, repo *Repository, runs *RunStore, engine *Engine, notifier *Notifier, logger *zap.Logger) *Service {
	svc := NewService(repo, runs, engine, notifier, logger)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			svc.Close()
			return nil
		},
	})
	return svc
}
