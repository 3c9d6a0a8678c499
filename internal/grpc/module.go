package grpc

import (
	"context"
	"errors"
	"net"

	"github.com/ronappleton/rubricflow/internal/generation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

var Module = fx.Options(
	fx.Provide(
		NewServer,
		NewListener,
		newMonitor,
	),
	fx.Invoke(lifecycleHook),
)

func newMonitor(hs *health.Server, gen *generation.Client, log *zap.Logger) *Monitor {
	return NewMonitor(hs, gen.Ready, 0, log)
}

func lifecycleHook(lc fx.Lifecycle, log *zap.Logger, srv *grpc.Server, lis net.Listener, mon *Monitor) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("grpc server starting", zap.String("addr", lis.Addr().String()))
			mon.Start()
			go func() {
				if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
					log.Error("grpc server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("grpc server stopping")
			mon.Stop()
			srv.GracefulStop()
			return nil
		},
	})
}
