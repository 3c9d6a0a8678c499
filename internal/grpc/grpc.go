// Package grpc serves the standard gRPC health service.
package grpc

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/ronappleton/rubricflow/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GenerationService is the health service name tracking whether a usable
// model API key is configured.
const GenerationService = "rubricflow.generation"

// ReadyFunc reports whether the model API can be called.
type ReadyFunc func(ctx context.Context) error

func NewServer(log *zap.Logger) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	log.Info("grpc health enabled")
	return srv, hs
}

func NewListener(cfg config.Config) (net.Listener, error) {
	addr := net.JoinHostPort(cfg.GRPC.Host, strconv.Itoa(cfg.GRPC.Port))
	return net.Listen("tcp", addr)
}

// Monitor keeps the overall status and the generation status of a health
// server current.
type Monitor struct {
	health   *health.Server
	ready    ReadyFunc
	interval time.Duration
	log      *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewMonitor(hs *health.Server, ready ReadyFunc, interval time.Duration, log *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(GenerationService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Monitor{health: hs, ready: ready, interval: interval, log: log}
}

// Start marks the server SERVING and polls readiness until Stop.
func (m *Monitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	m.check(ctx)
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.check(ctx)
			}
		}
	}()
}

func (m *Monitor) check(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if m.ready != nil {
		if err := m.ready(ctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			m.log.Debug("generation not ready", zap.Error(err))
		}
	}
	m.health.SetServingStatus(GenerationService, status)
}

// Stop marks every service NOT_SERVING.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
		m.cancel = nil
	}
	m.health.Shutdown()
}
