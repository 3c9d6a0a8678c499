// Package httpserver exposes workflows, runs, question detection and the
// tutor over HTTP/JSON.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ronappleton/rubricflow/internal/config"
	"github.com/ronappleton/rubricflow/internal/generation"
	"github.com/ronappleton/rubricflow/internal/metrics"
	"github.com/ronappleton/rubricflow/internal/session"
	"github.com/ronappleton/rubricflow/internal/tutor"
	"github.com/ronappleton/rubricflow/internal/workflow"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Detector extracts a question from an image data URL.
type Detector interface {
	DetectQuestion(ctx context.Context, imageDataURL, prompt string) (generation.DetectedQuestion, error)
}

type Deps struct {
	fx.In

	Config   config.Config
	Logger   *zap.Logger
	Workflow *workflow.Service
	Session  *session.Store
	Tutor    *tutor.Tutor
	Detector Detector
	Metrics  *metrics.Metrics
}

type Server struct {
	cfg      config.Config
	logger   *zap.Logger
	wf       *workflow.Service
	session  *session.Store
	tutor    *tutor.Tutor
	detector Detector
	metrics  *metrics.Metrics

	// log stream poll interval
	streamEvery time.Duration

	handler http.Handler
	srv     *http.Server
}

func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			func(c *generation.Client) Detector { return c },
			NewServer,
		),
		fx.Invoke(RegisterHooks),
	)
}

func NewServer(d Deps) *Server {
	s := &Server{
		cfg:         d.Config,
		logger:      d.Logger,
		wf:          d.Workflow,
		session:     d.Session,
		tutor:       d.Tutor,
		detector:    d.Detector,
		metrics:     d.Metrics,
		streamEvery: time.Second,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.handler = otelhttp.NewHandler(s.routes(), "rubricflow.http")

	addr := fmt.Sprintf("%s:%d", d.Config.Server.Host, d.Config.Server.Port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("GET /v1/workflows", s.handleListWorkflows)
	mux.HandleFunc("POST /v1/workflows", s.handleCreateWorkflow)
	mux.HandleFunc("POST /v1/workflows/import", s.handleImportWorkflow)
	mux.HandleFunc("GET /v1/workflows/{id}", s.handleGetWorkflow)
	mux.HandleFunc("PUT /v1/workflows/{id}", s.handleUpdateWorkflow)
	mux.HandleFunc("DELETE /v1/workflows/{id}", s.handleDeleteWorkflow)
	mux.HandleFunc("GET /v1/workflows/{id}/export", s.handleExportWorkflow)
	mux.HandleFunc("GET /v1/templates", s.handleTemplates)

	mux.HandleFunc("POST /v1/questions/detect", s.handleDetect)
	mux.HandleFunc("GET /v1/questions/current", s.handleGetQuestion)
	mux.HandleFunc("DELETE /v1/questions/current", s.handleClearQuestion)

	mux.HandleFunc("POST /v1/runs", s.handleStartRun)
	mux.HandleFunc("GET /v1/runs/{id}", s.handleGetRun)
	mux.HandleFunc("POST /v1/runs/{id}/cancel", s.handleCancelRun)
	mux.HandleFunc("GET /v1/runs/{id}/logs", s.handleRunLogs)
	mux.HandleFunc("GET /v1/runs/{id}/logs/stream", s.handleLogStream)

	mux.HandleFunc("GET /v1/settings/api-key", s.handleAPIKeyStatus)
	mux.HandleFunc("PUT /v1/settings/api-key", s.handleSetAPIKey)
	mux.HandleFunc("DELETE /v1/settings/api-key", s.handleClearAPIKey)
	mux.HandleFunc("GET /v1/settings/workflow", s.handleGetSelectedWorkflow)
	mux.HandleFunc("PUT /v1/settings/workflow", s.handleSelectWorkflow)
	mux.HandleFunc("GET /v1/settings/tutor", s.handleGetTutorSettings)
	mux.HandleFunc("PUT /v1/settings/tutor", s.handleSaveTutorSettings)

	mux.HandleFunc("GET /v1/tutor/prompts", s.handleGetTutorPrompts)
	mux.HandleFunc("PUT /v1/tutor/prompts", s.handleSaveTutorPrompts)
	mux.HandleFunc("POST /v1/tutor/chat", s.handleTutorChat)
	mux.HandleFunc("GET /v1/tutor/history", s.handleTutorHistory)
	mux.HandleFunc("DELETE /v1/tutor/history", s.handleClearTutorHistory)
	return mux
}

func RegisterHooks(lc fx.Lifecycle, server *Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			server.logger.Info("http server starting", zap.String("addr", server.srv.Addr))
			go func() {
				if err := server.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					server.logger.Error("http server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			server.logger.Info("http server stopping")
			return server.srv.Shutdown(shutdownCtx)
		},
	})
}
