package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ronappleton/rubricflow/internal/metrics"
	"go.uber.org/zap"
)

const (
	EventRunStarted   = "run.started"
	EventRunSucceeded = "run.succeeded"
	EventRunFailed    = "run.failed"
	EventRunCanceled  = "run.canceled"
	EventStepProgress = "step.progress"
)

// Notifier fans run events out to the run log, the logger, metrics and an
// optional webhook. A nil Notifier drops everything.
type Notifier struct {
	runs    *RunStore
	logger  *zap.Logger
	metrics *metrics.Metrics
	webhook *endpoint
	client  *http.Client
}

type endpoint struct {
	url     string
	timeout time.Duration
}

func NewNotifier(runs *RunStore, logger *zap.Logger, m *metrics.Metrics, webhookURL, webhookTimeout string) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		runs:    runs,
		logger:  logger,
		metrics: m,
		webhook: parseEndpoint(webhookURL, webhookTimeout),
		client:  &http.Client{},
	}
}

func (n *Notifier) RunEvent(run Run, event, note string) {
	if n == nil {
		return
	}
	if note != "" {
		n.runs.AppendLog(run.ID, note)
	}
	n.publish(run, event, note)
}

// publish reports an event whose note is already in the run log.
func (n *Notifier) publish(run Run, event, note string) {
	if n == nil {
		return
	}
	fields := []zap.Field{
		zap.String("event", event),
		zap.String("run_id", run.ID),
		zap.String("workflow_id", run.WorkflowID),
		zap.String("status", run.Status),
	}
	if run.Status == StatusFailed {
		n.logger.Warn("workflow run event", append(fields, zap.String("error", run.Error))...)
	} else {
		n.logger.Info("workflow run event", fields...)
	}
	if run.Finished() {
		n.metrics.RunFinished(string(run.Mode), run.Status, run.UpdatedAt.Sub(run.CreatedAt))
	}
	n.postWebhook(map[string]any{
		"event":        event,
		"run_id":       run.ID,
		"workflow_id":  run.WorkflowID,
		"status":       run.Status,
		"current_step": run.CurrentStep,
		"note":         note,
		"ts":           time.Now().UTC().Format(time.RFC3339),
	})
}

func (n *Notifier) StepEvent(run Run, step StepRun) {
	if n == nil {
		return
	}
	n.runs.AppendLog(run.ID, step.Message)
	n.logger.Debug("workflow step progress",
		zap.String("run_id", run.ID),
		zap.Int("index", step.Index),
	)
	n.metrics.StepCompleted(string(run.Mode))
	n.postWebhook(map[string]any{
		"event":       EventStepProgress,
		"run_id":      run.ID,
		"workflow_id": run.WorkflowID,
		"step_index":  step.Index,
		"message":     step.Message,
		"ts":          time.Now().UTC().Format(time.RFC3339),
	})
}

func (n *Notifier) postWebhook(payload map[string]any) {
	if n.webhook == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), n.webhook.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhook.url, bytes.NewReader(raw))
	if err != nil {
		n.logger.Warn("webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("webhook delivery failed", zap.Error(err))
		return
	}
	_ = resp.Body.Close()
}

func parseEndpoint(url, timeout string) *endpoint {
	if url == "" {
		return nil
	}
	dur, err := time.ParseDuration(timeout)
	if err != nil {
		dur = 5 * time.Second
	}
	return &endpoint{url: url, timeout: dur}
}
