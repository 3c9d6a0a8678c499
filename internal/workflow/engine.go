package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ronappleton/rubricflow/internal/questiontype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/ronappleton/rubricflow/internal/workflow"

// Generator is the text generation capability a run depends on.
type Generator interface {
	// Ready reports whether a usable credential is configured.
	Ready(ctx context.Context) error
	// Complete sends prompt to model (the default model when empty) and
	// returns the raw text.
	Complete(ctx context.Context, prompt, model string) (string, error)
}

type Engine struct {
	gen    Generator
	logger *zap.Logger
	tracer trace.Tracer
}

func NewEngine(gen Generator, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		gen:    gen,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

// Execute runs wf against in and returns the cleaned rubric text. Runs in
// conditional mode when any step has a condition, linear mode otherwise.
// Cancellation of ctx is observed between steps. Any failure aborts the run
// and no partial output is returned.
func (e *Engine) Execute(ctx context.Context, wf Workflow, in QuestionInput, onProgress ProgressFunc) (string, error) {
	if len(wf.Steps) == 0 {
		return "", fmt.Errorf("%w: no steps defined", ErrInvalidWorkflow)
	}
	if strings.TrimSpace(in.Text) == "" {
		return "", ErrEmptyQuestion
	}
	if e.gen == nil {
		return "", ErrMissingCredential
	}
	if err := e.gen.Ready(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMissingCredential, err)
	}
	if onProgress == nil {
		onProgress = func(int, string) {}
	}

	mode := ModeOf(wf)
	ctx, span := e.tracer.Start(ctx, "workflow.execute", trace.WithAttributes(
		attribute.String("workflow.id", wf.ID),
		attribute.String("workflow.mode", string(mode)),
		attribute.Int("workflow.steps", len(wf.Steps)),
	))
	defer span.End()

	typ := in.Type
	if in.Type != "" {
		if t, ok := questiontype.Normalize(in.Type); ok {
			typ = string(t)
		} else {
			e.logger.Warn("question type not recognized", zap.String("type", in.Type))
		}
	}
	runCtx := Context{Text: in.Text, Type: typ}

	var (
		out string
		err error
	)
	if mode == ModeConditional {
		out, err = e.runConditional(ctx, wf, runCtx, onProgress)
	} else {
		out, err = e.runLinear(ctx, wf, runCtx, onProgress)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return out, nil
}

func (e *Engine) runConditional(ctx context.Context, wf Workflow, c Context, onProgress ProgressFunc) (string, error) {
	idx, err := Route(wf, c.Type)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	step := wf.Steps[idx]
	c.Previous = ""
	e.logger.Debug("routing question",
		zap.String("workflow_id", wf.ID),
		zap.String("type", c.Type),
		zap.String("step_id", step.ID),
	)
	onProgress(0, "Running step: "+step.Label())
	raw, err := e.complete(ctx, idx, step, Render(step.Prompt, c))
	if err != nil {
		return "", err
	}
	return CleanOutput(raw), nil
}

func (e *Engine) runLinear(ctx context.Context, wf Workflow, c Context, onProgress ProgressFunc) (string, error) {
	visited := make(map[string]struct{}, len(wf.Steps))
	last := ""
	for i, step := range wf.Steps {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		key := step.ID
		if key == "" {
			key = "#" + strconv.Itoa(i)
		}
		if _, seen := visited[key]; seen {
			e.logger.Warn("step revisited, stopping", zap.String("step_id", step.ID))
			break
		}
		visited[key] = struct{}{}

		if strings.TrimSpace(step.Prompt) == "" {
			continue
		}

		raw, err := e.complete(ctx, i, step, Render(step.Prompt, c))
		if err != nil {
			return "", err
		}
		c.Previous = raw
		c.Text = raw

		last = CleanOutput(raw)
		onProgress(i, last)
	}
	return last, nil
}

func (e *Engine) complete(ctx context.Context, index int, step Step, prompt string) (string, error) {
	ctx, span := e.tracer.Start(ctx, "workflow.step", trace.WithAttributes(
		attribute.Int("step.index", index),
		attribute.String("step.id", step.ID),
		attribute.String("step.name", step.Label()),
	))
	defer span.End()

	e.logger.Debug("executing step",
		zap.Int("index", index),
		zap.String("step_id", step.ID),
		zap.Int("prompt_len", len(prompt)),
	)
	raw, err := e.gen.Complete(ctx, prompt, step.Model)
	if err == nil && strings.TrimSpace(raw) == "" {
		err = ErrInvalidModelResponse
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", &StepError{Index: index, StepID: step.ID, Name: step.Label(), Err: err}
	}
	return raw, nil
}

// Route picks the step a conditional workflow runs for detectedType: the
// first step with a type/equals condition matching it after normalization.
// When none matches, the first step carrying an exists condition is used as
// the authored fallback. Otherwise a *NoMatchingStepError is returned.
func Route(wf Workflow, detectedType string) (int, error) {
	if want, ok := questiontype.Normalize(detectedType); ok {
		detected := TypeOutput(string(want))
		for i, step := range wf.Steps {
			for _, c := range step.Conditions {
				if c.OutputKey == OutputKeyType && c.Operator == OpEquals && Evaluate(c, detected) {
					return i, nil
				}
			}
		}
	}
	for i, step := range wf.Steps {
		for _, c := range step.Conditions {
			if c.Operator == OpExists {
				return i, nil
			}
		}
	}
	return -1, &NoMatchingStepError{Type: detectedType}
}
