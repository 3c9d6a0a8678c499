package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ronappleton/rubricflow/internal/questiontype"
	"go.uber.org/zap"
)

// DefaultQuestionType is assumed when a linear run is started without a
// type.
const DefaultQuestionType = questiontype.ShortAnswer

// WithDefaultType fills in DefaultQuestionType for linear workflows. A
// conditional workflow routes on the type, so an untyped question is left
// as is and fails with ErrNoMatchingStep unless an exists condition catches
// it.
func WithDefaultType(wf Workflow, in QuestionInput) QuestionInput {
	if in.Type == "" && ModeOf(wf) == ModeLinear {
		in.Type = string(DefaultQuestionType)
	}
	return in
}

type Service struct {
	repo     *Repository
	runs     *RunStore
	engine   *Engine
	notifier *Notifier
	logger   *zap.Logger

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu        sync.Mutex
	activeRun string
	cancelRun context.CancelFunc
}

func NewService(repo *Repository, runs *RunStore, engine *Engine, notifier *Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Service{
		repo:     repo,
		runs:     runs,
		engine:   engine,
		notifier: notifier,
		logger:   logger,
		baseCtx:  ctx,
		stop:     stop,
	}
}

// Close cancels any in-flight run and waits for it to finish.
func (s *Service) Close() {
	s.stop()
	s.wg.Wait()
}

func assignIDs(w *Workflow) {
	if w.ID == "" {
		w.ID = newID("wf")
	}
	for i := range w.Steps {
		if w.Steps[i].ID == "" {
			w.Steps[i].ID = newID("step")
		}
		if w.Steps[i].Conditions == nil {
			w.Steps[i].Conditions = []Condition{}
		}
		for j := range w.Steps[i].Conditions {
			if w.Steps[i].Conditions[j].ID == "" {
				w.Steps[i].Conditions[j].ID = newID("cond")
			}
		}
	}
}

func (s *Service) CreateWorkflow(ctx context.Context, w Workflow) (Workflow, error) {
	assignIDs(&w)
	if err := Validate(w); err != nil {
		return Workflow{}, err
	}
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now
	if err := s.repo.Put(ctx, w); err != nil {
		return Workflow{}, err
	}
	return w, nil
}

func (s *Service) UpdateWorkflow(ctx context.Context, id string, w Workflow) (Workflow, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Workflow{}, err
	}
	w.ID = id
	assignIDs(&w)
	if err := Validate(w); err != nil {
		return Workflow{}, err
	}
	w.CreatedAt = existing.CreatedAt
	w.UpdatedAt = time.Now().UTC()
	if err := s.repo.Put(ctx, w); err != nil {
		return Workflow{}, err
	}
	return w, nil
}

func (s *Service) ListWorkflows(ctx context.Context) ([]Workflow, error) {
	return s.repo.List(ctx)
}

func (s *Service) GetWorkflow(ctx context.Context, id string) (Workflow, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) DeleteWorkflow(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// ImportWorkflow validates a workflow file and stores it, replacing any
// workflow with the same id.
func (s *Service) ImportWorkflow(ctx context.Context, data []byte) (Workflow, error) {
	w, err := Import(data)
	if err != nil {
		return Workflow{}, err
	}
	w.UpdatedAt = time.Now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = w.UpdatedAt
	}
	if err := s.repo.Put(ctx, w); err != nil {
		return Workflow{}, err
	}
	return w, nil
}

// ExportWorkflow returns the file body and a suggested file name.
func (s *Service) ExportWorkflow(ctx context.Context, id string) ([]byte, string, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	data, err := Export(w, time.Now())
	if err != nil {
		return nil, "", err
	}
	return data, ExportFilename(w.Name), nil
}

// StartRun executes a stored workflow in the background. Only one run may
// be in flight; a second start fails with ErrRunInProgress.
func (s *Service) StartRun(ctx context.Context, workflowID string, in QuestionInput) (Run, error) {
	wf, err := s.repo.Get(ctx, workflowID)
	if err != nil {
		return Run{}, err
	}
	return s.start(wf, in)
}

// StartWorkflowRun is StartRun for a workflow that is not stored.
func (s *Service) StartWorkflowRun(wf Workflow, in QuestionInput) (Run, error) {
	return s.start(wf, in)
}

func (s *Service) start(wf Workflow, in QuestionInput) (Run, error) {
	// Reject what Execute would reject before any model call, without
	// creating a run.
	if len(wf.Steps) == 0 {
		return Run{}, fmt.Errorf("%w: no steps defined", ErrInvalidWorkflow)
	}
	if strings.TrimSpace(in.Text) == "" {
		return Run{}, ErrEmptyQuestion
	}
	in = WithDefaultType(wf, in)

	s.mu.Lock()
	if s.activeRun != "" {
		active := s.activeRun
		s.mu.Unlock()
		return Run{}, fmt.Errorf("%w: %s", ErrRunInProgress, active)
	}
	if err := s.baseCtx.Err(); err != nil {
		s.mu.Unlock()
		return Run{}, err
	}

	now := time.Now().UTC()
	run := s.runs.CreateRun(Run{
		ID:         newID("run"),
		WorkflowID: wf.ID,
		Mode:       ModeOf(wf),
		Status:     StatusRunning,
		TotalSteps: len(wf.Steps),
		Input:      in,
		Steps:      []StepRun{},
		CreatedAt:  now,
		UpdatedAt:  now,
	})

	runCtx, cancel := context.WithCancel(s.baseCtx)
	s.activeRun = run.ID
	s.cancelRun = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	// RunEvent may block for events.timeout and must not hold s.mu
	s.notifier.RunEvent(run, EventRunStarted, fmt.Sprintf("Starting workflow %q in %s mode", wf.Name, run.Mode))
	go s.execute(runCtx, cancel, wf, run)
	return run, nil
}

func (s *Service) execute(ctx context.Context, cancel context.CancelFunc, wf Workflow, run Run) {
	defer s.wg.Done()
	defer cancel()

	result, err := s.engine.Execute(ctx, wf, run.Input, func(index int, message string) {
		step := StepRun{Index: index, Message: message}
		run.CurrentStep = index + 1
		run.Steps = append(run.Steps, step)
		run = s.runs.UpdateRun(run)
		s.notifier.StepEvent(run, step)
	})
	s.release(run.ID)

	var event, note string
	switch {
	case err == nil:
		run.Status = StatusSucceeded
		run.Result = result
		event, note = EventRunSucceeded, "Workflow completed"
	case errors.Is(err, context.Canceled):
		run.Status = StatusCanceled
		run.Error = "run canceled"
		event, note = EventRunCanceled, "Workflow canceled"
	default:
		run.Status = StatusFailed
		run.Error = err.Error()
		event, note = EventRunFailed, "Workflow failed: "+err.Error()
	}
	// the final line lands before the terminal status so a reader that
	// sees the status has every line
	s.runs.AppendLog(run.ID, note)
	run = s.runs.UpdateRun(run)
	s.notifier.publish(run, event, note)
}

func (s *Service) release(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeRun == runID {
		s.activeRun = ""
		s.cancelRun = nil
	}
}

func (s *Service) GetRun(id string) (Run, error) {
	return s.runs.GetRun(id)
}

// CancelRun requests cancellation; the run stops at the next step boundary.
func (s *Service) CancelRun(id string) (Run, error) {
	run, err := s.runs.GetRun(id)
	if err != nil {
		return Run{}, err
	}
	s.mu.Lock()
	if s.activeRun == id && s.cancelRun != nil {
		s.cancelRun()
	}
	s.mu.Unlock()
	return run, nil
}

// ActiveRun returns the id of the in-flight run, if any.
func (s *Service) ActiveRun() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeRun, s.activeRun != ""
}

func (s *Service) ListLogs(runID string) ([]string, error) {
	if _, err := s.runs.GetRun(runID); err != nil {
		return nil, err
	}
	return s.runs.ListLogs(runID), nil
}
