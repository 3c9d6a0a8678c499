package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ronappleton/rubricflow/internal/kvstore"
)

// WorkflowsKey is the kv entry holding the JSON encoded workflow list.
const WorkflowsKey = "workflows"

// Repository keeps the ordered workflow list in a key/value store. An absent
// or empty list is replaced by the built-in default workflow.
type Repository struct {
	mu sync.Mutex
	kv kvstore.Store
}

func NewRepository(kv kvstore.Store) *Repository {
	return &Repository{kv: kv}
}

func (r *Repository) load(ctx context.Context) ([]Workflow, error) {
	var list []Workflow
	err := kvstore.GetJSON(ctx, r.kv, WorkflowsKey, &list)
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		return nil, fmt.Errorf("load workflows: %w", err)
	}
	if len(list) == 0 {
		list = []Workflow{DefaultWorkflow()}
		if err := r.save(ctx, list); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (r *Repository) save(ctx context.Context, list []Workflow) error {
	if err := kvstore.SetJSON(ctx, r.kv, WorkflowsKey, list); err != nil {
		return fmt.Errorf("save workflows: %w", err)
	}
	return nil
}

func (r *Repository) List(ctx context.Context) ([]Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

func (r *Repository) Get(ctx context.Context, id string) (Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list, err := r.load(ctx)
	if err != nil {
		return Workflow{}, err
	}
	for _, w := range list {
		if w.ID == id {
			return w, nil
		}
	}
	return Workflow{}, ErrNotFound
}

// Put replaces the workflow with the same id in place or appends it.
func (r *Repository) Put(ctx context.Context, w Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list, err := r.load(ctx)
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].ID == w.ID {
			list[i] = w
			return r.save(ctx, list)
		}
	}
	return r.save(ctx, append(list, w))
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list, err := r.load(ctx)
	if err != nil {
		return err
	}
	out := list[:0]
	found := false
	for _, w := range list {
		if w.ID == id {
			found = true
			continue
		}
		out = append(out, w)
	}
	if !found {
		return ErrNotFound
	}
	return r.save(ctx, out)
}

// RunStore holds run records and their logs for the life of the process.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]Run
	logs map[string][]string
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: map[string]Run{},
		logs: map[string][]string{},
	}
}

func (s *RunStore) CreateRun(r Run) Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = r
	return r
}

func (s *RunStore) UpdateRun(r Run) Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.UpdatedAt = time.Now().UTC()
	s.runs[r.ID] = r
	return r
}

func (s *RunStore) GetRun(id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return r, nil
}

func (s *RunStore) AppendLog(runID string, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[runID] = append(s.logs[runID], msg)
}

func (s *RunStore) ListLogs(runID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.logs[runID]...)
}
