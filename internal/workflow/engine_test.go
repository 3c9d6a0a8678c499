package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator answers each call with reply(n, prompt) where n counts from 1.
type fakeGenerator struct {
	mu       sync.Mutex
	readyErr error
	reply    func(n int, prompt string) (string, error)
	prompts  []string
	models   []string
}

func (f *fakeGenerator) Ready(context.Context) error {
	return f.readyErr
}

func (f *fakeGenerator) Complete(_ context.Context, prompt, model string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.models = append(f.models, model)
	n := len(f.prompts)
	f.mu.Unlock()
	if f.reply == nil {
		return fmt.Sprintf("R%d", n), nil
	}
	return f.reply(n, prompt)
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type progressEvent struct {
	index   int
	message string
}

func recordProgress() (*[]progressEvent, ProgressFunc) {
	var events []progressEvent
	return &events, func(i int, m string) {
		events = append(events, progressEvent{i, m})
	}
}

func linearWorkflow(prompts ...string) Workflow {
	wf := Workflow{ID: "wf", Name: "linear"}
	for i, p := range prompts {
		wf.Steps = append(wf.Steps, Step{ID: fmt.Sprintf("s%d", i+1), Name: fmt.Sprintf("Step %d", i+1), Prompt: p})
	}
	return wf
}

func TestLinearChainsPreviousOutput(t *testing.T) {
	gen := &fakeGenerator{}
	engine := NewEngine(gen, nil)
	events, progress := recordProgress()

	wf := linearWorkflow("A {question}", "B {previous}", "C {previous} {question}")
	out, err := engine.Execute(context.Background(), wf, FromText("Q1"), progress)
	require.NoError(t, err)

	assert.Equal(t, "R3", out)
	assert.Equal(t, []string{"A Q1", "B R1", "C R2 R2"}, gen.prompts)
	assert.Equal(t, []progressEvent{{0, "R1"}, {1, "R2"}, {2, "R3"}}, *events)
}

func TestLinearSkipsEmptyPrompts(t *testing.T) {
	gen := &fakeGenerator{}
	events, progress := recordProgress()

	wf := linearWorkflow("A {question}", "   ", "C {previous}")
	out, err := NewEngine(gen, nil).Execute(context.Background(), wf, FromText("Q"), progress)
	require.NoError(t, err)

	assert.Equal(t, "R2", out)
	assert.Equal(t, 2, gen.calls())
	assert.Equal(t, []progressEvent{{0, "R1"}, {2, "R2"}}, *events)
}

func TestLinearAllEmptyReturnsEmpty(t *testing.T) {
	gen := &fakeGenerator{}
	out, err := NewEngine(gen, nil).Execute(context.Background(), linearWorkflow("", " "), FromText("Q"), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, gen.calls())
}

func TestLinearStopsOnRevisitedStep(t *testing.T) {
	gen := &fakeGenerator{}
	wf := linearWorkflow("A", "B", "C")
	wf.Steps[2].ID = wf.Steps[0].ID

	out, err := NewEngine(gen, nil).Execute(context.Background(), wf, FromText("Q"), nil)
	require.NoError(t, err)
	assert.Equal(t, "R2", out)
	assert.Equal(t, 2, gen.calls())
}

func TestLinearCleansOutput(t *testing.T) {
	gen := &fakeGenerator{reply: func(int, string) (string, error) {
		return "QUESTION: Q\nTYPE: short_answer\n\n1. Correct answer: 4", nil
	}}
	out, err := NewEngine(gen, nil).Execute(context.Background(), linearWorkflow("{question}"), FromText("Q"), nil)
	require.NoError(t, err)
	assert.Equal(t, "1. Correct answer: 4", out)
}

func TestLinearPassesStepModel(t *testing.T) {
	gen := &fakeGenerator{}
	wf := linearWorkflow("A", "B")
	wf.Steps[1].Model = "gpt-4o-mini"

	_, err := NewEngine(gen, nil).Execute(context.Background(), wf, FromText("Q"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"", "gpt-4o-mini"}, gen.models)
}

func TestConditionalRunsMatchingStepOnly(t *testing.T) {
	gen := &fakeGenerator{reply: func(int, string) (string, error) {
		return "Type: multiple_choice\n1. Correct answer: B\n2. Clear single selection", nil
	}}
	events, progress := recordProgress()

	in := QuestionInput{Text: "Which is a mammal? A) shark B) whale", Type: "Multiple Choice"}
	out, err := NewEngine(gen, nil).Execute(context.Background(), DefaultWorkflow(), in, progress)
	require.NoError(t, err)

	assert.Equal(t, "1. Correct answer: B\n2. Clear single selection", out)
	require.Equal(t, 1, gen.calls())
	assert.Contains(t, gen.prompts[0], "For this multiple choice question: Which is a mammal? A) shark B) whale")
	assert.Equal(t, []progressEvent{{0, "Running step: Multiple Choice Rubric"}}, *events)
}

func TestConditionalIgnoresPreviousPlaceholder(t *testing.T) {
	gen := &fakeGenerator{}
	wf := Workflow{ID: "wf", Steps: []Step{{
		ID:         "only",
		Prompt:     "{question}|{previous}|{type}",
		Conditions: []Condition{{OutputKey: "type", Operator: OpEquals, Value: "tf"}},
	}}}
	_, err := NewEngine(gen, nil).Execute(context.Background(), wf, QuestionInput{Text: "Q", Type: "True/False"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Q||true_false"}, gen.prompts)
}

func TestConditionalNoMatch(t *testing.T) {
	gen := &fakeGenerator{}
	in := QuestionInput{Text: "Label the diagram", Type: "diagram"}

	_, err := NewEngine(gen, nil).Execute(context.Background(), DefaultWorkflow(), in, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoMatchingStep)
	assert.EqualError(t, err, "no matching step found for question type: diagram")
	assert.Zero(t, gen.calls())
}

func TestConditionalExistsFallback(t *testing.T) {
	gen := &fakeGenerator{}
	wf := DefaultWorkflow()
	wf.Steps = append(wf.Steps, Step{
		ID:         "fallback",
		Name:       "Generic Rubric",
		Prompt:     "Generic: {question}",
		Conditions: []Condition{{Operator: OpExists}},
	})

	_, err := NewEngine(gen, nil).Execute(context.Background(), wf, QuestionInput{Text: "Q", Type: "diagram"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Generic: Q"}, gen.prompts)
}

func TestRoutePrefersTypeMatchOverFallback(t *testing.T) {
	wf := Workflow{Steps: []Step{
		{ID: "any", Conditions: []Condition{{Operator: OpExists}}},
		{ID: "order", Conditions: []Condition{{OutputKey: "type", Operator: OpEquals, Value: "ordering"}}},
	}}
	idx, err := Route(wf, "Ordering")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	idx, err = Route(wf, "essay")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
}

func TestExecuteRejectsBeforeCallingModel(t *testing.T) {
	readyErr := errors.New("api key missing")
	cases := []struct {
		name   string
		gen    *fakeGenerator
		wf     Workflow
		in     QuestionInput
		target error
	}{
		{"no steps", &fakeGenerator{}, Workflow{ID: "empty"}, FromText("Q"), ErrInvalidWorkflow},
		{"empty question", &fakeGenerator{}, linearWorkflow("A"), FromText("  \n"), ErrEmptyQuestion},
		{"credential not ready", &fakeGenerator{readyErr: readyErr}, linearWorkflow("A"), FromText("Q"), ErrMissingCredential},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewEngine(tc.gen, nil).Execute(context.Background(), tc.wf, tc.in, nil)
			assert.ErrorIs(t, err, tc.target)
			assert.Zero(t, tc.gen.calls())
		})
	}

	_, err := NewEngine(nil, nil).Execute(context.Background(), linearWorkflow("A"), FromText("Q"), nil)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestEmptyModelResponseFailsStep(t *testing.T) {
	gen := &fakeGenerator{reply: func(n int, _ string) (string, error) {
		if n == 2 {
			return "  ", nil
		}
		return "ok", nil
	}}
	_, err := NewEngine(gen, nil).Execute(context.Background(), linearWorkflow("A", "B", "C"), FromText("Q"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidModelResponse)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 1, stepErr.Index)
	assert.Equal(t, "s2", stepErr.StepID)
	assert.Equal(t, "step 2 (Step 2): invalid response from AI service", err.Error())
	assert.Equal(t, 2, gen.calls())
}

func TestGeneratorErrorPropagates(t *testing.T) {
	quota := errors.New("quota exceeded")
	gen := &fakeGenerator{reply: func(int, string) (string, error) { return "", quota }}
	events, progress := recordProgress()

	out, err := NewEngine(gen, nil).Execute(context.Background(), linearWorkflow("A", "B"), FromText("Q"), progress)
	assert.Empty(t, out)
	assert.ErrorIs(t, err, quota)
	assert.Empty(t, *events)
	assert.Equal(t, 1, gen.calls())
}

func TestCancellationStopsAtStepBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gen := &fakeGenerator{reply: func(n int, _ string) (string, error) {
		if n == 1 {
			cancel()
		}
		return fmt.Sprintf("R%d", n), nil
	}}

	_, err := NewEngine(gen, nil).Execute(ctx, linearWorkflow("A", "B", "C"), FromText("Q"), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, gen.calls())
}

func TestModeOf(t *testing.T) {
	assert.Equal(t, ModeLinear, ModeOf(linearWorkflow("A")))
	assert.Equal(t, ModeConditional, ModeOf(DefaultWorkflow()))
	assert.Equal(t, ModeLinear, ModeOf(LinearTemplate()))
}
