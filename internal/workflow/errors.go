package workflow

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidWorkflow      = errors.New("invalid workflow")
	ErrEmptyQuestion        = errors.New("question text is empty")
	ErrMissingCredential    = errors.New("model credential is not configured")
	ErrNoMatchingStep       = errors.New("no matching step")
	ErrInvalidModelResponse = errors.New("invalid response from AI service")
	ErrRunInProgress        = errors.New("a workflow run is already in progress")
)

// NoMatchingStepError is returned in conditional mode when no step routes
// the detected question type.
type NoMatchingStepError struct {
	Type string
}

func (e *NoMatchingStepError) Error() string {
	return fmt.Sprintf("no matching step found for question type: %s", e.Type)
}

func (e *NoMatchingStepError) Is(target error) bool {
	return target == ErrNoMatchingStep
}

// StepError labels a failure with the step that produced it.
type StepError struct {
	Index  int
	StepID string
	Name   string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index+1, e.Name, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
