package workflow

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// ValidationError aggregates every problem found in a workflow definition.
type ValidationError struct {
	err error
}

func newValidationError(problems []string) error {
	var err error
	for _, p := range problems {
		err = multierr.Append(err, errors.New(p))
	}
	if err == nil {
		return nil
	}
	return &ValidationError{err: err}
}

func (e *ValidationError) Error() string {
	return "invalid workflow: " + strings.Join(e.Problems(), ", ")
}

// Problems lists the individual violations in the order they were found.
func (e *ValidationError) Problems() []string {
	errs := multierr.Errors(e.err)
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidWorkflow
}

// Validate checks an authored workflow before it is stored.
func Validate(wf Workflow) error {
	var problems []string
	if strings.TrimSpace(wf.Name) == "" {
		problems = append(problems, "Missing workflow name")
	}
	if len(wf.Steps) == 0 {
		problems = append(problems, "Workflow has no steps")
	}
	ids := make(map[string]int, len(wf.Steps))
	for i, s := range wf.Steps {
		if s.ID == "" {
			continue
		}
		if first, dup := ids[s.ID]; dup {
			problems = append(problems, fmt.Sprintf("Step %d reuses the ID of step %d", i+1, first+1))
			continue
		}
		ids[s.ID] = i
	}
	for i, s := range wf.Steps {
		if strings.TrimSpace(s.Name) == "" && strings.TrimSpace(s.Title) == "" {
			problems = append(problems, fmt.Sprintf("%s missing name", stepRef(i, s.ID)))
		}
		for j, c := range s.Conditions {
			if !c.Operator.Valid() {
				problems = append(problems, fmt.Sprintf("%s condition %d has unknown operator %q", stepRef(i, s.ID), j+1, c.Operator))
			}
			if c.Operator != OpExists && strings.TrimSpace(c.OutputKey) == "" {
				problems = append(problems, fmt.Sprintf("%s condition %d missing output key", stepRef(i, s.ID), j+1))
			}
			if c.TargetStepID != "" {
				if _, ok := ids[c.TargetStepID]; !ok {
					problems = append(problems, fmt.Sprintf("%s condition %d targets unknown step %q", stepRef(i, s.ID), j+1, c.TargetStepID))
				}
			}
		}
	}
	return newValidationError(problems)
}

// validateDocument applies the import rules to a decoded workflow file: a
// non-empty id and name, a steps array, and for every step a non-empty id,
// name and prompt plus a conditions array.
func validateDocument(doc any) error {
	root, ok := doc.(map[string]any)
	if !ok {
		return newValidationError([]string{"Workflow file must contain a JSON object"})
	}

	var problems []string
	if !nonEmptyString(root["id"]) {
		problems = append(problems, "Missing workflow ID")
	}
	if !nonEmptyString(root["name"]) {
		problems = append(problems, "Missing workflow name")
	}

	steps, ok := root["steps"].([]any)
	if !ok {
		problems = append(problems, "Invalid or missing steps array")
	} else {
		for i, raw := range steps {
			step, ok := raw.(map[string]any)
			if !ok {
				problems = append(problems, fmt.Sprintf("Step %d is not an object", i+1))
				continue
			}
			id, _ := step["id"].(string)
			ref := stepRef(i, id)
			if !nonEmptyString(step["id"]) {
				problems = append(problems, ref+" missing ID")
			}
			if !nonEmptyString(step["name"]) {
				problems = append(problems, ref+" missing name")
			}
			if !nonEmptyString(step["prompt"]) {
				problems = append(problems, ref+" missing prompt")
			}
			if _, ok := step["conditions"].([]any); !ok {
				problems = append(problems, ref+" has invalid conditions")
			}
		}
	}

	problems = append(problems, schemaProblems(doc)...)
	return newValidationError(problems)
}

func stepRef(index int, id string) string {
	if id == "" {
		return fmt.Sprintf("Step %d", index+1)
	}
	return fmt.Sprintf("Step %d (%s)", index+1, id)
}

func nonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}
