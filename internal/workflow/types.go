package workflow

import "time"

type Workflow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Steps     []Step    `json:"steps"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Step prompts may reference {question}, {type} and {previous}.
type Step struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Title      string      `json:"title,omitempty"`
	Prompt     string      `json:"prompt"`
	Model      string      `json:"model,omitempty"`
	Conditions []Condition `json:"conditions"`
}

// Label is the human readable step name used in progress messages.
func (s Step) Label() string {
	if s.Title != "" {
		return s.Title
	}
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

type Operator string

const (
	OpEquals      Operator = "equals"
	OpContains    Operator = "contains"
	OpGreaterThan Operator = "greaterThan"
	OpLessThan    Operator = "lessThan"
	OpExists      Operator = "exists"
)

func (o Operator) Valid() bool {
	switch o {
	case OpEquals, OpContains, OpGreaterThan, OpLessThan, OpExists:
		return true
	}
	return false
}

// Condition routes to TargetStepID when it holds. An empty target is terminal.
type Condition struct {
	ID           string   `json:"id,omitempty"`
	OutputKey    string   `json:"outputKey"`
	Operator     Operator `json:"operator"`
	Value        string   `json:"value"`
	TargetStepID string   `json:"targetStepId"`
}

// Terminal reports whether the condition ends the run when matched.
func (c Condition) Terminal() bool {
	return c.TargetStepID == ""
}

// OutputKeyType is the context field used for question type routing.
const OutputKeyType = "type"

// Context is the per-run state threaded through step templates. It is
// created by Execute and never persisted.
type Context struct {
	Text     string
	Type     string
	Previous string
}

// QuestionInput seeds a run. Only Text is required.
type QuestionInput struct {
	Text   string `json:"text"`
	Type   string `json:"type,omitempty"`
	Format string `json:"format,omitempty"`
}

// FromText builds an input from a bare question string.
func FromText(text string) QuestionInput {
	return QuestionInput{Text: text}
}

// ProgressFunc receives the zero based step index and a message. Calls
// arrive in strictly increasing index order.
type ProgressFunc func(stepIndex int, message string)

type Mode string

const (
	ModeLinear      Mode = "linear"
	ModeConditional Mode = "conditional"
)

// ModeOf reports how wf will be executed: conditional when any step carries
// a condition, linear otherwise.
func ModeOf(wf Workflow) Mode {
	for _, s := range wf.Steps {
		if len(s.Conditions) > 0 {
			return ModeConditional
		}
	}
	return ModeLinear
}

type Run struct {
	ID          string        `json:"id"`
	WorkflowID  string        `json:"workflow_id"`
	Mode        Mode          `json:"mode"`
	Status      string        `json:"status"`
	CurrentStep int           `json:"current_step"`
	TotalSteps  int           `json:"total_steps"`
	Input       QuestionInput `json:"input"`
	Steps       []StepRun     `json:"steps,omitempty"`
	Result      string        `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type StepRun struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusCanceled  = "CANCELED"
)

// Finished reports whether the run reached a terminal status.
func (r Run) Finished() bool {
	switch r.Status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}
