package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	ExportVersion = "1.0"
	ExportApp     = "Worksheet Rubric Generator"
)

// Metadata is attached to exported files and ignored on import.
type Metadata struct {
	ExportedAt time.Time `json:"exportedAt"`
	Version    string    `json:"version"`
	App        string    `json:"app"`
}

type document struct {
	Workflow
	Metadata *Metadata `json:"metadata,omitempty"`
}

// Export encodes wf as an indented workflow file stamped with now.
func Export(wf Workflow, now time.Time) ([]byte, error) {
	doc := document{
		Workflow: withConditionArrays(wf),
		Metadata: &Metadata{
			ExportedAt: now.UTC(),
			Version:    ExportVersion,
			App:        ExportApp,
		},
	}
	return json.MarshalIndent(doc, "", "  ")
}

// withConditionArrays copies wf so that every step carries a conditions
// array, which Import requires.
func withConditionArrays(wf Workflow) Workflow {
	steps := make([]Step, len(wf.Steps))
	for i, st := range wf.Steps {
		if st.Conditions == nil {
			st.Conditions = []Condition{}
		}
		steps[i] = st
	}
	wf.Steps = steps
	return wf
}

// Import decodes and validates a workflow file. Every violation is reported
// together in a *ValidationError; nothing is partially accepted.
func Import(data []byte) (Workflow, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return Workflow{}, fmt.Errorf("%w: failed to parse workflow file: %v", ErrInvalidWorkflow, err)
	}
	if err := validateDocument(generic); err != nil {
		return Workflow{}, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Workflow{}, fmt.Errorf("%w: failed to parse workflow file: %v", ErrInvalidWorkflow, err)
	}
	return doc.Workflow, nil
}

var unsafeFilename = regexp.MustCompile(`[^a-z0-9]+`)

// ExportFilename derives a download name such as "question-type-rubric.json".
func ExportFilename(name string) string {
	slug := strings.Trim(unsafeFilename.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		slug = "workflow"
	}
	return slug + ".json"
}
