package workflow

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImportKeepsWorkflow(t *testing.T) {
	wf := DefaultWorkflow()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	data, err := Export(wf, now)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	meta, ok := raw["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1.0", meta["version"])
	assert.Equal(t, "Worksheet Rubric Generator", meta["app"])
	assert.Equal(t, "2024-05-01T12:00:00Z", meta["exportedAt"])

	got, err := Import(data)
	require.NoError(t, err)
	assert.Equal(t, wf, got)
}

func TestBuiltinTemplatesSurviveExportImport(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, wf := range BuiltinTemplates() {
		t.Run(wf.Name, func(t *testing.T) {
			data, err := Export(wf, now)
			require.NoError(t, err)

			got, err := Import(data)
			require.NoError(t, err)
			assert.Equal(t, wf, got)
		})
	}
}

func TestExportWritesEmptyConditionArrays(t *testing.T) {
	wf := linearWorkflow("A {question}", "B {previous}")
	require.Nil(t, wf.Steps[0].Conditions)

	data, err := Export(wf, time.Now())
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"conditions": null`)
	assert.Nil(t, wf.Steps[0].Conditions, "Export must not modify its argument")

	got, err := Import(data)
	require.NoError(t, err)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, []Condition{}, got.Steps[1].Conditions)
}

func TestImportConditionShapes(t *testing.T) {
	data := []byte(`{
  "id": "1718000000000",
  "name": "Imported",
  "steps": [
    {
      "id": "step1",
      "name": "Rubric",
      "prompt": "Rubric for {question}",
      "conditions": [
        {"id": 1718000000001, "outputKey": "type", "operator": "equals", "value": "ordering", "targetStepId": null}
      ]
    }
  ],
  "metadata": {"exportedAt": "2024-01-01T00:00:00.000Z", "version": "1.0", "app": "Worksheet Rubric Generator"}
}`)
	_, err := Import(data)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Problems(), 1)
	assert.Contains(t, ve.Problems()[0], "Step 1 condition 1 id")

	data = []byte(`{"id":"wf1","name":"Imported","steps":[{"id":"step1","name":"Rubric","prompt":"Rubric for {question}","conditions":[{"outputKey":"type","operator":"equals","value":"ordering","targetStepId":null}]}]}`)
	wf, err := Import(data)
	require.NoError(t, err)
	assert.Equal(t, "wf1", wf.ID)
	require.Len(t, wf.Steps, 1)
	assert.Equal(t, OpEquals, wf.Steps[0].Conditions[0].Operator)
	assert.True(t, wf.Steps[0].Conditions[0].Terminal())
}

func TestImportReportsEveryProblem(t *testing.T) {
	data := []byte(`{
  "name": "",
  "steps": [
    {"id": "step1", "name": "First", "prompt": "ok", "conditions": []},
    {"id": "step2", "name": "Second", "conditions": []},
    {"id": "step3", "name": "Third", "prompt": "ok", "conditions": "none"},
    {"id": "step4", "name": "Fourth", "prompt": "ok", "conditions": [{"outputKey": "type", "operator": "startsWith"}]}
  ]
}`)
	_, err := Import(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidWorkflow)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	problems := ve.Problems()
	assert.Contains(t, problems, "Missing workflow ID")
	assert.Contains(t, problems, "Missing workflow name")
	assert.Contains(t, problems, "Step 2 (step2) missing prompt")
	assert.Contains(t, problems, "Step 3 (step3) has invalid conditions")

	var sawOperator bool
	for _, p := range problems {
		if len(p) > len("Step 4 condition 1 operator") && p[:len("Step 4 condition 1 operator")] == "Step 4 condition 1 operator" {
			sawOperator = true
		}
	}
	assert.True(t, sawOperator, "schema finding for the unknown operator: %v", problems)
	assert.Contains(t, err.Error(), "invalid workflow: Missing workflow ID, Missing workflow name")
}

func TestImportRejectsMissingSteps(t *testing.T) {
	_, err := Import([]byte(`{"id":"a","name":"b"}`))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"Invalid or missing steps array"}, ve.Problems())
}

func TestImportRejectsMalformedJSON(t *testing.T) {
	_, err := Import([]byte(`{"id":`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidWorkflow)
	assert.Contains(t, err.Error(), "failed to parse workflow file")

	_, err = Import([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrInvalidWorkflow)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(DefaultWorkflow()))
	assert.NoError(t, Validate(LinearTemplate()))

	err := Validate(Workflow{Name: " "})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"Missing workflow name", "Workflow has no steps"}, ve.Problems())

	wf := Workflow{Name: "x", Steps: []Step{
		{ID: "a", Name: "A", Prompt: "p", Conditions: []Condition{
			{OutputKey: "type", Operator: "near", Value: "x"},
			{OutputKey: "type", Operator: OpEquals, Value: "x", TargetStepID: "zzz"},
		}},
		{ID: "a", Name: "B", Prompt: "p"},
		{ID: "c", Prompt: "p", Conditions: []Condition{{Operator: OpContains}}},
	}}
	require.ErrorAs(t, Validate(wf), &ve)
	assert.Equal(t, []string{
		"Step 2 reuses the ID of step 1",
		`Step 1 (a) condition 1 has unknown operator "near"`,
		`Step 1 (a) condition 2 targets unknown step "zzz"`,
		"Step 3 (c) missing name",
		"Step 3 (c) condition 1 missing output key",
	}, ve.Problems())
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "question-type-based-rubric.json", ExportFilename("Question Type Based Rubric"))
	assert.Equal(t, "workflow.json", ExportFilename("!!!"))
}

func TestDescribeLocation(t *testing.T) {
	assert.Equal(t, "Workflow", describeLocation(""))
	assert.Equal(t, "Step 1 condition 2 operator", describeLocation("/steps/0/conditions/1/operator"))
	assert.Equal(t, "metadata version", describeLocation("/metadata/version"))
}
