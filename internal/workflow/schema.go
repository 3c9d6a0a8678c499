package workflow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// documentSchema covers the parts of a workflow file that the structural
// checks in validate.go do not: optional field types and condition shape.
const documentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "steps": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "model": {"type": "string"},
          "conditions": {
            "items": {
              "type": "object",
              "required": ["outputKey", "operator"],
              "properties": {
                "id": {"type": "string"},
                "outputKey": {"type": "string"},
                "operator": {"enum": ["equals", "contains", "greaterThan", "lessThan", "exists"]},
                "value": {"type": ["string", "null"]},
                "targetStepId": {"type": ["string", "null"]}
              }
            }
          }
        }
      }
    },
    "metadata": {
      "type": "object",
      "properties": {
        "exportedAt": {"type": "string"},
        "version": {"type": "string"},
        "app": {"type": "string"}
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("rubricflow-workflow.json", documentSchema)

// schemaProblems validates a decoded JSON document and returns one readable
// line per violated leaf.
func schemaProblems(doc any) []string {
	err := compiledSchema.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var out []string
	collectLeaves(ve, &out)
	return out
}

func collectLeaves(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		*out = append(*out, fmt.Sprintf("%s: %s", describeLocation(ve.InstanceLocation), ve.Message))
		return
	}
	for _, c := range ve.Causes {
		collectLeaves(c, out)
	}
}

// describeLocation turns a JSON pointer such as /steps/0/conditions/1/operator
// into "Step 1 condition 2 operator".
func describeLocation(ptr string) string {
	parts := strings.Split(strings.Trim(ptr, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "Workflow"
	}
	var b strings.Builder
	for i := 0; i < len(parts); i++ {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		switch {
		case parts[i] == "steps" && i+1 < len(parts):
			b.WriteString("Step " + oneBased(parts[i+1]))
			i++
		case parts[i] == "conditions" && i+1 < len(parts):
			b.WriteString("condition " + oneBased(parts[i+1]))
			i++
		default:
			b.WriteString(parts[i])
		}
	}
	return b.String()
}

func oneBased(s string) string {
	n, err := strconv.Atoi(s)
	if err != nil {
		return s
	}
	return strconv.Itoa(n + 1)
}
