package workflow

import (
	"math"
	"strconv"
	"strings"

	"github.com/ronappleton/rubricflow/internal/questiontype"
)

// StepOutput is what a condition is evaluated against. Fields holds parsed
// key/value output (for example the detected question record); Result holds
// raw structured text that may carry a "TYPE: <value>" line.
type StepOutput struct {
	Fields map[string]string
	Result string
}

// TypeOutput is a StepOutput carrying only a question type.
func TypeOutput(t string) StepOutput {
	return StepOutput{Fields: map[string]string{OutputKeyType: t}}
}

// ParseOutput turns "key: value" lines of raw model text into Fields and
// keeps the text itself as Result. Keys are lower-cased.
func ParseOutput(raw string) StepOutput {
	out := StepOutput{Fields: map[string]string{}, Result: raw}
	for _, line := range strings.Split(raw, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		out.Fields[key] = value
	}
	return out
}

// Evaluate decides whether c holds against out. It never fails: malformed
// input evaluates to false.
func Evaluate(c Condition, out StepOutput) bool {
	if c.Operator == OpExists {
		return true
	}

	if typ, ok := routedType(out); ok {
		if c.Operator != OpEquals {
			return false
		}
		got, ok := questiontype.Normalize(typ)
		if !ok {
			return false
		}
		want, ok := questiontype.Normalize(c.Value)
		if !ok {
			return false
		}
		return got == want
	}

	actual := out.Fields[c.OutputKey]
	switch c.Operator {
	case OpEquals:
		return actual == c.Value
	case OpContains:
		return strings.Contains(strings.ToLower(actual), strings.ToLower(c.Value))
	case OpGreaterThan:
		return parseFloat(actual) > parseFloat(c.Value)
	case OpLessThan:
		return parseFloat(actual) < parseFloat(c.Value)
	default:
		return false
	}
}

// NextStep returns the target of the first condition of step that holds
// against out. ok is false when none holds; an empty target with ok true
// means the route is terminal.
func NextStep(step Step, out StepOutput) (targetStepID string, ok bool) {
	for _, c := range step.Conditions {
		if Evaluate(c, out) {
			return c.TargetStepID, true
		}
	}
	return "", false
}

// routedType extracts the question type carried by out, either as a type
// field or as a TYPE: line of the structured result.
func routedType(out StepOutput) (string, bool) {
	if t := strings.TrimSpace(out.Fields[OutputKeyType]); t != "" {
		return t, true
	}
	if out.Result == "" {
		return "", false
	}
	return typeLine(out.Result)
}

func typeLine(result string) (string, bool) {
	cleaned := strings.TrimSpace(result)
	if len(cleaned) >= 2 && strings.HasPrefix(cleaned, `"`) && strings.HasSuffix(cleaned, `"`) {
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	for _, line := range strings.Split(cleaned, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < len("TYPE:") || !strings.EqualFold(line[:len("TYPE:")], "TYPE:") {
			continue
		}
		if v := strings.TrimSpace(line[len("TYPE:"):]); v != "" {
			return v, true
		}
	}
	return "", false
}

// parseFloat follows loose numeric parsing: a leading number is accepted and
// anything else is NaN, which never compares greater or less.
func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	end := 0
	for i := len(s); i > 0; i-- {
		if _, err := strconv.ParseFloat(s[:i], 64); err == nil {
			end = i
			break
		}
	}
	if end == 0 {
		return math.NaN()
	}
	f, _ := strconv.ParseFloat(s[:end], 64)
	return f
}
