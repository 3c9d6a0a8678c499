package workflow

import "strings"

// leakedPrefixes are lines of the extraction format that models echo back
// into generated rubrics.
var leakedPrefixes = []string{"question:", "type:", "format:"}

// CleanOutput drops blank lines and lines that begin with an extraction
// field label.
func CleanOutput(raw string) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isLeaked(trimmed) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func isLeaked(line string) bool {
	lower := strings.ToLower(line)
	for _, p := range leakedPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
