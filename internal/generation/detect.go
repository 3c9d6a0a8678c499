package generation

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/ronappleton/rubricflow/internal/questiontype"
)

// DetectedQuestion is the record extracted from a worksheet image. Type is
// the canonical type, empty when RawType was not recognized.
type DetectedQuestion struct {
	Text    string `json:"text"`
	Type    string `json:"type"`
	RawType string `json:"rawType,omitempty"`
	Format  string `json:"format"`
}

const detectionSystemPrompt = "You are a direct and precise assistant that analyzes educational questions from images. " +
	"Extract ONLY the question text and determine its type. Format your response EXACTLY as:\n" +
	"QUESTION: [extracted question]\nFORMAT: [any specific format instructions]\nTYPE: [question type]"

const defaultDetectionPrompt = "Extract the question from this image and determine its type."

const detectionInstructions = `Analyze this question image carefully, considering both the text content AND the visual format. Pay special attention to:

1. Multiple Choice Indicators:
   - Lettered options (A, B, C, D, etc.)
   - Bullet points or numbered options
   - Checkboxes or circles for selection
   - Words like "choose", "select", "which of the following"

2. Fill in the Blanks Indicators:
   - Underscores or blank spaces
   - Words like "fill in", "complete", "missing"
   - Parentheses or brackets for missing words

3. True/False Indicators:
   - T/F or True/False labels
   - Checkboxes or circles for selection
   - Statements that can be verified as true or false

4. Matching Indicators:
   - Two columns of items
   - Lines or spaces for connecting items
   - Words like "match", "connect", "pair"

5. Ordering Indicators:
   - Numbered steps or sequences
   - Words like "order", "sequence", "arrange"
   - Steps or stages to be ordered

%s

Please format your response exactly like this:
QUESTION: [exact question from image]
FORMAT: [describe the visual format with specific details, e.g., "Multiple choice with 4 options: A) Nucleus, B) Chloroplast, C) Mitochondria, D) Vacuole"]
TYPE: [one of: multiple_choice, fill_in_the_blanks, true_false, matching, ordering, short_answer, long_answer]

Do not include any other text or explanations.`

func detectionPrompt(prompt string) string {
	if strings.TrimSpace(prompt) == "" {
		prompt = defaultDetectionPrompt
	}
	return strings.Replace(detectionInstructions, "%s", prompt, 1)
}

var (
	questionLine = regexp.MustCompile(`(?im)^[ \t]*question[ \t]*:[ \t]*(\S.*)$`)
	formatLine   = regexp.MustCompile(`(?im)^[ \t]*format[ \t]*:[ \t]*(\S.*)$`)
	typeLine     = regexp.MustCompile(`(?im)^[ \t]*type[ \t]*:[ \t]*(\S.*)$`)
)

// ParseDetection reads the QUESTION, FORMAT and TYPE lines of a detection
// reply. Keys match case-insensitively; all three are required.
func ParseDetection(content string) (DetectedQuestion, error) {
	q := questionLine.FindStringSubmatch(content)
	f := formatLine.FindStringSubmatch(content)
	t := typeLine.FindStringSubmatch(content)
	if q == nil || f == nil || t == nil {
		return DetectedQuestion{}, &APIError{
			Kind:       ErrMalformedResponse,
			StatusCode: 200,
			Message:    "expected QUESTION, FORMAT and TYPE lines",
		}
	}
	raw := strings.TrimSpace(t[1])
	d := DetectedQuestion{
		Text:    strings.TrimSpace(q[1]),
		Format:  strings.TrimSpace(f[1]),
		RawType: raw,
	}
	if typ, ok := questiontype.Normalize(raw); ok {
		d.Type = string(typ)
	}
	return d, nil
}

// IsImageDataURL reports whether s is a data URL carrying an image.
func IsImageDataURL(s string) bool {
	return strings.HasPrefix(s, "data:image/")
}

// EncodeImage builds a data URL from raw image bytes.
func EncodeImage(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
