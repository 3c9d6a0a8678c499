package tutor

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const DefaultMaxAttempts = 3

type Attempt struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Answer    string    `json:"answer"`
	Feedback  string    `json:"feedback"`
	PromptID  int64     `json:"promptId"`
}

func NewAttempt(answer, feedback string, promptID int64, now time.Time) Attempt {
	return Attempt{
		ID:        uuid.NewString(),
		Timestamp: now.UTC(),
		Answer:    answer,
		Feedback:  feedback,
		PromptID:  promptID,
	}
}

// ShouldDirectToTeacher reports whether the last maxAttempts attempts all
// drew feedback saying the answer was wrong. maxAttempts <= 0 means
// DefaultMaxAttempts.
func ShouldDirectToTeacher(history []Attempt, maxAttempts int) bool {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if len(history) < maxAttempts {
		return false
	}
	for _, a := range history[len(history)-maxAttempts:] {
		fb := strings.ToLower(a.Feedback)
		if !strings.Contains(fb, "incorrect") && !strings.Contains(fb, "not quite") {
			return false
		}
	}
	return true
}
