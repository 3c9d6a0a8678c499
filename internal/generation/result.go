package generation

// Result is either a TextResult or a QuestionResult.
type Result interface {
	result()
}

type TextResult struct {
	Text string
}

type QuestionResult struct {
	Question DetectedQuestion
}

func (TextResult) result()     {}
func (QuestionResult) result() {}
