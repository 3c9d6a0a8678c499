package tutor

import (
	"fmt"
	"strings"
)

// Preset is a named pair of tutor instructions.
type Preset struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Prompt        string `json:"prompt"`
	HistoryPrompt string `json:"historyPrompt"`
}

// Presets returns the built-in tutor personas.
func Presets() []Preset {
	return []Preset{
		{
			ID:   1,
			Name: "Supportive Tutor",
			Prompt: "You are a encouraging AI tutor who helps students learn through guided discovery. Analyze the student's answer against the rubric criteria. " +
				"Provide specific, constructive feedback that:\n- Acknowledges what they got right\n- Gently identifies areas for improvement\n" +
				"- Offers hints or questions to guide them toward better understanding\n- Uses a warm, supportive tone that builds confidence",
			HistoryPrompt: "Look at the student's previous attempts to understand their learning journey. Build upon earlier explanations, celebrate progress, " +
				"and adjust your approach if they're struggling with the same concepts. If they're making repeated mistakes, try explaining the concept differently.",
		},
		{
			ID:   2,
			Name: "Socratic Method",
			Prompt: "You are a Socratic tutor who guides students to discover answers through thoughtful questioning. Instead of giving direct answers, " +
				"ask probing questions that help students think through the problem. Use the rubric to identify what they're missing, " +
				"then craft questions that lead them to those insights.",
			HistoryPrompt: "Review their previous responses to see what questions have been effective. If they've answered your questions well, ask deeper ones. " +
				"If they seem confused, break down your questions into simpler steps.",
		},
		{
			ID:   3,
			Name: "Hint Provider",
			Prompt: "You are a helpful tutor who provides strategic hints without giving away the answer. Analyze what the student is missing based on the rubric, " +
				"then give them just enough guidance to take the next step. Your hints should be specific enough to be helpful but vague enough to require thinking.",
			HistoryPrompt: "Track what hints you've already provided. If previous hints weren't helpful, try a different approach or provide more scaffolding. " +
				"Gradually increase hint specificity if they continue to struggle.",
		},
	}
}

// Request carries everything the system prompt is assembled from. A nil
// Settings omits the customization block.
type Request struct {
	Question string
	Type     string
	Format   string
	Rubric   string
	Answer   string
	Preset   Preset
	History  []Attempt
	Settings *Settings
}

func orUnspecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not specified"
	}
	return s
}

func historyContext(history []Attempt) string {
	if len(history) == 0 {
		return "This is the first attempt."
	}
	var b strings.Builder
	b.WriteString("Previous attempts:\n")
	for i, a := range history {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Attempt %d:\nAnswer: %s\nFeedback: %s\n", i+1, a.Answer, a.Feedback)
	}
	return b.String()
}

func settingsContext(s *Settings) string {
	if s == nil {
		return ""
	}
	return "\nRESPONSE CUSTOMIZATION:\n" +
		"- Tone: " + toneInstructions.lookup(s.Tone) + "\n" +
		"- Language Level: " + languageLevelInstructions.lookup(s.LanguageLevel) + "\n" +
		"- Response Style: " + responseStyleInstructions.lookup(s.ResponseStyle) + "\n" +
		"- Difficulty Level: " + difficultyInstructions.lookup(s.DifficultyLevel) + "\n" +
		"- Response Language: " + spokenLanguageInstructions.lookup(s.SpokenLanguage) + "\n\n" +
		"Please adapt your response according to these settings while maintaining educational effectiveness."
}

// BuildSystemPrompt assembles the tutor system prompt.
func BuildSystemPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(req.Preset.Prompt)
	b.WriteString("\n\nQUESTION DATA:\n")
	fmt.Fprintf(&b, "Question: %s\nType: %s\nFormat: %s\n", req.Question, orUnspecified(req.Type), orUnspecified(req.Format))
	b.WriteString("\nRUBRIC CRITERIA:\n")
	b.WriteString(req.Rubric)
	b.WriteString("\n\nCONVERSATION HISTORY INSTRUCTIONS:\n")
	b.WriteString(req.Preset.HistoryPrompt)
	b.WriteString("\n\nCURRENT CONTEXT:\n")
	b.WriteString(historyContext(req.History))
	b.WriteString("\n")
	b.WriteString(settingsContext(req.Settings))
	b.WriteString("\n\nRemember: Provide educational feedback that helps the student learn while following the rubric criteria above.")
	return b.String()
}

// UserMessage is the message carrying the student's answer.
func UserMessage(answer string) string {
	return "Here is my answer to the question: " + answer
}
