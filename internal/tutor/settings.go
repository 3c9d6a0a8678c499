package tutor

// Settings tune the tutor's voice. Values outside the known sets fall back
// to the default instruction for that axis.
type Settings struct {
	Tone            string `json:"tone"`
	LanguageLevel   string `json:"languageLevel"`
	ResponseStyle   string `json:"responseStyle"`
	DifficultyLevel string `json:"difficultyLevel"`
	SpokenLanguage  string `json:"spokenLanguage"`
}

func DefaultSettings() Settings {
	return Settings{
		Tone:            "encouraging",
		LanguageLevel:   "intermediate",
		ResponseStyle:   "detailed",
		DifficultyLevel: "standard",
		SpokenLanguage:  "english",
	}
}

type instructions struct {
	fallback string
	byValue  map[string]string
}

func (i instructions) lookup(value string) string {
	if s, ok := i.byValue[value]; ok {
		return s
	}
	return i.byValue[i.fallback]
}

var toneInstructions = instructions{
	fallback: "encouraging",
	byValue: map[string]string{
		"encouraging":  "Use an encouraging, positive, and supportive tone. Celebrate progress and motivate the student.",
		"professional": "Use a professional, formal tone. Be respectful and maintain academic standards.",
		"friendly":     "Use a friendly, casual, and approachable tone. Be conversational and warm.",
		"direct":       "Use a direct, concise tone. Get straight to the point without unnecessary elaboration.",
	},
}

var languageLevelInstructions = instructions{
	fallback: "intermediate",
	byValue: map[string]string{
		"beginner":     "Use simple, clear language. Avoid technical jargon and explain concepts in basic terms.",
		"intermediate": "Use standard academic language appropriate for the grade level. Balance clarity with precision.",
		"advanced":     "Use sophisticated vocabulary and technical terms when appropriate. Assume higher linguistic competency.",
	},
}

var responseStyleInstructions = instructions{
	fallback: "detailed",
	byValue: map[string]string{
		"detailed":     "Provide detailed explanations with thorough reasoning and multiple examples when helpful.",
		"concise":      "Keep responses brief and focused. Provide only essential information and key points.",
		"step-by-step": "Break down concepts into clear, sequential steps. Use numbered or bulleted lists when appropriate.",
	},
}

var difficultyInstructions = instructions{
	fallback: "standard",
	byValue: map[string]string{
		"simplified":  "Provide more guidance and hints. Break down complex problems into smaller, manageable parts.",
		"standard":    "Provide balanced guidance. Give appropriate hints without giving away the answer completely.",
		"challenging": "Provide minimal direct hints. Encourage independent thinking and problem-solving.",
	},
}

var spokenLanguageInstructions = instructions{
	fallback: "english",
	byValue: map[string]string{
		"english":  "Respond in English.",
		"spanish":  "Respond in Spanish (Español). Use clear, educational Spanish appropriate for the student's level.",
		"chinese":  "Respond in Simplified Chinese (简体中文). Use clear, educational Chinese appropriate for the student's level.",
		"french":   "Respond in French (Français). Use clear, educational French appropriate for the student's level.",
		"german":   "Respond in German (Deutsch). Use clear, educational German appropriate for the student's level.",
		"japanese": "Respond in Japanese (日本語). Use clear, educational Japanese appropriate for the student's level.",
		"pirate": `SPECIAL MODE: Respond like a pirate tutor! Use pirate speech with "ahoy", "matey", "ye", "aye", "arr", "savvy?", "shiver me timbers", etc. ` +
			`Be educational but speak like a friendly pirate captain teaching their crew. Replace "you" with "ye", "your" with "yer", "my" with "me", etc. ` +
			`End sentences with "arr!" or "savvy?" occasionally. Make learning an adventure on the high seas!`,
		"emoji": `EMOJI-ONLY MODE: You MUST respond using ONLY emojis - absolutely NO words, letters, or text allowed! Not even "a", "I", "the", or any single letters. ` +
			`Use ONLY emoji characters: 😀🔥📚✅❌🤔💭🎯📝➡️⬅️⬆️⬇️🔄💪🎉👍👎🏆⭐🌟💡🔍📊📈📉➕➖✖️➗🔢🎲🎨🔬🌍🚀. ` +
			`Communicate educational feedback, encouragement, and guidance through creative emoji combinations and sequences. ` +
			`NO TEXT WHATSOEVER - violating this rule is strictly forbidden!`,
	},
}
