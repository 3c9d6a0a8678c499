package workflow

import "github.com/ronappleton/rubricflow/internal/questiontype"

const DefaultWorkflowID = "default-workflow"

func typeStep(stepID, conditionID, name string, t questiontype.Type, prompt string) Step {
	return Step{
		ID:     stepID,
		Name:   name,
		Prompt: prompt,
		Conditions: []Condition{{
			ID:        conditionID,
			OutputKey: OutputKeyType,
			Operator:  OpEquals,
			Value:     string(t),
		}},
	}
}

// DefaultWorkflow routes each canonical question type to a rubric prompt
// tuned for it. It is seeded into an empty repository.
func DefaultWorkflow() Workflow {
	return Workflow{
		ID:   DefaultWorkflowID,
		Name: "Question Type Based Rubric",
		Steps: []Step{
			typeStep("step2", "condition3", "Short Answer Rubric", questiontype.ShortAnswer,
				"For this simple factual question: {question}\n"+
					"Generate a single criterion that ONLY states the correct answer. "+
					"Format exactly as: \"1. Correct answer: [answer]\". Keep it under 8 words. "+
					"Do not add any explanations, guidance, or extra context."),
			typeStep("step3", "condition4", "Long Answer Rubric", questiontype.LongAnswer,
				"For this complex question: {question}\n"+
					"Generate exactly 3 criteria, each 4-5 words maximum. Total word limit: 15 words.\n"+
					"Focus on key evaluation points only.\n"+
					"Output only numbered criteria.\n"+
					"Do not include any explanations, guidance, or headings."),
			typeStep("step4", "condition5", "Multiple Choice Rubric", questiontype.MultipleChoice,
				"For this multiple choice question: {question}\n"+
					"Generate exactly two criteria:\n"+
					"1. State the correct answer (e.g., \"Correct answer: B\")\n"+
					"2. One criterion about selection clarity\n"+
					"Total word limit: 8-15 words.\n"+
					"Output only the numbered criteria."),
			typeStep("step5", "condition6", "Fill in the Blanks Rubric", questiontype.FillInTheBlanks,
				"For this fill in the blanks question: {question}\n"+
					"First, count the number of blanks in the question.\n"+
					"Then, generate criteria as follows:\n"+
					"1. State the correct answer for each blank in order\n"+
					"2. If there are multiple blanks, add \"All blanks must be filled\"\n"+
					"3. If spelling/grammar is critical, add \"Correct spelling and grammar\"\n"+
					"Keep each criterion under 8 words. Total word limit: 20 words.\n"+
					"Output only the numbered criteria."),
			typeStep("step6", "condition7", "True/False Rubric", questiontype.TrueFalse,
				"For this true/false question: {question}\n"+
					"Generate exactly one criterion stating the correct answer.\n"+
					"Format as: \"1. Correct answer: [True/False]\"\n"+
					"Do not add any explanations or context."),
			typeStep("step7", "condition8", "Matching Rubric", questiontype.Matching,
				"For this matching question: {question}\n"+
					"Generate exactly two criteria:\n"+
					"1. List all correct matches (e.g., \"A-1, B-2, C-3\")\n"+
					"2. One criterion about completion\n"+
					"Total word limit: 15 words.\n"+
					"Output only the numbered criteria."),
			typeStep("step8", "condition9", "Ordering Rubric", questiontype.Ordering,
				"For this ordering question: {question}\n"+
					"Generate exactly two criteria:\n"+
					"1. List the correct sequence (e.g., \"Correct order: A, B, C, D\")\n"+
					"2. One criterion about completeness\n"+
					"Total word limit: 15 words.\n"+
					"Output only the numbered criteria."),
		},
	}
}

// LinearTemplate drafts a rubric and then refines it twice, each pass
// reading the previous output.
func LinearTemplate() Workflow {
	return Workflow{
		ID:   "tpl_draft_refine_trim",
		Name: "Draft, Refine, Trim",
		Steps: []Step{
			{
				ID:         "draft",
				Name:       "Draft Rubric",
				Conditions: []Condition{},
				Prompt: "Question type: {type}\nQuestion: {question}\n" +
					"Write a numbered rubric of at most five criteria for grading an answer to this question.",
			},
			{
				ID:         "refine",
				Name:       "Refine Criteria",
				Conditions: []Condition{},
				Prompt: "Here is a draft rubric:\n{previous}\n" +
					"Rewrite each criterion so it can be checked objectively. Keep the numbering.",
			},
			{
				ID:         "trim",
				Name:       "Trim Wording",
				Conditions: []Condition{},
				Prompt: "Shorten every criterion below to eight words or fewer. Output only the numbered criteria.\n{previous}",
			},
		},
	}
}

// BuiltinTemplates are the workflows offered as starting points.
func BuiltinTemplates() []Workflow {
	return []Workflow{DefaultWorkflow(), LinearTemplate()}
}
