//
// Tencent is pleased to support the open source community by making trpc-memory-eval available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-memory-eval is licensed under the Apache License Version 2.0.
//
//

package grader

const systemPrompt = `You are an expert grader that determines if answers to questions match a gold standard answer`

// accuracyPromptFormat takes question, gold answer and generated answer.
const accuracyPromptFormat = `Your task is to label an answer to a question as ’CORRECT’ or ’WRONG’. You will be given the following data:
    (1) a question (posed by one user to another user),
    (2) a ’gold’ (ground truth) answer,
    (3) a generated answer
which you will score as CORRECT/WRONG.

The point of the question is to ask about something one user should know about the other user based on their
prior conversations. The gold answer will usually be a concise and short answer that includes the referenced
topic, for example: Question: Do you remember what I got the last time I went to Hawaii? Gold answer: A shell
necklace The generated answer might be much longer, but you should be generous with your grading - as long as it
touches on the same topic as the gold answer, it should be counted as CORRECT.

# IMPORTANT
For time related questions, the gold answer will be a specific date, month, year, etc. The generated answer might
be much longer or use relative time references (like "last Tuesday" or "next month"), but you should be generous
with your grading - as long as it refers to the same date or time period as the gold answer (e.g., "20 May 2023" vs. "The sunday before 25 May 2023"), it should be counted
as CORRECT. Even if the format differs (e.g., "May 7th" vs "7 May"),  consider it CORRECT if it's the same date.

Now it’s time for the real question:
Question: %s
Gold answer: %s
Generated answer: %s

First, provide a clear explanation of your reasoning, then finish with CORRECT or WRONG.
Do NOT include both CORRECT and WRONG in your response, or it will break the evaluation script.

Just return the label CORRECT or WRONG in a json format with the key as "label".
`

const (
	schemaName        = "grade"
	schemaDescription = "Grade of a generated answer against the gold answer."
)

// gradeSchema constrains the output to {is_correct, explanation}.
var gradeSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"is_correct": map[string]any{
			"type":        "string",
			"description": "CORRECT or WRONG",
			"enum":        []string{LabelCorrect, LabelWrong},
		},
		"explanation": map[string]any{
			"type":        "string",
			"description": "Explain why the answer is correct or incorrect.",
		},
	},
	"required":             []string{"is_correct", "explanation"},
	"additionalProperties": false,
}
