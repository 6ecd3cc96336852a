package answer

import (
	"fmt"
	"strings"
)

func buildAnswerPrompt(in *Input) string {
	var sb strings.Builder
	sb.WriteString(`You are an expert career and training analyst.

DATA SCOPE: technology courses and software/frontend engineering jobs ONLY.

DATASET:
`)
	sb.WriteString(in.Merged.Markdown())
	sb.WriteString("\n\nTASK:\n")
	if in.NaturalQuery != "" {
		sb.WriteString(in.NaturalQuery)
	} else {
		sb.WriteString(in.Question)
	}
	sb.WriteString(`

Instructions:
- Answer the user's question using the dataset
- If the question reaches beyond the data scope, acknowledge that and say
  what they could ask about instead
- Be conversational and helpful
- DO NOT mention SQL, queries, or technical database details
- Provide clear, actionable insights`)
	return sb.String()
}

func buildEmptyPrompt(in *Input) string {
	context := in.NaturalQuery
	if context == "" {
		context = "(none)"
	}

	return fmt.Sprintf(`The user asked: %q

The available data covers ONLY:
- technology courses (names, skills taught, levels, fees, providers)
- software and frontend engineering jobs (titles, roles, companies, skills,
  experience, qualifications, salaries)

No matching results were found for this question.

Respond with a JSON object with exactly two keys:
{
  "text": "<a friendly explanation of what is not available>",
  "suggestions": ["<alternative question 1>", "<alternative question 2>", "<alternative question 3>"]
}

Rules:
- "text" politely explains the gap without mentioning SQL, queries, or
  databases as technology
- "suggestions" holds 2-3 concrete questions answerable from the data above
- Additional planner context you may reuse: %s

Return ONLY the JSON object.`, in.Question, context)
}
