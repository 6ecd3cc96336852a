package decompose

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are an expert federated SQL planner. Convert the user's natural language
question into THREE outputs:

1. "course_sql"    - SQL for the COURSE database
2. "job_sql"       - SQL for the JOB database
3. "natural_query" - a reasoning prompt for a second model that must cover
                     every part of the question SQL alone cannot answer

Your output MUST be a JSON object with exactly these 3 keys.

ROUTING RULES
- course_sql is required when the question involves courses, training,
  certifications, learning paths, skills to acquire, fees, or providers.
- job_sql is required when the question involves jobs, roles, openings,
  companies, salaries, experience requirements, or hiring.
- If BOTH domains appear, generate BOTH SQL queries.
- Only leave a SQL string empty ("") when that domain is clearly irrelevant.

OUT-OF-SCOPE QUESTIONS
If the question asks about information available in neither database, still
generate the best possible SQL that retrieves the closest matching data, and
in "natural_query" clearly state what is not available plus 2-3 alternative
questions that WOULD work against the schemas below.

STRICT SQL RULES
- SQL must be a single SELECT statement. No writes of any kind.
- Use only table and column names that appear in the schema summaries.
- No cross-database references; each query runs against its own database.
- Use LOWER(column) LIKE '%text%' for case-insensitive text matching.
- When filtering on qualifications (BTech, M.Tech, MSc, PhD), produce
  multiple case-insensitive LIKE variants covering punctuation and spacing
  ('%mtech%', '%m.tech%', '%m tech%').
- Always include LIMIT 25 for broad queries.

NATURAL_QUERY RULES
The second model receives the SQL results plus your natural_query, so it must
restate the user's true intent and name anything that needs reasoning beyond
the rows: comparisons, recommendations, rankings, cross-database combination,
or acknowledged gaps in the data.

Return ONLY the JSON object. No commentary.`

func (d *Decomposer) buildPrompt(question string) string {
	var targets []string
	if needsCourseSource(question) {
		targets = append(targets, "course database")
	}
	if needsJobSource(question) {
		targets = append(targets, "job database")
	}
	targetLine := "(model must decide)"
	if len(targets) > 0 {
		targetLine = strings.Join(targets, ", ")
	}

	return fmt.Sprintf(`%s

User question: %s

Potential target databases: %s

Course database schema summary:
%s

Job database schema summary:
%s

Respond with JSON and ensure SQL strings are escaped properly.`,
		systemPrompt, question, targetLine, d.schemas.Course, d.schemas.Job)
}

var courseKeywords = []string{
	"course", "courses", "training", "certification", "certificate",
	"learn", "learning", "curriculum", "skills", "fee", "fees",
	"provider", "study", "all",
}

var jobKeywords = []string{
	"job", "jobs", "role", "roles", "opening", "openings", "salary",
	"company", "companies", "hiring", "experience", "qualification",
	"qualifications", "work type", "position", "positions", "all",
}

func needsCourseSource(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range courseKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

func needsJobSource(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range jobKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return strings.Contains(q, "developer") || strings.Contains(q, "engineer")
}
