package decompose

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Deterministic templates used when the model cannot produce a usable
// decomposition. They target the default course/job schemas and trade
// precision for recall: broad LIKE conditions with a row limit.

var (
	roleExtractionRe = regexp.MustCompile(`(?i)(?:for|as|to become|towards|about)\s+([^?.!,]+)`)
	roleSanitizeRe   = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
	wordRe           = regexp.MustCompile(`\w+`)
	experienceRe     = regexp.MustCompile(`(?i)(\d+)\s*(?:to|-)\s*(\d+)\s*years?`)
	qualificationRe  = regexp.MustCompile(`(?i)\b(m\.?tech|mtech|b\.?tech|btech|b\.?sc|bsc|m\.?sc|msc|phd|ph\.?d)\b`)
	degreePunctRe    = regexp.MustCompile(`[.\-_,]`)
)

var roleStopwords = map[string]bool{
	"courses": true, "course": true, "job": true, "jobs": true,
	"role": true, "roles": true, "position": true, "positions": true,
	"career": true, "careers": true, "me": true, "for": true,
	"a": true, "an": true, "the": true, "suggest": true,
	"suggestion": true, "suggestions": true, "recommend": true,
	"recommendations": true, "list": true, "find": true, "with": true,
	"in": true, "of": true, "to": true, "become": true,
}

func (d *Decomposer) fallback(question string) *Decomposition {
	role := d.extractRole(question)
	tokens := searchTokens(role)

	naturalQuery := fmt.Sprintf(
		"Using the results of both queries, answer the user question: %q.", question)

	expCond := experienceCondition(question, "experience")

	if qual := qualificationRe.FindString(question); qual != "" {
		var conds []string
		for _, pattern := range qualificationLikePatterns(qual) {
			conds = append(conds, fmt.Sprintf("LOWER(qualifications) LIKE '%s'", pattern))
		}
		jobSQL := fmt.Sprintf(
			"SELECT * FROM jobs WHERE (%s)%s LIMIT 25",
			strings.Join(conds, " OR "), expCond)
		courseSQL := fmt.Sprintf(
			"SELECT * FROM courses WHERE (%s) LIMIT 25",
			strings.Join(courseConditions(tokens), " OR "))
		return &Decomposition{
			NaturalQuery: naturalQuery,
			CourseSQL:    normalizeSQL(courseSQL),
			JobSQL:       normalizeSQL(jobSQL),
		}
	}

	courseSQL := fmt.Sprintf(
		"SELECT * FROM courses WHERE (%s) LIMIT 25",
		strings.Join(courseConditions(tokens), " OR "))
	jobSQL := fmt.Sprintf(
		"SELECT * FROM jobs WHERE (%s)%s LIMIT 25",
		strings.Join(jobConditions(tokens), " OR "), expCond)

	return &Decomposition{
		NaturalQuery: naturalQuery,
		CourseSQL:    normalizeSQL(courseSQL),
		JobSQL:       normalizeSQL(jobSQL),
	}
}

// extractRole pulls the role phrase the question is about, falling back to
// the configured default when nothing useful survives stopword filtering.
func (d *Decomposer) extractRole(question string) string {
	candidate := question
	if m := roleExtractionRe.FindStringSubmatch(question); m != nil {
		candidate = m[1]
	}

	candidate = roleSanitizeRe.ReplaceAllString(candidate, " ")
	var tokens []string
	for _, token := range strings.Fields(candidate) {
		if !roleStopwords[strings.ToLower(token)] {
			tokens = append(tokens, token)
		}
	}
	if len(tokens) == 0 {
		tokens = strings.Fields(d.fallbackRole)
	}
	if len(tokens) > 5 {
		tokens = tokens[:5]
	}

	role := strings.TrimSpace(strings.Join(tokens, " "))
	if role == "" {
		role = d.fallbackRole
	}
	return role
}

// searchTokens splits a role phrase into lowercase LIKE tokens, dropping
// stopwords. At most three tokens are used to keep the SQL bounded.
func searchTokens(role string) []string {
	var tokens []string
	for _, t := range wordRe.FindAllString(strings.ToLower(role), -1) {
		if !roleStopwords[t] {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) > 3 {
		tokens = tokens[:3]
	}
	return tokens
}

func courseConditions(tokens []string) []string {
	conds := []string{
		"LOWER(course_name) LIKE '%course%'",
	}
	if len(tokens) > 0 {
		conds = conds[:0]
		for _, t := range tokens {
			conds = append(conds,
				fmt.Sprintf("LOWER(course_name) LIKE '%%%s%%'", t),
				fmt.Sprintf("LOWER(skills) LIKE '%%%s%%'", t))
		}
	}
	return conds
}

func jobConditions(tokens []string) []string {
	conds := []string{
		"LOWER(job_title) LIKE '%engineer%'",
		"LOWER(role) LIKE '%developer%'",
	}
	for _, t := range tokens {
		conds = append(conds,
			fmt.Sprintf("LOWER(job_title) LIKE '%%%s%%'", t),
			fmt.Sprintf("LOWER(role) LIKE '%%%s%%'", t),
			fmt.Sprintf("LOWER(skills) LIKE '%%%s%%'", t))
	}
	return conds
}

// experienceCondition turns "3 to 5 years" style phrases into an IN list
// over the given column, matching how experience is stored as text.
func experienceCondition(question, column string) string {
	m := experienceRe.FindStringSubmatch(question)
	if m == nil {
		return ""
	}
	var start, end int
	if _, err := fmt.Sscanf(m[1], "%d", &start); err != nil {
		return ""
	}
	if _, err := fmt.Sscanf(m[2], "%d", &end); err != nil {
		return ""
	}
	if end < start || end-start > 50 {
		return ""
	}

	years := make([]string, 0, end-start+1)
	for y := start; y <= end; y++ {
		years = append(years, fmt.Sprintf("'%d years'", y))
	}
	return fmt.Sprintf(" AND %s IN (%s)", column, strings.Join(years, ", "))
}

// qualificationLikePatterns expands a degree term into LIKE patterns that
// cover common punctuation and spacing variants, e.g. "M.Tech" yields
// "%m tech%", "%m.tech%", and "%mtech%".
func qualificationLikePatterns(qual string) []string {
	base := strings.ToLower(qual)
	base = degreePunctRe.ReplaceAllString(base, " ")
	base = multiSpaceRe.ReplaceAllString(strings.TrimSpace(base), " ")
	if base == "" {
		return nil
	}

	set := map[string]bool{
		"%" + strings.ReplaceAll(base, " ", "") + "%": true,
		"%" + strings.ReplaceAll(base, " ", ".") + "%": true,
		"%" + base + "%":                               true,
	}

	patterns := make([]string, 0, len(set))
	for p := range set {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)
	return patterns
}
