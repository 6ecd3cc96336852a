package decompose

import (
	"context"
	"errors"
	"testing"

	"github.com/skillbridge-labs/fedsql/internal/llm"
	"github.com/skillbridge-labs/fedsql/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchemas = Schemas{
	Course: "courses(course_id, course_name, skills, level, fee)",
	Job:    "jobs(job_id, job_title, role, company, skills, experience, qualifications)",
}

func TestDecomposeValidResponse(t *testing.T) {
	client := testutil.NewScriptedLLM(`{
		"course_sql": "SELECT * FROM courses WHERE LOWER(skills) LIKE '%react%' LIMIT 25",
		"job_sql": "SELECT * FROM jobs WHERE LOWER(skills) LIKE '%react%' LIMIT 25",
		"natural_query": "Match React courses to React jobs."
	}`)

	d := New(client, testSchemas, WithLogger(testutil.NewTestLogger(t)))
	dec, err := d.Decompose(context.Background(), "courses that teach React and jobs requiring React")
	require.NoError(t, err)

	assert.Contains(t, dec.CourseSQL, "SELECT * FROM courses")
	assert.Contains(t, dec.JobSQL, "SELECT * FROM jobs")
	assert.Equal(t, "Match React courses to React jobs.", dec.NaturalQuery)
	assert.True(t, dec.HasQueries())
	assert.Equal(t, float32(0.05), client.Temperatures[0])
}

func TestDecomposeNormalizesWhitespace(t *testing.T) {
	client := testutil.NewScriptedLLM(`{"course_sql": "SELECT *\n   FROM courses\n LIMIT 5", "job_sql": "SELECT * FROM jobs LIMIT 5", "natural_query": "x"}`)

	d := New(client, testSchemas)
	dec, err := d.Decompose(context.Background(), "all courses and jobs")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM courses LIMIT 5", dec.CourseSQL)
}

func TestDecomposeFallbackOnGarbage(t *testing.T) {
	client := testutil.NewScriptedLLM("not json at all", "still not json")

	d := New(client, testSchemas, WithLogger(testutil.NewTestLogger(t)))
	dec, err := d.Decompose(context.Background(), "Suggest courses for a Data Scientist")
	require.NoError(t, err)

	assert.Equal(t, 2, client.Calls())
	assert.Contains(t, dec.CourseSQL, "SELECT * FROM courses")
	assert.Contains(t, dec.JobSQL, "SELECT * FROM jobs")
	assert.Contains(t, dec.CourseSQL, "data")
	assert.True(t, IsSafeSQL(dec.CourseSQL))
	assert.True(t, IsSafeSQL(dec.JobSQL))
}

func TestDecomposeErrorWhenFallbackDisabled(t *testing.T) {
	client := testutil.NewScriptedLLM("garbage", "garbage")

	d := New(client, testSchemas, WithFallback(false))
	_, err := d.Decompose(context.Background(), "anything about jobs")

	var dErr *Error
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, "anything about jobs", dErr.Question)
}

func TestDecomposeUnavailableIsTerminal(t *testing.T) {
	unavailable := &llm.UnavailableError{Provider: "gemini", Err: errors.New("boom")}
	client := testutil.NewScriptedLLM().Fail(0, unavailable)

	d := New(client, testSchemas)
	_, err := d.Decompose(context.Background(), "jobs for React developers")

	var uErr *llm.UnavailableError
	require.ErrorAs(t, err, &uErr)
	assert.Equal(t, 1, client.Calls())
}

func TestDecomposeEmptyCompletionErrorFallsBack(t *testing.T) {
	// Empty completions surface as plain errors, which every attempt
	// absorbs; only UnavailableError ends the request.
	emptyErr := errors.New("gemini returned an empty completion")
	client := testutil.NewScriptedLLM("", "").Fail(0, emptyErr).Fail(1, emptyErr)

	d := New(client, testSchemas, WithLogger(testutil.NewTestLogger(t)))
	dec, err := d.Decompose(context.Background(), "jobs for React developers")
	require.NoError(t, err)

	assert.Equal(t, 2, client.Calls())
	assert.NotEmpty(t, dec.JobSQL)
}

func TestDecomposeIncompletePayloadRetriesThenFallsBack(t *testing.T) {
	// Question mentions both domains but the model only fills one side.
	partial := `{"course_sql": "", "job_sql": "SELECT * FROM jobs LIMIT 5", "natural_query": "x"}`
	client := testutil.NewScriptedLLM(partial, partial)

	d := New(client, testSchemas, WithLogger(testutil.NewTestLogger(t)))
	dec, err := d.Decompose(context.Background(), "courses and jobs for React developers")
	require.NoError(t, err)

	assert.Equal(t, 2, client.Calls())
	assert.NotEmpty(t, dec.CourseSQL)
	assert.NotEmpty(t, dec.JobSQL)
}

func TestFallbackQualificationVariants(t *testing.T) {
	d := New(testutil.NewScriptedLLM(), testSchemas)
	dec := d.fallback("Find M.Tech jobs with 2 to 4 years experience")

	assert.Contains(t, dec.JobSQL, "%mtech%")
	assert.Contains(t, dec.JobSQL, "%m.tech%")
	assert.Contains(t, dec.JobSQL, "%m tech%")
	assert.Contains(t, dec.JobSQL, "experience IN ('2 years', '3 years', '4 years')")
}

func TestFallbackRoleExtraction(t *testing.T) {
	d := New(testutil.NewScriptedLLM(), testSchemas)

	dec := d.fallback("Suggest courses for a DevOps engineer")
	assert.Contains(t, dec.CourseSQL, "devops")

	// Nothing extractable falls back to the configured default role.
	dec = d.fallback("suggest for me")
	assert.Contains(t, dec.CourseSQL, "data")
}

func TestQualificationLikePatterns(t *testing.T) {
	patterns := qualificationLikePatterns("M.Tech")
	assert.ElementsMatch(t, []string{"%m tech%", "%m.tech%", "%mtech%"}, patterns)
	assert.Empty(t, qualificationLikePatterns(""))
}

func TestIsSafeSQL(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want bool
	}{
		{"empty", "", true},
		{"plain select", "SELECT * FROM jobs", true},
		{"trailing semicolon", "SELECT 1;", true},
		{"lowercase select", "select course_name from courses", true},
		{"insert", "INSERT INTO jobs VALUES (1)", false},
		{"drop", "SELECT 1; DROP TABLE jobs", false},
		{"embedded delete", "SELECT * FROM jobs WHERE x = 'a' OR (DELETE FROM jobs)", false},
		{"not select", "SHOW TABLES", false},
		{"multiple statements", "SELECT 1; SELECT 2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSafeSQL(tt.sql))
		})
	}
}

func TestEnsureSafeSQL(t *testing.T) {
	sql, err := EnsureSafeSQL("SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", sql)

	_, err = EnsureSafeSQL("DROP TABLE jobs")
	assert.Error(t, err)
}
