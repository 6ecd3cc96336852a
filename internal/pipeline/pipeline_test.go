package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/skillbridge-labs/fedsql/internal/answer"
	"github.com/skillbridge-labs/fedsql/internal/decompose"
	"github.com/skillbridge-labs/fedsql/internal/federate"
	"github.com/skillbridge-labs/fedsql/internal/llm"
	"github.com/skillbridge-labs/fedsql/internal/merge"
	"github.com/skillbridge-labs/fedsql/internal/testutil"
	"github.com/skillbridge-labs/fedsql/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAdapter struct {
	adapter.BaseSQLAdapter
	name string
}

func (m *mockAdapter) Connect(context.Context, adapter.Config) error { return nil }
func (m *mockAdapter) Name() string                                  { return m.name }

func (m *mockAdapter) GetTableMetadata(context.Context, string) (*adapter.Metadata, error) {
	return nil, errors.New("not implemented")
}

func (m *mockAdapter) LoadCSV(context.Context, string, string) error {
	return errors.New("not implemented")
}

func newMockAdapter(t *testing.T, name string) (*mockAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ad := &mockAdapter{name: name}
	ad.DB = db
	return ad, mock
}

var testSchemas = decompose.Schemas{
	Course: "courses(course_id, course_name, skills, level, fee)",
	Job:    "jobs(job_id, job_title, role, skills, experience, qualifications)",
}

func newPipeline(t *testing.T, client llm.Client, course, job adapter.Adapter) *Pipeline {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	return New(
		decompose.New(client, testSchemas, decompose.WithLogger(logger)),
		federate.New(course, job, logger),
		merge.New(client, logger),
		answer.New(client, logger),
		logger,
	)
}

const reactDecomposition = `{
	"course_sql": "SELECT course_name, skills FROM courses WHERE LOWER(skills) LIKE '%react%' LIMIT 25",
	"job_sql": "SELECT job_title, skills FROM jobs WHERE LOWER(skills) LIKE '%react%' LIMIT 25",
	"natural_query": "Relate React courses to React job openings."
}`

func TestAnswerScenarioReactCoursesAndJobs(t *testing.T) {
	courseAd, courseMock := newMockAdapter(t, "course")
	jobAd, jobMock := newMockAdapter(t, "job")

	courseMock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"course_name", "skills"}).
			AddRow("React Basics", "React").
			AddRow("Advanced React", "React, Redux").
			AddRow("Fullstack React", "React, Node"))
	jobMock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"job_title", "skills"}).
			AddRow("React Developer", "React").
			AddRow("Frontend Engineer", "React, CSS"))

	client := testutil.NewScriptedLLM(
		reactDecomposition,
		"merged = tbl.concat(course, job)",
		"Three courses teach React and two open jobs ask for it.",
	)

	p := newPipeline(t, client, courseAd, jobAd)
	res, err := p.Answer(context.Background(), "courses that teach React and frontend jobs requiring React", 100)
	require.NoError(t, err)

	assert.NotEmpty(t, res.Decomposition.CourseSQL)
	assert.NotEmpty(t, res.Decomposition.JobSQL)
	assert.Equal(t, 3, res.Course.RowCount)
	assert.Equal(t, 2, res.Job.RowCount)
	assert.Equal(t, 5, res.Merged.RowCount)
	assert.Empty(t, res.Answer.Suggestions)
	assert.NotEmpty(t, res.RequestID)
}

func TestAnswerScenarioOutOfScope(t *testing.T) {
	courseAd, courseMock := newMockAdapter(t, "course")
	jobAd, jobMock := newMockAdapter(t, "job")

	// Closest-match SQL still runs but finds nothing.
	courseMock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"course_name"}))
	jobMock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"job_title"}))

	client := testutil.NewScriptedLLM(
		`{
			"course_sql": "SELECT * FROM courses WHERE LOWER(skills) LIKE '%legal%' LIMIT 25",
			"job_sql": "SELECT * FROM jobs WHERE LOWER(job_title) LIKE '%legal%' LIMIT 25",
			"natural_query": "Legal careers are not covered; suggest software or frontend questions instead."
		}`,
		// Both sources came back empty, so the merge model call is skipped
		// and this response feeds the suggestion branch.
		`{
			"text": "There is no legal career data here. The available data covers technology courses and engineering jobs.",
			"suggestions": ["Which courses teach React?", "What DevOps jobs accept 3 years of experience?"]
		}`,
	)

	p := newPipeline(t, client, courseAd, jobAd)
	res, err := p.Answer(context.Background(), "find legal jobs for lawyers", 100)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Merged.RowCount)
	assert.GreaterOrEqual(t, len(res.Answer.Suggestions), 2)
	assert.LessOrEqual(t, len(res.Answer.Suggestions), 3)
	assert.NotContains(t, strings.ToUpper(res.Answer.Text), "SQL")
}

func TestAnswerEarlyExitWhenBothSQLEmpty(t *testing.T) {
	// Question indicates neither source, so an all-empty decomposition is
	// accepted and the executor must never be touched (mocks would fail).
	courseAd, _ := newMockAdapter(t, "course")
	jobAd, _ := newMockAdapter(t, "job")

	client := testutil.NewScriptedLLM(
		`{"course_sql": "", "job_sql": "", "natural_query": "Weather is out of scope; ask about tech instead."}`,
		`{"text": "I cannot help with weather.", "suggestions": ["Which courses teach Go?", "What backend jobs are open?"]}`,
	)

	p := newPipeline(t, client, courseAd, jobAd)
	res, err := p.Answer(context.Background(), "what is the weather like today", 100)
	require.NoError(t, err)

	assert.Equal(t, 2, client.Calls())
	assert.True(t, res.Course.IsEmpty())
	assert.True(t, res.Job.IsEmpty())
	assert.True(t, res.Merged.IsEmpty())
	assert.Len(t, res.Answer.Suggestions, 2)
}

func TestAnswerSurvivesSingleSourceFailure(t *testing.T) {
	courseAd, courseMock := newMockAdapter(t, "course")
	jobAd, jobMock := newMockAdapter(t, "job")

	courseMock.ExpectQuery("SELECT").WillReturnError(errors.New("connection refused"))
	jobMock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"job_title"}).AddRow("React Developer"))

	client := testutil.NewScriptedLLM(
		reactDecomposition,
		"merged = job",
		"One React job is open right now.",
	)

	p := newPipeline(t, client, courseAd, jobAd)
	res, err := p.Answer(context.Background(), "courses that teach React and frontend jobs requiring React", 100)
	require.NoError(t, err)

	assert.True(t, res.Course.IsEmpty())
	assert.Equal(t, 1, res.Merged.RowCount)
	assert.Empty(t, res.Answer.Suggestions)
}

func TestAnswerMergeFailureStillCompletes(t *testing.T) {
	courseAd, courseMock := newMockAdapter(t, "course")
	jobAd, jobMock := newMockAdapter(t, "job")

	courseMock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"course_name"}).AddRow("React Basics"))
	jobMock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"job_title"}).AddRow("React Developer"))

	client := testutil.NewScriptedLLM(
		reactDecomposition,
		"this is not valid starlark ][",
		`{"text": "I could not combine the data, but both sides have matches.", "suggestions": ["q1", "q2"]}`,
	)

	p := newPipeline(t, client, courseAd, jobAd)
	res, err := p.Answer(context.Background(), "courses that teach React and frontend jobs requiring React", 100)
	require.NoError(t, err)

	assert.True(t, res.Merged.IsEmpty())
	require.NotNil(t, res.Answer)
	assert.GreaterOrEqual(t, len(res.Answer.Suggestions), 2)
}

func TestAnswerAppliesDefaultMaxRows(t *testing.T) {
	courseAd, courseMock := newMockAdapter(t, "course")
	jobAd, jobMock := newMockAdapter(t, "job")

	rows := sqlmock.NewRows([]string{"course_name"})
	for i := 0; i < DefaultMaxRows+7; i++ {
		rows.AddRow("course")
	}
	courseMock.ExpectQuery("SELECT").WillReturnRows(rows)
	jobMock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"job_title"}))

	client := testutil.NewScriptedLLM(
		reactDecomposition,
		"merged = course",
		"Lots of courses.",
	)

	p := newPipeline(t, client, courseAd, jobAd)
	res, err := p.Answer(context.Background(), "courses that teach React and frontend jobs requiring React", 0)
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxRows+7, res.Course.RowCount)
	assert.Len(t, res.Course.Rows, DefaultMaxRows)
	assert.True(t, res.Course.Truncated)
}

func TestAnswerLLMUnavailableIsTerminal(t *testing.T) {
	courseAd, _ := newMockAdapter(t, "course")
	jobAd, _ := newMockAdapter(t, "job")

	client := testutil.NewScriptedLLM().
		Fail(0, &llm.UnavailableError{Provider: "gemini", Err: errors.New("down")}).
		Fail(1, &llm.UnavailableError{Provider: "gemini", Err: errors.New("down")})

	p := newPipeline(t, client, courseAd, jobAd)
	_, err := p.Answer(context.Background(), "courses that teach React", 100)

	var uErr *llm.UnavailableError
	require.ErrorAs(t, err, &uErr)
}
