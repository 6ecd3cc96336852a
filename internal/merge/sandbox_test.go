package merge

import (
	"context"
	"testing"

	"github.com/skillbridge-labs/fedsql/internal/rowset"
	"github.com/skillbridge-labs/fedsql/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func courseFixture() *rowset.RowSet {
	return &rowset.RowSet{
		Source:   "course",
		Columns:  []string{"course_name", "skills", "fee"},
		RowCount: 3,
		Rows: []rowset.Row{
			{"course_name": "React Basics", "skills": "React, JavaScript", "fee": int64(4999)},
			{"course_name": "Advanced React", "skills": "React, Redux", "fee": int64(7999)},
			{"course_name": "Go Fundamentals", "skills": "Go", "fee": int64(5999)},
		},
	}
}

func jobFixture() *rowset.RowSet {
	return &rowset.RowSet{
		Source:   "job",
		Columns:  []string{"job_title", "skills"},
		RowCount: 2,
		Rows: []rowset.Row{
			{"job_title": "React Developer", "skills": "React"},
			{"job_title": "Frontend Engineer", "skills": "React, CSS"},
		},
	}
}

func TestRunnerSimpleAssignment(t *testing.T) {
	r := NewRunner(testutil.NewTestLogger(t))

	rs, err := r.Run(context.Background(), "merged = tbl.concat(course, job)", courseFixture(), jobFixture())
	require.NoError(t, err)

	assert.Equal(t, 5, rs.RowCount)
	assert.Equal(t, "merged", rs.Source)
	assert.Contains(t, rs.Columns, "course_name")
	assert.Contains(t, rs.Columns, "job_title")
}

func TestRunnerFilterAndDerive(t *testing.T) {
	r := NewRunner(testutil.NewTestLogger(t))

	code := `
react_courses = tbl.filter(course, lambda r: "React" in r["skills"])
merged = tbl.derive(react_courses, "kind", lambda r: "course")
`
	rs, err := r.Run(context.Background(), code, courseFixture(), jobFixture())
	require.NoError(t, err)

	assert.Equal(t, 2, rs.RowCount)
	assert.Equal(t, "course", rs.Rows[0]["kind"])
}

func TestRunnerSortLimitAndAvg(t *testing.T) {
	r := NewRunner(testutil.NewTestLogger(t))

	code := `
by_fee = tbl.sort_by(course, "fee", reverse=True)
top = tbl.limit(by_fee, 1)
merged = tbl.derive(top, "avg_fee", lambda r: num.avg([c["fee"] for c in course]))
`
	rs, err := r.Run(context.Background(), code, courseFixture(), jobFixture())
	require.NoError(t, err)

	require.Equal(t, 1, rs.RowCount)
	assert.Equal(t, "Advanced React", rs.Rows[0]["course_name"])
	assert.InDelta(t, 6332.33, rs.Rows[0]["avg_fee"].(float64), 0.01)
}

func TestRunnerMissingOutput(t *testing.T) {
	r := NewRunner(testutil.NewTestLogger(t))

	_, err := r.Run(context.Background(), "x = tbl.concat(course, job)", courseFixture(), jobFixture())

	var oErr *OutputError
	require.ErrorAs(t, err, &oErr)
}

func TestRunnerIllShapedOutput(t *testing.T) {
	r := NewRunner(testutil.NewTestLogger(t))

	_, err := r.Run(context.Background(), `merged = "not a table"`, courseFixture(), jobFixture())

	var oErr *OutputError
	require.ErrorAs(t, err, &oErr)
}

func TestRunnerSandboxViolation(t *testing.T) {
	r := NewRunner(testutil.NewTestLogger(t))

	tests := []struct {
		name string
		code string
	}{
		{"open file", `merged = open("/etc/passwd")`},
		{"os module", `merged = os.system("ls")`},
		{"exec", `merged = exec("print(1)")`},
		{"load statement", "load(\"module.star\", \"x\")\nmerged = course"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Run(context.Background(), tt.code, courseFixture(), jobFixture())
			var v *Violation
			require.ErrorAs(t, err, &v)
		})
	}
}

func TestRunnerImportIsSyntacticallyImpossible(t *testing.T) {
	r := NewRunner(testutil.NewTestLogger(t))

	_, err := r.Run(context.Background(), "import os\nmerged = course", courseFixture(), jobFixture())
	require.Error(t, err)
}

func TestRunnerRuntimeError(t *testing.T) {
	r := NewRunner(testutil.NewTestLogger(t))

	_, err := r.Run(context.Background(), `merged = tbl.limit(course, "ten")`, courseFixture(), jobFixture())

	var rErr *RuntimeError
	require.ErrorAs(t, err, &rErr)
}

func TestRunnerDoesNotMutateInputs(t *testing.T) {
	r := NewRunner(testutil.NewTestLogger(t))
	course := courseFixture()

	code := `
def spoil(rows):
    for row in rows:
        row["course_name"] = "spoiled"
    return rows
merged = spoil(course)
`
	rs, err := r.Run(context.Background(), code, course, jobFixture())
	require.NoError(t, err)

	assert.Equal(t, "spoiled", rs.Rows[0]["course_name"])
	assert.Equal(t, "React Basics", course.Rows[0]["course_name"])
}

func TestRunnerHonorsCancellation(t *testing.T) {
	r := NewRunner(testutil.NewTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, `
merged = course
for i in range(1000):
    merged = tbl.concat(merged, course)
`, courseFixture(), jobFixture())
	require.Error(t, err)
}

func TestRunnerJoin(t *testing.T) {
	r := NewRunner(testutil.NewTestLogger(t))

	course := &rowset.RowSet{
		Columns:  []string{"skill", "course_name"},
		RowCount: 2,
		Rows: []rowset.Row{
			{"skill": "React", "course_name": "React Basics"},
			{"skill": "Go", "course_name": "Go Fundamentals"},
		},
	}
	job := &rowset.RowSet{
		Columns:  []string{"skill", "job_title"},
		RowCount: 1,
		Rows: []rowset.Row{
			{"skill": "React", "job_title": "React Developer"},
		},
	}

	rs, err := r.Run(context.Background(),
		`merged = tbl.join(course, job, "skill", "skill")`, course, job)
	require.NoError(t, err)

	require.Equal(t, 1, rs.RowCount)
	assert.Equal(t, "React Basics", rs.Rows[0]["course_name"])
	assert.Equal(t, "React Developer", rs.Rows[0]["job_title"])
}
