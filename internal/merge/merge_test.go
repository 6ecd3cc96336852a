package merge

import (
	"context"
	"errors"
	"testing"

	"github.com/skillbridge-labs/fedsql/internal/llm"
	"github.com/skillbridge-labs/fedsql/internal/rowset"
	"github.com/skillbridge-labs/fedsql/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeSuccess(t *testing.T) {
	client := testutil.NewScriptedLLM("```python\nmerged = tbl.concat(course, job)\n```")
	m := New(client, testutil.NewTestLogger(t))

	artifact, err := m.Merge(context.Background(), "combine everything", courseFixture(), jobFixture())
	require.NoError(t, err)

	assert.False(t, artifact.Degraded())
	assert.Equal(t, 5, artifact.Merged().RowCount)
	assert.Contains(t, artifact.GeneratedCode, "tbl.concat")

	// Prompt carries structure plus samples, never the full data.
	prompt := client.Prompts[0]
	assert.Contains(t, prompt, `Table "course": 3 rows`)
	assert.Contains(t, prompt, "React Basics")
	assert.NotContains(t, prompt, "Go Fundamentals")
}

func TestMergeBothInputsEmptySkipsModel(t *testing.T) {
	client := testutil.NewScriptedLLM()
	m := New(client, testutil.NewTestLogger(t))

	artifact, err := m.Merge(context.Background(), "anything", rowset.Empty("course"), rowset.Empty("job"))
	require.NoError(t, err)

	assert.Equal(t, 0, client.Calls())
	assert.False(t, artifact.Degraded())
	assert.True(t, artifact.Merged().IsEmpty())
}

func TestMergeDegradesOnBadCode(t *testing.T) {
	client := testutil.NewScriptedLLM("x = 1")
	m := New(client, testutil.NewTestLogger(t))

	artifact, err := m.Merge(context.Background(), "q", courseFixture(), jobFixture())
	require.NoError(t, err)

	assert.True(t, artifact.Degraded())
	var oErr *OutputError
	assert.ErrorAs(t, artifact.Failure, &oErr)
	assert.True(t, artifact.Merged().IsEmpty())
}

func TestMergeDegradesOnViolation(t *testing.T) {
	client := testutil.NewScriptedLLM(`merged = open("/etc/passwd")`)
	m := New(client, testutil.NewTestLogger(t))

	artifact, err := m.Merge(context.Background(), "q", courseFixture(), jobFixture())
	require.NoError(t, err)

	var v *Violation
	assert.ErrorAs(t, artifact.Failure, &v)
}

func TestMergeUnavailableIsTerminal(t *testing.T) {
	unavailable := &llm.UnavailableError{Provider: "gemini", Err: errors.New("down")}
	client := testutil.NewScriptedLLM().Fail(0, unavailable)
	m := New(client, testutil.NewTestLogger(t))

	_, err := m.Merge(context.Background(), "q", courseFixture(), jobFixture())

	var uErr *llm.UnavailableError
	require.ErrorAs(t, err, &uErr)
}

func TestArtifactNilSafety(t *testing.T) {
	var artifact *Artifact
	assert.True(t, artifact.Degraded())
	assert.True(t, artifact.Merged().IsEmpty())
}
