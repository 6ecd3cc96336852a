package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/skillbridge-labs/fedsql/internal/llm"
	"github.com/skillbridge-labs/fedsql/internal/rowset"
	"github.com/skillbridge-labs/fedsql/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mergedFixture() *rowset.RowSet {
	return &rowset.RowSet{
		Source:   "merged",
		Columns:  []string{"name", "kind"},
		RowCount: 2,
		Rows: []rowset.Row{
			{"name": "React Basics", "kind": "course"},
			{"name": "React Developer", "kind": "job"},
		},
	}
}

func nonEmptyInput() *Input {
	return &Input{
		Question:     "courses that teach React and jobs requiring React",
		NaturalQuery: "Relate React courses to React jobs.",
		Merged:       mergedFixture(),
		Course:       mergedFixture(),
		Job:          mergedFixture(),
	}
}

func emptyInput(question string) *Input {
	return &Input{
		Question: question,
		Merged:   rowset.Empty("merged"),
		Course:   rowset.Empty("course"),
		Job:      rowset.Empty("job"),
	}
}

func TestSynthesizeNonEmptyBranch(t *testing.T) {
	client := testutil.NewScriptedLLM("Three courses teach React and two jobs require it.")
	s := New(client, testutil.NewTestLogger(t))

	got, err := s.Synthesize(context.Background(), nonEmptyInput())
	require.NoError(t, err)

	assert.Equal(t, "Three courses teach React and two jobs require it.", got.Text)
	assert.Empty(t, got.Suggestions)
	assert.Equal(t, float32(0.2), client.Temperatures[0])
	assert.Contains(t, client.Prompts[0], "| name | kind |")
	assert.Contains(t, client.Prompts[0], "Relate React courses to React jobs.")
}

func TestSynthesizeEmptyBranch(t *testing.T) {
	client := testutil.NewScriptedLLM(`{
		"text": "There is no legal career data here, only tech courses and jobs.",
		"suggestions": ["Which courses teach React?", "What DevOps jobs are open?"]
	}`)
	s := New(client, testutil.NewTestLogger(t))

	got, err := s.Synthesize(context.Background(), emptyInput("find legal jobs for lawyers"))
	require.NoError(t, err)

	assert.NotContains(t, strings.ToUpper(got.Text), "SQL")
	assert.Len(t, got.Suggestions, 2)
	assert.Equal(t, float32(0.3), client.Temperatures[0])
}

func TestSynthesizeEmptyBranchClampsSuggestions(t *testing.T) {
	client := testutil.NewScriptedLLM(`{
		"text": "Nothing matched.",
		"suggestions": ["a", "b", "c", "d", "e"]
	}`)
	s := New(client, testutil.NewTestLogger(t))

	got, err := s.Synthesize(context.Background(), emptyInput("anything"))
	require.NoError(t, err)
	assert.Len(t, got.Suggestions, 3)
}

func TestSynthesizeEmptyBranchTopsUpSuggestions(t *testing.T) {
	client := testutil.NewScriptedLLM(`{"text": "Nothing matched.", "suggestions": ["only one"]}`)
	s := New(client, testutil.NewTestLogger(t))

	got, err := s.Synthesize(context.Background(), emptyInput("anything"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(got.Suggestions), 2)
	assert.LessOrEqual(t, len(got.Suggestions), 3)
}

func TestSynthesizeEmptyBranchTopUpSkipsDuplicates(t *testing.T) {
	// The model's lone suggestion matches a canned one; topping up must not
	// repeat it.
	client := testutil.NewScriptedLLM(
		`{"text": "Nothing matched.", "suggestions": ["Which courses teach React and what do they cost?"]}`)
	s := New(client, testutil.NewTestLogger(t))

	got, err := s.Synthesize(context.Background(), emptyInput("anything"))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(got.Suggestions), 2)

	seen := make(map[string]bool)
	for _, sg := range got.Suggestions {
		assert.False(t, seen[sg], "duplicate suggestion %q", sg)
		seen[sg] = true
	}
}

func TestSynthesizeEmptyBranchCannedOnGarbage(t *testing.T) {
	client := testutil.NewScriptedLLM("utter nonsense")
	s := New(client, testutil.NewTestLogger(t))

	got, err := s.Synthesize(context.Background(), emptyInput("find legal jobs"))
	require.NoError(t, err)

	assert.NotEmpty(t, got.Text)
	assert.GreaterOrEqual(t, len(got.Suggestions), 2)
	assert.LessOrEqual(t, len(got.Suggestions), 3)
}

func TestSynthesizeMergeDegradedTakesEmptyBranch(t *testing.T) {
	client := testutil.NewScriptedLLM(`{"text": "Partial answer only.", "suggestions": ["x", "y"]}`)
	s := New(client, testutil.NewTestLogger(t))

	in := nonEmptyInput()
	in.Merged = rowset.Empty("merged")
	in.MergeDegraded = true

	got, err := s.Synthesize(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, got.Suggestions, 2)
}

func TestSynthesizeUnavailableIsTerminal(t *testing.T) {
	unavailable := &llm.UnavailableError{Provider: "gemini", Err: errors.New("down")}
	client := testutil.NewScriptedLLM().Fail(0, unavailable)
	s := New(client, testutil.NewTestLogger(t))

	_, err := s.Synthesize(context.Background(), nonEmptyInput())

	var uErr *llm.UnavailableError
	require.ErrorAs(t, err, &uErr)
}

func TestSynthesizeNonEmptyFallbackSummary(t *testing.T) {
	client := testutil.NewScriptedLLM().Fail(0, errors.New("transient"))
	s := New(client, testutil.NewTestLogger(t))

	got, err := s.Synthesize(context.Background(), nonEmptyInput())
	require.NoError(t, err)
	assert.Contains(t, got.Text, "React Basics")
	assert.Empty(t, got.Suggestions)
}
