// Package answer produces the final natural language response from the
// merged data, with a dedicated suggestion-bearing branch for empty or
// out-of-scope results.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/skillbridge-labs/fedsql/internal/llm"
	"github.com/skillbridge-labs/fedsql/internal/rowset"
)

// FinalAnswer is the user-facing result. Suggestions is populated with 2 to
// 3 entries only on the empty/out-of-scope branch.
type FinalAnswer struct {
	Text        string   `json:"text"`
	Suggestions []string `json:"suggestions"`
}

// Input carries everything the synthesizer needs from earlier stages.
type Input struct {
	Question      string
	NaturalQuery  string
	Merged        *rowset.RowSet
	Course        *rowset.RowSet
	Job           *rowset.RowSet
	MergeDegraded bool
}

// emptyBranch reports whether the empty/out-of-scope path applies: no merged
// rows, a degraded merge, or both sources empty.
func (in *Input) emptyBranch() bool {
	return in.Merged.IsEmpty() || in.MergeDegraded ||
		(in.Course.IsEmpty() && in.Job.IsEmpty())
}

const (
	answerTemperature     = 0.2
	suggestionTemperature = 0.3
)

// Synthesizer turns merged data into conversational answers.
type Synthesizer struct {
	client llm.Client
	logger *slog.Logger
}

// New creates a Synthesizer.
func New(client llm.Client, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Synthesizer{client: client, logger: logger}
}

// Synthesize produces the final answer. Every successfully decomposed
// request gets one, even with zero data; the only error returned is
// llm.UnavailableError.
func (s *Synthesizer) Synthesize(ctx context.Context, in *Input) (*FinalAnswer, error) {
	if in.emptyBranch() {
		return s.synthesizeEmpty(ctx, in)
	}
	return s.synthesizeAnswer(ctx, in)
}

func (s *Synthesizer) synthesizeAnswer(ctx context.Context, in *Input) (*FinalAnswer, error) {
	prompt := buildAnswerPrompt(in)

	text, err := s.client.Complete(ctx, prompt, answerTemperature)
	if err != nil {
		var unavailable *llm.UnavailableError
		if errors.As(err, &unavailable) {
			return nil, err
		}
		// Data exists; a dropped completion should not throw it away.
		s.logger.Warn("answer synthesis failed, summarizing directly", slog.Any("error", err))
		return &FinalAnswer{Text: fallbackSummary(in.Merged)}, nil
	}

	return &FinalAnswer{Text: strings.TrimSpace(text)}, nil
}

func (s *Synthesizer) synthesizeEmpty(ctx context.Context, in *Input) (*FinalAnswer, error) {
	prompt := buildEmptyPrompt(in)

	raw, err := s.client.Complete(ctx, prompt, suggestionTemperature)
	if err != nil {
		var unavailable *llm.UnavailableError
		if errors.As(err, &unavailable) {
			return nil, err
		}
		s.logger.Warn("suggestion synthesis failed, using canned guidance", slog.Any("error", err))
		return cannedEmptyAnswer(), nil
	}

	var parsed FinalAnswer
	if err := llm.DecodeJSONObject(raw, &parsed); err != nil || parsed.Text == "" {
		s.logger.Warn("suggestion output not parsable, using canned guidance")
		return cannedEmptyAnswer(), nil
	}

	parsed.Text = strings.TrimSpace(parsed.Text)
	parsed.Suggestions = clampSuggestions(parsed.Suggestions)
	return &parsed, nil
}

// clampSuggestions enforces the 2 to 3 entry contract, topping up from the
// canned pool when the model offered too few.
func clampSuggestions(suggestions []string) []string {
	var out []string
	for _, sg := range suggestions {
		sg = strings.TrimSpace(sg)
		if sg != "" {
			out = append(out, sg)
		}
		if len(out) == 3 {
			break
		}
	}
	for _, canned := range cannedSuggestions {
		if len(out) >= 2 {
			break
		}
		if containsSuggestion(out, canned) {
			continue
		}
		out = append(out, canned)
	}
	return out
}

func containsSuggestion(suggestions []string, s string) bool {
	for _, have := range suggestions {
		if strings.EqualFold(have, s) {
			return true
		}
	}
	return false
}

var cannedSuggestions = []string{
	"Which courses teach React and what do they cost?",
	"What frontend developer jobs accept 2 to 4 years of experience?",
	"Which courses cover the skills asked for in DevOps job openings?",
}

func cannedEmptyAnswer() *FinalAnswer {
	return &FinalAnswer{
		Text: "I couldn't find anything matching that question. The data here covers " +
			"technology courses and software or frontend engineering jobs, so try asking about those instead.",
		Suggestions: append([]string(nil), cannedSuggestions[:3]...),
	}
}

func fallbackSummary(merged *rowset.RowSet) string {
	return fmt.Sprintf("Found %d matching records across the course and job data:\n\n%s",
		merged.RowCount, merged.Markdown())
}
