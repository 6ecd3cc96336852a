package testutil

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedLLM is an llm.Client test double that returns canned completions
// in order, recording the prompts it received.
type ScriptedLLM struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int

	Prompts      []string
	Temperatures []float32
}

// NewScriptedLLM creates a double that replays the given responses.
func NewScriptedLLM(responses ...string) *ScriptedLLM {
	return &ScriptedLLM{responses: responses}
}

// Fail makes call number n (zero-based) return the given error instead of a
// completion.
func (s *ScriptedLLM) Fail(n int, err error) *ScriptedLLM {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.errs) <= n {
		s.errs = append(s.errs, nil)
	}
	s.errs[n] = err
	return s
}

// Complete implements llm.Client.
func (s *ScriptedLLM) Complete(_ context.Context, prompt string, temperature float32) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call := s.calls
	s.calls++
	s.Prompts = append(s.Prompts, prompt)
	s.Temperatures = append(s.Temperatures, temperature)

	if call < len(s.errs) && s.errs[call] != nil {
		return "", s.errs[call]
	}
	if call < len(s.responses) {
		return s.responses[call], nil
	}
	return "", fmt.Errorf("scripted llm exhausted after %d calls", len(s.responses))
}

// Calls returns how many times Complete was invoked.
func (s *ScriptedLLM) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
