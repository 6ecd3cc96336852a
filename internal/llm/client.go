// Package llm wraps the language model capability used by the decomposition,
// merge, and answer stages behind a small completion interface.
package llm

import (
	"context"
	"fmt"
)

// Client is the completion capability the pipeline stages depend on.
// Implementations return the raw model text; callers own prompt construction
// and output parsing.
type Client interface {
	Complete(ctx context.Context, prompt string, temperature float32) (string, error)
}

// UnavailableError indicates the model endpoint could not be reached or
// refused the request. The pipeline treats it as terminal for the stage
// that hit it.
type UnavailableError struct {
	Provider string
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("llm provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
