package merge

import "fmt"

// OutputError indicates the generated snippet ran but did not bind a
// table-shaped value to the designated output name.
type OutputError struct {
	Reason string
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("merge snippet produced no usable output: %s", e.Reason)
}

// Violation indicates the snippet referenced a capability outside the
// sandbox's predeclared names.
type Violation struct {
	Detail string
}

func (e *Violation) Error() string {
	return fmt.Sprintf("merge snippet violated sandbox restrictions: %s", e.Detail)
}

// RuntimeError indicates the snippet failed during evaluation for a reason
// other than a sandbox violation.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("merge snippet failed at runtime: %v", e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}
