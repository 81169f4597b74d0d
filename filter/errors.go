package filter

import (
	"fmt"
)

// CompilationError is returned by Compile for an expression that does not
// parse, names an unknown collection field or does not yield a bool.
type CompilationError struct {
	Expression string
	Reason     string
	// Column is where expr located the problem, -1 when it did not
	Column int
	Err    error
}

func (e *CompilationError) Error() string {
	if e.Column < 0 {
		return fmt.Sprintf("collection filter %q: %s", e.Expression, e.Reason)
	}
	return fmt.Sprintf("collection filter %q: column %d: %s", e.Expression, e.Column, e.Reason)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// EvaluationError is returned when a compiled filter fails at run time
// for one collection, for example on an out-of-range index.
type EvaluationError struct {
	Expression     string
	CollectionGUID string
	Collection     string
	Err            error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("collection filter %q on %s (%s): %v", e.Expression, e.Collection, e.CollectionGUID, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}
