// Package tools provides the tool registry and execution framework the
// agent loop dispatches through.
//
// This file defines sentinel error types for tool execution.
package tools

import "fmt"

// ErrToolUnavailable is returned when a tool call targets a tool that
// is not present in the registry. This indicates a capability mismatch,
// not a transient execution failure.
type ErrToolUnavailable struct {
	ToolName string
}

// Error implements the error interface.
func (e *ErrToolUnavailable) Error() string {
	return fmt.Sprintf("tool %q is not available in this context", e.ToolName)
}

// ValidationError reports malformed or rule-violating tool input. The
// store is never touched when validation fails; the agent sees the
// offending field and can correct itself on the next decision.
type ValidationError struct {
	Tool   string
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: invalid input: %s", e.Tool, e.Reason)
	}
	return fmt.Sprintf("%s: invalid %q: %s", e.Tool, e.Field, e.Reason)
}

// StoreError reports a persistence failure during tool execution. One
// StoreError is an observation the agent can react to; repeated ones
// escalate to a turn-level failure in the loop.
type StoreError struct {
	Tool string
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: storage failure during %s: %v", e.Tool, e.Op, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *StoreError) Unwrap() error {
	return e.Err
}
