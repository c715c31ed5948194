package engine

import (
	"fmt"
	"strings"
)

// ValidationError reports every structural problem found in the desired
// graph. The apply never starts while it is non-nil.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration (%d issue(s)):\n  - %s",
		len(e.Issues), strings.Join(e.Issues, "\n  - "))
}

// CycleError names the members of a reference cycle in declaration order.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Nodes, " -> "))
}

// UnresolvedOutputError means a declared output references a resource
// that was never created, usually because the apply aborted early.
type UnresolvedOutputError struct {
	Output    string
	Reference string
}

func (e *UnresolvedOutputError) Error() string {
	return fmt.Sprintf("output %q references %s, which was not applied", e.Output, e.Reference)
}

// ApplyError summarizes a partially failed apply: which resources were
// converged (safely re-appliable) and which failed, with the first
// underlying cause.
type ApplyError struct {
	Phase     int
	Completed []string
	Failed    []string
	Err       error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply failed in phase %d: %d resource(s) applied, %d failed (%s): %v",
		e.Phase, len(e.Completed), len(e.Failed), strings.Join(e.Failed, ", "), e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }
