package engine

import "fmt"

// UnsupportedOperationError is raised when an operation is dispatched
// to an engine that advertises it but cannot serve it. Validate catches
// static mismatches at registration; this covers engines whose
// capability set drifts afterward, such as a remote whose far end
// changed.
type UnsupportedOperationError struct {
	Engine string
	Op     Operation
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("engine %q does not support operation %q", e.Engine, e.Op)
}
