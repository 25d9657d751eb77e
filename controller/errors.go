package controller

import (
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// FinalizerOp names the finalizer list change that failed.
type FinalizerOp string

const (
	FinalizerAdd    FinalizerOp = "add"
	FinalizerRemove FinalizerOp = "remove"
)

// FinalizerError reports a failed finalizer patch. It keeps the underlying
// cause so it can be logged and classified.
type FinalizerError struct {
	Op        FinalizerOp
	Finalizer string
	Err       error
}

func (e *FinalizerError) Error() string {
	return fmt.Sprintf("failed to %s finalizer %q: %v", e.Op, e.Finalizer, e.Err)
}

func (e *FinalizerError) Unwrap() error {
	return e.Err
}

// IsFinalizerError checks if an error came from patching the finalizer list.
func IsFinalizerError(err error) bool {
	var fe *FinalizerError
	return errors.As(err, &fe)
}

// ConflictError reports that a status patch lost a race with a concurrent
// writer. It is retryable: the next attempt reads fresher state.
type ConflictError struct {
	Namespace, Name string
	Err             error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict patching status of %s/%s: %v", e.Namespace, e.Name, e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// IsConflict checks if an error is a write conflict, either wrapped by the
// status patcher or straight from the API server.
func IsConflict(err error) bool {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return true
	}
	return apierrors.IsConflict(err)
}

// PanicError carries a panic recovered from a reconciliation. Only that one
// attempt is aborted.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic during reconciliation: %v", e.Value)
}

// errNoName is returned for objects that cannot be addressed.
var errNoName = errors.New("resource has no name")

// Reason returns a short label describing the class of a reconciliation error,
// for metrics and events.
func Reason(err error) string {
	var pe *PanicError
	switch {
	case err == nil:
		return ""
	case IsFinalizerError(err):
		return "finalizer"
	case IsConflict(err):
		return "conflict"
	case errors.As(err, &pe):
		return "panic"
	case errors.Is(err, errNoName):
		return "invalid"
	default:
		return "reconcile"
	}
}
