package framegraph

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument       = errors.New("framegraph: invalid argument")
	ErrUnresolvedHandle      = errors.New("framegraph: unresolved dangling handle")
	ErrResourceConflict      = errors.New("framegraph: resource conflict")
	ErrRecordTimeViolation   = errors.New("framegraph: pass created outside of a task record")
	ErrNotBuilt              = errors.New("framegraph: graph is not built")
	ErrInvalidTextureOptions = errors.New("framegraph: invalid texture creation options")
	ErrUnknownHandle         = errors.New("framegraph: unknown texture handle")
	ErrReadyTimeout          = errors.New("framegraph: timed out waiting for tasks to be ready")
	ErrDisposed              = errors.New("framegraph: graph is disposed")
)

// BuildError reports why a build was aborted. Kind is one of the sentinel
// errors above; Task is empty when the failure is not tied to a task.
type BuildError struct {
	Kind    error
	Task    string
	Message string
}

func (e *BuildError) Error() string {
	if e == nil {
		return ""
	}
	if e.Task == "" {
		return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Message)
	}
	return fmt.Sprintf("%s: task %q: %s", e.Kind.Error(), e.Task, e.Message)
}

func (e *BuildError) Unwrap() error { return e.Kind }

func buildErrorf(kind error, task string, format string, args ...any) *BuildError {
	return &BuildError{Kind: kind, Task: task, Message: fmt.Sprintf(format, args...)}
}

// asBuildError keeps an existing BuildError and otherwise wraps err, keeping
// any sentinel it already carries as the Kind.
func asBuildError(err error, task string) *BuildError {
	var be *BuildError
	if errors.As(err, &be) {
		if be.Task == "" {
			be.Task = task
		}
		return be
	}
	for _, kind := range []error{ErrInvalidArgument, ErrUnresolvedHandle, ErrResourceConflict, ErrInvalidTextureOptions, ErrUnknownHandle} {
		if errors.Is(err, kind) {
			return &BuildError{Kind: kind, Task: task, Message: err.Error()}
		}
	}
	return &BuildError{Kind: ErrInvalidArgument, Task: task, Message: err.Error()}
}
