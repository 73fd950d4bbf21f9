package bootstrap

import (
	"errors"
	"fmt"
)

// ErrResourceBinding is matched by every ResourceBindingError.
var ErrResourceBinding = errors.New("resource binding failed")

// Resource names used in ResourceBindingError.
const (
	ResourceDatabase = "database"
	ResourceKV       = "kv"
	ResourceSessions = "sessions"
)

// ResourceBindingError reports a shared handle that could not be constructed
// or reached during assembly.
type ResourceBindingError struct {
	Resource string
	Target   string
	Err      error
}

func (e *ResourceBindingError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("failed to bind %s (%s): %v", e.Resource, e.Target, e.Err)
	}
	return fmt.Sprintf("failed to bind %s: %v", e.Resource, e.Err)
}

func (e *ResourceBindingError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrResourceBinding) match.
func (e *ResourceBindingError) Is(target error) bool {
	return target == ErrResourceBinding
}
