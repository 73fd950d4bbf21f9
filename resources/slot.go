// Package resources holds the process-wide resource handles shared by routing
// modules. Each handle lives in a write-once Slot bound during assembly; modules
// receive the populated Set through the Resources interface when they register.
package resources

import (
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
)

var (
	// ErrUnbound is returned when a slot is read before it was bound.
	ErrUnbound = errors.New("resource slot is not bound")
	// ErrAlreadyBound is returned on a second Bind.
	ErrAlreadyBound = errors.New("resource slot is already bound")
	// ErrNilResource is returned when binding a nil handle.
	ErrNilResource = errors.New("cannot bind a nil resource")
)

// Slot is a write-once holder for a shared handle. Reads are lock-free once the
// value has been published by Bind.
type Slot[T any] struct {
	name string
	v    atomic.Pointer[T]
}

// NewSlot returns an empty slot.
func NewSlot[T any](name string) *Slot[T] {
	return &Slot[T]{name: name}
}

// Name returns the slot name used in errors and logs.
func (s *Slot[T]) Name() string { return s.name }

// Bind publishes v. It fails if v is nil or the slot already holds a value.
func (s *Slot[T]) Bind(v T) error {
	if isNil(v) {
		return fmt.Errorf("%s: %w", s.name, ErrNilResource)
	}
	if !s.v.CompareAndSwap(nil, &v) {
		return fmt.Errorf("%s: %w", s.name, ErrAlreadyBound)
	}
	return nil
}

// Get returns the bound value or ErrUnbound.
func (s *Slot[T]) Get() (T, error) {
	p := s.v.Load()
	if p == nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", s.name, ErrUnbound)
	}
	return *p, nil
}

// Load returns the bound value, or the zero value when the slot is still empty.
// A caller that keeps the result of an early Load holds that zero value forever.
func (s *Slot[T]) Load() T {
	if p := s.v.Load(); p != nil {
		return *p
	}
	var zero T
	return zero
}

// Bound reports whether Bind has succeeded.
func (s *Slot[T]) Bound() bool {
	return s.v.Load() != nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
